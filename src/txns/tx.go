package txns

import (
	"sync/atomic"

	"github.com/cormorantdb/cormorant/src"
	"github.com/cormorantdb/cormorant/src/pkg/assert"
	"github.com/cormorantdb/cormorant/src/pkg/common"
	"github.com/cormorantdb/cormorant/src/recovery"
	"github.com/cormorantdb/cormorant/src/storage/file"
)

var nextTxNum atomic.Int32

// Tx is a write-through transaction: every set reaches disk
// immediately, with the undo log record forced first. It implements
// common.Transaction without a buffer pool and without a lock manager;
// those stay external. A Tx is single-threaded; concurrent
// transactions must not touch the same block.
type Tx struct {
	fm    *file.Manager
	lm    *recovery.LogManager
	rm    *recovery.Manager
	txNum common.TxnID

	pages map[common.BlockID]*pinnedPage
}

type pinnedPage struct {
	page *file.Page
	pins int
}

var _ common.Transaction = &Tx{}

// New starts a transaction: assigns it the next transaction number and
// appends its START record.
func New(fm *file.Manager, lm *recovery.LogManager, log src.Logger) (*Tx, error) {
	tx := &Tx{
		fm:    fm,
		lm:    lm,
		txNum: common.TxnID(nextTxNum.Add(1)),
		pages: make(map[common.BlockID]*pinnedPage),
	}

	rm, err := recovery.NewManager(tx, tx.txNum, lm, log)
	if err != nil {
		return nil, err
	}

	tx.rm = rm
	return tx, nil
}

func (t *Tx) TxNum() common.TxnID {
	return t.txNum
}

func (t *Tx) BlockSize() int {
	return t.fm.BlockSize()
}

// Pin loads the block's current contents on first pin; further pins
// only bump the pin count.
func (t *Tx) Pin(blk common.BlockID) error {
	if entry, ok := t.pages[blk]; ok {
		entry.pins++
		return nil
	}

	page := file.NewPage(t.fm.BlockSize())
	if err := t.fm.Read(blk, page); err != nil {
		return err
	}

	t.pages[blk] = &pinnedPage{
		page: page,
		pins: 1,
	}
	return nil
}

func (t *Tx) Unpin(blk common.BlockID) {
	entry, ok := t.pages[blk]
	assert.Assert(ok, "unpin of a block that was never pinned: %s", blk)
	assert.Assert(entry.pins > 0, "pin count underflow on block %s", blk)

	entry.pins--
	if entry.pins == 0 {
		delete(t.pages, blk)
	}
}

func (t *Tx) pinned(blk common.BlockID) *file.Page {
	entry, ok := t.pages[blk]
	assert.Assert(ok, "access to unpinned block %s", blk)
	return entry.page
}

func (t *Tx) GetInt(blk common.BlockID, offset int) (int32, error) {
	return t.pinned(blk).GetInt(offset), nil
}

func (t *Tx) GetString(blk common.BlockID, offset int) (string, error) {
	return t.pinned(blk).GetString(offset), nil
}

// SetInt writes val at offset within blk. With shouldLog set, the
// previous value goes to the log and the log is forced before the data
// block is written: the undo information must be durable first.
func (t *Tx) SetInt(blk common.BlockID, offset int, val int32, shouldLog bool) error {
	page := t.pinned(blk)

	if shouldLog {
		lsn, err := t.rm.SetInt(blk, offset, page.GetInt(offset))
		if err != nil {
			return err
		}

		if err := t.lm.Flush(lsn); err != nil {
			return err
		}
	}

	page.SetInt(offset, val)
	return t.fm.Write(blk, page)
}

func (t *Tx) SetString(blk common.BlockID, offset int, val string, shouldLog bool) error {
	page := t.pinned(blk)

	if shouldLog {
		lsn, err := t.rm.SetString(blk, offset, page.GetString(offset))
		if err != nil {
			return err
		}

		if err := t.lm.Flush(lsn); err != nil {
			return err
		}
	}

	page.SetString(offset, val)
	return t.fm.Write(blk, page)
}

// Append extends the named file by one block on behalf of this
// transaction.
func (t *Tx) Append(filename string) (common.BlockID, error) {
	return t.fm.Append(filename)
}

func (t *Tx) Length(filename string) (int32, error) {
	return t.fm.Length(filename)
}

// Commit makes the transaction durable and releases its pins. The
// COMMIT record is on disk before Commit returns.
func (t *Tx) Commit() error {
	if err := t.rm.Commit(); err != nil {
		return err
	}

	t.pages = make(map[common.BlockID]*pinnedPage)
	return nil
}

// Rollback restores every value this transaction overwrote and
// releases its pins.
func (t *Tx) Rollback() error {
	if err := t.rm.Rollback(); err != nil {
		return err
	}

	t.pages = make(map[common.BlockID]*pinnedPage)
	return nil
}

// Recover replays the log backward and undoes every transaction that
// never completed. It must run on startup, before any other
// transaction is started.
func (t *Tx) Recover() error {
	return t.rm.Recover()
}
