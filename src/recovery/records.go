package recovery

import (
	"fmt"

	"github.com/cormorantdb/cormorant/src/pkg/common"
	"github.com/cormorantdb/cormorant/src/storage/file"
)

// Op is the operator tag opening every log record on disk.
type Op int32

const (
	OpCheckpoint Op = iota
	OpStart
	OpCommit
	OpRollback
	OpSetInt
	OpSetString
)

func (o Op) String() string {
	switch o {
	case OpCheckpoint:
		return "CHECKPOINT"
	case OpStart:
		return "START"
	case OpCommit:
		return "COMMIT"
	case OpRollback:
		return "ROLLBACK"
	case OpSetInt:
		return "SETINT"
	case OpSetString:
		return "SETSTRING"
	}

	return fmt.Sprintf("UNKNOWN(%d)", int32(o))
}

// LogRecord is one entry of the write-ahead log. Every record knows
// how to undo its own effect; records that change nothing (START,
// COMMIT, ROLLBACK, CHECKPOINT) undo to a no-op.
//
// The wire format shares a common header, written and read through the
// page codec: [operator int32][txnum int32], followed by the
// kind-specific payload. Field order is part of the format.
type LogRecord interface {
	Op() Op
	TxNum() common.TxnID
	Undo(tx common.Transaction) error
	fmt.Stringer
}

// ParseLogRecord decodes a raw log record read back from the log.
// An unrecognized operator or a buffer too short to carry the header
// and the kind-specific payload is a checked error: a corrupt log must
// never be silently replayed.
func ParseLogRecord(raw []byte) (LogRecord, error) {
	if len(raw) < file.IntBytes {
		return nil, fmt.Errorf("log record of %d bytes is shorter than its header", len(raw))
	}

	p := file.NewPageWithBuf(raw)

	op := Op(p.GetInt(0))
	if op != OpCheckpoint && len(raw) < 2*file.IntBytes {
		return nil, fmt.Errorf("%s record of %d bytes is missing its transaction number", op, len(raw))
	}

	switch op {
	case OpCheckpoint:
		return CheckpointRecord{}, nil
	case OpStart:
		return newStartRecord(p), nil
	case OpCommit:
		return newCommitRecord(p), nil
	case OpRollback:
		return newRollbackRecord(p), nil
	case OpSetInt:
		return newSetIntRecord(p)
	case OpSetString:
		return newSetStringRecord(p)
	default:
		return nil, fmt.Errorf("unknown log record operator %d", int32(op))
	}
}

func errTruncatedRecord(op Op, size int) error {
	return fmt.Errorf("truncated %s record of %d bytes", op, size)
}

const txNumPos = file.IntBytes

// CheckpointRecord marks a quiescent point: every transaction before
// it has completed, so recovery never needs to look further back.
type CheckpointRecord struct{}

func (CheckpointRecord) Op() Op { return OpCheckpoint }

func (CheckpointRecord) TxNum() common.TxnID { return common.NilTxnID }

func (CheckpointRecord) Undo(common.Transaction) error { return nil }

func (CheckpointRecord) String() string { return "<CHECKPOINT>" }

// LogCheckpoint appends a CHECKPOINT record and returns its LSN.
func LogCheckpoint(lm *LogManager) (common.LSN, error) {
	raw := make([]byte, file.IntBytes)
	p := file.NewPageWithBuf(raw)
	p.SetInt(0, int32(OpCheckpoint))
	return lm.Append(raw)
}

// StartRecord marks the beginning of a transaction. Rollback scans
// backward until it reaches the transaction's START.
type StartRecord struct {
	txNum common.TxnID
}

func newStartRecord(p *file.Page) StartRecord {
	return StartRecord{
		txNum: common.TxnID(p.GetInt(txNumPos)),
	}
}

func (r StartRecord) Op() Op { return OpStart }

func (r StartRecord) TxNum() common.TxnID { return r.txNum }

func (StartRecord) Undo(common.Transaction) error { return nil }

func (r StartRecord) String() string {
	return fmt.Sprintf("<START %d>", r.txNum)
}

func LogStart(lm *LogManager, txNum common.TxnID) (common.LSN, error) {
	return lm.Append(marshalHeaderOnly(OpStart, txNum))
}

// CommitRecord marks successful completion. It carries no prior-value
// information, so there is nothing to undo.
type CommitRecord struct {
	txNum common.TxnID
}

func newCommitRecord(p *file.Page) CommitRecord {
	return CommitRecord{
		txNum: common.TxnID(p.GetInt(txNumPos)),
	}
}

func (r CommitRecord) Op() Op { return OpCommit }

func (r CommitRecord) TxNum() common.TxnID { return r.txNum }

func (CommitRecord) Undo(common.Transaction) error { return nil }

func (r CommitRecord) String() string {
	return fmt.Sprintf("<COMMIT %d>", r.txNum)
}

func LogCommit(lm *LogManager, txNum common.TxnID) (common.LSN, error) {
	return lm.Append(marshalHeaderOnly(OpCommit, txNum))
}

// RollbackRecord marks a completed rollback. The undo records that
// preceded it have already restored the old values.
type RollbackRecord struct {
	txNum common.TxnID
}

func newRollbackRecord(p *file.Page) RollbackRecord {
	return RollbackRecord{
		txNum: common.TxnID(p.GetInt(txNumPos)),
	}
}

func (r RollbackRecord) Op() Op { return OpRollback }

func (r RollbackRecord) TxNum() common.TxnID { return r.txNum }

func (RollbackRecord) Undo(common.Transaction) error { return nil }

func (r RollbackRecord) String() string {
	return fmt.Sprintf("<ROLLBACK %d>", r.txNum)
}

func LogRollback(lm *LogManager, txNum common.TxnID) (common.LSN, error) {
	return lm.Append(marshalHeaderOnly(OpRollback, txNum))
}

func marshalHeaderOnly(op Op, txNum common.TxnID) []byte {
	raw := make([]byte, 2*file.IntBytes)
	p := file.NewPageWithBuf(raw)
	p.SetInt(0, int32(op))
	p.SetInt(txNumPos, int32(txNum))
	return raw
}

// SetIntRecord is the undo record for an integer update. It stores the
// value the field held before the update:
//
//	[SETINT][txnum][filename][block number][offset][old value]
type SetIntRecord struct {
	txNum  common.TxnID
	blk    common.BlockID
	offset int
	oldVal int32
}

func newSetIntRecord(p *file.Page) (SetIntRecord, error) {
	const fnamePos = txNumPos + file.IntBytes

	size := len(p.Contents())
	if size < fnamePos+file.IntBytes {
		return SetIntRecord{}, errTruncatedRecord(OpSetInt, size)
	}

	fnameLen := int(p.GetInt(fnamePos))

	blkNumPos := fnamePos + file.MaxLength(fnameLen)
	offsetPos := blkNumPos + file.IntBytes
	valPos := offsetPos + file.IntBytes

	if fnameLen < 0 || valPos+file.IntBytes > size {
		return SetIntRecord{}, errTruncatedRecord(OpSetInt, size)
	}

	return SetIntRecord{
		txNum:  common.TxnID(p.GetInt(txNumPos)),
		blk:    common.NewBlockID(p.GetString(fnamePos), p.GetInt(blkNumPos)),
		offset: int(p.GetInt(offsetPos)),
		oldVal: p.GetInt(valPos),
	}, nil
}

func (r SetIntRecord) Op() Op { return OpSetInt }

func (r SetIntRecord) TxNum() common.TxnID { return r.txNum }

// Undo restores the old value. The write is not logged: undoing must
// not generate further undo work.
func (r SetIntRecord) Undo(tx common.Transaction) error {
	if err := tx.Pin(r.blk); err != nil {
		return err
	}
	defer tx.Unpin(r.blk)

	return tx.SetInt(r.blk, r.offset, r.oldVal, false)
}

func (r SetIntRecord) String() string {
	return fmt.Sprintf("<SETINT %d %s %d %d>", r.txNum, r.blk, r.offset, r.oldVal)
}

func LogSetInt(
	lm *LogManager,
	txNum common.TxnID,
	blk common.BlockID,
	offset int,
	oldVal int32,
) (common.LSN, error) {
	const fnamePos = txNumPos + file.IntBytes

	blkNumPos := fnamePos + file.MaxLength(len(blk.Filename))
	offsetPos := blkNumPos + file.IntBytes
	valPos := offsetPos + file.IntBytes

	raw := make([]byte, valPos+file.IntBytes)
	p := file.NewPageWithBuf(raw)
	p.SetInt(0, int32(OpSetInt))
	p.SetInt(txNumPos, int32(txNum))
	p.SetString(fnamePos, blk.Filename)
	p.SetInt(blkNumPos, blk.Number)
	p.SetInt(offsetPos, int32(offset))
	p.SetInt(valPos, oldVal)

	return lm.Append(raw)
}

// SetStringRecord is the undo record for a string update:
//
//	[SETSTRING][txnum][filename][block number][offset][old value]
type SetStringRecord struct {
	txNum  common.TxnID
	blk    common.BlockID
	offset int
	oldVal string
}

func newSetStringRecord(p *file.Page) (SetStringRecord, error) {
	const fnamePos = txNumPos + file.IntBytes

	size := len(p.Contents())
	if size < fnamePos+file.IntBytes {
		return SetStringRecord{}, errTruncatedRecord(OpSetString, size)
	}

	fnameLen := int(p.GetInt(fnamePos))

	blkNumPos := fnamePos + file.MaxLength(fnameLen)
	offsetPos := blkNumPos + file.IntBytes
	valPos := offsetPos + file.IntBytes

	if fnameLen < 0 || valPos+file.IntBytes > size {
		return SetStringRecord{}, errTruncatedRecord(OpSetString, size)
	}

	oldLen := int(p.GetInt(valPos))
	if oldLen < 0 || valPos+file.MaxLength(oldLen) > size {
		return SetStringRecord{}, errTruncatedRecord(OpSetString, size)
	}

	return SetStringRecord{
		txNum:  common.TxnID(p.GetInt(txNumPos)),
		blk:    common.NewBlockID(p.GetString(fnamePos), p.GetInt(blkNumPos)),
		offset: int(p.GetInt(offsetPos)),
		oldVal: p.GetString(valPos),
	}, nil
}

func (r SetStringRecord) Op() Op { return OpSetString }

func (r SetStringRecord) TxNum() common.TxnID { return r.txNum }

func (r SetStringRecord) Undo(tx common.Transaction) error {
	if err := tx.Pin(r.blk); err != nil {
		return err
	}
	defer tx.Unpin(r.blk)

	return tx.SetString(r.blk, r.offset, r.oldVal, false)
}

func (r SetStringRecord) String() string {
	return fmt.Sprintf("<SETSTRING %d %s %d %s>", r.txNum, r.blk, r.offset, r.oldVal)
}

func LogSetString(
	lm *LogManager,
	txNum common.TxnID,
	blk common.BlockID,
	offset int,
	oldVal string,
) (common.LSN, error) {
	const fnamePos = txNumPos + file.IntBytes

	blkNumPos := fnamePos + file.MaxLength(len(blk.Filename))
	offsetPos := blkNumPos + file.IntBytes
	valPos := offsetPos + file.IntBytes

	raw := make([]byte, valPos+file.MaxLength(len(oldVal)))
	p := file.NewPageWithBuf(raw)
	p.SetInt(0, int32(OpSetString))
	p.SetInt(txNumPos, int32(txNum))
	p.SetString(fnamePos, blk.Filename)
	p.SetInt(blkNumPos, blk.Number)
	p.SetInt(offsetPos, int32(offset))
	p.SetString(valPos, oldVal)

	return lm.Append(raw)
}
