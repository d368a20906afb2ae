package recovery

import (
	"fmt"
	"sync"

	"github.com/cormorantdb/cormorant/src/pkg/common"
	"github.com/cormorantdb/cormorant/src/storage/file"
)

// LogManager is the append-only write-ahead log. Records live in
// ordinary database blocks: within a block they are written from the
// end of the page towards the head, and the first 4 bytes of the page
// hold the boundary, the offset of the most recently appended record.
//
//	| boundary | ...free... | newest record | ... | oldest record |
//
// Appends are strictly ordered under one mutex; every append returns a
// monotonically increasing LSN. The page is forced to disk when a
// record no longer fits, when a caller demands durability up to an
// LSN, or when an iterator is opened.
type LogManager struct {
	mu sync.Mutex

	fm      *file.Manager
	logfile string

	logPage      *file.Page
	currentBlock common.BlockID

	latestLSN      common.LSN
	lastFlushedLSN common.LSN
}

func NewLogManager(fm *file.Manager, logfile string) (*LogManager, error) {
	m := &LogManager{
		fm:      fm,
		logfile: logfile,
		logPage: file.NewPage(fm.BlockSize()),
	}

	size, err := fm.Length(logfile)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", logfile, err)
	}

	if size == 0 {
		m.currentBlock, err = m.appendNewBlockAssumeLocked()
		if err != nil {
			return nil, err
		}
	} else {
		m.currentBlock = common.NewBlockID(logfile, size-1)
		if err := fm.Read(m.currentBlock, m.logPage); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Append adds one record to the log and returns its LSN. The record is
// not guaranteed durable until Flush is called with that LSN (or a
// later one); a record that does not fit in the current block forces
// the block out and spills into a freshly appended one.
func (m *LogManager) Append(record []byte) (common.LSN, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// a record must fit in a block alongside the boundary header and
	// its own length prefix
	if len(record) > m.fm.BlockSize()-2*file.IntBytes {
		return 0, fmt.Errorf(
			"log record of %d bytes cannot fit in a %d-byte block",
			len(record),
			m.fm.BlockSize(),
		)
	}

	boundary := int(m.logPage.GetInt(0))
	bytesNeeded := len(record) + file.IntBytes

	if boundary-bytesNeeded < file.IntBytes {
		if err := m.flushAssumeLocked(); err != nil {
			return 0, err
		}

		blk, err := m.appendNewBlockAssumeLocked()
		if err != nil {
			return 0, err
		}

		m.currentBlock = blk
		boundary = int(m.logPage.GetInt(0))
	}

	recordPos := boundary - bytesNeeded
	m.logPage.SetBytes(recordPos, record)
	m.logPage.SetInt(0, int32(recordPos))

	m.latestLSN++
	return m.latestLSN, nil
}

// Flush forces the log to disk if the given LSN has not been persisted
// yet.
func (m *LogManager) Flush(lsn common.LSN) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lsn > m.lastFlushedLSN {
		return m.flushAssumeLocked()
	}

	return nil
}

// Iterator returns an iterator over the log records, newest first. The
// log is flushed first so the iterator observes every append that
// happened before this call.
func (m *LogManager) Iterator() (*Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.flushAssumeLocked(); err != nil {
		return nil, err
	}

	return newIterator(m.fm, m.currentBlock)
}

func (m *LogManager) flushAssumeLocked() error {
	if err := m.fm.Write(m.currentBlock, m.logPage); err != nil {
		return err
	}

	m.lastFlushedLSN = m.latestLSN
	return nil
}

// appendNewBlockAssumeLocked extends the log file by one block and
// resets the log page to an empty one whose boundary points at the end
// of the block.
func (m *LogManager) appendNewBlockAssumeLocked() (common.BlockID, error) {
	blk, err := m.fm.Append(m.logfile)
	if err != nil {
		return common.BlockID{}, err
	}

	m.logPage = file.NewPage(m.fm.BlockSize())
	m.logPage.SetInt(0, int32(m.fm.BlockSize()))

	if err := m.fm.Write(blk, m.logPage); err != nil {
		return common.BlockID{}, err
	}

	return blk, nil
}
