package common

import "fmt"

// TxnID identifies a transaction. IDs are assigned from a
// process-wide monotonic counter.
type TxnID int32

// NilTxnID marks log records that do not belong to any transaction.
const NilTxnID TxnID = -1

// LSN is the sequence number assigned to an appended log record.
// LSNs grow monotonically within one log manager.
type LSN int

// BlockID identifies one block of a database file by file name and
// zero-based block number. It is a value type and is used as a map key.
type BlockID struct {
	Filename string
	Number   int32
}

func NewBlockID(filename string, number int32) BlockID {
	return BlockID{
		Filename: filename,
		Number:   number,
	}
}

func (b BlockID) String() string {
	return fmt.Sprintf("[file %s, block %d]", b.Filename, b.Number)
}
