package common

// Transaction is the buffering/locking collaborator the storage core
// writes through. Implementations are expected to provide pinned,
// page-backed access to blocks; the core never touches buffers behind
// a transaction's back.
//
// The shouldLog flag on the setters requests an undo log record
// describing the previous value. Recovery passes shouldLog=false when
// restoring old values, so that undoing never generates further undo
// work.
type Transaction interface {
	Pin(blk BlockID) error
	Unpin(blk BlockID)

	GetInt(blk BlockID, offset int) (int32, error)
	GetString(blk BlockID, offset int) (string, error)
	SetInt(blk BlockID, offset int, val int32, shouldLog bool) error
	SetString(blk BlockID, offset int, val string, shouldLog bool) error

	BlockSize() int
	TxNum() TxnID
}
