package common

// DummyTransaction ignores every call. It backs tests that need a
// Transaction whose mutations (if any) must be observable as "none",
// e.g. undoing a commit record.
type DummyTransaction struct {
	blockSize int
	txNum     TxnID
}

var _ Transaction = &DummyTransaction{}

func NewDummyTransaction(blockSize int, txNum TxnID) *DummyTransaction {
	return &DummyTransaction{
		blockSize: blockSize,
		txNum:     txNum,
	}
}

func (t *DummyTransaction) Pin(BlockID) error { return nil }

func (t *DummyTransaction) Unpin(BlockID) {}

func (t *DummyTransaction) GetInt(BlockID, int) (int32, error) { return 0, nil }

func (t *DummyTransaction) GetString(BlockID, int) (string, error) { return "", nil }

func (t *DummyTransaction) SetInt(BlockID, int, int32, bool) error { return nil }

func (t *DummyTransaction) SetString(BlockID, int, string, bool) error { return nil }

func (t *DummyTransaction) BlockSize() int { return t.blockSize }

func (t *DummyTransaction) TxNum() TxnID { return t.txNum }
