package recovery

import (
	"github.com/cormorantdb/cormorant/src"
	"github.com/cormorantdb/cormorant/src/pkg/common"
)

// Manager drives undo-only recovery for one transaction. Construction
// appends the transaction's START record; afterwards the transaction
// reports its updates here so that the old values reach the log before
// the data pages change.
type Manager struct {
	lm    *LogManager
	tx    common.Transaction
	txNum common.TxnID
	log   src.Logger
}

func NewManager(
	tx common.Transaction,
	txNum common.TxnID,
	lm *LogManager,
	log src.Logger,
) (*Manager, error) {
	if _, err := LogStart(lm, txNum); err != nil {
		return nil, err
	}

	return &Manager{
		lm:    lm,
		tx:    tx,
		txNum: txNum,
		log:   log,
	}, nil
}

// SetInt appends the undo record for an integer update and returns its
// LSN. oldVal is the value the field holds right now, before the
// update is applied.
func (m *Manager) SetInt(blk common.BlockID, offset int, oldVal int32) (common.LSN, error) {
	return LogSetInt(m.lm, m.txNum, blk, offset, oldVal)
}

// SetString appends the undo record for a string update and returns
// its LSN.
func (m *Manager) SetString(blk common.BlockID, offset int, oldVal string) (common.LSN, error) {
	return LogSetString(m.lm, m.txNum, blk, offset, oldVal)
}

// Commit appends the transaction's COMMIT record and forces the log
// through it. Only after the flush returns is the transaction allowed
// to report success.
func (m *Manager) Commit() error {
	lsn, err := LogCommit(m.lm, m.txNum)
	if err != nil {
		return err
	}

	return m.lm.Flush(lsn)
}

// Rollback undoes every update of this transaction, newest first, then
// appends a ROLLBACK record and forces the log.
func (m *Manager) Rollback() error {
	if err := m.doRollback(); err != nil {
		return err
	}

	lsn, err := LogRollback(m.lm, m.txNum)
	if err != nil {
		return err
	}

	return m.lm.Flush(lsn)
}

// doRollback walks the log backward, undoing this transaction's
// records until its START is reached. Reverse-append order matters: a
// field written twice must end up at the value it held at START, not
// at an intermediate one.
func (m *Manager) doRollback() error {
	iter, err := m.lm.Iterator()
	if err != nil {
		return err
	}

	for iter.HasNext() {
		raw, err := iter.Next()
		if err != nil {
			return err
		}

		record, err := ParseLogRecord(raw)
		if err != nil {
			return err
		}

		if record.TxNum() != m.txNum {
			continue
		}

		if record.Op() == OpStart {
			return nil
		}

		if err := record.Undo(m.tx); err != nil {
			return err
		}
	}

	return nil
}

// Recover rolls back every transaction that was left unfinished by a
// crash, then appends a quiescent CHECKPOINT record and forces the
// log. It must run before any new transaction touches the database.
func (m *Manager) Recover() error {
	if err := m.doRecover(); err != nil {
		return err
	}

	lsn, err := LogCheckpoint(m.lm)
	if err != nil {
		return err
	}

	return m.lm.Flush(lsn)
}

// doRecover walks the whole log backward, undoing every record of
// every transaction that has no COMMIT or ROLLBACK later in the log.
// A CHECKPOINT record ends the scan: everything before it completed.
func (m *Manager) doRecover() error {
	finished := make(map[common.TxnID]struct{})

	iter, err := m.lm.Iterator()
	if err != nil {
		return err
	}

	undone := 0
	for iter.HasNext() {
		raw, err := iter.Next()
		if err != nil {
			return err
		}

		record, err := ParseLogRecord(raw)
		if err != nil {
			return err
		}

		switch record.Op() {
		case OpCheckpoint:
			m.log.Infof("recovery reached checkpoint, undid %d updates", undone)
			return nil
		case OpCommit, OpRollback:
			finished[record.TxNum()] = struct{}{}
		case OpSetInt, OpSetString:
			if _, ok := finished[record.TxNum()]; ok {
				continue
			}

			if err := record.Undo(m.tx); err != nil {
				return err
			}
			undone++
		case OpStart:
			// nothing to undo
		}
	}

	m.log.Infof("recovery reached start of log, undid %d updates", undone)
	return nil
}
