package txns

import (
	"fmt"
	"sync"
	"testing"

	"github.com/panjf2000/ants"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cormorantdb/cormorant/src"
	"github.com/cormorantdb/cormorant/src/pkg/common"
	"github.com/cormorantdb/cormorant/src/recovery"
	"github.com/cormorantdb/cormorant/src/storage/file"
)

const testBlockSize = 256

func newTestEnv(t *testing.T) (*file.Manager, *recovery.LogManager) {
	t.Helper()

	fm, err := file.NewManager(afero.NewMemMapFs(), "db", testBlockSize, src.NoOpLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, fm.Close()) })

	lm, err := recovery.NewLogManager(fm, "test.wal")
	require.NoError(t, err)

	return fm, lm
}

func newTx(t *testing.T, fm *file.Manager, lm *recovery.LogManager) *Tx {
	t.Helper()

	tx, err := New(fm, lm, src.NoOpLogger{})
	require.NoError(t, err)
	return tx
}

func TestCommitPersistsValues(t *testing.T) {
	fm, lm := newTestEnv(t)

	blk, err := fm.Append("accounts.tbl")
	require.NoError(t, err)

	tx1 := newTx(t, fm, lm)
	require.NoError(t, tx1.Pin(blk))
	require.NoError(t, tx1.SetInt(blk, 0, 10, true))
	require.NoError(t, tx1.SetString(blk, 40, "alice", true))
	require.NoError(t, tx1.Commit())

	tx2 := newTx(t, fm, lm)
	require.NoError(t, tx2.Pin(blk))

	balance, err := tx2.GetInt(blk, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), balance)

	owner, err := tx2.GetString(blk, 40)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestRollbackRestoresPreviousValues(t *testing.T) {
	fm, lm := newTestEnv(t)

	blk, err := fm.Append("accounts.tbl")
	require.NoError(t, err)

	setup := newTx(t, fm, lm)
	require.NoError(t, setup.Pin(blk))
	require.NoError(t, setup.SetInt(blk, 0, 10, true))
	require.NoError(t, setup.SetString(blk, 40, "alice", true))
	require.NoError(t, setup.Commit())

	victim := newTx(t, fm, lm)
	require.NoError(t, victim.Pin(blk))
	require.NoError(t, victim.SetInt(blk, 0, 999, true))
	require.NoError(t, victim.SetString(blk, 40, "mallory", true))
	require.NoError(t, victim.Rollback())

	check := newTx(t, fm, lm)
	require.NoError(t, check.Pin(blk))

	balance, err := check.GetInt(blk, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), balance)

	owner, err := check.GetString(blk, 40)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

// A transaction that wrote the same field twice must roll back to the
// value the field held at its START, not to an intermediate one.
func TestRollbackUndoesInReverseOrder(t *testing.T) {
	fm, lm := newTestEnv(t)

	blk, err := fm.Append("accounts.tbl")
	require.NoError(t, err)

	setup := newTx(t, fm, lm)
	require.NoError(t, setup.Pin(blk))
	require.NoError(t, setup.SetInt(blk, 0, 5, true))
	require.NoError(t, setup.Commit())

	tx := newTx(t, fm, lm)
	require.NoError(t, tx.Pin(blk))
	require.NoError(t, tx.SetInt(blk, 0, 9, true))
	require.NoError(t, tx.SetInt(blk, 0, 13, true))
	require.NoError(t, tx.Rollback())

	check := newTx(t, fm, lm)
	require.NoError(t, check.Pin(blk))

	val, err := check.GetInt(blk, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(5), val)
}

func TestRecoverUndoesUnfinishedTransactions(t *testing.T) {
	fm, lm := newTestEnv(t)

	blk, err := fm.Append("accounts.tbl")
	require.NoError(t, err)

	committed := newTx(t, fm, lm)
	require.NoError(t, committed.Pin(blk))
	require.NoError(t, committed.SetInt(blk, 0, 5, true))
	require.NoError(t, committed.SetString(blk, 40, "stable", true))
	require.NoError(t, committed.Commit())

	// crashes mid-flight: updates hit disk, COMMIT never does
	crashed := newTx(t, fm, lm)
	require.NoError(t, crashed.Pin(blk))
	require.NoError(t, crashed.SetInt(blk, 0, 9, true))
	require.NoError(t, crashed.SetInt(blk, 0, 13, true))
	require.NoError(t, crashed.SetString(blk, 40, "garbage", true))

	onDisk := file.NewPage(testBlockSize)
	require.NoError(t, fm.Read(blk, onDisk))
	require.Equal(t, int32(13), onDisk.GetInt(0))

	recoveryTx := newTx(t, fm, lm)
	require.NoError(t, recoveryTx.Recover())

	check := newTx(t, fm, lm)
	require.NoError(t, check.Pin(blk))

	val, err := check.GetInt(blk, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(5), val)

	s, err := check.GetString(blk, 40)
	require.NoError(t, err)
	assert.Equal(t, "stable", s)
}

// Recovery appends a quiescent checkpoint; a second recovery must not
// undo anything that happened before it.
func TestRecoverStopsAtCheckpoint(t *testing.T) {
	fm, lm := newTestEnv(t)

	blk, err := fm.Append("accounts.tbl")
	require.NoError(t, err)

	committed := newTx(t, fm, lm)
	require.NoError(t, committed.Pin(blk))
	require.NoError(t, committed.SetInt(blk, 0, 5, true))
	require.NoError(t, committed.Commit())

	first := newTx(t, fm, lm)
	require.NoError(t, first.Recover())

	// unfinished after the checkpoint
	crashed := newTx(t, fm, lm)
	require.NoError(t, crashed.Pin(blk))
	require.NoError(t, crashed.SetInt(blk, 0, 77, true))

	second := newTx(t, fm, lm)
	require.NoError(t, second.Recover())

	check := newTx(t, fm, lm)
	require.NoError(t, check.Pin(blk))

	val, err := check.GetInt(blk, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(5), val)
}

func TestTxNumsAreUnique(t *testing.T) {
	fm, lm := newTestEnv(t)

	tx1 := newTx(t, fm, lm)
	tx2 := newTx(t, fm, lm)
	assert.NotEqual(t, tx1.TxNum(), tx2.TxNum())
	assert.NotEqual(t, common.NilTxnID, tx1.TxNum())
}

func TestConcurrentTransactionsOnDisjointBlocks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow test in short mode")
	}

	fm, lm := newTestEnv(t)

	const (
		workers       = 8
		txnsPerWorker = 50
	)

	workerPool, err := ants.NewPool(workers)
	require.NoError(t, err)

	blocks := make([]common.BlockID, workers)
	for i := range blocks {
		blk, err := fm.Append(fmt.Sprintf("w%d.tbl", i))
		require.NoError(t, err)
		blocks[i] = blk
	}

	errs := make(chan error, workers)

	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		blk := blocks[i]

		wg.Add(1)
		task := func() {
			defer wg.Done()

			// every odd transaction rolls back; the final balance
			// counts only the committed increments
			for n := 0; n < txnsPerWorker; n++ {
				err := func() error {
					tx, err := New(fm, lm, src.NoOpLogger{})
					if err != nil {
						return err
					}

					if err := tx.Pin(blk); err != nil {
						return err
					}

					old, err := tx.GetInt(blk, 0)
					if err != nil {
						return err
					}

					if err := tx.SetInt(blk, 0, old+1, true); err != nil {
						return err
					}

					if n%2 == 1 {
						return tx.Rollback()
					}
					return tx.Commit()
				}()
				if err != nil {
					errs <- err
					return
				}
			}
		}
		require.NoError(t, workerPool.Submit(task))
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, blk := range blocks {
		check := newTx(t, fm, lm)
		require.NoError(t, check.Pin(blk))

		val, err := check.GetInt(blk, 0)
		require.NoError(t, err)
		assert.Equal(t, int32(txnsPerWorker/2), val)
	}
}
