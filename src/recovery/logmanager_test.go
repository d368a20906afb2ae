package recovery

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cormorantdb/cormorant/src"
	"github.com/cormorantdb/cormorant/src/pkg/common"
	"github.com/cormorantdb/cormorant/src/storage/file"
)

const testBlockSize = 128

func newTestLog(t *testing.T) (*file.Manager, *LogManager) {
	t.Helper()

	fm, err := file.NewManager(afero.NewMemMapFs(), "db", testBlockSize, src.NoOpLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, fm.Close()) })

	lm, err := NewLogManager(fm, "test.wal")
	require.NoError(t, err)

	return fm, lm
}

func appendTestRecords(t *testing.T, lm *LogManager, from, to int) {
	t.Helper()

	for i := from; i <= to; i++ {
		key := fmt.Sprintf("record_%d", i)

		raw := make([]byte, file.MaxLength(len(key))+file.IntBytes)
		p := file.NewPageWithBuf(raw)
		p.SetString(0, key)
		p.SetInt(file.MaxLength(len(key)), int32(i+100))

		lsn, err := lm.Append(raw)
		require.NoError(t, err)
		require.Equal(t, common.LSN(i), lsn)
	}
}

// expectTestRecords asserts the iterator returns records newest first,
// from `from` down to 1.
func expectTestRecords(t *testing.T, lm *LogManager, from int) {
	t.Helper()

	iter, err := lm.Iterator()
	require.NoError(t, err)

	for i := from; i >= 1; i-- {
		require.True(t, iter.HasNext(), "log ended early, expected record %d", i)

		raw, err := iter.Next()
		require.NoError(t, err)

		p := file.NewPageWithBuf(raw)
		key := p.GetString(0)
		require.Equal(t, fmt.Sprintf("record_%d", i), key)
		require.Equal(t, int32(i+100), p.GetInt(file.MaxLength(len(key))))
	}

	assert.False(t, iter.HasNext())
}

func TestLogIterationIsNewestFirst(t *testing.T) {
	_, lm := newTestLog(t)

	// enough records to spill over several 128-byte blocks
	appendTestRecords(t, lm, 1, 35)
	expectTestRecords(t, lm, 35)

	appendTestRecords(t, lm, 36, 70)
	require.NoError(t, lm.Flush(65))
	expectTestRecords(t, lm, 70)
}

func TestLogSurvivesReopen(t *testing.T) {
	fm, lm := newTestLog(t)

	appendTestRecords(t, lm, 1, 20)

	iter, err := lm.Iterator() // flushes
	require.NoError(t, err)
	require.True(t, iter.HasNext())

	reopened, err := NewLogManager(fm, "test.wal")
	require.NoError(t, err)
	expectTestRecords(t, reopened, 20)
}

func TestLogRejectsOversizedRecord(t *testing.T) {
	_, lm := newTestLog(t)

	_, err := lm.Append(make([]byte, testBlockSize))
	assert.Error(t, err)

	// the largest record that still fits alongside the two headers
	_, err = lm.Append(make([]byte, testBlockSize-2*file.IntBytes))
	assert.NoError(t, err)
}
