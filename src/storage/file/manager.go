package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/cormorantdb/cormorant/src"
	"github.com/cormorantdb/cormorant/src/pkg/common"
)

// TmpFilePrefix marks scratch files. Anything carrying it is purged
// when the manager starts, so scratch state never survives a crash.
const TmpFilePrefix = "__tmp"

// Manager performs block-aligned I/O on the database directory. Every
// Read, Write and Append translates to exactly one positioned transfer
// on the underlying file.
//
// A single mutex guards both the open-handle table and the transfers
// themselves; there is never more than one positioned transfer in
// flight.
type Manager struct {
	mu sync.Mutex

	fs        afero.Fs
	dbDir     string
	blockSize int
	isNew     bool

	// file handles are opened on first access and kept until Close.
	openFiles map[string]afero.File

	log src.Logger
}

func NewManager(fs afero.Fs, dbDir string, blockSize int, log src.Logger) (*Manager, error) {
	_, err := fs.Stat(dbDir)
	isNew := os.IsNotExist(err)

	if isNew {
		if err := fs.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
		log.Infof("created database directory %s", dbDir)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat database directory %s: %w", dbDir, err)
	}

	entries, err := afero.ReadDir(fs, dbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list database directory %s: %w", dbDir, err)
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), TmpFilePrefix) {
			continue
		}
		if err := fs.Remove(filepath.Join(dbDir, entry.Name())); err != nil {
			return nil, fmt.Errorf("failed to remove stale temp file %s: %w", entry.Name(), err)
		}
		log.Infof("removed stale temp file %s", entry.Name())
	}

	return &Manager{
		fs:        fs,
		dbDir:     dbDir,
		blockSize: blockSize,
		isNew:     isNew,
		openFiles: make(map[string]afero.File),
		log:       log,
	}, nil
}

// IsNew reports whether the database directory was created by this
// manager rather than found on disk.
func (m *Manager) IsNew() bool {
	return m.isNew
}

func (m *Manager) BlockSize() int {
	return m.blockSize
}

// TempFileName mints a fresh scratch file name. The name carries the
// temp prefix, so the file is cleaned up on the next startup even if
// the caller never removes it.
func (m *Manager) TempFileName() string {
	return fmt.Sprintf("%s_%s", TmpFilePrefix, uuid.NewString())
}

// file returns the open handle for filename, opening and registering
// it on first use. Callers must hold m.mu.
func (m *Manager) file(filename string) (afero.File, error) {
	if f, ok := m.openFiles[filename]; ok {
		return f, nil
	}

	f, err := m.fs.OpenFile(
		filepath.Join(m.dbDir, filename),
		os.O_CREATE|os.O_RDWR,
		0o600,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}

	m.openFiles[filename] = f
	return f, nil
}

// Read fills p with the contents of block blk. Reading past the end of
// the file is not an error: the unwritten tail comes back zeroed, which
// is exactly the state Append would have left on disk.
func (m *Manager) Read(blk common.BlockID, p *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.file(blk.Filename)
	if err != nil {
		return err
	}

	buf := p.Contents()
	n, err := f.ReadAt(buf, int64(blk.Number)*int64(m.blockSize))
	if err == io.EOF {
		clear(buf[n:])
	} else if err != nil {
		return fmt.Errorf("failed to read block %s: %w", blk, err)
	}

	return nil
}

// Write persists p as block blk.
func (m *Manager) Write(blk common.BlockID, p *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.file(blk.Filename)
	if err != nil {
		return err
	}

	if _, err := f.WriteAt(p.Contents(), int64(blk.Number)*int64(m.blockSize)); err != nil {
		return fmt.Errorf("failed to write block %s: %w", blk, err)
	}

	return nil
}

// Append extends filename by one zero-filled block and returns its
// identity.
func (m *Manager) Append(filename string) (common.BlockID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	length, err := m.lengthAssumeLocked(filename)
	if err != nil {
		return common.BlockID{}, err
	}

	blk := common.NewBlockID(filename, length)
	buf := make([]byte, m.blockSize)

	f, err := m.file(filename)
	if err != nil {
		return common.BlockID{}, err
	}

	if _, err := f.WriteAt(buf, int64(blk.Number)*int64(m.blockSize)); err != nil {
		return common.BlockID{}, fmt.Errorf("failed to append block %s: %w", blk, err)
	}

	return blk, nil
}

// Length returns the size of filename in whole blocks.
func (m *Manager) Length(filename string) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lengthAssumeLocked(filename)
}

func (m *Manager) lengthAssumeLocked(filename string) (int32, error) {
	f, err := m.file(filename)
	if err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	return int32(info.Size() / int64(m.blockSize)), nil
}

// Close releases every open file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, f := range m.openFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close file %s: %w", name, err)
		}
		delete(m.openFiles, name)
	}

	return firstErr
}
