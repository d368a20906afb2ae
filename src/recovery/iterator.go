package recovery

import (
	"github.com/cormorantdb/cormorant/src/pkg/common"
	"github.com/cormorantdb/cormorant/src/storage/file"
)

// Iterator walks log records from the most recently appended backward.
// Within a block records are laid out newest-first from the boundary,
// so the iterator reads forward through the page and then steps to the
// previous block.
//
// The byte slices returned by Next alias the iterator's page and stay
// valid only until the iterator leaves the current block.
type Iterator struct {
	fm         *file.Manager
	blk        common.BlockID
	page       *file.Page
	currentPos int
}

func newIterator(fm *file.Manager, start common.BlockID) (*Iterator, error) {
	it := &Iterator{
		fm:   fm,
		blk:  start,
		page: file.NewPage(fm.BlockSize()),
	}

	if err := it.moveToBlock(start); err != nil {
		return nil, err
	}

	return it, nil
}

func (it *Iterator) HasNext() bool {
	return it.currentPos < it.fm.BlockSize() || it.blk.Number > 0
}

func (it *Iterator) Next() ([]byte, error) {
	if it.currentPos == it.fm.BlockSize() {
		prev := common.NewBlockID(it.blk.Filename, it.blk.Number-1)
		if err := it.moveToBlock(prev); err != nil {
			return nil, err
		}
	}

	record := it.page.GetBytes(it.currentPos)
	it.currentPos += len(record) + file.IntBytes
	return record, nil
}

func (it *Iterator) moveToBlock(blk common.BlockID) error {
	if err := it.fm.Read(blk, it.page); err != nil {
		return err
	}

	it.blk = blk
	it.currentPos = int(it.page.GetInt(0))
	return nil
}
