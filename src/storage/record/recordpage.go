package record

import (
	"github.com/cormorantdb/cormorant/src/pkg/assert"
	"github.com/cormorantdb/cormorant/src/pkg/common"
)

const (
	// SlotEmpty and SlotUsed are the values of the 4-byte flag that
	// opens every slot.
	SlotEmpty int32 = 0
	SlotUsed  int32 = 1
)

// SlotExhausted is returned by NextAfter and InsertAfter when no
// matching slot remains in the block. It tells the caller to move on
// to the next block (or append one), it is not an error.
const SlotExhausted = -1

// RecordPage manages an array of fixed-width record slots inside one
// pinned block. Records are unspanned and homogeneous: the block holds
// floor(blockSize/slotSize) slots of the layout's slot size, and a
// slot is addressable only if it fits in the block entirely.
//
// | flag 0 | record 0 | flag 1 | record 1 | ... | flag N | record N |
//
// RecordPage does no locking of its own: exclusive access to the
// underlying block is the transaction collaborator's problem.
type RecordPage struct {
	tx     common.Transaction
	blk    common.BlockID
	layout Layout
}

// NewRecordPage pins blk for the transaction's duration.
func NewRecordPage(tx common.Transaction, blk common.BlockID, layout Layout) (*RecordPage, error) {
	if err := tx.Pin(blk); err != nil {
		return nil, err
	}

	return &RecordPage{
		tx:     tx,
		blk:    blk,
		layout: layout,
	}, nil
}

func (p *RecordPage) Block() common.BlockID {
	return p.blk
}

func (p *RecordPage) offset(slot int) int {
	return slot * p.layout.SlotSize()
}

func (p *RecordPage) fieldPos(slot int, field string) int {
	return p.offset(slot) + p.layout.Offset(field)
}

func (p *RecordPage) GetInt(slot int, field string) (int32, error) {
	return p.tx.GetInt(p.blk, p.fieldPos(slot, field))
}

func (p *RecordPage) GetString(slot int, field string) (string, error) {
	return p.tx.GetString(p.blk, p.fieldPos(slot, field))
}

func (p *RecordPage) SetInt(slot int, field string, val int32) error {
	return p.tx.SetInt(p.blk, p.fieldPos(slot, field), val, true)
}

func (p *RecordPage) SetString(slot int, field string, val string) error {
	return p.tx.SetString(p.blk, p.fieldPos(slot, field), val, true)
}

// Delete tombstones the slot by flagging it empty. Field bytes are
// left in place; the flag write is logged so a rollback resurrects
// the record.
func (p *RecordPage) Delete(slot int) error {
	return p.setFlag(slot, SlotEmpty, true)
}

// Format initializes every addressable slot: flag empty, ints zeroed,
// strings emptied. Formatting is not logged, since a freshly appended
// block has no prior state worth restoring.
func (p *RecordPage) Format() error {
	for slot := 0; p.isValidSlot(slot); slot++ {
		if err := p.setFlag(slot, SlotEmpty, false); err != nil {
			return err
		}

		schema := p.layout.Schema()
		for _, field := range schema.Fields() {
			pos := p.fieldPos(slot, field)

			switch schema.Type(field) {
			case Integer:
				if err := p.tx.SetInt(p.blk, pos, 0, false); err != nil {
					return err
				}
			case Varchar:
				if err := p.tx.SetString(p.blk, pos, "", false); err != nil {
					return err
				}
			default:
				assert.Assert(false, "unsupported field type for field %q", field)
			}
		}
	}

	return nil
}

// NextAfter returns the first used slot strictly after slot, or
// SlotExhausted when the block holds no further records.
func (p *RecordPage) NextAfter(slot int) (int, error) {
	return p.searchAfter(slot, SlotUsed)
}

// InsertAfter finds the first empty slot strictly after slot, flags it
// used and returns it. SlotExhausted means the block is full.
func (p *RecordPage) InsertAfter(slot int) (int, error) {
	found, err := p.searchAfter(slot, SlotEmpty)
	if err != nil {
		return 0, err
	}

	if found != SlotExhausted {
		if err := p.setFlag(found, SlotUsed, true); err != nil {
			return 0, err
		}
	}

	return found, nil
}

func (p *RecordPage) setFlag(slot int, flag int32, shouldLog bool) error {
	return p.tx.SetInt(p.blk, p.offset(slot), flag, shouldLog)
}

func (p *RecordPage) searchAfter(slot int, flag int32) (int, error) {
	for slot++; p.isValidSlot(slot); slot++ {
		v, err := p.tx.GetInt(p.blk, p.offset(slot))
		if err != nil {
			return 0, err
		}

		if v == flag {
			return slot, nil
		}
	}

	return SlotExhausted, nil
}

// isValidSlot holds iff the slot's full span fits in the block. The
// valid range follows from blockSize and slotSize; no count is stored.
func (p *RecordPage) isValidSlot(slot int) bool {
	return p.offset(slot+1) <= p.tx.BlockSize()
}
