package record

import (
	"github.com/cormorantdb/cormorant/src/pkg/assert"
	"github.com/cormorantdb/cormorant/src/storage/file"
)

// Layout maps schema fields to byte offsets within a record slot. It
// is computed once when a table is opened and shared read-only by
// every RecordPage over that table.
//
// A slot starts with a 4-byte in-use flag, followed by one value per
// field in schema order: 4 bytes for an int, file.MaxLength(n) bytes
// for a varchar(n).
type Layout struct {
	schema   *Schema
	offsets  map[string]int
	slotSize int
}

func NewLayout(schema *Schema) Layout {
	offsets := make(map[string]int, len(schema.Fields()))

	pos := file.IntBytes // the slot flag
	for _, f := range schema.Fields() {
		offsets[f] = pos
		pos += fieldWidth(schema, f)
	}

	return Layout{
		schema:   schema,
		offsets:  offsets,
		slotSize: pos,
	}
}

func fieldWidth(schema *Schema, name string) int {
	switch schema.Type(name) {
	case Integer:
		return file.IntBytes
	case Varchar:
		return file.MaxLength(schema.Length(name))
	}

	assert.Assert(false, "unsupported field type %d for field %q", schema.Type(name), name)
	panic("unreachable")
}

func (l Layout) Schema() *Schema {
	return l.schema
}

// Offset returns the byte offset of the named field within a slot.
// Asking for a field the schema does not have is a programming error.
func (l Layout) Offset(name string) int {
	offset, ok := l.offsets[name]
	assert.Assert(ok, "field %q not present in layout", name)
	return offset
}

func (l Layout) SlotSize() int {
	return l.slotSize
}
