package file

import (
	"encoding/binary"

	"github.com/cormorantdb/cormorant/src/pkg/assert"
)

// IntBytes is the on-disk width of every integer the codec writes.
const IntBytes = 4

// Page is a fixed-capacity buffer holding the bytes of one disk block
// or of one log record. All typed access goes through the accessors
// below; integers are 4-byte big-endian, byte slices and strings are
// length-prefixed. Strings are assumed to use a single-byte charset:
// MaxLength sizes layouts at one byte per character, so multi-byte
// runes would overflow the reserved space.
type Page struct {
	buf []byte
}

// NewPage allocates a zeroed page of the given capacity. Data blocks
// are always read and written through pages sized to the block size.
func NewPage(blockSize int) *Page {
	return &Page{
		buf: make([]byte, blockSize),
	}
}

// NewPageWithBuf wraps an existing buffer without copying it. The page
// owns the buffer from here on; callers must not mutate it directly.
// Log records are assembled and parsed through this constructor.
func NewPageWithBuf(buf []byte) *Page {
	return &Page{
		buf: buf,
	}
}

func (p *Page) assertBounds(offset, width int) {
	assert.Assert(
		offset >= 0 && offset+width <= len(p.buf),
		"page access out of bounds: offset %d, width %d, capacity %d",
		offset,
		width,
		len(p.buf),
	)
}

func (p *Page) GetInt(offset int) int32 {
	p.assertBounds(offset, IntBytes)
	return int32(binary.BigEndian.Uint32(p.buf[offset:]))
}

func (p *Page) SetInt(offset int, val int32) {
	p.assertBounds(offset, IntBytes)
	binary.BigEndian.PutUint32(p.buf[offset:], uint32(val))
}

// GetBytes reads the length prefix at offset and returns the blob that
// follows it. The returned slice aliases the page buffer.
func (p *Page) GetBytes(offset int) []byte {
	length := int(p.GetInt(offset))
	p.assertBounds(offset+IntBytes, length)
	return p.buf[offset+IntBytes : offset+IntBytes+length]
}

// SetBytes writes the blob's length followed by the blob itself,
// overwriting whatever was stored there before.
func (p *Page) SetBytes(offset int, data []byte) {
	p.assertBounds(offset, IntBytes+len(data))
	p.SetInt(offset, int32(len(data)))
	copy(p.buf[offset+IntBytes:], data)
}

func (p *Page) GetString(offset int) string {
	return string(p.GetBytes(offset))
}

func (p *Page) SetString(offset int, val string) {
	p.SetBytes(offset, []byte(val))
}

// Contents exposes the whole buffer for bulk I/O.
func (p *Page) Contents() []byte {
	return p.buf
}

// MaxLength is the worst-case encoded size of an n-character string:
// the length prefix plus one byte per character.
func MaxLength(strlen int) int {
	return IntBytes + strlen
}
