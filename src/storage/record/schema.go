package record

import "github.com/cormorantdb/cormorant/src/pkg/assert"

type FieldType int32

const (
	Integer FieldType = iota
	Varchar
)

type fieldInfo struct {
	fieldType FieldType
	length    int
}

// Schema is the record schema of a table: the name and type of every
// field, plus the declared character length of varchar fields.
type Schema struct {
	fields []string
	info   map[string]fieldInfo
}

func NewSchema() *Schema {
	return &Schema{
		fields: make([]string, 0),
		info:   make(map[string]fieldInfo),
	}
}

func (s *Schema) AddField(name string, fieldType FieldType, length int) {
	assert.Assert(!s.HasField(name), "field %q already present in schema", name)

	s.fields = append(s.fields, name)
	s.info[name] = fieldInfo{
		fieldType: fieldType,
		length:    length,
	}
}

func (s *Schema) AddIntField(name string) {
	s.AddField(name, Integer, 0)
}

// AddStringField declares a varchar(length) field. The length is the
// declared character count, not the encoded byte size.
func (s *Schema) AddStringField(name string, length int) {
	s.AddField(name, Varchar, length)
}

// Add copies the named field, with its type and length, from another
// schema.
func (s *Schema) Add(name string, other *Schema) {
	s.AddField(name, other.Type(name), other.Length(name))
}

func (s *Schema) AddAll(other *Schema) {
	for _, f := range other.fields {
		s.Add(f, other)
	}
}

func (s *Schema) Fields() []string {
	return s.fields
}

func (s *Schema) HasField(name string) bool {
	_, ok := s.info[name]
	return ok
}

func (s *Schema) Type(name string) FieldType {
	info, ok := s.info[name]
	assert.Assert(ok, "field %q not present in schema", name)
	return info.fieldType
}

func (s *Schema) Length(name string) int {
	info, ok := s.info[name]
	assert.Assert(ok, "field %q not present in schema", name)
	return info.length
}
