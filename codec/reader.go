package codec

import (
	"runtime"

	"github.com/goccy/go-yaml"
	flatbuffers "github.com/google/flatbuffers/go"
	"golang.org/x/xerrors"

	"github.com/blastbao/gomem/fbreflect/schema"
)

// Reader decodes the fields of one table or struct inside a buffer, driven
// only by the compiled definition.
//
// A Reader is a small value over the caller's byte slice; nothing is copied
// until a field is read. Nested tables, structs and union values come back
// as further Readers.
//
// 字段值的寻址方式：
//   - struct: 字段数据紧跟在 Pos 之后，位于 Pos + Offset ；
//   - table: 先经 vtable 取得字段相对 Pos 的偏移，为 0 表示字段缺省；
//   - string/vector/table 字段处存放的是 UOffsetT ，需要再做一次间接寻址。
type Reader struct {
	tab  flatbuffers.Table
	def  *schema.StructDef
	opts options
}

// NewRootReader returns a Reader for the root table of buf, which must be of
// the table typeName.
func NewRootReader(reg *schema.Registry, typeName string, buf []byte, opts ...Option) (*Reader, error) {
	if !reg.Valid() {
		return nil, xerrors.Errorf("fbreflect/codec: %w", ErrNotCompiled)
	}
	def, ok := reg.LookupStruct(typeName)
	if !ok || def.Fixed {
		return nil, xerrors.Errorf("fbreflect/codec: table %s: %w", typeName, ErrUnknownType)
	}
	if len(buf) < flatbuffers.SizeUOffsetT {
		return nil, xerrors.Errorf("fbreflect/codec: %d bytes: %w", len(buf), ErrShortBuffer)
	}
	root := flatbuffers.GetUOffsetT(buf)
	if err := within(buf, root, flatbuffers.SizeSOffsetT, "root table"); err != nil {
		return nil, err
	}
	return NewReader(def, buf, root, opts...), nil
}

// within checks that size bytes starting at pos lie inside buf.
func within(buf []byte, pos flatbuffers.UOffsetT, size int, what string) error {
	if int64(pos)+int64(size) > int64(len(buf)) {
		return xerrors.Errorf("fbreflect/codec: %s at %d+%d beyond %d bytes: %w", what, pos, size, len(buf), ErrCorrupt)
	}
	return nil
}

// NewReader returns a Reader for the object of type def at position pos of
// buf. For a table pos is the position of its vtable offset; for a struct
// it is the position of its first byte.
func NewReader(def *schema.StructDef, buf []byte, pos flatbuffers.UOffsetT, opts ...Option) *Reader {
	return &Reader{
		tab:  flatbuffers.Table{Bytes: buf, Pos: pos},
		def:  def,
		opts: newOptions(opts),
	}
}

func (r *Reader) child(def *schema.StructDef, pos flatbuffers.UOffsetT) *Reader {
	return &Reader{
		tab:  flatbuffers.Table{Bytes: r.tab.Bytes, Pos: pos},
		def:  def,
		opts: r.opts,
	}
}

// Def returns the definition the reader decodes.
func (r *Reader) Def() *schema.StructDef { return r.def }

// Pos returns the position of the object in the buffer.
func (r *Reader) Pos() flatbuffers.UOffsetT { return r.tab.Pos }

// Bytes returns the underlying buffer.
func (r *Reader) Bytes() []byte { return r.tab.Bytes }

// Len returns the number of fields of the definition.
func (r *Reader) Len() int { return r.def.Fields.Len() }

// Names returns the field names in slot order.
func (r *Reader) Names() []string {
	names := make([]string, 0, r.def.Fields.Len())
	for _, f := range r.def.Fields.Symbols() {
		names = append(names, f.Name)
	}
	return names
}

// Get decodes the field called name. ok is false when the definition has
// no such field.
func (r *Reader) Get(name string) (v interface{}, ok bool, err error) {
	fd, ok := r.def.Fields.Lookup(name)
	if !ok {
		return nil, false, nil
	}
	v, err = r.Field(fd)
	return v, true, err
}

// LookupOrDefault returns the value of field name, or def when the field
// does not exist, cannot be decoded, or has no value.
func (r *Reader) LookupOrDefault(name string, def interface{}) interface{} {
	v, ok, err := r.Get(name)
	if !ok || err != nil || v == nil {
		return def
	}
	return v
}

// position returns the absolute position of the field's data and whether
// the field is present.
func (r *Reader) position(fd *schema.FieldDef) (flatbuffers.UOffsetT, bool) {
	if r.def.Fixed {
		return r.tab.Pos + flatbuffers.UOffsetT(fd.Offset), true
	}
	o := r.tab.Offset(flatbuffers.VOffsetT(fd.Offset))
	if o == 0 {
		return 0, false
	}
	return r.tab.Pos + flatbuffers.UOffsetT(o), true
}

// Field decodes fd, which must belong to the reader's definition.
//
// The result type depends on the field type:
//
//	scalar         bool, int8 ... float64; when absent the declared default,
//	               or nil with WithForceDefaults
//	string         string, nil when absent
//	struct, table  *Reader, nil when absent
//	vector         []bool ... []float64, []string or []*Reader; an absent
//	               vector is an empty slice
//	union          *Reader of the member table, nil when absent or NONE
//
// Offsets read from a malformed buffer that lead outside of it fail with
// ErrCorrupt.
func (r *Reader) Field(fd *schema.FieldDef) (v interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			re, ok := p.(runtime.Error)
			if !ok {
				panic(p)
			}
			v, err = nil, xerrors.Errorf("fbreflect/codec: field %s.%s: %v: %w", r.def.Name, fd.Name, re, ErrCorrupt)
		}
	}()
	return r.field(fd)
}

func (r *Reader) field(fd *schema.FieldDef) (interface{}, error) {
	off, present := r.position(fd)
	typ := fd.Type

	switch {
	case typ.IsScalar():
		if !present {
			if r.opts.forceDefaults {
				return nil, nil
			}
			return fd.DefaultValue(), nil
		}
		return readScalar(&r.tab, typ.Kind, off)

	case typ.Kind == schema.KindString:
		if !present {
			return nil, nil
		}
		return r.tab.String(off), nil

	case typ.IsFixedStruct():
		if !present {
			return nil, nil
		}
		return r.child(typ.Struct, off), nil

	case typ.IsTable():
		if !present {
			return nil, nil
		}
		return r.child(typ.Struct, r.tab.Indirect(off)), nil

	case typ.Kind == schema.KindVector:
		if !present {
			return r.vector(*typ.Elem, 0, 0)
		}
		vec := r.tab.Indirect(off)
		if err := within(r.tab.Bytes, vec, flatbuffers.SizeUOffsetT, "vector length"); err != nil {
			return nil, err
		}
		n := int(flatbuffers.GetUOffsetT(r.tab.Bytes[vec:]))
		data := vec + flatbuffers.SizeUOffsetT
		// checked before allocating the result slice
		if err := within(r.tab.Bytes, data, n*typ.Elem.InlineSize(), "vector of "+typ.Elem.String()); err != nil {
			return nil, err
		}
		return r.vector(*typ.Elem, data, n)

	case typ.Kind == schema.KindUnion:
		return r.union(fd, off, present)
	}
	return nil, xerrors.Errorf("fbreflect/codec: field %s: %w", fd.Name, &schema.UnsupportedTypeError{Type: typ})
}

// vector decodes n elements of type elem starting at data.
func (r *Reader) vector(elem schema.Type, data flatbuffers.UOffsetT, n int) (interface{}, error) {
	tab := &r.tab
	switch elem.Kind {
	case schema.KindBool:
		return readScalars(n, data, 1, tab.GetBool), nil
	case schema.KindByte:
		return readScalars(n, data, 1, tab.GetInt8), nil
	case schema.KindUType, schema.KindUByte:
		return readScalars(n, data, 1, tab.GetUint8), nil
	case schema.KindShort:
		return readScalars(n, data, 2, tab.GetInt16), nil
	case schema.KindUShort:
		return readScalars(n, data, 2, tab.GetUint16), nil
	case schema.KindInt:
		return readScalars(n, data, 4, tab.GetInt32), nil
	case schema.KindUInt:
		return readScalars(n, data, 4, tab.GetUint32), nil
	case schema.KindLong:
		return readScalars(n, data, 8, tab.GetInt64), nil
	case schema.KindULong:
		return readScalars(n, data, 8, tab.GetUint64), nil
	case schema.KindFloat:
		return readScalars(n, data, 4, tab.GetFloat32), nil
	case schema.KindDouble:
		return readScalars(n, data, 8, tab.GetFloat64), nil
	case schema.KindString:
		return readScalars(n, data, flatbuffers.SizeUOffsetT, tab.String), nil
	case schema.KindStruct:
		if elem.Struct == nil {
			break
		}
		def := elem.Struct
		if def.Fixed {
			// structs are stored inline, one ByteSize apart
			return readScalars(n, data, def.ByteSize, func(pos flatbuffers.UOffsetT) *Reader {
				return r.child(def, pos)
			}), nil
		}
		return readScalars(n, data, flatbuffers.SizeUOffsetT, func(pos flatbuffers.UOffsetT) *Reader {
			return r.child(def, tab.Indirect(pos))
		}), nil
	}
	return nil, xerrors.Errorf("fbreflect/codec: vector of %s: %w", elem, &schema.UnsupportedTypeError{Type: elem})
}

// union resolves the member table through the generated `<name>_type`
// discriminant.
func (r *Reader) union(fd *schema.FieldDef, off flatbuffers.UOffsetT, present bool) (interface{}, error) {
	if !present {
		return nil, nil
	}
	typeField, ok := r.def.Fields.Lookup(fd.Name + "_type")
	if !ok {
		return nil, xerrors.Errorf("fbreflect/codec: union %s has no discriminant: %w", fd.Name, &schema.UnsupportedTypeError{Type: fd.Type})
	}
	var disc uint8
	if pos, ok := r.position(typeField); ok {
		disc = r.tab.GetUint8(pos)
	}
	member := fd.Type.Enum.ReverseLookup(int64(disc), true)
	if member == nil || member.Struct == nil {
		return nil, nil
	}
	return r.child(member.Struct, r.tab.Indirect(off)), nil
}

// MarshalYAML implements yaml.InterfaceMarshaler so a Reader can be dumped
// with yaml.Marshal. Fields appear in slot order; nested readers expand
// recursively.
func (r *Reader) MarshalYAML() (interface{}, error) {
	out := make(yaml.MapSlice, 0, r.def.Fields.Len())
	for _, f := range r.def.Fields.Symbols() {
		v, err := r.Field(f)
		if err != nil {
			return nil, err
		}
		out = append(out, yaml.MapItem{Key: f.Name, Value: v})
	}
	return out, nil
}
