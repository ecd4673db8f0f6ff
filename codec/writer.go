package codec

import (
	"log/slog"

	flatbuffers "github.com/google/flatbuffers/go"
	"golang.org/x/xerrors"

	"github.com/blastbao/gomem/fbreflect/schema"
)

type writerState int

const (
	stateIdle writerState = iota
	stateTable
	stateVector
)

var stateNames = [...]string{
	stateIdle:   "idle",
	stateTable:  "table",
	stateVector: "vector",
}

func (s writerState) String() string { return stateNames[s] }

// Writer builds a buffer through a flatbuffers.Builder, using the compiled
// registry to find slots, defaults and struct layouts.
//
// Objects are built bottom-up: strings, vectors and child tables are
// created first and their offsets passed to the parent. A Writer is either
// idle, building one table (StartTable ... EndTable) or building one vector
// (StartVector ... EndVector); calls that do not fit the current step fail
// with ErrWriterState.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	reg *schema.Registry
	b   *flatbuffers.Builder
	log *slog.Logger

	state writerState

	// table being built
	def     *schema.StructDef
	written map[*schema.FieldDef]bool

	// vector being built
	elem  schema.Type
	count int
	added int

	finished bool
}

// NewWriter returns a Writer appending to b. A nil b allocates a new
// builder.
func NewWriter(reg *schema.Registry, b *flatbuffers.Builder, opts ...Option) *Writer {
	o := newOptions(opts)
	if b == nil {
		b = flatbuffers.NewBuilder(0)
	}
	return &Writer{reg: reg, b: b, log: o.log}
}

// Builder returns the underlying builder.
func (w *Writer) Builder() *flatbuffers.Builder { return w.b }

func (w *Writer) expect(s writerState, op string) error {
	if !w.reg.Valid() {
		return xerrors.Errorf("fbreflect/codec: %w", ErrNotCompiled)
	}
	if w.state != s {
		return xerrors.Errorf("fbreflect/codec: %s while building %s: %w", op, w.state, ErrWriterState)
	}
	return nil
}

// CreateString writes s and returns its offset.
func (w *Writer) CreateString(s string) (flatbuffers.UOffsetT, error) {
	if err := w.expect(stateIdle, "CreateString"); err != nil {
		return 0, err
	}
	return w.b.CreateString(s), nil
}

// CreateByteVector writes a [ubyte] vector holding v and returns its offset.
func (w *Writer) CreateByteVector(v []byte) (flatbuffers.UOffsetT, error) {
	if err := w.expect(stateIdle, "CreateByteVector"); err != nil {
		return 0, err
	}
	return w.b.CreateByteVector(v), nil
}

func (w *Writer) lookupType(typeName string, fixed bool) (*schema.StructDef, error) {
	def, ok := w.reg.LookupStruct(typeName)
	if !ok || def.Fixed != fixed {
		kind := "table"
		if fixed {
			kind = "struct"
		}
		return nil, xerrors.Errorf("fbreflect/codec: %s %s: %w", kind, typeName, ErrUnknownType)
	}
	return def, nil
}

// StartTable begins a table of type typeName.
func (w *Writer) StartTable(typeName string) error {
	if err := w.expect(stateIdle, "StartTable"); err != nil {
		return err
	}
	def, err := w.lookupType(typeName, false)
	if err != nil {
		return err
	}
	w.b.StartObject(def.Fields.Len())
	w.def = def
	w.written = make(map[*schema.FieldDef]bool)
	w.state = stateTable
	return nil
}

// field returns the field called name of the table being built, checking
// that its type satisfies ok.
func (w *Writer) field(op, name string, ok func(schema.Type) bool) (*schema.FieldDef, error) {
	if err := w.expect(stateTable, op); err != nil {
		return nil, err
	}
	fd, found := w.def.Fields.Lookup(name)
	if !found {
		return nil, xerrors.Errorf("fbreflect/codec: %s.%s: %w", w.def.Name, name, ErrUnknownField)
	}
	if !ok(fd.Type) {
		return nil, xerrors.Errorf("fbreflect/codec: %s on %s.%s of type %s: %w", op, w.def.Name, name, fd.Type, ErrValue)
	}
	return fd, nil
}

// AddScalar sets a scalar field. v is converted to the field's type; a
// string naming an enum member is accepted for enum fields. A value equal
// to the field's default is not written.
func (w *Writer) AddScalar(name string, v interface{}) error {
	fd, err := w.field("AddScalar", name, schema.Type.IsScalar)
	if err != nil {
		return err
	}
	x, err := coerce(fd.Type, v)
	if err != nil {
		return err
	}
	prependScalarSlot(w.b, fd.Slot(), x, fd.DefaultValue())
	w.written[fd] = true
	return nil
}

func (w *Writer) addOffset(op, name string, off flatbuffers.UOffsetT, ok func(schema.Type) bool) error {
	fd, err := w.field(op, name, ok)
	if err != nil {
		return err
	}
	w.b.PrependUOffsetTSlot(fd.Slot(), off, 0)
	w.written[fd] = off != 0
	return nil
}

// AddString sets a string field to a string created with CreateString.
func (w *Writer) AddString(name string, off flatbuffers.UOffsetT) error {
	return w.addOffset("AddString", name, off, func(t schema.Type) bool { return t.Kind == schema.KindString })
}

// AddTable sets a table field to a table finished with EndTable.
func (w *Writer) AddTable(name string, off flatbuffers.UOffsetT) error {
	return w.addOffset("AddTable", name, off, schema.Type.IsTable)
}

// AddVector sets a vector field to a vector finished with EndVector.
func (w *Writer) AddVector(name string, off flatbuffers.UOffsetT) error {
	return w.addOffset("AddVector", name, off, func(t schema.Type) bool { return t.Kind == schema.KindVector })
}

// AddUnion sets a union field: member names the union member and off is a
// table of that member's type. The discriminant field is written too.
func (w *Writer) AddUnion(name, member string, off flatbuffers.UOffsetT) error {
	fd, err := w.field("AddUnion", name, func(t schema.Type) bool { return t.Kind == schema.KindUnion })
	if err != nil {
		return err
	}
	val, ok := fd.Type.Enum.Values.Lookup(member)
	if !ok || val.Struct == nil {
		return xerrors.Errorf("fbreflect/codec: %s is not a member of %s: %w", member, fd.Type.Enum.Name, ErrValue)
	}
	typeField, ok := w.def.Fields.Lookup(name + "_type")
	if !ok {
		return xerrors.Errorf("fbreflect/codec: %s.%s_type: %w", w.def.Name, name, ErrUnknownField)
	}
	w.b.PrependUint8Slot(typeField.Slot(), uint8(val.Value), 0)
	w.b.PrependUOffsetTSlot(fd.Slot(), off, 0)
	w.written[typeField] = true
	w.written[fd] = true
	return nil
}

// AddStruct writes a struct field inline. values holds the struct's fields
// in declaration order; a nested struct is given as a []interface{} of its
// own fields.
func (w *Writer) AddStruct(name string, values ...interface{}) error {
	fd, err := w.field("AddStruct", name, schema.Type.IsFixedStruct)
	if err != nil {
		return err
	}
	leaves, err := coerceStruct(fd.Type.Struct, values)
	if err != nil {
		return err
	}
	prependStruct(w.b, fd.Type.Struct, leaves)
	w.b.PrependStructSlot(fd.Slot(), w.b.Offset(), 0)
	w.written[fd] = true
	return nil
}

// EndTable finishes the table and returns its offset.
func (w *Writer) EndTable() (flatbuffers.UOffsetT, error) {
	if err := w.expect(stateTable, "EndTable"); err != nil {
		return 0, err
	}
	for _, f := range w.def.Fields.Symbols() {
		if f.Required && !w.written[f] {
			return 0, xerrors.Errorf("fbreflect/codec: required field %s.%s not set: %w", w.def.Name, f.Name, ErrValue)
		}
	}
	off := w.b.EndObject()
	w.def, w.written = nil, nil
	w.state = stateIdle
	return off, nil
}

// StartVector begins the vector field field of table typeName with count
// elements. Elements are then prepended, last element first.
func (w *Writer) StartVector(typeName, field string, count int) error {
	if err := w.expect(stateIdle, "StartVector"); err != nil {
		return err
	}
	def, err := w.lookupType(typeName, false)
	if err != nil {
		return err
	}
	fd, ok := def.Fields.Lookup(field)
	if !ok {
		return xerrors.Errorf("fbreflect/codec: %s.%s: %w", typeName, field, ErrUnknownField)
	}
	if fd.Type.Kind != schema.KindVector {
		return xerrors.Errorf("fbreflect/codec: %s.%s is not a vector: %w", typeName, field, ErrValue)
	}
	elem := *fd.Type.Elem
	w.b.StartVector(elem.InlineSize(), count, elem.InlineAlignment())
	w.elem, w.count, w.added = elem, count, 0
	w.state = stateVector
	return nil
}

func (w *Writer) element(op string, ok bool) error {
	if err := w.expect(stateVector, op); err != nil {
		return err
	}
	if !ok {
		return xerrors.Errorf("fbreflect/codec: %s into vector of %s: %w", op, w.elem, ErrValue)
	}
	if w.added == w.count {
		return xerrors.Errorf("fbreflect/codec: more than %d elements: %w", w.count, ErrValue)
	}
	return nil
}

// PrependScalar prepends a scalar element.
func (w *Writer) PrependScalar(v interface{}) error {
	if err := w.element("PrependScalar", w.elem.IsScalar()); err != nil {
		return err
	}
	x, err := coerce(w.elem, v)
	if err != nil {
		return err
	}
	prependScalar(w.b, x)
	w.added++
	return nil
}

// PrependOffset prepends a string or table element.
func (w *Writer) PrependOffset(off flatbuffers.UOffsetT) error {
	if err := w.element("PrependOffset", w.elem.Kind == schema.KindString || w.elem.IsTable()); err != nil {
		return err
	}
	w.b.PrependUOffsetT(off)
	w.added++
	return nil
}

// PrependStruct prepends a struct element, given as for AddStruct.
func (w *Writer) PrependStruct(values ...interface{}) error {
	if err := w.element("PrependStruct", w.elem.IsFixedStruct()); err != nil {
		return err
	}
	leaves, err := coerceStruct(w.elem.Struct, values)
	if err != nil {
		return err
	}
	prependStruct(w.b, w.elem.Struct, leaves)
	w.added++
	return nil
}

// EndVector finishes the vector and returns its offset.
func (w *Writer) EndVector() (flatbuffers.UOffsetT, error) {
	if err := w.expect(stateVector, "EndVector"); err != nil {
		return 0, err
	}
	if w.added != w.count {
		return 0, xerrors.Errorf("fbreflect/codec: %d of %d elements written: %w", w.added, w.count, ErrValue)
	}
	off := w.b.EndVector(w.count)
	w.state = stateIdle
	return off, nil
}

// CreateVector writes the whole vector field field of table typeName from
// elems, given in natural order. Elements are scalars, offsets for string
// and table vectors (Go strings are accepted for string vectors), or
// []interface{} values for struct vectors.
func (w *Writer) CreateVector(typeName, field string, elems []interface{}) (flatbuffers.UOffsetT, error) {
	def, err := w.lookupType(typeName, false)
	if err != nil {
		return 0, err
	}
	if fd, ok := def.Fields.Lookup(field); ok && fd.Type.Kind == schema.KindVector && fd.Type.Elem.Kind == schema.KindString {
		// strings can't be created while the vector is open
		converted := make([]interface{}, len(elems))
		for i, e := range elems {
			if s, ok := e.(string); ok {
				off, err := w.CreateString(s)
				if err != nil {
					return 0, err
				}
				e = off
			}
			converted[i] = e
		}
		elems = converted
	}

	if err := w.StartVector(typeName, field, len(elems)); err != nil {
		return 0, err
	}
	for i := len(elems) - 1; i >= 0; i-- {
		var err error
		switch e := elems[i]; {
		case w.elem.IsScalar():
			err = w.PrependScalar(e)
		case w.elem.IsFixedStruct():
			vals, ok := e.([]interface{})
			if !ok {
				err = xerrors.Errorf("fbreflect/codec: element %d is %T, want []interface{}: %w", i, e, ErrValue)
				break
			}
			err = w.PrependStruct(vals...)
		default:
			off, ok := e.(flatbuffers.UOffsetT)
			if !ok {
				err = xerrors.Errorf("fbreflect/codec: element %d is %T, want an offset: %w", i, e, ErrValue)
				break
			}
			err = w.PrependOffset(off)
		}
		if err != nil {
			return 0, err
		}
	}
	return w.EndVector()
}

// Finish completes the buffer with root as its root table.
func (w *Writer) Finish(root flatbuffers.UOffsetT) error {
	if err := w.expect(stateIdle, "Finish"); err != nil {
		return err
	}
	w.b.Finish(root)
	w.finished = true
	w.log.Debug("finished buffer", "size", len(w.b.FinishedBytes()))
	return nil
}

// FinishedBytes returns the finished buffer, or nil before Finish.
func (w *Writer) FinishedBytes() []byte {
	if !w.finished {
		return nil
	}
	return w.b.FinishedBytes()
}

// coerceStruct converts the values of a struct, recursing into nested
// structs, so that nothing is written when a value is invalid.
func coerceStruct(def *schema.StructDef, values []interface{}) ([]interface{}, error) {
	fields := def.Fields.Symbols()
	if len(values) != len(fields) {
		return nil, xerrors.Errorf("fbreflect/codec: struct %s has %d fields, got %d values: %w", def.Name, len(fields), len(values), ErrValue)
	}
	out := make([]interface{}, len(values))
	for i, f := range fields {
		if f.Type.IsFixedStruct() {
			nested, ok := values[i].([]interface{})
			if !ok {
				return nil, xerrors.Errorf("fbreflect/codec: %s.%s is %T, want []interface{}: %w", def.Name, f.Name, values[i], ErrValue)
			}
			v, err := coerceStruct(f.Type.Struct, nested)
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		v, err := coerce(f.Type, values[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// prependStruct writes a struct back to front: the builder grows
// downwards, so the last field and its trailing padding go first.
func prependStruct(b *flatbuffers.Builder, def *schema.StructDef, values []interface{}) {
	b.Prep(def.MinAlign, def.ByteSize)
	fields := def.Fields.Symbols()
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		b.Pad(f.Padding)
		if f.Type.IsFixedStruct() {
			prependStruct(b, f.Type.Struct, values[i].([]interface{}))
			continue
		}
		prependScalar(b, values[i])
	}
}
