package schema

import "strconv"

// Attribute is one entry of a metadata list, e.g. the `id: 3` in
// `hp: short (id: 3);`. Kind is KindNone for a bare flag such as
// `deprecated`, KindString for strings and identifiers, and KindInt or
// KindDouble for numbers.
type Attribute struct {
	Kind  Kind
	Value string
}

// Int returns the attribute value as an int.
func (a *Attribute) Int() (int, error) { return strconv.Atoi(a.Value) }

// FieldDef is a field of a struct or table.
type FieldDef struct {
	Name string
	Type Type

	// Default is the textual default constant, empty when none was given.
	Default string

	// Offset is the byte offset inside a fixed struct, or the vtable slot
	// byte offset for a table field.
	Offset uint16

	// Padding is the number of bytes inserted after the field inside a
	// fixed struct.
	Padding int

	Deprecated bool
	Required   bool

	// Used is free for callers that track which fields a document sets.
	// Nothing in this module reads or writes it.
	Used bool

	// Generated marks the discriminant field synthesized for a union.
	Generated bool

	Attributes SymbolTable[*Attribute]

	defaultValue interface{}
}

// ID returns the field's `id` attribute.
func (f *FieldDef) ID() (*Attribute, bool) { return f.Attributes.Lookup("id") }

// Slot returns the vtable slot number of a table field.
func (f *FieldDef) Slot() int { return int(f.Offset)/2 - vtableFixedFields }

// DefaultValue returns the compiled default of a scalar field, or its zero
// value when no default was declared. It returns nil for non-scalar fields.
func (f *FieldDef) DefaultValue() interface{} {
	if f.defaultValue != nil {
		return f.defaultValue
	}
	return ZeroValue(f.Type.Kind)
}

// vtable 的前两个 VOffsetT 分别记录 vtable 自身大小和 object 大小，
// 第 i 个字段的偏移记录在第 i+2 个 VOffsetT 处。
const vtableFixedFields = 2

// FieldIndexToOffset converts a field index into its vtable slot byte
// offset.
func FieldIndexToOffset(i int) uint16 {
	return uint16((i + vtableFixedFields) * 2)
}
