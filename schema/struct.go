package schema

import (
	"strconv"
	"strings"

	"github.com/blastbao/gomem/fbreflect/internal/debug"
)

// StructDef is a struct (Fixed) or table definition.
//
// A struct has a fixed layout: every field lives at a byte offset computed
// while fields are added, and ByteSize is the padded total size once the
// registry is compiled. A table stores its fields through a vtable, so its
// field offsets are vtable slot byte offsets and ByteSize is unused.
type StructDef struct {
	Name   string
	Fields SymbolTable[*FieldDef]

	Fixed bool

	// Predecl is true while the definition is only a forward reference.
	Predecl bool

	MinAlign int
	ByteSize int

	Attributes SymbolTable[*Attribute]

	reg *Registry
}

// OriginalOrder reports whether the `original_order` attribute is set.
// It is informational: slots and struct layout always follow declaration
// (or id) order, and the attribute is kept for schema emission.
func (s *StructDef) OriginalOrder() bool {
	_, ok := s.Attributes.Lookup("original_order")
	return ok
}

// AddField appends a field of type typ. defaultValue is the textual default
// constant ("" for none) and attrs the field's metadata, which may be nil.
//
// Adding a union field first adds the generated `<name>_type` discriminant
// field.
func (s *StructDef) AddField(name string, typ Type, defaultValue string, attrs *SymbolTable[*Attribute]) (*FieldDef, error) {
	if err := s.checkFieldType(name, typ); err != nil {
		return nil, err
	}

	var typeField *FieldDef
	if typ.Kind == KindUnion {
		var err error
		typeField, err = s.addFieldCreate(name+"_type", EnumRef(typ.Enum))
		if err != nil {
			return nil, err
		}
		typeField.Generated = true
	}

	f, err := s.addFieldCreate(name, typ)
	if err != nil {
		return nil, err
	}
	if attrs != nil {
		f.Attributes = *attrs
	}
	if defaultValue != "" {
		if !typ.IsScalar() {
			return nil, semanticErrorf(s.Name, "field %s: default values are only supported for scalars", name)
		}
		f.Default = defaultValue
	}

	_, f.Deprecated = f.Attributes.Lookup("deprecated")
	if f.Deprecated && s.Fixed {
		return nil, semanticErrorf(s.Name, "field %s: can't deprecate fields in a struct", name)
	}
	_, f.Required = f.Attributes.Lookup("required")

	if nested, ok := f.Attributes.Lookup("nested_flatbuffer"); ok {
		if nested.Kind != KindString {
			return nil, semanticErrorf(s.Name, "field %s: nested_flatbuffer attribute must be a string (the root type)", name)
		}
		if typ.Kind != KindVector || typ.Elem.Kind != KindUByte || typ.Elem.Enum != nil {
			return nil, semanticErrorf(s.Name, "field %s: nested_flatbuffer attribute may only apply to a vector of ubyte", name)
		}
		s.reg.LookupOrCreateStruct(nested.Value)
	}

	// union 字段显式指定了 id N 时，自动生成的 _type 字段固定使用 id N-1。
	if typeField != nil {
		if id, ok := f.ID(); ok {
			n, err := id.Int()
			if err != nil {
				return nil, semanticErrorf(s.Name, "field %s: invalid id %q", name, id.Value)
			}
			typeField.Attributes.Add("id", &Attribute{Kind: KindInt, Value: strconv.Itoa(n - 1)})
		}
	}
	return f, nil
}

func (s *StructDef) checkFieldType(name string, typ Type) error {
	switch typ.Kind {
	case KindNone:
		return semanticErrorf(s.Name, "field %s: missing type", name)
	case KindVector:
		if typ.Elem == nil {
			return semanticErrorf(s.Name, "field %s: vector without element type", name)
		}
		switch typ.Elem.Kind {
		case KindVector, KindUnion, KindNone:
			return semanticErrorf(s.Name, "field %s: vectors of %s are not supported", name, typ.Elem.Kind)
		case KindStruct:
			if typ.Elem.Struct == nil {
				return semanticErrorf(s.Name, "field %s: vector element references no definition", name)
			}
		}
	case KindStruct:
		if typ.Struct == nil {
			return semanticErrorf(s.Name, "field %s: struct reference without definition", name)
		}
	case KindUnion:
		if typ.Enum == nil || !typ.Enum.IsUnion {
			return semanticErrorf(s.Name, "field %s: union reference without union definition", name)
		}
	}
	if !s.Fixed {
		return nil
	}
	switch {
	case typ.Kind == KindUnion:
		return semanticErrorf(s.Name, "field %s: unions are not allowed in structs", name)
	case typ.Kind == KindStruct:
		if typ.Struct == s {
			return semanticErrorf(s.Name, "field %s: struct can't contain itself", name)
		}
		if typ.Struct.Predecl {
			return semanticErrorf(s.Name, "field %s: struct %s must be defined before use", name, typ.Struct.Name)
		}
		if !typ.Struct.Fixed {
			return semanticErrorf(s.Name, "field %s: structs may contain only scalar or struct fields", name)
		}
	case !typ.IsScalar():
		return semanticErrorf(s.Name, "field %s: structs may contain only scalar or struct fields", name)
	}
	return nil
}

// addFieldCreate 负责计算字段的 offset：
//   - table: offset 为 vtable 中的 slot 偏移，即 (index+2)*2 ；
//   - struct: 字段按声明顺序紧密排列，新字段写入前先把上一个字段补齐到新字段的对齐要求，
//     offset 即为补齐后的 ByteSize ，同时 MinAlign 取所有字段对齐要求的最大值。
func (s *StructDef) addFieldCreate(name string, typ Type) (*FieldDef, error) {
	f := &FieldDef{
		Name:   name,
		Type:   typ,
		Offset: FieldIndexToOffset(s.Fields.Len()),
	}
	if s.Fixed {
		size := typ.InlineSize()
		alignment := typ.InlineAlignment()
		// structs need a predictable format, so align to the largest scalar.
		s.MinAlign = max(s.MinAlign, alignment)
		if s.Fields.Len() > 0 {
			s.padLastField(alignment)
		}
		f.Offset = uint16(s.ByteSize)
		s.ByteSize += size
	}
	if s.Fields.Add(name, f) {
		return nil, semanticErrorf(s.Name, "field %s already exists", name)
	}
	return f, nil
}

func (s *StructDef) padLastField(minAlign int) {
	pad := paddingBytes(s.ByteSize, minAlign)
	s.ByteSize += pad
	s.Fields.Last().Padding += pad
}

// paddingBytes 计算把 bufSize 补齐到 scalarSize (2 的幂) 整数倍所需的字节数：
// (~bufSize + 1) 即 -bufSize ，与 (scalarSize - 1) 相与得到 -bufSize mod scalarSize 。
func paddingBytes(bufSize, scalarSize int) int {
	return ((^bufSize) + 1) & (scalarSize - 1)
}

// forceAlign returns a valid force_align value, if any.
func (s *StructDef) forceAlign() (int, bool) {
	a, ok := s.Attributes.Lookup("force_align")
	if !ok || a.Kind != KindInt {
		return 0, false
	}
	n, err := a.Int()
	if err != nil || n < s.MinAlign || n > 256 || n&(n-1) != 0 {
		return 0, false
	}
	return n, true
}

// alignment is the alignment the struct will have once compiled.
func (s *StructDef) alignment() int {
	if n, ok := s.forceAlign(); ok {
		return n
	}
	return s.MinAlign
}

// size is the byte size the struct will have once compiled.
func (s *StructDef) size() int {
	return s.ByteSize + paddingBytes(s.ByteSize, s.alignment())
}

func (s *StructDef) compile() error {
	if s.Fixed {
		if err := s.compileLayout(); err != nil {
			return err
		}
	} else if err := s.compileSlots(); err != nil {
		return err
	}

	// Check that no identifiers clash with auto generated fields.
	for _, c := range []struct {
		suffix string
		kind   Kind
	}{
		{"_type", KindUnion},
		{"Type", KindUnion},
		{"_length", KindVector},
		{"Length", KindVector},
	} {
		if err := s.checkClash(c.suffix, c.kind); err != nil {
			return err
		}
	}

	for _, f := range s.Fields.Symbols() {
		if err := s.compileDefault(f); err != nil {
			return err
		}
		if f.Required && (s.Fixed || f.Type.IsScalar()) {
			return semanticErrorf(s.Name, "field %s: only non-scalar table fields can be required", f.Name)
		}
	}
	return nil
}

func (s *StructDef) compileLayout() error {
	if s.Fields.Len() == 0 {
		return semanticErrorf(s.Name, "struct has no fields")
	}
	if a, ok := s.Attributes.Lookup("force_align"); ok {
		n, err := a.Int()
		if a.Kind != KindInt || err != nil || n < s.MinAlign || n > 256 || n&(n-1) != 0 {
			return semanticErrorf(s.Name,
				"force_align must be a power of two integer ranging from the struct's natural alignment to 256")
		}
		s.MinAlign = n
	}
	s.padLastField(s.MinAlign)
	debug.Assert(s.ByteSize%s.MinAlign == 0, "struct size is not a multiple of its alignment")
	return nil
}

// compileSlots 重新计算 table 各字段的 vtable slot ：
//   - 所有字段都没有 id ：按声明顺序分配 slot ；
//   - 所有字段都有 id ：按 id 排序后分配 slot ，id 必须恰好是 0..N-1 ；
//   - 部分字段有 id ：报错。
func (s *StructDef) compileSlots() error {
	fields := s.Fields.Symbols()
	ids := make(map[*FieldDef]int, len(fields))
	for _, f := range fields {
		attr, ok := f.ID()
		if !ok {
			continue
		}
		n, err := attr.Int()
		if err != nil {
			return semanticErrorf(s.Name, "field %s: invalid id %q", f.Name, attr.Value)
		}
		ids[f] = n
	}
	switch {
	case len(ids) == 0:
	case len(ids) != len(fields):
		return semanticErrorf(s.Name, "either all fields or no fields must have an 'id' attribute")
	default:
		s.Fields.sortStable(func(a, b *FieldDef) int { return ids[a] - ids[b] })
		// Verify we have a contiguous set.
		for i, f := range s.Fields.Symbols() {
			if ids[f] != i {
				return semanticErrorf(s.Name, "field ids must be consecutive from 0, id %d missing or set twice", i)
			}
		}
	}
	for i, f := range s.Fields.Symbols() {
		f.Offset = FieldIndexToOffset(i)
	}
	return nil
}

func (s *StructDef) checkClash(suffix string, kind Kind) error {
	for _, f := range s.Fields.Symbols() {
		if len(f.Name) <= len(suffix) || !strings.HasSuffix(f.Name, suffix) || f.Type.Kind == KindUType {
			continue
		}
		orig, ok := s.Fields.Lookup(strings.TrimSuffix(f.Name, suffix))
		if ok && orig.Type.Kind == kind {
			return semanticErrorf(s.Name, "field %s would clash with generated functions for field %s", f.Name, orig.Name)
		}
	}
	return nil
}

func (s *StructDef) compileDefault(f *FieldDef) error {
	if f.Default == "" {
		return nil
	}
	e := f.Type.Enum
	if e != nil {
		if v, ok := e.Values.Lookup(f.Default); ok {
			f.Default = strconv.FormatInt(v.Value, 10)
		}
	}
	v, err := ParseScalar(f.Type.Kind, f.Default)
	if err != nil {
		return semanticErrorf(s.Name, "field %s: default %q is not a valid %s", f.Name, f.Default, f.Type.Kind)
	}
	if e != nil && !e.BitFlags() {
		n, _ := asInt64(v)
		if e.ReverseLookup(n, false) == nil {
			return semanticErrorf(s.Name, "enum %s does not have a declaration for this field's default of %s", e.Name, f.Default)
		}
	}
	f.defaultValue = v
	return nil
}
