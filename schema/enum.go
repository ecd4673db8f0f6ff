package schema

// EnumVal is one member of an enum or union.
type EnumVal struct {
	Name string

	// Value is the member's value. Before compilation it is meaningful only
	// when Explicit is set; afterwards it holds the final value, i.e.
	// `1 << declared` for bit flag enums.
	Value    int64
	Explicit bool

	// Struct is the table carried by a union member.
	Struct *StructDef

	declared int64
}

// EnumDef is an enum or union definition.
type EnumDef struct {
	Name       string
	IsUnion    bool
	Underlying Type
	Values     SymbolTable[*EnumVal]
	Attributes SymbolTable[*Attribute]

	reg *Registry
}

// Add appends a member.
func (e *EnumDef) Add(v *EnumVal) error {
	if e.Values.Add(v.Name, v) {
		return semanticErrorf(e.Name, "enum value %s already exists", v.Name)
	}
	return nil
}

// BitFlags reports whether the `bit_flags` attribute is set.
func (e *EnumDef) BitFlags() bool {
	_, ok := e.Attributes.Lookup("bit_flags")
	return ok
}

// ReverseLookup returns the first member whose value is v. The synthetic
// NONE member of a union is skipped when skipUnionDefault is set.
func (e *EnumDef) ReverseLookup(v int64, skipUnionDefault bool) *EnumVal {
	skip := 0
	if e.IsUnion && skipUnionDefault {
		skip++
	}
	for _, val := range e.Values.Symbols()[min(skip, e.Values.Len()):] {
		if val.Value == v {
			return val
		}
	}
	return nil
}

// resolveMembers makes sure every union member carries a table, creating
// forward references as needed.
func (e *EnumDef) resolveMembers() {
	if !e.IsUnion {
		return
	}
	for _, v := range e.Values.Symbols() {
		if v.Name != "NONE" && v.Struct == nil {
			v.Struct = e.reg.LookupOrCreateStruct(v.Name)
		}
	}
}

// compile 计算枚举值：
//   - 未指定的值等于前一个值 +1 ，第一个未指定的值为 0 ；
//   - 显式指定的值必须非递减；
//   - bit_flags 枚举把声明值 v 视为 bit 位置，最终值为 1 << v ，且 v 必须小于底层类型的位宽。
func (e *EnumDef) compile() error {
	prev := int64(-1)
	bits := int64(e.Underlying.Kind.Size() * 8)
	for i, v := range e.Values.Symbols() {
		if v.Explicit && i > 0 && v.Value < prev {
			return semanticErrorf(e.Name, "enum values must be specified in ascending order")
		}
		if !v.Explicit {
			v.Value = prev + 1
		}
		prev = v.Value
		v.declared = v.Value
		if e.BitFlags() {
			if v.Value < 0 || v.Value >= bits {
				return semanticErrorf(e.Name, "bit flag %s out of range of underlying integral type", v.Name)
			}
			v.Value = 1 << v.Value
		}
	}
	if e.IsUnion {
		for _, v := range e.Values.Symbols() {
			if v.Struct != nil && v.Struct.Fixed {
				return semanticErrorf(e.Name, "only tables can be union elements: %s", v.Name)
			}
		}
	}
	return nil
}
