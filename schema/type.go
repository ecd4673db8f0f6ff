package schema

// Type describes the type of a field or vector element.
//
// Kind is the tag; the other members are set depending on it:
//
//	scalar kinds  Enum is set when the field is enum typed (the Kind is then
//	              the enum's underlying kind)
//	KindString    nothing
//	KindVector    Elem is the element type
//	KindStruct    Struct is the referenced struct or table
//	KindUnion     Enum is the union definition
type Type struct {
	Kind   Kind
	Elem   *Type
	Struct *StructDef
	Enum   *EnumDef
}

// ScalarType returns the type of a plain scalar of kind k.
func ScalarType(k Kind) Type { return Type{Kind: k} }

// StringType returns the string type.
func StringType() Type { return Type{Kind: KindString} }

// VectorOf returns the type of a vector with elements of type elem.
func VectorOf(elem Type) Type { return Type{Kind: KindVector, Elem: &elem} }

// StructRef returns a reference to a struct or table definition.
func StructRef(def *StructDef) Type { return Type{Kind: KindStruct, Struct: def} }

// EnumRef returns an enum typed scalar. For a union definition this is the
// discriminant type.
func EnumRef(def *EnumDef) Type { return Type{Kind: def.Underlying.Kind, Enum: def} }

// UnionRef returns a reference to a union definition.
func UnionRef(def *EnumDef) Type { return Type{Kind: KindUnion, Enum: def} }

// IsScalar reports whether values of t are stored inline as numbers.
func (t Type) IsScalar() bool { return t.Kind.IsScalar() }

// IsFixedStruct reports whether t references a fixed layout struct.
func (t Type) IsFixedStruct() bool {
	return t.Kind == KindStruct && t.Struct != nil && t.Struct.Fixed
}

// IsTable reports whether t references a table.
func (t Type) IsTable() bool {
	return t.Kind == KindStruct && t.Struct != nil && !t.Struct.Fixed
}

// InlineSize returns the number of bytes a value of t occupies inside its
// parent object.
func (t Type) InlineSize() int {
	if t.IsFixedStruct() {
		return t.Struct.size()
	}
	return t.Kind.Size()
}

// InlineAlignment returns the required alignment of a value of t.
func (t Type) InlineAlignment() int {
	if t.IsFixedStruct() {
		return t.Struct.alignment()
	}
	return t.Kind.Size()
}

// String returns the schema spelling of t.
func (t Type) String() string {
	switch t.Kind {
	case KindVector:
		if t.Elem == nil {
			return "[]"
		}
		return "[" + t.Elem.String() + "]"
	case KindStruct:
		if t.Struct != nil {
			return t.Struct.Name
		}
	case KindUnion:
		if t.Enum != nil {
			return t.Enum.Name
		}
	default:
		if t.Enum != nil {
			return t.Enum.Name
		}
	}
	return t.Kind.String()
}
