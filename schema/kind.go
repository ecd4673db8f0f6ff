package schema

import (
	"strconv"

	"golang.org/x/xerrors"
)

// Kind is the base type tag of a field, vector element or enum.
type Kind uint8

const (
	KindNone Kind = iota
	KindUType
	KindBool
	KindByte
	KindUByte
	KindShort
	KindUShort
	KindInt
	KindUInt
	KindLong
	KindULong
	KindFloat
	KindDouble
	KindString
	KindVector
	KindStruct
	KindUnion
)

var kindNames = [...]string{
	KindNone:   "none",
	KindUType:  "utype",
	KindBool:   "bool",
	KindByte:   "byte",
	KindUByte:  "ubyte",
	KindShort:  "short",
	KindUShort: "ushort",
	KindInt:    "int",
	KindUInt:   "uint",
	KindLong:   "long",
	KindULong:  "ulong",
	KindFloat:  "float",
	KindDouble: "double",
	KindString: "string",
	KindVector: "vector",
	KindStruct: "struct",
	KindUnion:  "union",
}

// builtins maps the schema keywords accepted as field types.
var builtins = map[string]Kind{
	"bool":   KindBool,
	"byte":   KindByte,
	"ubyte":  KindUByte,
	"short":  KindShort,
	"ushort": KindUShort,
	"int":    KindInt,
	"uint":   KindUInt,
	"long":   KindLong,
	"ulong":  KindULong,
	"float":  KindFloat,
	"double": KindDouble,
	"string": KindString,
}

// LookupBuiltin resolves a builtin type keyword.
func LookupBuiltin(keyword string) (Kind, bool) {
	k, ok := builtins[keyword]
	return k, ok
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsScalar reports whether k is stored inline as a fixed-width number.
func (k Kind) IsScalar() bool { return k >= KindUType && k <= KindDouble }

// IsInteger reports whether k is an integral scalar.
func (k Kind) IsInteger() bool { return k >= KindUType && k <= KindULong }

// IsFloat reports whether k is a floating point scalar.
func (k Kind) IsFloat() bool { return k == KindFloat || k == KindDouble }

// Size returns the inline byte width of k. Offsets (string, vector, table
// and union references) are 4 bytes wide.
func (k Kind) Size() int {
	switch k {
	case KindNone, KindUType, KindBool, KindByte, KindUByte:
		return 1
	case KindShort, KindUShort:
		return 2
	case KindInt, KindUInt, KindFloat, KindString, KindVector, KindStruct, KindUnion:
		return 4
	case KindLong, KindULong, KindDouble:
		return 8
	}
	panic("fbreflect/schema: invalid kind " + k.String())
}

// ParseScalar parses the textual constant s as a value of kind k.
//
// The result has the Go type matching k: bool, int8, uint8 (also for
// KindUType), int16, uint16, int32, uint32, int64, uint64, float32 or
// float64.
func ParseScalar(k Kind, s string) (interface{}, error) {
	switch k {
	case KindBool:
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("fbreflect/schema: invalid bool %q: %w", s, err)
		}
		return n != 0, nil
	case KindByte:
		n, err := strconv.ParseInt(s, 10, 8)
		return int8(n), wrapParse(k, s, err)
	case KindUType, KindUByte:
		n, err := strconv.ParseUint(s, 10, 8)
		return uint8(n), wrapParse(k, s, err)
	case KindShort:
		n, err := strconv.ParseInt(s, 10, 16)
		return int16(n), wrapParse(k, s, err)
	case KindUShort:
		n, err := strconv.ParseUint(s, 10, 16)
		return uint16(n), wrapParse(k, s, err)
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), wrapParse(k, s, err)
	case KindUInt:
		n, err := strconv.ParseUint(s, 10, 32)
		return uint32(n), wrapParse(k, s, err)
	case KindLong:
		n, err := strconv.ParseInt(s, 10, 64)
		return n, wrapParse(k, s, err)
	case KindULong:
		n, err := strconv.ParseUint(s, 10, 64)
		return n, wrapParse(k, s, err)
	case KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), wrapParse(k, s, err)
	case KindDouble:
		f, err := strconv.ParseFloat(s, 64)
		return f, wrapParse(k, s, err)
	}
	return nil, xerrors.Errorf("fbreflect/schema: %w", &UnsupportedTypeError{Type: ScalarType(k)})
}

func wrapParse(k Kind, s string, err error) error {
	if err == nil {
		return nil
	}
	return xerrors.Errorf("fbreflect/schema: invalid %s %q: %w", k, s, err)
}

// ZeroValue returns the typed zero of a scalar kind, nil for other kinds.
func ZeroValue(k Kind) interface{} {
	switch k {
	case KindBool:
		return false
	case KindByte:
		return int8(0)
	case KindUType, KindUByte:
		return uint8(0)
	case KindShort:
		return int16(0)
	case KindUShort:
		return uint16(0)
	case KindInt:
		return int32(0)
	case KindUInt:
		return uint32(0)
	case KindLong:
		return int64(0)
	case KindULong:
		return uint64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	}
	return nil
}

// asInt64 widens an integral scalar produced by ParseScalar.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}
