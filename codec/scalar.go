package codec

import (
	"math"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/spf13/cast"
	"golang.org/x/xerrors"

	"github.com/blastbao/gomem/fbreflect/schema"
)

// readScalar reads a scalar of kind k at the absolute position off.
func readScalar(tab *flatbuffers.Table, k schema.Kind, off flatbuffers.UOffsetT) (interface{}, error) {
	switch k {
	case schema.KindBool:
		return tab.GetBool(off), nil
	case schema.KindByte:
		return tab.GetInt8(off), nil
	case schema.KindUType, schema.KindUByte:
		return tab.GetUint8(off), nil
	case schema.KindShort:
		return tab.GetInt16(off), nil
	case schema.KindUShort:
		return tab.GetUint16(off), nil
	case schema.KindInt:
		return tab.GetInt32(off), nil
	case schema.KindUInt:
		return tab.GetUint32(off), nil
	case schema.KindLong:
		return tab.GetInt64(off), nil
	case schema.KindULong:
		return tab.GetUint64(off), nil
	case schema.KindFloat:
		return tab.GetFloat32(off), nil
	case schema.KindDouble:
		return tab.GetFloat64(off), nil
	}
	return nil, xerrors.Errorf("fbreflect/codec: %w", &schema.UnsupportedTypeError{Type: schema.ScalarType(k)})
}

// readScalars reads n consecutive scalars starting at data.
func readScalars[T any](n int, data flatbuffers.UOffsetT, size int, get func(flatbuffers.UOffsetT) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = get(data + flatbuffers.UOffsetT(i*size))
	}
	return out
}

// intRanges bounds the signed integer kinds, and the unsigned ones that fit
// an int64.
var intRanges = map[schema.Kind][2]int64{
	schema.KindByte:   {math.MinInt8, math.MaxInt8},
	schema.KindUType:  {0, math.MaxUint8},
	schema.KindUByte:  {0, math.MaxUint8},
	schema.KindShort:  {math.MinInt16, math.MaxInt16},
	schema.KindUShort: {0, math.MaxUint16},
	schema.KindInt:    {math.MinInt32, math.MaxInt32},
	schema.KindUInt:   {0, math.MaxUint32},
	schema.KindLong:   {math.MinInt64, math.MaxInt64},
}

// coerce converts v to the Go type matching t's kind. A string naming a
// member of t's enum is accepted for enum typed scalars. Values that do
// not fit the kind fail with ErrValue instead of being truncated.
func coerce(t schema.Type, v interface{}) (interface{}, error) {
	if s, ok := v.(string); ok && t.Enum != nil {
		if ev, ok := t.Enum.Values.Lookup(s); ok {
			v = ev.Value
		}
	}
	if err := checkRange(t, v); err != nil {
		return nil, err
	}

	var (
		x   interface{}
		err error
	)
	switch t.Kind {
	case schema.KindBool:
		x, err = cast.ToBoolE(v)
	case schema.KindByte:
		x, err = cast.ToInt8E(v)
	case schema.KindUType, schema.KindUByte:
		x, err = cast.ToUint8E(v)
	case schema.KindShort:
		x, err = cast.ToInt16E(v)
	case schema.KindUShort:
		x, err = cast.ToUint16E(v)
	case schema.KindInt:
		x, err = cast.ToInt32E(v)
	case schema.KindUInt:
		x, err = cast.ToUint32E(v)
	case schema.KindLong:
		x, err = cast.ToInt64E(v)
	case schema.KindULong:
		x, err = cast.ToUint64E(v)
	case schema.KindFloat:
		x, err = cast.ToFloat32E(v)
	case schema.KindDouble:
		x, err = cast.ToFloat64E(v)
	default:
		return nil, xerrors.Errorf("fbreflect/codec: %w", &schema.UnsupportedTypeError{Type: t})
	}
	if err != nil {
		return nil, xerrors.Errorf("fbreflect/codec: %v as %s (%v): %w", v, t, err, ErrValue)
	}
	return x, nil
}

// checkRange rejects numbers outside the range of t's kind. Conversion
// errors are left to the caller's cast.
func checkRange(t schema.Type, v interface{}) error {
	overflow := func() error {
		return xerrors.Errorf("fbreflect/codec: %v overflows %s: %w", v, t, ErrValue)
	}
	if bounds, ok := intRanges[t.Kind]; ok {
		if u, ok := v.(uint64); ok && u > math.MaxInt64 {
			return overflow()
		}
		if u, ok := v.(uint); ok && uint64(u) > math.MaxInt64 {
			return overflow()
		}
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil
		}
		if n < bounds[0] || n > bounds[1] {
			return overflow()
		}
		return nil
	}
	if t.Kind == schema.KindFloat {
		f, err := cast.ToFloat64E(v)
		if err == nil && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return overflow()
		}
	}
	return nil
}

// prependScalar prepends a value produced by coerce.
func prependScalar(b *flatbuffers.Builder, x interface{}) {
	switch x := x.(type) {
	case bool:
		b.PrependBool(x)
	case int8:
		b.PrependInt8(x)
	case uint8:
		b.PrependUint8(x)
	case int16:
		b.PrependInt16(x)
	case uint16:
		b.PrependUint16(x)
	case int32:
		b.PrependInt32(x)
	case uint32:
		b.PrependUint32(x)
	case int64:
		b.PrependInt64(x)
	case uint64:
		b.PrependUint64(x)
	case float32:
		b.PrependFloat32(x)
	case float64:
		b.PrependFloat64(x)
	}
}

// prependScalarSlot adds x to vtable slot slot unless it equals the default
// d. Both must have the Go type of the field's kind.
func prependScalarSlot(b *flatbuffers.Builder, slot int, x, d interface{}) {
	switch x := x.(type) {
	case bool:
		b.PrependBoolSlot(slot, x, d.(bool))
	case int8:
		b.PrependInt8Slot(slot, x, d.(int8))
	case uint8:
		b.PrependUint8Slot(slot, x, d.(uint8))
	case int16:
		b.PrependInt16Slot(slot, x, d.(int16))
	case uint16:
		b.PrependUint16Slot(slot, x, d.(uint16))
	case int32:
		b.PrependInt32Slot(slot, x, d.(int32))
	case uint32:
		b.PrependUint32Slot(slot, x, d.(uint32))
	case int64:
		b.PrependInt64Slot(slot, x, d.(int64))
	case uint64:
		b.PrependUint64Slot(slot, x, d.(uint64))
	case float32:
		b.PrependFloat32Slot(slot, x, d.(float32))
	case float64:
		b.PrependFloat64Slot(slot, x, d.(float64))
	}
}
