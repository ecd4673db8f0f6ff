package schema

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnum(t *testing.T, reg *Registry, name string, k Kind, vals ...*EnumVal) *EnumDef {
	t.Helper()
	e, err := reg.AddEnum(name, k)
	require.NoError(t, err)
	for _, v := range vals {
		require.NoError(t, e.Add(v))
	}
	return e
}

func values(e *EnumDef) []int64 {
	var out []int64
	for _, v := range e.Values.Symbols() {
		out = append(out, v.Value)
	}
	return out
}

func TestEnumAutoIncrement(t *testing.T) {
	reg := NewRegistry()
	color := newEnum(t, reg, "Color", KindByte,
		&EnumVal{Name: "Red"},
		&EnumVal{Name: "Green"},
		&EnumVal{Name: "Blue", Value: 2, Explicit: true},
		&EnumVal{Name: "Black", Value: 10, Explicit: true},
		&EnumVal{Name: "White"},
	)
	require.NoError(t, reg.Compile())
	assert.Equal(t, []int64{0, 1, 2, 10, 11}, values(color))

	green := color.ReverseLookup(1, false)
	require.NotNil(t, green)
	assert.Equal(t, "Green", green.Name)
	assert.Nil(t, color.ReverseLookup(3, false))
}

func TestEnumNegativeStart(t *testing.T) {
	reg := NewRegistry()
	e := newEnum(t, reg, "E", KindInt,
		&EnumVal{Name: "A", Value: -5, Explicit: true},
		&EnumVal{Name: "B"},
	)
	require.NoError(t, reg.Compile())
	assert.Equal(t, []int64{-5, -4}, values(e))
}

func TestEnumDescending(t *testing.T) {
	reg := NewRegistry()
	newEnum(t, reg, "E", KindInt,
		&EnumVal{Name: "A", Value: 5, Explicit: true},
		&EnumVal{Name: "B", Value: 3, Explicit: true},
	)
	requireSemantic(t, reg.Compile())
}

func TestEnumBitFlags(t *testing.T) {
	reg := NewRegistry()
	e, err := reg.AddEnum("Flags", KindUByte)
	require.NoError(t, err)
	e.Attributes.Add("bit_flags", &Attribute{})
	require.NoError(t, e.Add(&EnumVal{Name: "A"}))
	require.NoError(t, e.Add(&EnumVal{Name: "B"}))
	require.NoError(t, e.Add(&EnumVal{Name: "C", Value: 7, Explicit: true}))
	require.NoError(t, reg.Compile())
	assert.Equal(t, []int64{1, 2, 128}, values(e))

	reg = NewRegistry()
	e, _ = reg.AddEnum("Flags", KindUByte)
	e.Attributes.Add("bit_flags", &Attribute{})
	require.NoError(t, e.Add(&EnumVal{Name: "A", Value: 8, Explicit: true}))
	requireSemantic(t, reg.Compile())
}

func TestEnumDeclarationErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.AddEnum("F", KindFloat)
	requireSemantic(t, err)

	_, err = reg.AddEnum("S", KindString)
	requireSemantic(t, err)

	e := newEnum(t, reg, "E", KindInt, &EnumVal{Name: "A"})
	requireSemantic(t, e.Add(&EnumVal{Name: "A"}))

	_, err = reg.AddEnum("E", KindInt)
	requireSemantic(t, err)

	_, err = reg.AddTable("E")
	requireSemantic(t, err)

	_, err = reg.AddTable("T")
	require.NoError(t, err)
	_, err = reg.AddEnum("T", KindInt)
	requireSemantic(t, err)
	_, err = reg.AddStruct("T")
	requireSemantic(t, err)
}

func TestUnion(t *testing.T) {
	reg := NewRegistry()
	u, err := reg.AddUnion("Equipment")
	require.NoError(t, err)
	assert.True(t, u.IsUnion)
	assert.Equal(t, KindUType, u.Underlying.Kind)

	none, ok := u.Values.Lookup("NONE")
	require.True(t, ok)
	assert.Equal(t, int64(0), none.Value)

	require.NoError(t, u.Add(&EnumVal{Name: "Weapon"}))
	require.NoError(t, u.Add(&EnumVal{Name: "Shield"}))
	for _, name := range []string{"Weapon", "Shield"} {
		_, err := reg.AddTable(name)
		require.NoError(t, err)
	}
	require.NoError(t, reg.Compile())

	assert.Equal(t, []int64{0, 1, 2}, values(u))
	weapon := u.ReverseLookup(1, true)
	require.NotNil(t, weapon)
	require.NotNil(t, weapon.Struct)
	assert.Equal(t, "Weapon", weapon.Struct.Name)
	assert.Nil(t, u.ReverseLookup(0, true))
	assert.Equal(t, "NONE", u.ReverseLookup(0, false).Name)
}

func TestUnionMembers(t *testing.T) {
	t.Run("undefined", func(t *testing.T) {
		reg := NewRegistry()
		newEnum(t, reg, "U", KindUType, &EnumVal{Name: "Missing"})
		se := requireSemantic(t, reg.Compile())
		assert.Equal(t, "Missing", se.Def)
	})

	t.Run("struct member", func(t *testing.T) {
		reg := NewRegistry()
		vec, _ := reg.AddStruct("Vec")
		_, err := vec.AddField("x", ScalarType(KindFloat), "", nil)
		require.NoError(t, err)
		newEnum(t, reg, "U", KindUType, &EnumVal{Name: "Vec"})
		se := requireSemantic(t, reg.Compile())
		assert.Equal(t, "U", se.Def)
	})
}

func TestForwardReference(t *testing.T) {
	reg := NewRegistry()
	monster, _ := reg.AddTable("Monster")
	weapon := reg.LookupOrCreateStruct("Weapon")
	assert.True(t, weapon.Predecl)
	_, err := monster.AddField("weapon", StructRef(weapon), "", nil)
	require.NoError(t, err)

	again, err := reg.AddTable("Weapon")
	require.NoError(t, err)
	assert.Same(t, weapon, again)
	assert.False(t, again.Predecl)
	_, err = again.AddField("damage", ScalarType(KindShort), "", nil)
	require.NoError(t, err)

	require.NoError(t, reg.Compile())
}

func TestUnresolvedReference(t *testing.T) {
	reg := NewRegistry()
	monster, _ := reg.AddTable("Monster")
	_, err := monster.AddField("weapon", StructRef(reg.LookupOrCreateStruct("Weapon")), "", nil)
	require.NoError(t, err)

	se := requireSemantic(t, reg.Compile())
	assert.Equal(t, "Weapon", se.Def)
}

func TestRootType(t *testing.T) {
	reg := NewRegistry()
	vec, _ := reg.AddStruct("Vec")
	_, err := vec.AddField("x", ScalarType(KindFloat), "", nil)
	require.NoError(t, err)
	reg.SetRoot("Vec")
	requireSemantic(t, reg.Compile())

	reg = NewRegistry()
	reg.SetRoot("Monster")
	m, err := reg.AddTable("Monster")
	require.NoError(t, err)
	require.NoError(t, reg.Compile())
	assert.Same(t, m, reg.Root)
}

func TestCompileSticky(t *testing.T) {
	reg := NewRegistry()
	reg.LookupOrCreateStruct("Ghost")
	assert.False(t, reg.Compiled())

	err := reg.Compile()
	requireSemantic(t, err)
	assert.True(t, reg.Compiled())
	assert.False(t, reg.Valid())
	assert.Equal(t, err, reg.Err())

	// defining the missing type afterwards does not revive the registry
	_, defErr := reg.AddTable("Ghost")
	require.NoError(t, defErr)
	assert.Equal(t, err, reg.Compile())

	ok := NewRegistry()
	assert.False(t, ok.Valid())
	require.NoError(t, ok.Compile())
	require.NoError(t, ok.Compile())
	assert.True(t, ok.Valid())
	assert.NoError(t, ok.Err())
}

func TestCompileLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := NewRegistry(WithLogger(logger))
	assert.Same(t, logger, reg.Logger())
	vec, _ := reg.AddStruct("Vec")
	_, err := vec.AddField("x", ScalarType(KindDouble), "", nil)
	require.NoError(t, err)
	newEnum(t, reg, "E", KindInt, &EnumVal{Name: "A"})
	require.NoError(t, reg.Compile())

	out := buf.String()
	assert.True(t, strings.Contains(out, "compiled struct"), out)
	assert.True(t, strings.Contains(out, "name=Vec"), out)
	assert.True(t, strings.Contains(out, "compiled enum"), out)
}

func TestDefaultLoggerDiscards(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg.Logger())
	require.NoError(t, reg.Compile())
}
