package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTableOrder(t *testing.T) {
	var tab SymbolTable[int]
	assert.Equal(t, 0, tab.Len())
	assert.Equal(t, 0, tab.Last())

	assert.False(t, tab.Add("a", 1))
	assert.False(t, tab.Add("b", 2))
	assert.False(t, tab.Add("c", 3))

	require.Equal(t, 3, tab.Len())
	assert.Equal(t, []int{1, 2, 3}, tab.Symbols())
	assert.Equal(t, 2, tab.At(1))
	assert.Equal(t, "b", tab.NameAt(1))
	assert.Equal(t, 3, tab.Last())

	v, ok := tab.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = tab.Lookup("missing")
	assert.False(t, ok)
	_, ok = tab.LookupIndex("missing")
	assert.False(t, ok)
}

func TestSymbolTableDuplicates(t *testing.T) {
	var tab SymbolTable[string]
	assert.False(t, tab.Add("x", "first"))
	assert.False(t, tab.Add("y", "other"))
	assert.True(t, tab.Add("x", "second"))

	// the list keeps both registrations
	assert.Equal(t, 3, tab.Len())

	// the name map keeps the first one ...
	v, ok := tab.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "first", v)

	// ... the index map follows the latest one.
	i, ok := tab.LookupIndex("x")
	require.True(t, ok)
	assert.Equal(t, 2, i)
	assert.Equal(t, "second", tab.At(i))
}

func TestSymbolTableSortKeepsMaps(t *testing.T) {
	var tab SymbolTable[int]
	tab.Add("three", 3)
	tab.Add("one", 1)
	tab.Add("two", 2)

	tab.sortStable(func(a, b int) int { return a - b })

	assert.Equal(t, []int{1, 2, 3}, tab.Symbols())
	assert.Equal(t, "one", tab.NameAt(0))
	assert.Equal(t, "three", tab.NameAt(2))

	i, _ := tab.LookupIndex("three")
	assert.Equal(t, 0, i, "index map still reflects registration order")
}
