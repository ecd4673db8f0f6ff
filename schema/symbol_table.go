package schema

import "slices"

// SymbolTable is an ordered name → value registry.
//
// Every Add appends to the ordered list. The name map keeps the first value
// registered under a name while the index map always points at the most
// recent position, so a duplicate Add is visible through LookupIndex but not
// through Lookup. The zero value is ready to use.
//
// SymbolTable 同时维护以下数据：
//   - symbols: 按插入顺序保存的值列表，字段/枚举的声明顺序由它决定；
//   - names:   与 symbols 一一对应的名字；
//   - byName:  名字 => 值，重名时保留第一次注册的值；
//   - byIndex: 名字 => 下标，重名时指向最后一次注册的位置。
type SymbolTable[T any] struct {
	symbols []T
	names   []string
	byName  map[string]T
	byIndex map[string]int
}

// Add appends v under name and reports whether name was already present.
func (s *SymbolTable[T]) Add(name string, v T) bool {
	if s.byName == nil {
		s.byName = make(map[string]T)
		s.byIndex = make(map[string]int)
	}
	s.byIndex[name] = len(s.symbols)
	s.symbols = append(s.symbols, v)
	s.names = append(s.names, name)
	if _, dup := s.byName[name]; dup {
		return true
	}
	s.byName[name] = v
	return false
}

// Lookup returns the first value registered under name.
func (s *SymbolTable[T]) Lookup(name string) (T, bool) {
	v, ok := s.byName[name]
	return v, ok
}

// LookupIndex returns the list position of the latest registration of name.
func (s *SymbolTable[T]) LookupIndex(name string) (int, bool) {
	i, ok := s.byIndex[name]
	return i, ok
}

// NameAt returns the name the i-th value was registered under.
func (s *SymbolTable[T]) NameAt(i int) string { return s.names[i] }

// Len returns the number of registrations, duplicates included.
func (s *SymbolTable[T]) Len() int { return len(s.symbols) }

// At returns the i-th registered value.
func (s *SymbolTable[T]) At(i int) T { return s.symbols[i] }

// Last returns the most recently registered value, or the zero value of T
// when the table is empty.
func (s *SymbolTable[T]) Last() T {
	var zero T
	if len(s.symbols) == 0 {
		return zero
	}
	return s.symbols[len(s.symbols)-1]
}

// Symbols returns the values in list order. The slice must not be modified.
func (s *SymbolTable[T]) Symbols() []T { return s.symbols }

// sortStable reorders the list only; neither map is touched.
func (s *SymbolTable[T]) sortStable(cmp func(a, b T) int) {
	order := make([]int, len(s.symbols))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp(s.symbols[a], s.symbols[b]) })
	symbols := make([]T, len(order))
	names := make([]string, len(order))
	for i, j := range order {
		symbols[i], names[i] = s.symbols[j], s.names[j]
	}
	s.symbols, s.names = symbols, names
}
