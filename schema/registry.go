package schema

import (
	"log/slog"
	"strings"

	"github.com/blastbao/gomem/fbreflect/internal/debug"
)

// Namespace is a dotted namespace declaration. It is informational only.
type Namespace struct {
	Components []string
}

func (n Namespace) String() string { return strings.Join(n.Components, ".") }

// Registry owns every struct, table, enum and union of a schema.
//
// Definitions are added while parsing or programmatically, then Compile
// validates and finalizes the layout of the whole graph. Once Compile has
// returned nil the registry must not be modified and may be shared by any
// number of concurrent readers.
type Registry struct {
	Structs SymbolTable[*StructDef]
	Enums   SymbolTable[*EnumDef]

	Namespaces []Namespace

	// Attributes lists the custom attributes declared with `attribute "x";`.
	Attributes []string

	Root *StructDef

	log      *slog.Logger
	compiled bool
	err      error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to trace compilation.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.log = debug.Logger(r.log)
	return r
}

// Logger returns the registry's logger.
func (r *Registry) Logger() *slog.Logger { return r.log }

// AddUnion declares a union. Its discriminant is a UType and its first
// member is the implicit NONE = 0.
func (r *Registry) AddUnion(name string) (*EnumDef, error) {
	return r.AddEnum(name, KindUType)
}

// AddEnum declares an enum with underlying kind k. Passing KindUType
// declares a union.
func (r *Registry) AddEnum(name string, k Kind) (*EnumDef, error) {
	if !k.IsInteger() {
		return nil, semanticErrorf(name, "underlying enum type must be integral, got %s", k)
	}
	if s, ok := r.Structs.Lookup(name); ok && !s.Predecl {
		return nil, semanticErrorf(name, "name already used by a %s", kindOfStruct(s))
	}
	def := &EnumDef{
		Name:    name,
		IsUnion: k == KindUType,
		reg:     r,
	}
	if r.Enums.Add(name, def) {
		return nil, semanticErrorf(name, "enum already exists")
	}
	def.Underlying = Type{Kind: k, Enum: def}
	if def.IsUnion {
		def.Values.Add("NONE", &EnumVal{Name: "NONE", Value: 0, Explicit: true})
	}
	return def, nil
}

// AddStruct declares a fixed layout struct.
func (r *Registry) AddStruct(name string) (*StructDef, error) {
	return r.addStruct(name, true)
}

// AddTable declares a table.
func (r *Registry) AddTable(name string) (*StructDef, error) {
	return r.addStruct(name, false)
}

func (r *Registry) addStruct(name string, fixed bool) (*StructDef, error) {
	if _, ok := r.Enums.Lookup(name); ok {
		return nil, semanticErrorf(name, "name already used by an enum")
	}
	def := r.LookupOrCreateStruct(name)
	if !def.Predecl {
		return nil, semanticErrorf(name, "%s already exists", kindOfStruct(def))
	}
	def.Predecl = false
	def.Fixed = fixed
	return def, nil
}

// LookupOrCreateStruct returns the aggregate called name, registering a
// forward reference (Predecl) when it has not been seen before.
func (r *Registry) LookupOrCreateStruct(name string) *StructDef {
	def, ok := r.Structs.Lookup(name)
	if !ok {
		def = &StructDef{
			Name:     name,
			Predecl:  true,
			MinAlign: 1,
			reg:      r,
		}
		r.Structs.Add(name, def)
	}
	return def
}

// LookupStruct returns the struct or table called name.
func (r *Registry) LookupStruct(name string) (*StructDef, bool) {
	return r.Structs.Lookup(name)
}

// LookupEnum returns the enum or union called name.
func (r *Registry) LookupEnum(name string) (*EnumDef, bool) {
	return r.Enums.Lookup(name)
}

// SetRoot declares the root type, creating a forward reference if needed.
func (r *Registry) SetRoot(name string) {
	r.Root = r.LookupOrCreateStruct(name)
}

// Compiled reports whether Compile has been called.
func (r *Registry) Compiled() bool { return r.compiled }

// Valid reports whether Compile has been called and succeeded. Only a
// valid registry may drive readers and writers.
func (r *Registry) Valid() bool { return r.compiled && r.err == nil }

// Err returns the error of the first Compile, nil before Compile.
func (r *Registry) Err() error { return r.err }

// Compile validates the registry and computes the final layout of every
// definition. It runs once: later calls return the first result, and a
// registry whose compilation failed must be discarded.
func (r *Registry) Compile() error {
	if r.compiled {
		return r.err
	}
	r.compiled = true
	r.err = r.compile()
	if r.err != nil {
		r.log.Debug("schema compilation failed", "err", r.err)
	}
	return r.err
}

func (r *Registry) compile() error {
	// pass 1: every name a union mentions must exist, at least as a
	// forward reference.
	for _, e := range r.Enums.Symbols() {
		e.resolveMembers()
	}
	// pass 2: all references must be resolved.
	for _, s := range r.Structs.Symbols() {
		if s.Predecl {
			return semanticErrorf(s.Name, "type referenced but not defined")
		}
	}
	for _, e := range r.Enums.Symbols() {
		if err := e.compile(); err != nil {
			return err
		}
		r.log.Debug("compiled enum", "name", e.Name, "union", e.IsUnion, "values", e.Values.Len())
	}
	for _, s := range r.Structs.Symbols() {
		if err := s.compile(); err != nil {
			return err
		}
		if s.Fixed {
			r.log.Debug("compiled struct", "name", s.Name, "size", s.ByteSize, "align", s.MinAlign)
		} else {
			r.log.Debug("compiled table", "name", s.Name, "fields", s.Fields.Len())
		}
	}
	if r.Root != nil && r.Root.Fixed {
		return semanticErrorf(r.Root.Name, "root type must be a table")
	}
	return nil
}

func kindOfStruct(s *StructDef) string {
	if s.Fixed {
		return "struct"
	}
	return "table"
}
