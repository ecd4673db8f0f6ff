package schema

import (
	"io"
	"strconv"
	"strings"
)

// Schema renders the registry back to schema text. The output parses into
// a structurally equivalent registry; it is not byte-identical to the
// original source.
func (r *Registry) Schema() string {
	var b strings.Builder
	r.writeSchema(&b)
	return b.String()
}

// WriteSchema writes the output of Schema to w.
func (r *Registry) WriteSchema(w io.Writer) error {
	_, err := io.WriteString(w, r.Schema())
	return err
}

func (r *Registry) writeSchema(b *strings.Builder) {
	for _, ns := range r.Namespaces {
		b.WriteString("namespace " + ns.String() + ";\n")
	}
	for _, a := range r.Attributes {
		b.WriteString("attribute " + quote(a) + ";\n")
	}
	for _, e := range r.Enums.Symbols() {
		r.writeEnum(b, e)
	}
	// structs first, inner before outer, so each struct is declared before
	// a struct embedding it.
	seen := make(map[*StructDef]bool)
	var visit func(s *StructDef)
	visit = func(s *StructDef) {
		if seen[s] {
			return
		}
		seen[s] = true
		for _, f := range s.Fields.Symbols() {
			if f.Type.IsFixedStruct() {
				visit(f.Type.Struct)
			}
		}
		writeStruct(b, s)
	}
	for _, s := range r.Structs.Symbols() {
		if s.Fixed && !s.Predecl {
			visit(s)
		}
	}
	for _, s := range r.Structs.Symbols() {
		if !s.Fixed && !s.Predecl {
			writeStruct(b, s)
		}
	}
	if r.Root != nil {
		b.WriteString("\nroot_type " + r.Root.Name + ";\n")
	}
}

func (r *Registry) writeEnum(b *strings.Builder, e *EnumDef) {
	b.WriteString("\n")
	if e.IsUnion {
		b.WriteString("union " + e.Name)
	} else {
		b.WriteString("enum " + e.Name + " : " + e.Underlying.Kind.String())
	}
	writeAttributes(b, &e.Attributes)
	b.WriteString(" {\n")
	first := true
	for _, v := range e.Values.Symbols() {
		if e.IsUnion && v.Name == "NONE" {
			continue
		}
		if !first {
			b.WriteString(",\n")
		}
		first = false
		b.WriteString("  " + v.Name)
		switch {
		case r.compiled:
			b.WriteString(" = " + strconv.FormatInt(v.declared, 10))
		case v.Explicit:
			b.WriteString(" = " + strconv.FormatInt(v.Value, 10))
		}
	}
	b.WriteString("\n}\n")
}

func writeStruct(b *strings.Builder, s *StructDef) {
	b.WriteString("\n")
	if s.Fixed {
		b.WriteString("struct ")
	} else {
		b.WriteString("table ")
	}
	b.WriteString(s.Name)
	writeAttributes(b, &s.Attributes)
	b.WriteString(" {\n")
	for _, f := range s.Fields.Symbols() {
		if f.Generated {
			continue
		}
		b.WriteString("  " + f.Name + " : " + f.Type.String())
		if f.Default != "" {
			b.WriteString(" = " + f.Default)
		}
		writeAttributes(b, &f.Attributes)
		b.WriteString(";\n")
	}
	b.WriteString("}\n")
}

func writeAttributes(b *strings.Builder, attrs *SymbolTable[*Attribute]) {
	if attrs.Len() == 0 {
		return
	}
	b.WriteString(" (")
	for i, a := range attrs.Symbols() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(attrs.NameAt(i))
		switch a.Kind {
		case KindNone:
		case KindString:
			b.WriteString(": " + quote(a.Value))
		default:
			b.WriteString(": " + a.Value)
		}
	}
	b.WriteString(")")
}

// quote escapes s with the escapes the schema parser understands.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
