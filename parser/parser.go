package parser

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/blastbao/gomem/fbreflect/internal/debug"
	"github.com/blastbao/gomem/fbreflect/schema"
)

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to trace declarations. When the parser
// creates its own registry the registry uses the same logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.log = l }
}

// Parser reads schema text into a registry.
//
// Parsing works directly on byte offsets of the source: every production
// takes the offset it starts at and returns the offset just past what it
// consumed. Whitespace and `//` comments are skipped explicitly wherever the
// grammar allows them.
type Parser struct {
	reg      *schema.Registry
	log      *slog.Logger
	src      string
	includes []string
}

// New returns a parser that adds declarations to reg. A nil reg makes the
// parser allocate a fresh registry.
func New(reg *schema.Registry, opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	p.log = debug.Logger(p.log)
	if reg == nil {
		reg = schema.NewRegistry(schema.WithLogger(p.log))
	}
	p.reg = reg
	return p
}

// Parse parses src into a new registry. The registry is not compiled.
func Parse(src string, opts ...Option) (*schema.Registry, error) {
	p := New(nil, opts...)
	if err := p.Parse(src); err != nil {
		return nil, err
	}
	return p.reg, nil
}

// ParseFile reads path from fs and parses it into a new registry.
func ParseFile(fs afero.Fs, path string, opts ...Option) (*schema.Registry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("fbreflect/parser: %w", err)
	}
	return Parse(string(data), opts...)
}

// Registry returns the registry the parser fills.
func (p *Parser) Registry() *schema.Registry { return p.reg }

// Includes returns the paths of every `include` seen so far. Included files
// are not loaded.
func (p *Parser) Includes() []string { return p.includes }

// Parse parses src. A failure leaves the registry partially populated and
// it must be discarded.
func (p *Parser) Parse(src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = b.err
		}
	}()

	p.src = src
	offset := p.parseIncludeStar(0)
	for {
		offset = p.skipWhitespace(offset)
		if offset >= len(p.src) {
			return nil
		}
		offset = p.parseDecl(offset)
	}
}

// bailout carries an error from deep inside the descent up to Parse.
type bailout struct {
	err error
}

func (p *Parser) fail(offset int, expected string) {
	panic(bailout{xerrors.Errorf("fbreflect/parser: %w", &schema.SyntaxError{Offset: offset, Expected: expected})})
}

func (p *Parser) check(err error) {
	if err != nil {
		panic(bailout{err})
	}
}

func (p *Parser) peek(offset int) byte {
	if offset < len(p.src) {
		return p.src[offset]
	}
	return 0
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *Parser) skipWhitespace(offset int) int {
	for offset < len(p.src) {
		switch {
		case isSpace(p.src[offset]):
			offset++
		case strings.HasPrefix(p.src[offset:], "//"):
			end := strings.IndexByte(p.src[offset:], '\n')
			if end < 0 {
				return len(p.src)
			}
			offset += end + 1
		default:
			return offset
		}
	}
	return offset
}

func (p *Parser) consume(offset int, expected string) int {
	if !strings.HasPrefix(p.src[min(offset, len(p.src)):], expected) {
		p.fail(offset, strconv.Quote(expected))
	}
	return offset + len(expected)
}

// keywordAt reports whether the identifier starting at offset is kw.
func (p *Parser) keywordAt(offset int, kw string) bool {
	end := offset + len(kw)
	if !strings.HasPrefix(p.src[min(offset, len(p.src)):], kw) {
		return false
	}
	c := p.peek(end)
	return !isLetter(c) && !isDigit(c)
}

func (p *Parser) parseIdentifier(offset int) (int, string) {
	if !isLetter(p.peek(offset)) {
		p.fail(offset, "identifier")
	}
	end := offset + 1
	for end < len(p.src) && (isLetter(p.src[end]) || isDigit(p.src[end])) {
		end++
	}
	return end, p.src[offset:end]
}

func (p *Parser) parseEscapedChar(offset int, b *strings.Builder) int {
	offset = p.consume(offset, `\`)
	switch p.peek(offset) {
	case '\\':
		b.WriteByte('\\')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case '"':
		b.WriteByte('"')
	default:
		p.fail(offset, "escape sequence")
	}
	return offset + 1
}

func (p *Parser) parseStringConstant(offset int) (int, string) {
	start := offset
	offset = p.consume(offset, `"`)
	var b strings.Builder
	for offset < len(p.src) {
		switch c := p.src[offset]; c {
		case '"':
			return offset + 1, b.String()
		case '\\':
			offset = p.parseEscapedChar(offset, &b)
		default:
			b.WriteByte(c)
			offset++
		}
	}
	p.fail(start, "terminated string constant")
	return offset, ""
}

func (p *Parser) parseInclude(offset int) (int, string) {
	offset = p.skipWhitespace(offset)
	offset = p.consume(offset, "include")
	offset = p.skipWhitespace(offset)
	offset, path := p.parseStringConstant(offset)
	offset = p.skipWhitespace(offset)
	offset = p.consume(offset, ";")
	p.includes = append(p.includes, path)
	p.log.Debug("include not resolved", "path", path)
	return offset, path
}

func (p *Parser) parseIncludeStar(offset int) int {
	for offset < len(p.src) {
		offset = p.skipWhitespace(offset)
		if !p.keywordAt(offset, "include") {
			break
		}
		offset, _ = p.parseInclude(offset)
	}
	return offset
}

// parseDecl parses one top-level declaration starting at offset.
func (p *Parser) parseDecl(offset int) int {
	offset = p.skipWhitespace(offset)
	if offset >= len(p.src) {
		return offset
	}
	if p.src[offset] == '{' {
		p.fail(offset, "declaration (JSON data is not supported)")
	}
	start := offset
	offset, keyword := p.parseIdentifier(offset)
	switch keyword {
	case "namespace":
		return p.parseNamespaceDecl(offset)
	case "attribute":
		return p.parseAttributeDecl(offset)
	case "table":
		return p.parseStructDecl(offset, false)
	case "struct":
		return p.parseStructDecl(offset, true)
	case "enum":
		return p.parseEnumDecl(offset, false)
	case "union":
		return p.parseEnumDecl(offset, true)
	case "root_type":
		return p.parseRootTypeDecl(offset)
	case "include":
		p.fail(start, "declaration (includes must precede all declarations)")
	}
	p.fail(start, "declaration")
	return offset
}

func (p *Parser) parseNamespaceDecl(offset int) int {
	var ns schema.Namespace
	offset = p.skipWhitespace(offset)
	offset, name := p.parseIdentifier(offset)
	ns.Components = append(ns.Components, name)
	offset = p.skipWhitespace(offset)
	for p.peek(offset) == '.' {
		offset = p.skipWhitespace(offset + 1)
		offset, name = p.parseIdentifier(offset)
		ns.Components = append(ns.Components, name)
		offset = p.skipWhitespace(offset)
	}
	offset = p.consume(offset, ";")
	p.reg.Namespaces = append(p.reg.Namespaces, ns)
	p.log.Debug("parsed namespace", "name", ns.String())
	return offset
}

func (p *Parser) parseAttributeDecl(offset int) int {
	offset = p.skipWhitespace(offset)
	offset, name := p.parseStringConstant(offset)
	offset = p.skipWhitespace(offset)
	offset = p.consume(offset, ";")
	p.reg.Attributes = append(p.reg.Attributes, name)
	return offset
}

func (p *Parser) parseStructDecl(offset int, fixed bool) int {
	offset = p.skipWhitespace(offset)
	offset, name := p.parseIdentifier(offset)

	var def *schema.StructDef
	var err error
	if fixed {
		def, err = p.reg.AddStruct(name)
	} else {
		def, err = p.reg.AddTable(name)
	}
	p.check(err)

	offset = p.skipWhitespace(offset)
	if p.peek(offset) == '(' {
		var attrs *schema.SymbolTable[*schema.Attribute]
		offset, attrs = p.parseMetadata(offset)
		def.Attributes = *attrs
		offset = p.skipWhitespace(offset)
	}
	offset = p.consume(offset, "{")
	// at least one field
	offset = p.parseFieldDecl(offset, def)
	for {
		offset = p.skipWhitespace(offset)
		if offset >= len(p.src) || p.src[offset] == '}' {
			break
		}
		offset = p.parseFieldDecl(offset, def)
	}
	offset = p.consume(offset, "}")
	p.log.Debug("parsed declaration", "kind", declKind(fixed), "name", name, "fields", def.Fields.Len())
	return offset
}

func declKind(fixed bool) string {
	if fixed {
		return "struct"
	}
	return "table"
}

func (p *Parser) parseFieldDecl(offset int, def *schema.StructDef) int {
	offset = p.skipWhitespace(offset)
	offset, name := p.parseIdentifier(offset)
	offset = p.skipWhitespace(offset)
	offset = p.consume(offset, ":")
	offset = p.skipWhitespace(offset)
	offset, typ := p.parseType(offset)
	offset = p.skipWhitespace(offset)

	var value string
	if p.peek(offset) == '=' {
		offset = p.skipWhitespace(offset + 1)
		offset, value, _ = p.parseConstant(offset)
		offset = p.skipWhitespace(offset)
	}
	var attrs *schema.SymbolTable[*schema.Attribute]
	if p.peek(offset) == '(' {
		offset, attrs = p.parseMetadata(offset)
		offset = p.skipWhitespace(offset)
	}
	offset = p.consume(offset, ";")

	_, err := def.AddField(name, typ, value, attrs)
	p.check(err)
	return offset
}

func (p *Parser) parseType(offset int) (int, schema.Type) {
	offset = p.skipWhitespace(offset)
	if p.peek(offset) != '[' {
		return p.parseTypeIdentifier(offset)
	}
	offset = p.skipWhitespace(offset + 1)
	offset, elem := p.parseTypeIdentifier(offset)
	offset = p.skipWhitespace(offset)
	offset = p.consume(offset, "]")
	return offset, schema.VectorOf(elem)
}

// parseTypeIdentifier resolves a type name against the builtin keywords,
// then enums and unions, then aggregates. An unknown name becomes a forward
// reference.
func (p *Parser) parseTypeIdentifier(offset int) (int, schema.Type) {
	offset, name := p.parseIdentifier(offset)
	if k, ok := schema.LookupBuiltin(name); ok {
		if k == schema.KindString {
			return offset, schema.StringType()
		}
		return offset, schema.ScalarType(k)
	}
	if e, ok := p.reg.LookupEnum(name); ok {
		if e.IsUnion {
			return offset, schema.UnionRef(e)
		}
		return offset, schema.EnumRef(e)
	}
	return offset, schema.StructRef(p.reg.LookupOrCreateStruct(name))
}

func (p *Parser) parseEnumDecl(offset int, union bool) int {
	offset = p.skipWhitespace(offset)
	offset, name := p.parseIdentifier(offset)
	offset = p.skipWhitespace(offset)

	underlying := schema.KindInt
	if union {
		underlying = schema.KindUType
	} else if p.peek(offset) == ':' {
		offset = p.skipWhitespace(offset + 1)
		start := offset
		var typeName string
		offset, typeName = p.parseIdentifier(offset)
		k, ok := schema.LookupBuiltin(typeName)
		if !ok || !k.IsInteger() {
			p.fail(start, "integral underlying type")
		}
		underlying = k
		offset = p.skipWhitespace(offset)
	}
	def, err := p.reg.AddEnum(name, underlying)
	p.check(err)

	if p.peek(offset) == '(' {
		var attrs *schema.SymbolTable[*schema.Attribute]
		offset, attrs = p.parseMetadata(offset)
		def.Attributes = *attrs
		offset = p.skipWhitespace(offset)
	}
	offset = p.consume(offset, "{")
	offset = p.parseEnumValDeclStar(offset, def)
	kind := "enum"
	if union {
		kind = "union"
	}
	p.log.Debug("parsed declaration", "kind", kind, "name", name, "values", def.Values.Len())
	return offset
}

// parseEnumValDeclStar parses the comma separated members and the closing
// brace. A trailing comma is accepted.
func (p *Parser) parseEnumValDeclStar(offset int, def *schema.EnumDef) int {
	expectComma := false
	for {
		offset = p.skipWhitespace(offset)
		if p.peek(offset) == '}' {
			return offset + 1
		}
		if offset >= len(p.src) {
			p.fail(offset, `"}"`)
		}
		if expectComma {
			offset = p.consume(offset, ",")
			offset = p.skipWhitespace(offset)
			if p.peek(offset) == '}' {
				return offset + 1
			}
		}
		expectComma = true
		offset = p.parseEnumValDecl(offset, def)
	}
}

func (p *Parser) parseEnumValDecl(offset int, def *schema.EnumDef) int {
	offset, name := p.parseIdentifier(offset)
	offset = p.skipWhitespace(offset)
	val := &schema.EnumVal{Name: name}
	if p.peek(offset) == '=' {
		offset = p.skipWhitespace(offset + 1)
		start := offset
		var text string
		var kind schema.Kind
		offset, text, kind = p.parseConstant(offset)
		n, err := strconv.ParseInt(text, 10, 64)
		if kind != schema.KindInt || err != nil {
			p.fail(start, "integer constant")
		}
		val.Value, val.Explicit = n, true
	}
	if def.IsUnion && name != "NONE" {
		val.Struct = p.reg.LookupOrCreateStruct(name)
	}
	p.check(def.Add(val))
	return offset
}

func (p *Parser) parseRootTypeDecl(offset int) int {
	offset = p.skipWhitespace(offset)
	offset, name := p.parseIdentifier(offset)
	offset = p.skipWhitespace(offset)
	offset = p.consume(offset, ";")
	p.reg.SetRoot(name)
	return offset
}

// parseMetadata parses `( key [: value] , ... )`.
func (p *Parser) parseMetadata(offset int) (int, *schema.SymbolTable[*schema.Attribute]) {
	var attrs schema.SymbolTable[*schema.Attribute]
	offset = p.consume(offset, "(")
	for {
		offset = p.skipWhitespace(offset)
		var key string
		offset, key = p.parseIdentifier(offset)
		offset = p.skipWhitespace(offset)
		attr := &schema.Attribute{Kind: schema.KindNone}
		if p.peek(offset) == ':' {
			offset = p.skipWhitespace(offset + 1)
			offset, attr.Value, attr.Kind = p.parseConstant(offset)
			offset = p.skipWhitespace(offset)
		}
		attrs.Add(key, attr)
		if p.peek(offset) != ',' {
			break
		}
		offset++
	}
	offset = p.consume(offset, ")")
	return offset, &attrs
}

// parseConstant parses a numeric, string or identifier constant. The kind
// is KindInt or KindDouble for numbers and KindString otherwise.
func (p *Parser) parseConstant(offset int) (int, string, schema.Kind) {
	offset = p.skipWhitespace(offset)
	switch c := p.peek(offset); {
	case c == '"':
		end, s := p.parseStringConstant(offset)
		return end, s, schema.KindString
	case isLetter(c):
		end, s := p.parseIdentifier(offset)
		return end, s, schema.KindString
	}

	start := offset
	if p.peek(offset) == '-' {
		offset++
	}
	kind := schema.KindInt
	digits := 0
	for offset < len(p.src) {
		c := p.src[offset]
		if c == '.' {
			kind = schema.KindDouble
		} else if isDigit(c) {
			digits++
		} else {
			break
		}
		offset++
	}
	if digits == 0 {
		p.fail(start, "constant")
	}
	return offset, p.src[start:offset], kind
}
