package schema

import (
	"fmt"

	"golang.org/x/xerrors"
)

// SyntaxError reports malformed schema text. Offset is the raw character
// offset at which the expected production was not found.
type SyntaxError struct {
	Offset   int
	Expected string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: expected %s", e.Offset, e.Expected)
}

// SemanticError reports a well formed schema that violates a layout or
// naming rule. Def names the offending definition when known.
type SemanticError struct {
	Def string
	Msg string
}

func (e *SemanticError) Error() string {
	if e.Def == "" {
		return e.Msg
	}
	return e.Def + ": " + e.Msg
}

// UnsupportedTypeError is returned when a reader, writer or layout step
// meets a type it does not implement.
type UnsupportedTypeError struct {
	Type Type
}

func (e *UnsupportedTypeError) Error() string {
	return "unsupported type " + e.Type.String()
}

func semanticErrorf(def, format string, args ...interface{}) error {
	return xerrors.Errorf("fbreflect/schema: %w", &SemanticError{Def: def, Msg: fmt.Sprintf(format, args...)})
}
