package codec

import "golang.org/x/xerrors"

var (
	// ErrNotCompiled is returned when a reader or writer is bound to a
	// registry that has not been compiled successfully.
	ErrNotCompiled = xerrors.New("registry is not compiled")

	// ErrWriterState is returned when a Writer call does not fit the
	// current build step, e.g. adding a field outside a table.
	ErrWriterState = xerrors.New("writer call out of sequence")

	// ErrUnknownType is returned for a type name the registry does not
	// define, or that names the wrong kind of definition.
	ErrUnknownType = xerrors.New("unknown type")

	// ErrUnknownField is returned by the Writer for a field name the current
	// definition does not have.
	ErrUnknownField = xerrors.New("unknown field")

	// ErrValue is returned when a value cannot be stored in a field.
	ErrValue = xerrors.New("invalid value")

	// ErrShortBuffer is returned for a buffer too small to hold a root
	// offset.
	ErrShortBuffer = xerrors.New("buffer too short")

	// ErrCorrupt is returned when an offset, vtable or length read from the
	// buffer points outside of it.
	ErrCorrupt = xerrors.New("buffer is corrupt")
)
