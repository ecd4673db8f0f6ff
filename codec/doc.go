/*
Package codec reads and writes FlatBuffers buffers through a compiled
schema.Registry instead of generated code.

A Writer drives a flatbuffers.Builder bottom-up:

	w := codec.NewWriter(reg, nil)
	name, _ := w.CreateString("Fred")
	w.StartTable("Monster")
	w.AddStruct("pos", 1.0, 2.0, 3.0)
	w.AddScalar("hp", 300)
	w.AddString("name", name)
	root, _ := w.EndTable()
	w.Finish(root)
	buf := w.FinishedBytes()

A Reader decodes the result field by field:

	r, _ := codec.NewRootReader(reg, "Monster", buf)
	hp, _, _ := r.Get("hp")     // int16(300)
	pos, _, _ := r.Get("pos")   // *codec.Reader over the Vec3 struct

Absent scalar fields read as their declared default; absent strings, structs
and tables read as nil. Offsets in a malformed buffer that lead outside
of it are reported as ErrCorrupt rather than panicking. Readers implement yaml.InterfaceMarshaler from
github.com/goccy/go-yaml, which gives a readable dump of a whole buffer.
*/
package codec
