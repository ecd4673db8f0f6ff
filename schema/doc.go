// Package schema holds the runtime type model of a FlatBuffers schema.
//
// A Registry collects struct, table, enum and union definitions, either
// from the parser package or built by hand, and Compile turns them into a
// validated graph annotated with the information needed to address a
// buffer: byte offsets and sizes of fixed structs, vtable slots of table
// fields, enum values and union variants.
//
// 简单来说：struct 的字段内联存储，offset 为字段在 struct 内的字节偏移；
// table 的字段通过 vtable 间接访问，offset 为字段在 vtable 中的 slot 偏移 (index+2)*2 。
//
// A compiled Registry is immutable and safe for concurrent use.
package schema
