// Package wasmtest assembles WebAssembly binaries for tests.
package wasmtest

import (
	"bytes"
	"encoding/binary"
)

// Writer accumulates encoded WebAssembly values.
type Writer struct {
	buf bytes.Buffer
}

// New creates an empty Writer.
func New() *Writer {
	return &Writer{}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes raw bytes.
func (w *Writer) Byte(b ...byte) *Writer {
	w.buf.Write(b)
	return w
}

// U32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) U32(v uint32) *Writer {
	return w.U64(uint64(v))
}

// U64 writes an unsigned LEB128 encoded uint64.
func (w *Writer) U64(v uint64) *Writer {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return w
		}
	}
}

// S32 writes a signed LEB128 encoded int32.
func (w *Writer) S32(v int32) *Writer {
	return w.S64(int64(v))
}

// S64 writes a signed LEB128 encoded int64.
func (w *Writer) S64(v int64) *Writer {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.buf.WriteByte(b)
			return w
		}
		w.buf.WriteByte(b | 0x80)
	}
}

// Name writes a length-prefixed string.
func (w *Writer) Name(s string) *Writer {
	w.U32(uint32(len(s)))
	w.buf.WriteString(s)
	return w
}

// U32LE writes a little-endian uint32.
func (w *Writer) U32LE(v uint32) *Writer {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
	return w
}

// U64LE writes a little-endian uint64.
func (w *Writer) U64LE(v uint64) *Writer {
	w.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
	return w
}

// Vec writes a count followed by the concatenated items.
func (w *Writer) Vec(items ...[]byte) *Writer {
	w.U32(uint32(len(items)))
	for _, it := range items {
		w.buf.Write(it)
	}
	return w
}

// Sized writes the length of body followed by body.
func (w *Writer) Sized(body []byte) *Writer {
	w.U32(uint32(len(body)))
	w.buf.Write(body)
	return w
}

// U32 returns the LEB128 encoding of v.
func U32(v uint32) []byte { return New().U32(v).Bytes() }

// S32 returns the signed LEB128 encoding of v.
func S32(v int32) []byte { return New().S32(v).Bytes() }

// S64 returns the signed LEB128 encoding of v.
func S64(v int64) []byte { return New().S64(v).Bytes() }

// Header returns the preamble for the given version.
func Header(version uint32) []byte {
	return New().Byte(0x00, 0x61, 0x73, 0x6d).U32LE(version).Bytes()
}

// Module returns a version 1 module containing the given sections.
func Module(sections ...[]byte) []byte {
	w := New().Byte(Header(1)...)
	for _, s := range sections {
		w.Byte(s...)
	}
	return w.Bytes()
}

// Section frames body as a section with the given ID.
func Section(id byte, body []byte) []byte {
	return New().Byte(id).Sized(body).Bytes()
}

// CustomSection returns a named custom section.
func CustomSection(name string, payload []byte) []byte {
	return Section(0, New().Name(name).Byte(payload...).Bytes())
}

// FuncType encodes a function type from raw value type bytes.
func FuncType(params, results []byte) []byte {
	return New().Byte(0x60).U32(uint32(len(params))).Byte(params...).
		U32(uint32(len(results))).Byte(results...).Bytes()
}

// TypeSection returns a type section holding the given function types.
func TypeSection(types ...[]byte) []byte {
	return Section(1, New().Vec(types...).Bytes())
}

// FunctionSection returns a function section with the given type indices.
func FunctionSection(indices ...uint32) []byte {
	w := New().U32(uint32(len(indices)))
	for _, idx := range indices {
		w.U32(idx)
	}
	return Section(3, w.Bytes())
}

// Local encodes one compressed local declaration.
func Local(count uint32, valueType byte) []byte {
	return New().U32(count).Byte(valueType).Bytes()
}

// Body returns a size-prefixed function body. code must include the
// terminating end.
func Body(locals [][]byte, code ...byte) []byte {
	inner := New().Vec(locals...).Byte(code...).Bytes()
	return New().Sized(inner).Bytes()
}

// CodeSection returns a code section holding the given bodies.
func CodeSection(bodies ...[]byte) []byte {
	return Section(10, New().Vec(bodies...).Bytes())
}
