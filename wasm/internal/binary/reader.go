package binary

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/wippyai/wasm-decoder/errors"
)

// Maximum encoded widths of LEB128 integers.
const (
	maxVarint32Bytes = 5
	maxVarint64Bytes = 10
)

// Reader is a cursor over an immutable byte slice. Offsets reported in
// errors are absolute: the position of the slice within the module buffer
// is supplied at construction.
type Reader struct {
	data  []byte
	phase errors.Phase
	pos   int
	base  int
}

// NewReader creates a Reader over data, which starts at absolute offset base.
func NewReader(data []byte, base int) *Reader {
	return &Reader{data: data, base: base, phase: errors.PhaseSection}
}

// SetPhase sets the phase attached to errors produced by this reader.
func (r *Reader) SetPhase(p errors.Phase) {
	r.phase = p
}

// Phase returns the phase attached to errors produced by this reader.
func (r *Reader) Phase() errors.Phase {
	return r.phase
}

// Position returns the current position relative to the start of the slice.
func (r *Reader) Position() int {
	return r.pos
}

// Offset returns the current absolute offset.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// EOF reports whether every byte has been consumed.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.data)
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errors.Truncated(r.phase, r.Offset(), 1, 0)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errors.Truncated(r.phase, r.Offset(), 1, 0)
	}
	return r.data[r.pos], nil
}

// ReadBytes returns the next n bytes. The result aliases the underlying
// buffer and must be copied if it outlives the decode call.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, errors.Truncated(r.phase, r.Offset(), n, r.Len())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Sub consumes the next n bytes and returns a Reader over exactly them,
// carrying the same phase and absolute offsets.
func (r *Reader) Sub(n int) (*Reader, error) {
	start := r.Offset()
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return &Reader{data: b, base: start, phase: r.phase}, nil
}

// ReadU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	start := r.Offset()
	var result uint32
	for i := 0; ; i++ {
		if r.pos >= len(r.data) {
			return 0, r.varintError(start, "unterminated u32")
		}
		b := r.data[r.pos]
		r.pos++
		if i == maxVarint32Bytes-1 {
			if b&0x80 != 0 {
				return 0, r.varintError(start, "u32 longer than 5 bytes")
			}
			if b&0x70 != 0 {
				return 0, r.varintError(start, "u32 integer too large")
			}
		}
		result |= uint32(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

// ReadU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	start := r.Offset()
	var result uint64
	for i := 0; ; i++ {
		if r.pos >= len(r.data) {
			return 0, r.varintError(start, "unterminated u64")
		}
		b := r.data[r.pos]
		r.pos++
		if i == maxVarint64Bytes-1 {
			if b&0x80 != 0 {
				return 0, r.varintError(start, "u64 longer than 10 bytes")
			}
			if b&0x7e != 0 {
				return 0, r.varintError(start, "u64 integer too large")
			}
		}
		result |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

// ReadS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	start := r.Offset()
	var result int32
	var shift uint
	for i := 0; ; i++ {
		if r.pos >= len(r.data) {
			return 0, r.varintError(start, "unterminated s32")
		}
		b := r.data[r.pos]
		r.pos++
		if i == maxVarint32Bytes-1 {
			if b&0x80 != 0 {
				return 0, r.varintError(start, "s32 longer than 5 bytes")
			}
			// bits 32..34 must repeat the sign bit 31
			if s := b & 0x78; s != 0 && s != 0x78 {
				return 0, r.varintError(start, "s32 integer too large")
			}
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			// Sign extend
			if shift < 32 && b&0x40 != 0 {
				result |= ^int32(0) << shift
			}
			return result, nil
		}
	}
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	start := r.Offset()
	var result int64
	var shift uint
	for i := 0; ; i++ {
		if r.pos >= len(r.data) {
			return 0, r.varintError(start, "unterminated s64")
		}
		b := r.data[r.pos]
		r.pos++
		if i == maxVarint64Bytes-1 {
			if b&0x80 != 0 {
				return 0, r.varintError(start, "s64 longer than 10 bytes")
			}
			if s := b & 0x7f; s != 0 && s != 0x7f {
				return 0, r.varintError(start, "s64 integer too large")
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			// Sign extend
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			return result, nil
		}
	}
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64LE reads a little-endian uint64 (fixed 8 bytes).
func (r *Reader) ReadU64LE() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadName reads a length-prefixed UTF-8 name.
func (r *Reader) ReadName() (string, error) {
	start := r.Offset()
	length, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.New(r.phase, errors.KindInvalidUTF8).
			At(start).
			Detail("invalid UTF-8 in name").
			Build()
	}
	return string(data), nil
}

// ReadVec reads a u32 element count followed by that many elements decoded
// by elem. Element failures are annotated with name[index].
func ReadVec[T any](r *Reader, name string, elem func(r *Reader, i int) (T, error)) ([]T, error) {
	countOffset := r.Offset()
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	// every element occupies at least one byte
	if uint64(n) > uint64(r.Len()) {
		return nil, errors.New(r.phase, errors.KindTruncatedInput).
			At(countOffset).
			Value(n).
			Detail("%s count %d exceeds %d remaining bytes", name, n, r.Len()).
			Build()
	}
	out := make([]T, 0, n)
	for i := 0; i < int(n); i++ {
		v, err := elem(r, i)
		if err != nil {
			return nil, errors.Within(err, fmt.Sprintf("%s[%d]", name, i))
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Reader) varintError(start int, detail string) error {
	return errors.MalformedVarint(r.phase, start, detail)
}
