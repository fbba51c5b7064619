package wasm

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// DecodeFunction decodes one size-prefixed function body starting at
// data[offset] with default options. It returns the function and the
// number of bytes consumed, which is always the size prefix plus the
// declared body size.
func DecodeFunction(data []byte, offset int) (Function, int, error) {
	return defaultDecoder.DecodeFunction(data, offset)
}

// DecodeFunction decodes one size-prefixed function body starting at data[offset].
func (d *Decoder) DecodeFunction(data []byte, offset int) (Function, int, error) {
	if offset < 0 || offset > len(data) {
		return Function{}, 0, errors.Truncated(errors.PhaseCode, offset, 1, 0)
	}
	r := binary.NewReader(data[offset:], offset)
	r.SetPhase(errors.PhaseCode)
	fn, err := d.readFunction(r, 0)
	if err != nil {
		return Function{}, 0, err
	}
	return fn, r.Position(), nil
}

func (d *Decoder) readCodeSection(r *binary.Reader) (*CodeSection, error) {
	r.SetPhase(errors.PhaseCode)
	fns, err := binary.ReadVec(r, "func", d.readFunction)
	if err != nil {
		return nil, err
	}
	return &CodeSection{Functions: fns}, nil
}

func (d *Decoder) readFunction(r *binary.Reader, index int) (Function, error) {
	start := r.Offset()
	size, err := r.ReadU32()
	if err != nil {
		return Function{}, err
	}
	body, err := r.Sub(int(size))
	if err != nil {
		return Function{}, errors.New(errors.PhaseCode, errors.KindTruncatedInput).
			At(start).
			Value(size).
			Detail("function body truncated: declares %d bytes, %d available", size, r.Len()).
			Build()
	}

	locals, err := readLocals(body)
	if err != nil {
		return Function{}, err
	}

	body.SetPhase(errors.PhaseInstruction)
	code, err := decodeExpr(body)
	if err != nil {
		return Function{}, err
	}

	if !body.EOF() {
		if err := d.leftover(errors.PhaseCode, body.Offset(), body.Len(),
			"trailing bytes after function body", zap.Int("function", index)); err != nil {
			return Function{}, err
		}
	}
	return Function{Locals: locals, Code: code}, nil
}

// readLocals reads the compressed local declarations. The expanded count
// must fit in a u32.
func readLocals(r *binary.Reader) ([]FunctionLocal, error) {
	var total uint64
	return binary.ReadVec(r, "local", func(r *binary.Reader, _ int) (FunctionLocal, error) {
		off := r.Offset()
		count, err := r.ReadU32()
		if err != nil {
			return FunctionLocal{}, err
		}
		total += uint64(count)
		if total > math.MaxUint32 {
			return FunctionLocal{}, errors.New(errors.PhaseCode, errors.KindTooManyLocals).
				At(off).
				Value(total).
				Detail("%d locals exceed the u32 limit", total).
				Build()
		}
		vt, err := readValueType(r, 0)
		if err != nil {
			return FunctionLocal{}, err
		}
		return FunctionLocal{Count: count, ValueType: vt}, nil
	})
}
