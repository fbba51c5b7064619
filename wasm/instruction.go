package wasm

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// Opcode is a single-byte instruction opcode.
type Opcode byte

// String returns the text format mnemonic of the opcode.
func (o Opcode) String() string {
	if name := opcodeNames[o]; name != "" {
		return name
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(o))
}

// Instruction represents a decoded WebAssembly instruction.
// Operand is nil for instructions without immediates.
type Instruction struct {
	Operand Operand
	Opcode  Opcode
}

func (i Instruction) String() string {
	if i.Operand == nil {
		return i.Opcode.String()
	}
	return fmt.Sprintf("%s %v", i.Opcode, i.Operand)
}

// Operand is the immediate payload of an instruction. The set of
// implementations is closed: MemArg, MemoryIndex, Const, Index, Branch,
// BranchTable, Call, CallIndirect and Block.
type Operand interface {
	operand()
}

// MemArg holds the alignment hint and static offset of a load or store.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// MemoryIndex holds the memory operand of memory.size and memory.grow.
type MemoryIndex struct {
	Index uint32
}

// Const holds the raw bits of a constant. Floats keep their exact bit
// pattern so NaN payloads survive decoding.
type Const struct {
	Bits uint64
	Kind ValueType
}

func I32Const(v int32) Const   { return Const{Kind: I32, Bits: uint64(uint32(v))} }
func I64Const(v int64) Const   { return Const{Kind: I64, Bits: uint64(v)} }
func F32Const(v float32) Const { return Const{Kind: F32, Bits: uint64(math.Float32bits(v))} }
func F64Const(v float64) Const { return Const{Kind: F64, Bits: math.Float64bits(v)} }

func (c Const) I32() int32   { return int32(uint32(c.Bits)) }
func (c Const) I64() int64   { return int64(c.Bits) }
func (c Const) F32() float32 { return math.Float32frombits(uint32(c.Bits)) }
func (c Const) F64() float64 { return math.Float64frombits(c.Bits) }

func (c Const) String() string {
	switch c.Kind {
	case I32:
		return fmt.Sprint(c.I32())
	case I64:
		return fmt.Sprint(c.I64())
	case F32:
		return fmt.Sprint(c.F32())
	case F64:
		return fmt.Sprint(c.F64())
	}
	return fmt.Sprintf("0x%x", c.Bits)
}

// IndexSpace names the index space an Index operand refers to.
type IndexSpace byte

const (
	LocalIndex IndexSpace = iota
	GlobalIndex
)

func (s IndexSpace) String() string {
	if s == GlobalIndex {
		return "global"
	}
	return "local"
}

// Index references a local or a global.
type Index struct {
	Space IndexSpace
	Value uint32
}

// Branch holds the relative label depth of br and br_if.
type Branch struct {
	Depth uint32
}

// BranchTable holds the label table of br_table.
type BranchTable struct {
	Depths  []uint32
	Default uint32
}

// Call holds the callee of a direct call.
type Call struct {
	FuncIndex uint32
}

// CallIndirect holds the signature and table of an indirect call.
type CallIndirect struct {
	TypeIndex  uint32
	TableIndex uint32
}

// BlockType is the signature of a structured instruction. The zero value
// is the empty block type.
type BlockType struct {
	Result    ValueType
	TypeIndex uint32
	Indexed   bool
}

// IsEmpty reports whether the block neither takes nor returns values.
func (b BlockType) IsEmpty() bool {
	return !b.Indexed && b.Result == 0
}

func (b BlockType) String() string {
	switch {
	case b.Indexed:
		return fmt.Sprintf("type[%d]", b.TypeIndex)
	case b.Result != 0:
		return b.Result.String()
	}
	return "empty"
}

// Block is the operand of block, loop and if. Body and Else exclude the
// terminating end and the else separator. HasElse distinguishes an if with
// an empty else arm from one with no else arm.
type Block struct {
	Body    []Instruction
	Else    []Instruction
	Type    BlockType
	HasElse bool
}

func (MemArg) operand()       {}
func (MemoryIndex) operand()  {}
func (Const) operand()        {}
func (Index) operand()        {}
func (Branch) operand()       {}
func (BranchTable) operand()  {}
func (Call) operand()         {}
func (CallIndirect) operand() {}
func (Block) operand()        {}

// DecodeInstructions decodes an expression terminated by its outermost
// end. The end itself is not part of the result. Bytes after it are an
// error.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code, 0)
	r.SetPhase(errors.PhaseInstruction)
	instrs, err := decodeExpr(r)
	if err != nil {
		return nil, err
	}
	if !r.EOF() {
		return nil, errors.TrailingBytes(errors.PhaseInstruction, r.Offset(), r.Len())
	}
	return instrs, nil
}

// decodeExpr decodes instructions up to the depth-0 end.
func decodeExpr(r *binary.Reader) ([]Instruction, error) {
	start := r.Offset()
	instrs, term, err := decodeSequence(r, 0, start)
	if err != nil {
		return nil, err
	}
	if term == OpElse {
		return nil, unexpectedElse(r.Offset() - 1)
	}
	return instrs, nil
}

// decodeSequence decodes instructions until an end or else at the given
// nesting depth and returns the terminator it stopped at. openedAt is the
// offset of the instruction that opened the sequence.
func decodeSequence(r *binary.Reader, depth int, openedAt int) ([]Instruction, Opcode, error) {
	var instrs []Instruction
	for {
		if r.EOF() {
			if depth == 0 {
				return nil, 0, errors.New(r.Phase(), errors.KindTruncatedInput).
					At(r.Offset()).
					Detail("expression has no terminating end").
					Build()
			}
			return nil, 0, errors.New(r.Phase(), errors.KindTruncatedInput).
				At(r.Offset()).
				Value(depth).
				Detail("unterminated block opened at offset %d (depth %d)", openedAt, depth).
				Build()
		}

		off := r.Offset()
		b, err := r.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		op := Opcode(b)

		switch op {
		case OpEnd, OpElse:
			return instrs, op, nil
		case OpBlock, OpLoop, OpIf:
			blk, err := decodeBlock(r, op, depth+1, off)
			if err != nil {
				return nil, 0, err
			}
			instrs = append(instrs, Instruction{Opcode: op, Operand: blk})
			continue
		}

		operand, err := decodeOperand(r, op, off)
		if err != nil {
			return nil, 0, err
		}
		instrs = append(instrs, Instruction{Opcode: op, Operand: operand})
	}
}

func decodeBlock(r *binary.Reader, op Opcode, depth int, openedAt int) (Block, error) {
	if depth > MaxBlockDepth {
		return Block{}, errors.New(r.Phase(), errors.KindNestingTooDeep).
			At(openedAt).
			Value(depth).
			Detail("%s nested deeper than %d", op, MaxBlockDepth).
			Build()
	}
	bt, err := readBlockType(r)
	if err != nil {
		return Block{}, err
	}
	body, term, err := decodeSequence(r, depth, openedAt)
	if err != nil {
		return Block{}, err
	}
	blk := Block{Type: bt, Body: body}
	if term != OpElse {
		return blk, nil
	}
	if op != OpIf {
		return Block{}, unexpectedElse(r.Offset() - 1)
	}

	blk.HasElse = true
	blk.Else, term, err = decodeSequence(r, depth, openedAt)
	if err != nil {
		return Block{}, err
	}
	if term == OpElse {
		return Block{}, unexpectedElse(r.Offset() - 1)
	}
	return blk, nil
}

// readBlockType reads 0x40, a value type, or a non-negative s33 type index.
func readBlockType(r *binary.Reader) (BlockType, error) {
	b, err := r.PeekByte()
	if err != nil {
		return BlockType{}, err
	}
	if b == BlockEmptyByte {
		_, _ = r.ReadByte()
		return BlockType{}, nil
	}
	if isValueType(b) {
		_, _ = r.ReadByte()
		return BlockType{Result: ValueType(b)}, nil
	}

	start := r.Offset()
	v, err := r.ReadS64()
	if err != nil {
		return BlockType{}, err
	}
	if r.Offset()-start > 5 {
		return BlockType{}, errors.MalformedVarint(r.Phase(), start, "s33 longer than 5 bytes")
	}
	if v < 0 || v > math.MaxUint32 {
		return BlockType{}, errors.New(r.Phase(), errors.KindInvalidBlockType).
			At(start).
			Value(v).
			Detail("invalid block type %d", v).
			Build()
	}
	return BlockType{Indexed: true, TypeIndex: uint32(v)}, nil
}

// decodeOperand reads the immediates of every non-structured opcode.
func decodeOperand(r *binary.Reader, op Opcode, off int) (Operand, error) {
	switch {
	case op == OpUnreachable, op == OpNop, op == OpReturn:
		return nil, nil

	case op == OpBr, op == OpBrIf:
		depth, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return Branch{Depth: depth}, nil

	case op == OpBrTable:
		depths, err := binary.ReadVec(r, "label", func(r *binary.Reader, _ int) (uint32, error) {
			return r.ReadU32()
		})
		if err != nil {
			return nil, err
		}
		def, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return BranchTable{Depths: depths, Default: def}, nil

	case op == OpCall:
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return Call{FuncIndex: idx}, nil

	case op == OpCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		tableIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return CallIndirect{TypeIndex: typeIdx, TableIndex: tableIdx}, nil

	case op == OpDrop, op == OpSelect:
		return nil, nil

	case op >= OpLocalGet && op <= OpLocalTee:
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return Index{Space: LocalIndex, Value: idx}, nil

	case op == OpGlobalGet, op == OpGlobalSet:
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return Index{Space: GlobalIndex, Value: idx}, nil

	case op >= OpI32Load && op <= OpI64Store32:
		return readMemArg(r)

	case op == OpMemorySize, op == OpMemoryGrow:
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return MemoryIndex{Index: idx}, nil

	case op == OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return nil, err
		}
		return I32Const(v), nil

	case op == OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return nil, err
		}
		return I64Const(v), nil

	case op == OpF32Const:
		bits, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		return Const{Kind: F32, Bits: uint64(bits)}, nil

	case op == OpF64Const:
		bits, err := r.ReadU64LE()
		if err != nil {
			return nil, err
		}
		return Const{Kind: F64, Bits: bits}, nil

	case op >= OpI32Eqz && op <= OpF64ReinterpretI64:
		return nil, nil
	}

	return nil, errors.UnknownOpcode(off, byte(op))
}

func readMemArg(r *binary.Reader) (MemArg, error) {
	align, err := r.ReadU32()
	if err != nil {
		return MemArg{}, err
	}
	offset, err := r.ReadU32()
	if err != nil {
		return MemArg{}, err
	}
	return MemArg{Align: align, Offset: offset}, nil
}

func unexpectedElse(off int) error {
	return errors.New(errors.PhaseInstruction, errors.KindUnexpectedElse).
		At(off).
		Detail("else outside of if").
		Build()
}
