package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// Module represents a decoded WebAssembly module
type Module struct {
	Sections Sections
	Version  uint32
}

// Sections holds one slot per section kind. A nil slot means the section
// was absent. When a kind appears more than once, the last occurrence wins
// unless Options.RejectDuplicateSections is set.
type Sections struct {
	Type     *TypeSection
	Function *FunctionSection
	Code     *CodeSection

	// Sections kept as opaque bodies.
	Custom *OpaqueSection
	Import *OpaqueSection
	Memory *OpaqueSection
	Export *OpaqueSection
	Data   *OpaqueSection
}

// SectionKind classifies a framed section.
type SectionKind byte

// Section kinds recognized by the decoder. Values equal the section IDs.
const (
	SectionCustom   = SectionKind(SectionIDCustom)
	SectionType     = SectionKind(SectionIDType)
	SectionImport   = SectionKind(SectionIDImport)
	SectionFunction = SectionKind(SectionIDFunction)
	SectionMemory   = SectionKind(SectionIDMemory)
	SectionExport   = SectionKind(SectionIDExport)
	SectionCode     = SectionKind(SectionIDCode)
	SectionData     = SectionKind(SectionIDData)
)

func (k SectionKind) String() string {
	return sectionName(byte(k))
}

func sectionName(id byte) string {
	if int(id) < len(sectionIDNames) {
		return sectionIDNames[id]
	}
	return fmt.Sprintf("unknown(0x%02x)", id)
}

// classifySection maps a section ID to its kind. Sections the format
// defines but this decoder does not model are classified as custom;
// defined is false for IDs outside the format.
func classifySection(id byte) (kind SectionKind, defined bool) {
	switch id {
	case SectionIDType, SectionIDImport, SectionIDFunction, SectionIDMemory,
		SectionIDExport, SectionIDCode, SectionIDData, SectionIDCustom:
		return SectionKind(id), true
	}
	return SectionCustom, id <= SectionIDTag
}

// Section is one framed section record. Body aliases the input buffer
// and always has exactly DeclaredSize bytes.
type Section struct {
	Body         []byte
	Offset       int // absolute offset of the section ID byte
	HeaderLength int // bytes used by the ID and the size field
	DeclaredSize uint32
	Kind         SectionKind
	ID           byte
}

// BodyOffset returns the absolute offset of the first body byte.
func (s Section) BodyOffset() int {
	return s.Offset + s.HeaderLength
}

// OpaqueSection retains a section body the decoder does not interpret.
type OpaqueSection struct {
	// Name is set for well-formed custom sections (ID 0).
	Name   string
	Body   []byte
	Offset int
	ID     byte
}

// ValueType represents a WebAssembly value type.
type ValueType byte

func (v ValueType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("valtype(0x%02x)", byte(v))
}

func isValueType(b byte) bool {
	switch ValueType(b) {
	case I32, I64, F32, F64:
		return true
	}
	return false
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (f FuncType) String() string {
	return fmt.Sprintf("%v -> %v", f.Params, f.Results)
}

// TypeSection lists function signatures in declaration order.
type TypeSection struct {
	FunctionTypes []FuncType
}

// FunctionSection lists the type index of every function body, in the
// same order as CodeSection.Functions. Indices are not range checked.
type FunctionSection struct {
	TypeIndices []uint32
}

// FunctionLocal declares Count locals of one type.
type FunctionLocal struct {
	Count     uint32
	ValueType ValueType
}

// Function is a decoded function body.
type Function struct {
	Locals []FunctionLocal
	Code   []Instruction
}

// NumLocals returns the total number of declared locals.
func (f Function) NumLocals() uint64 {
	var n uint64
	for _, l := range f.Locals {
		n += uint64(l.Count)
	}
	return n
}

// CodeSection lists function bodies.
type CodeSection struct {
	Functions []Function
}

func readValueType(r *binary.Reader, _ int) (ValueType, error) {
	off := r.Offset()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if !isValueType(b) {
		return 0, errors.InvalidValueType(r.Phase(), off, b)
	}
	return ValueType(b), nil
}

func readFuncType(r *binary.Reader, _ int) (FuncType, error) {
	off := r.Offset()
	tag, err := r.ReadByte()
	if err != nil {
		return FuncType{}, err
	}
	if tag != FuncTypeByte {
		return FuncType{}, errors.InvalidFuncTypeTag(off, tag)
	}
	params, err := binary.ReadVec(r, "param", readValueType)
	if err != nil {
		return FuncType{}, err
	}
	results, err := binary.ReadVec(r, "result", readValueType)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readTypeSection(r *binary.Reader) (*TypeSection, error) {
	r.SetPhase(errors.PhaseType)
	types, err := binary.ReadVec(r, "type", readFuncType)
	if err != nil {
		return nil, err
	}
	return &TypeSection{FunctionTypes: types}, nil
}

func readFunctionSection(r *binary.Reader) (*FunctionSection, error) {
	r.SetPhase(errors.PhaseFunction)
	indices, err := binary.ReadVec(r, "func", func(r *binary.Reader, _ int) (uint32, error) {
		return r.ReadU32()
	})
	if err != nil {
		return nil, err
	}
	return &FunctionSection{TypeIndices: indices}, nil
}
