package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/wasm-decoder/wasm"
)

func writeSummary(w io.Writer, name string, m *wasm.Module) {
	fmt.Fprintf(w, "Module: %s\n", name)
	fmt.Fprintf(w, "Version: %d\n", m.Version)
	fmt.Fprintf(w, "Sections: %s\n", strings.Join(presentSections(m), ", "))

	if m.Sections.Type != nil {
		fmt.Fprintf(w, "\nTypes: %d\n", len(m.Sections.Type.FunctionTypes))
		for i, ft := range m.Sections.Type.FunctionTypes {
			fmt.Fprintf(w, "  type[%d] %s\n", i, ft)
		}
	}

	fns := functions(m)
	if len(fns) == 0 {
		return
	}
	fmt.Fprintf(w, "\nFunctions: %d\n", len(fns))
	for i, fn := range fns {
		fmt.Fprintf(w, "  func[%d] %s locals=%d instructions=%d\n",
			i, signature(m, i), fn.NumLocals(), countInstructions(fn.Code))
	}
}

func presentSections(m *wasm.Module) []string {
	s := m.Sections
	var names []string
	add := func(present bool, name string) {
		if present {
			names = append(names, name)
		}
	}
	add(s.Type != nil, "type")
	add(s.Import != nil, "import")
	add(s.Function != nil, "function")
	add(s.Memory != nil, "memory")
	add(s.Export != nil, "export")
	add(s.Code != nil, "code")
	add(s.Data != nil, "data")
	if s.Custom != nil {
		if s.Custom.Name != "" {
			names = append(names, fmt.Sprintf("custom(%q)", s.Custom.Name))
		} else {
			names = append(names, "custom")
		}
	}
	if len(names) == 0 {
		return []string{"none"}
	}
	return names
}

func functions(m *wasm.Module) []wasm.Function {
	if m.Sections.Code == nil {
		return nil
	}
	return m.Sections.Code.Functions
}

// signature resolves the type of function i through the function and
// type sections. Indices are unvalidated, so either lookup may miss.
func signature(m *wasm.Module, i int) string {
	s := m.Sections
	if s.Function == nil || i >= len(s.Function.TypeIndices) {
		return "?"
	}
	idx := s.Function.TypeIndices[i]
	if s.Type == nil || int(idx) >= len(s.Type.FunctionTypes) {
		return fmt.Sprintf("type[%d]?", idx)
	}
	return s.Type.FunctionTypes[idx].String()
}

// countInstructions counts instructions including nested block bodies.
func countInstructions(code []wasm.Instruction) int {
	n := 0
	for _, in := range code {
		n++
		if blk, ok := in.Operand.(wasm.Block); ok {
			n += countInstructions(blk.Body) + countInstructions(blk.Else)
		}
	}
	return n
}

// disassemble renders code in the text format's flat instruction syntax.
func disassemble(code []wasm.Instruction) []string {
	var lines []string
	writeCode(&lines, code, 0)
	return lines
}

func writeCode(lines *[]string, code []wasm.Instruction, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, in := range code {
		blk, ok := in.Operand.(wasm.Block)
		if !ok {
			*lines = append(*lines, indent+formatInstruction(in))
			continue
		}

		head := indent + in.Opcode.String()
		switch {
		case blk.Type.Indexed:
			head += fmt.Sprintf(" (type %d)", blk.Type.TypeIndex)
		case !blk.Type.IsEmpty():
			head += " (result " + blk.Type.Result.String() + ")"
		}
		*lines = append(*lines, head)
		writeCode(lines, blk.Body, depth+1)
		if blk.HasElse {
			*lines = append(*lines, indent+"else")
			writeCode(lines, blk.Else, depth+1)
		}
		*lines = append(*lines, indent+"end")
	}
}

func formatInstruction(in wasm.Instruction) string {
	name := in.Opcode.String()
	switch op := in.Operand.(type) {
	case nil:
		return name
	case wasm.MemArg:
		if op.Align >= 64 {
			return fmt.Sprintf("%s offset=%d align=2**%d", name, op.Offset, op.Align)
		}
		return fmt.Sprintf("%s offset=%d align=%d", name, op.Offset, uint64(1)<<op.Align)
	case wasm.MemoryIndex:
		if op.Index == 0 {
			return name
		}
		return fmt.Sprintf("%s %d", name, op.Index)
	case wasm.Const:
		return fmt.Sprintf("%s %s", name, op)
	case wasm.Index:
		return fmt.Sprintf("%s %d", name, op.Value)
	case wasm.Branch:
		return fmt.Sprintf("%s %d", name, op.Depth)
	case wasm.BranchTable:
		parts := make([]string, 0, len(op.Depths)+1)
		for _, d := range op.Depths {
			parts = append(parts, fmt.Sprint(d))
		}
		parts = append(parts, fmt.Sprint(op.Default))
		return name + " " + strings.Join(parts, " ")
	case wasm.Call:
		return fmt.Sprintf("%s %d", name, op.FuncIndex)
	case wasm.CallIndirect:
		return fmt.Sprintf("%s %d (type %d)", name, op.TableIndex, op.TypeIndex)
	}
	return fmt.Sprintf("%s %v", name, in.Operand)
}
