package wasm_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm"
	wt "github.com/wippyai/wasm-decoder/wasm/internal/wasmtest"
)

var i32 = byte(wasm.I32)

// requireValidModule compiles bin with wazero so fixtures are known to be
// well-formed before the decoder output is checked.
func requireValidModule(t *testing.T, bin []byte) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, bin)
	require.NoError(t, err, "wazero rejected fixture")
	require.NoError(t, compiled.Close(ctx))
}

// sampleModule has three functions exercising locals, nesting and memory.
func sampleModule() []byte {
	return wt.Module(
		wt.TypeSection(
			wt.FuncType([]byte{i32, i32}, []byte{i32}),
			wt.FuncType(nil, nil),
			wt.FuncType([]byte{i32}, []byte{i32}),
		),
		wt.FunctionSection(0, 1, 2),
		wt.Section(wasm.SectionIDMemory, []byte{0x01, 0x00, 0x01}),
		wt.Section(wasm.SectionIDExport, wt.New().U32(1).Name("add").Byte(0x00, 0x00).Bytes()),
		wt.CodeSection(
			wt.Body(nil, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b),
			wt.Body([][]byte{wt.Local(2, byte(wasm.I64))}, 0x02, 0x40, 0x03, 0x40, 0x0b, 0x0b, 0x0b),
			wt.Body(nil, 0x20, 0x00, 0x28, 0x02, 0x04, 0x0b),
		),
		wt.CustomSection("meta", []byte{0x01, 0x02}),
	)
}

func TestDecode_EmptyModule(t *testing.T) {
	bin := wt.Module()
	requireValidModule(t, bin)

	m, err := wasm.Decode(bin)
	require.NoError(t, err)
	assert.Equal(t, &wasm.Module{Version: 1}, m)
}

func TestDecode_SingleEmptyFunction(t *testing.T) {
	bin := wt.Module(
		wt.TypeSection(wt.FuncType(nil, nil)),
		wt.FunctionSection(0),
		wt.CodeSection(wt.Body(nil, 0x0b)),
	)
	requireValidModule(t, bin)

	m, err := wasm.Decode(bin)
	require.NoError(t, err)

	require.NotNil(t, m.Sections.Type)
	require.Len(t, m.Sections.Type.FunctionTypes, 1)
	assert.Empty(t, m.Sections.Type.FunctionTypes[0].Params)
	assert.Empty(t, m.Sections.Type.FunctionTypes[0].Results)

	require.NotNil(t, m.Sections.Function)
	assert.Equal(t, []uint32{0}, m.Sections.Function.TypeIndices)

	require.NotNil(t, m.Sections.Code)
	require.Len(t, m.Sections.Code.Functions, 1)
	assert.Empty(t, m.Sections.Code.Functions[0].Locals)
	assert.Empty(t, m.Sections.Code.Functions[0].Code)
}

func TestDecode_SampleModule(t *testing.T) {
	bin := sampleModule()
	requireValidModule(t, bin)

	m, err := wasm.Decode(bin)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), m.Version)

	types := m.Sections.Type.FunctionTypes
	require.Len(t, types, 3)
	assert.Equal(t, []wasm.ValueType{wasm.I32, wasm.I32}, types[0].Params)
	assert.Equal(t, []wasm.ValueType{wasm.I32}, types[0].Results)
	assert.Empty(t, types[1].Params)
	assert.Equal(t, "[i32] -> [i32]", types[2].String())

	assert.Equal(t, []uint32{0, 1, 2}, m.Sections.Function.TypeIndices)

	fns := m.Sections.Code.Functions
	require.Len(t, fns, 3)
	assert.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Operand: wasm.Index{Space: wasm.LocalIndex, Value: 0}},
		{Opcode: wasm.OpLocalGet, Operand: wasm.Index{Space: wasm.LocalIndex, Value: 1}},
		{Opcode: wasm.OpI32Add},
	}, fns[0].Code)

	assert.Equal(t, []wasm.FunctionLocal{{Count: 2, ValueType: wasm.I64}}, fns[1].Locals)
	assert.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpBlock, Operand: wasm.Block{
			Body: []wasm.Instruction{{Opcode: wasm.OpLoop, Operand: wasm.Block{}}},
		}},
	}, fns[1].Code)

	assert.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Operand: wasm.Index{Space: wasm.LocalIndex, Value: 0}},
		{Opcode: wasm.OpI32Load, Operand: wasm.MemArg{Align: 2, Offset: 4}},
	}, fns[2].Code)

	require.NotNil(t, m.Sections.Memory)
	assert.Equal(t, wasm.SectionIDMemory, m.Sections.Memory.ID)
	assert.Equal(t, []byte{0x01, 0x00, 0x01}, m.Sections.Memory.Body)

	require.NotNil(t, m.Sections.Export)
	assert.Equal(t, byte('a'), m.Sections.Export.Body[2])

	require.NotNil(t, m.Sections.Custom)
	assert.Equal(t, "meta", m.Sections.Custom.Name)
	assert.Equal(t, []byte{0x04, 'm', 'e', 't', 'a', 0x01, 0x02}, m.Sections.Custom.Body)

	assert.Nil(t, m.Sections.Import)
	assert.Nil(t, m.Sections.Data)
}

func TestDecode_MemorySizeAndGrow(t *testing.T) {
	bin := wt.Module(
		wt.TypeSection(wt.FuncType([]byte{i32}, []byte{i32})),
		wt.FunctionSection(0),
		wt.Section(wasm.SectionIDMemory, []byte{0x01, 0x00, 0x01}),
		wt.CodeSection(wt.Body(nil,
			0x20, 0x00,       // local.get 0
			0x40, 0x00,       // memory.grow 0
			0x3f, 0x00,       // memory.size 0
			0x6a,             // i32.add
			0x28, 0x02, 0x04, // i32.load align=2 offset=4
			0x0b,
		)),
	)
	requireValidModule(t, bin)

	m, err := wasm.Decode(bin)
	require.NoError(t, err)
	require.NotNil(t, m.Sections.Code)
	require.Len(t, m.Sections.Code.Functions, 1)
	assert.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Operand: wasm.Index{Space: wasm.LocalIndex}},
		{Opcode: wasm.OpMemoryGrow, Operand: wasm.MemoryIndex{}},
		{Opcode: wasm.OpMemorySize, Operand: wasm.MemoryIndex{}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpI32Load, Operand: wasm.MemArg{Align: 2, Offset: 4}},
	}, m.Sections.Code.Functions[0].Code)
}

func TestDecode_Idempotent(t *testing.T) {
	bin := sampleModule()

	first, err := wasm.Decode(bin)
	require.NoError(t, err)
	second, err := wasm.Decode(bin)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecode_ConcurrentUse(t *testing.T) {
	bin := sampleModule()
	want, err := wasm.Decode(bin)
	require.NoError(t, err)

	d := wasm.NewDecoder(wasm.Options{Strict: true})
	var wg sync.WaitGroup
	results := make([]*wasm.Module, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = d.Decode(bin)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestDecode_OpaqueBodiesAreCopied(t *testing.T) {
	bin := wt.Module(wt.Section(wasm.SectionIDData, []byte{0x00}))
	m, err := wasm.Decode(bin)
	require.NoError(t, err)

	bin[len(bin)-1] = 0xff
	assert.Equal(t, []byte{0x00}, m.Sections.Data.Body)
	assert.Equal(t, wasm.HeaderSize, m.Sections.Data.Offset)
}

func TestDecode_Header(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind errors.Kind
	}{
		{"empty input", nil, errors.KindTruncatedHeader},
		{"partial magic", []byte{0x00, 0x61, 0x73}, errors.KindTruncatedHeader},
		{"missing version byte", []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00}, errors.KindTruncatedHeader},
		{"short garbage", []byte{0xde, 0xad}, errors.KindTruncatedHeader},
		{"bad magic", []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}, errors.KindBadMagic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := wasm.Decode(tt.data)
			assert.Nil(t, m)
			e := requireKind(t, err, tt.kind)
			assert.Equal(t, errors.PhaseHeader, e.Phase)
		})
	}

	assert.True(t, errors.KindOf(mustFail(t, nil)).IsTruncation())
}

func mustFail(t *testing.T, data []byte) error {
	t.Helper()
	_, err := wasm.Decode(data)
	require.Error(t, err)
	return err
}

func TestDecode_Version(t *testing.T) {
	bin := wt.Header(2)

	t.Run("accepted by default", func(t *testing.T) {
		log, logs := observedLogger(zap.WarnLevel)
		m, err := wasm.NewDecoder(wasm.Options{Logger: log}).Decode(bin)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), m.Version)
		assert.Equal(t, 1, logs.FilterMessage("unexpected binary format version").Len())
	})

	t.Run("rejected when required", func(t *testing.T) {
		_, err := wasm.NewDecoder(wasm.Options{RequireVersion1: true}).Decode(bin)
		e := requireKind(t, err, errors.KindUnsupportedVersion)
		assert.Equal(t, uint32(2), e.Value)
		assert.Equal(t, 4, e.Offset)
	})

	t.Run("version 1 passes when required", func(t *testing.T) {
		_, err := wasm.NewDecoder(wasm.Options{RequireVersion1: true}).Decode(wt.Header(1))
		require.NoError(t, err)
	})
}

func TestDecode_TruncationAtSectionOffset(t *testing.T) {
	bin := wt.Module(wt.TypeSection(wt.FuncType(nil, nil)))
	sectionOffset := len(bin)
	bin = append(bin, wasm.SectionIDCode, 0x10, 0x01)

	m, err := wasm.Decode(bin)
	assert.Nil(t, m)
	e := requireKind(t, err, errors.KindTruncatedInput)
	assert.Equal(t, sectionOffset, e.Offset)
	assert.ErrorIs(t, err, errors.Sentinel(errors.KindTruncatedInput))
}

func TestDecode_ErrorLocation(t *testing.T) {
	bin := wt.Module(
		wt.TypeSection(wt.FuncType(nil, nil)),
		wt.FunctionSection(0, 0),
		wt.CodeSection(
			wt.Body(nil, 0x0b),
			wt.Body(nil, 0x01, 0xfe, 0x0b),
		),
	)

	_, err := wasm.Decode(bin)
	e := requireKind(t, err, errors.KindUnknownOpcode)
	assert.Equal(t, []string{"code", "func[1]"}, e.Path)
	assert.Equal(t, byte(0xfe), bin[e.Offset])
	assert.Contains(t, err.Error(), "code.func[1]")
}

func TestDecode_TypeSectionErrors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		kind errors.Kind
		path []string
	}{
		{"bad functype tag", []byte{0x01, 0x61, 0x00, 0x00}, errors.KindInvalidFuncTypeTag, []string{"type", "type[0]"}},
		{"bad param type", []byte{0x01, 0x60, 0x01, 0x7b, 0x00}, errors.KindInvalidValueType, []string{"type", "type[0]", "param[0]"}},
		{"bad result type", []byte{0x02, 0x60, 0x00, 0x00, 0x60, 0x00, 0x01, 0x6f}, errors.KindInvalidValueType, []string{"type", "type[1]", "result[0]"}},
		{"count exceeds body", []byte{0x05, 0x60}, errors.KindTruncatedInput, []string{"type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.Decode(wt.Module(wt.Section(wasm.SectionIDType, tt.body)))
			e := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.path, e.Path)
			assert.Equal(t, errors.PhaseType, e.Phase)
		})
	}
}

func TestDecode_FunctionSectionMalformed(t *testing.T) {
	_, err := wasm.Decode(wt.Module(wt.Section(wasm.SectionIDFunction, []byte{0x01, 0x80})))
	e := requireKind(t, err, errors.KindMalformedVarint)
	assert.Equal(t, errors.PhaseFunction, e.Phase)
	assert.Equal(t, []string{"function", "func[0]"}, e.Path)
}

func TestDecode_DuplicateSections(t *testing.T) {
	first := wt.TypeSection(wt.FuncType(nil, nil))
	second := wt.TypeSection(wt.FuncType([]byte{i32}, nil), wt.FuncType(nil, nil))
	bin := wt.Module(first, second)

	t.Run("last wins by default", func(t *testing.T) {
		m, err := wasm.Decode(bin)
		require.NoError(t, err)
		assert.Len(t, m.Sections.Type.FunctionTypes, 2)
	})

	t.Run("rejected when configured", func(t *testing.T) {
		_, err := wasm.NewDecoder(wasm.Options{RejectDuplicateSections: true}).Decode(bin)
		e := requireKind(t, err, errors.KindDuplicateSection)
		assert.Equal(t, wasm.HeaderSize+len(first), e.Offset)
	})

	t.Run("custom sections may repeat", func(t *testing.T) {
		bin := wt.Module(wt.CustomSection("a", nil), wt.CustomSection("b", nil))
		m, err := wasm.NewDecoder(wasm.Options{RejectDuplicateSections: true}).Decode(bin)
		require.NoError(t, err)
		assert.Equal(t, "b", m.Sections.Custom.Name)
	})
}

func TestDecode_UnknownSectionID(t *testing.T) {
	bin := wt.Module(wt.Section(0x20, []byte{0x01, 0x02}))

	t.Run("lenient keeps it as custom", func(t *testing.T) {
		log, logs := observedLogger(zap.WarnLevel)
		m, err := wasm.NewDecoder(wasm.Options{Logger: log}).Decode(bin)
		require.NoError(t, err)
		require.NotNil(t, m.Sections.Custom)
		assert.Equal(t, byte(0x20), m.Sections.Custom.ID)
		assert.Equal(t, []byte{0x01, 0x02}, m.Sections.Custom.Body)
		assert.Empty(t, m.Sections.Custom.Name)

		entries := logs.FilterMessage("unknown section id, keeping body as custom").All()
		require.Len(t, entries, 1)
		assert.Equal(t, uint8(0x20), entries[0].ContextMap()["section_id"])
	})

	t.Run("strict fails", func(t *testing.T) {
		_, err := wasm.NewDecoder(wasm.Options{Strict: true}).Decode(bin)
		e := requireKind(t, err, errors.KindUnknownSectionID)
		assert.Equal(t, wasm.HeaderSize, e.Offset)
	})
}

func TestDecode_UninterpretedSectionKeptQuietly(t *testing.T) {
	// global section: one immutable i32 global initialized to 0
	bin := wt.Module(wt.Section(wasm.SectionIDGlobal, []byte{0x01, 0x7f, 0x00, 0x41, 0x00, 0x0b}))
	requireValidModule(t, bin)

	log, logs := observedLogger(zap.DebugLevel)
	m, err := wasm.NewDecoder(wasm.Options{Strict: true, Logger: log}).Decode(bin)
	require.NoError(t, err)
	assert.Equal(t, wasm.SectionIDGlobal, m.Sections.Custom.ID)
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("section not interpreted, keeping body as custom").Len())
}

func TestDecode_SectionTrailingBytes(t *testing.T) {
	bin := wt.Module(wt.Section(wasm.SectionIDType, []byte{0x00, 0xff, 0xff}))

	t.Run("lenient", func(t *testing.T) {
		log, logs := observedLogger(zap.WarnLevel)
		m, err := wasm.NewDecoder(wasm.Options{Logger: log}).Decode(bin)
		require.NoError(t, err)
		assert.Empty(t, m.Sections.Type.FunctionTypes)

		entries := logs.FilterMessage("trailing bytes after section body").All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(2), entries[0].ContextMap()["remaining"])
		assert.Equal(t, "type", entries[0].ContextMap()["section"])
	})

	t.Run("strict", func(t *testing.T) {
		_, err := wasm.NewDecoder(wasm.Options{Strict: true}).Decode(bin)
		e := requireKind(t, err, errors.KindTrailingBytes)
		assert.Equal(t, wasm.HeaderSize+3, e.Offset)
		assert.Equal(t, []string{"type"}, e.Path)
	})
}

func TestDecode_CustomSectionBadName(t *testing.T) {
	bin := wt.Module(wt.Section(wasm.SectionIDCustom, []byte{0x05, 'a'}))

	log, logs := observedLogger(zap.WarnLevel)
	m, err := wasm.NewDecoder(wasm.Options{Logger: log}).Decode(bin)
	require.NoError(t, err)
	assert.Empty(t, m.Sections.Custom.Name)
	assert.Equal(t, []byte{0x05, 'a'}, m.Sections.Custom.Body)
	assert.Equal(t, 1, logs.FilterMessage("custom section name unreadable").Len())
}

func TestDecode_FunctionCountMismatchNotChecked(t *testing.T) {
	bin := wt.Module(
		wt.FunctionSection(0, 0, 0),
		wt.CodeSection(wt.Body(nil, 0x0b)),
	)
	m, err := wasm.Decode(bin)
	require.NoError(t, err)
	assert.Len(t, m.Sections.Function.TypeIndices, 3)
	assert.Len(t, m.Sections.Code.Functions, 1)
}

func TestSetLogger(t *testing.T) {
	prev := wasm.Logger()
	t.Cleanup(func() { wasm.SetLogger(prev) })

	log, logs := observedLogger(zap.WarnLevel)
	wasm.SetLogger(log)

	_, err := wasm.Decode(wt.Module(wt.Section(0x30, nil)))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}
