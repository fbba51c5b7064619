// Package wasmdecoder is a decoder for the WebAssembly binary format.
//
// It turns a core module into a typed, structural representation: value
// and function types, the function-to-type mapping, and function bodies
// as trees of instructions with their operands. Sections it does not
// interpret are framed and kept as opaque bytes.
//
// # Architecture Overview
//
//	wasmdecoder/
//	├── wasm/            Module, section, function and instruction decoders
//	│   └── internal/    Byte cursor with LEB128 readers; test fixture builder
//	├── errors/          Structured error types with phase, kind and offset
//	└── cmd/wasmdecode/  Command line inspector with an interactive browser
//
// # Quick Start
//
//	data, _ := os.ReadFile("module.wasm")
//	m, err := wasm.Decode(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(m.Sections.Code.Functions))
//
// # Error Handling
//
// Errors carry the decoding phase, a machine-readable kind and the absolute
// byte offset of the failure:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) {
//	    fmt.Println(e.Phase, e.Kind, e.Offset)
//	}
//
// Decoding is structural only. Indices are not resolved and instruction
// sequences are not type checked; hand the result to a validator for that.
package wasmdecoder
