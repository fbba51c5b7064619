// Package wasm decodes WebAssembly binary modules.
//
// The decoder covers the preamble, section framing, the type, function
// and code sections, and the MVP instruction set. Every other section is
// framed and kept as an opaque byte slice. Decoding is purely structural:
// indices are not checked against the index spaces they refer to.
//
// # Decoding
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.Decode(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i, fn := range module.Sections.Code.Functions {
//	    fmt.Println(i, fn.NumLocals(), len(fn.Code))
//	}
//
// # Options
//
// Decode uses lenient defaults: trailing bytes after a section or function
// body and unknown section IDs are logged and skipped, a repeated section
// replaces the earlier one, and any version number is accepted. A Decoder
// can tighten each of these:
//
//	d := wasm.NewDecoder(wasm.Options{
//	    Strict:                  true,
//	    RejectDuplicateSections: true,
//	    RequireVersion1:         true,
//	    Logger:                  logger,
//	})
//	module, err := d.Decode(data)
//
// # Instructions
//
// Structured instructions carry their nested bodies, so a function's code
// is a tree:
//
//	for _, in := range fn.Code {
//	    if blk, ok := in.Operand.(wasm.Block); ok {
//	        fmt.Println(in.Opcode, blk.Type, len(blk.Body))
//	    }
//	}
//
// # Errors
//
// Failures are *errors.Error values carrying the phase, kind and absolute
// byte offset:
//
//	if stderrors.Is(err, errors.Sentinel(errors.KindTruncatedInput)) {
//	    off, _ := errors.OffsetOf(err)
//	    fmt.Println("input ends early near", off)
//	}
//
// # Logging
//
// Anomalies are reported through zap. The package logger is a no-op until
// SetLogger is called; Options.Logger overrides it per decoder.
package wasm
