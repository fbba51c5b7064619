// Package errors provides structured error types for the wasm decoder.
//
// Errors are categorized by Phase (which decoding stage failed) and Kind
// (error category). Each error records the absolute byte offset into the
// module buffer and a location path such as "code.func[2]".
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSection, errors.KindDuplicateSection).
//		At(offset).
//		Path("type").
//		Value(id).
//		Detail("section %d appears twice", id).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Truncated(errors.PhaseCode, offset, 12, 3)
//	err := errors.UnknownOpcode(offset, 0xfe)
//
// Match by kind with the standard library's errors.Is and a Sentinel target:
//
//	if stderrors.Is(err, errors.Sentinel(errors.KindBadMagic)) { ... }
//
// or extract the kind directly with KindOf.
package errors
