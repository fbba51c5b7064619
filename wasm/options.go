package wasm

import "go.uber.org/zap"

// Options configures a Decoder.
type Options struct {
	// Logger receives anomaly and progress records. Nil selects the
	// package logger.
	Logger *zap.Logger

	// Strict turns anomalies into errors: leftover bytes after a section
	// or function body, and section IDs the format does not define.
	Strict bool

	// RejectDuplicateSections fails when a non-custom section kind
	// appears more than once. By default the last occurrence wins.
	RejectDuplicateSections bool

	// RequireVersion1 fails on any binary format version other than 1.
	RequireVersion1 bool
}

// DefaultOptions returns the lenient decoder configuration.
func DefaultOptions() Options {
	return Options{}
}

// Decoder decodes modules with a fixed configuration.
// Immutable after construction and safe for concurrent use.
type Decoder struct {
	log  *zap.Logger
	opts Options
}

// NewDecoder creates a Decoder with the given options.
func NewDecoder(opts Options) *Decoder {
	return &Decoder{opts: opts, log: opts.Logger}
}

// Options returns the decoder configuration.
func (d *Decoder) Options() Options {
	return d.opts
}

func (d *Decoder) logger() *zap.Logger {
	if d.log != nil {
		return d.log
	}
	return Logger()
}

var defaultDecoder = NewDecoder(DefaultOptions())
