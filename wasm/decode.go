package wasm

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// Decode decodes a WebAssembly binary module with default options.
func Decode(data []byte) (*Module, error) {
	return defaultDecoder.Decode(data)
}

// Decode decodes a WebAssembly binary module. It stops at the first fatal
// error and never returns a partial module.
func (d *Decoder) Decode(data []byte) (*Module, error) {
	version, err := d.readPreamble(data)
	if err != nil {
		return nil, err
	}

	m := &Module{Version: version}
	var seen [256]bool
	for off := HeaderSize; off < len(data); {
		s, n, err := DecodeSection(data, off)
		if err != nil {
			return nil, err
		}

		if s.Kind != SectionCustom {
			if seen[s.Kind] {
				if d.opts.RejectDuplicateSections {
					return nil, errors.New(errors.PhaseSection, errors.KindDuplicateSection).
						At(s.Offset).
						Value(s.ID).
						Path(s.Kind.String()).
						Detail("%s section appears more than once", s.Kind).
						Build()
				}
				d.logger().Debug("duplicate section replaces earlier one",
					zap.String("section", s.Kind.String()),
					zap.Int("offset", s.Offset))
			}
			seen[s.Kind] = true
		}

		if err := d.readSection(s, &m.Sections); err != nil {
			return nil, err
		}
		d.logger().Debug("section decoded",
			zap.String("section", sectionName(s.ID)),
			zap.Int("offset", s.Offset),
			zap.Uint32("size", s.DeclaredSize))
		off += n
	}
	return m, nil
}

// readPreamble checks the 8-byte header and returns the version.
func (d *Decoder) readPreamble(data []byte) (uint32, error) {
	if len(data) < HeaderSize {
		return 0, errors.New(errors.PhaseHeader, errors.KindTruncatedHeader).
			At(len(data)).
			Value(len(data)).
			Detail("header needs %d bytes, got %d", HeaderSize, len(data)).
			Build()
	}

	r := binary.NewReader(data, 0)
	r.SetPhase(errors.PhaseHeader)
	magic, err := r.ReadU32LE()
	if err != nil {
		return 0, err
	}
	if magic != Magic {
		return 0, errors.New(errors.PhaseHeader, errors.KindBadMagic).
			At(0).
			Value(magic).
			Detail("expected magic 0x%08x, got 0x%08x", Magic, magic).
			Build()
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return 0, err
	}
	if version != Version {
		if d.opts.RequireVersion1 {
			return 0, errors.New(errors.PhaseHeader, errors.KindUnsupportedVersion).
				At(4).
				Value(version).
				Detail("unsupported version %d", version).
				Build()
		}
		d.logger().Warn("unexpected binary format version", zap.Uint32("version", version))
	}
	return version, nil
}
