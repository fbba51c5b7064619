package wasm

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// DecodeSection frames the section starting at data[offset]: one ID byte,
// a u32 size, then exactly size body bytes. It returns the section and the
// number of bytes consumed. The body is not interpreted.
func DecodeSection(data []byte, offset int) (Section, int, error) {
	if offset < 0 || offset > len(data) {
		return Section{}, 0, errors.Truncated(errors.PhaseSection, offset, 1, 0)
	}
	r := binary.NewReader(data[offset:], offset)

	id, err := r.ReadByte()
	if err != nil {
		return Section{}, 0, err
	}
	size, err := r.ReadU32()
	if err != nil {
		return Section{}, 0, err
	}
	header := r.Position()

	body, err := r.ReadBytes(int(size))
	if err != nil {
		return Section{}, 0, errors.New(errors.PhaseSection, errors.KindTruncatedInput).
			At(offset).
			Value(size).
			Path(sectionName(id)).
			Detail("section truncated: declares %d bytes, %d available", size, r.Len()).
			Build()
	}

	kind, _ := classifySection(id)
	return Section{
		Kind:         kind,
		ID:           id,
		Offset:       offset,
		DeclaredSize: size,
		HeaderLength: header,
		Body:         body,
	}, r.Position(), nil
}

// readSection decodes a framed section body and stores it in its slot.
func (d *Decoder) readSection(s Section, sections *Sections) error {
	log := d.logger()

	kind, defined := classifySection(s.ID)
	switch {
	case !defined:
		if d.opts.Strict {
			return errors.New(errors.PhaseSection, errors.KindUnknownSectionID).
				At(s.Offset).
				Value(s.ID).
				Detail("unknown section id 0x%02x", s.ID).
				Build()
		}
		log.Warn("unknown section id, keeping body as custom",
			zap.Uint8("section_id", s.ID),
			zap.Int("offset", s.Offset),
			zap.Uint32("size", s.DeclaredSize))
	case kind == SectionCustom && s.ID != SectionIDCustom:
		log.Debug("section not interpreted, keeping body as custom",
			zap.String("section", sectionName(s.ID)),
			zap.Int("offset", s.Offset))
	}

	r := binary.NewReader(s.Body, s.BodyOffset())
	var err error
	switch kind {
	case SectionType:
		var ts *TypeSection
		if ts, err = readTypeSection(r); err == nil {
			sections.Type = ts
		}
	case SectionFunction:
		var fs *FunctionSection
		if fs, err = readFunctionSection(r); err == nil {
			sections.Function = fs
		}
	case SectionCode:
		var cs *CodeSection
		if cs, err = d.readCodeSection(r); err == nil {
			sections.Code = cs
		}
	default:
		d.storeOpaque(kind, d.readOpaque(s), sections)
		return nil
	}
	if err != nil {
		return errors.Within(err, kind.String())
	}

	if !r.EOF() {
		if err := d.leftover(errors.PhaseSection, r.Offset(), r.Len(),
			"trailing bytes after section body", zap.String("section", kind.String())); err != nil {
			return errors.Within(err, kind.String())
		}
	}
	return nil
}

func (d *Decoder) readOpaque(s Section) *OpaqueSection {
	o := &OpaqueSection{ID: s.ID, Offset: s.Offset, Body: bytes.Clone(s.Body)}
	if s.ID != SectionIDCustom {
		return o
	}
	name, err := binary.NewReader(s.Body, s.BodyOffset()).ReadName()
	if err != nil {
		d.logger().Warn("custom section name unreadable", zap.Int("offset", s.Offset), zap.Error(err))
		return o
	}
	o.Name = name
	return o
}

func (d *Decoder) storeOpaque(kind SectionKind, o *OpaqueSection, sections *Sections) {
	switch kind {
	case SectionImport:
		sections.Import = o
	case SectionMemory:
		sections.Memory = o
	case SectionExport:
		sections.Export = o
	case SectionData:
		sections.Data = o
	default:
		sections.Custom = o
	}
}

// leftover applies the trailing bytes policy: an error in strict mode, a
// warning otherwise.
func (d *Decoder) leftover(phase errors.Phase, offset, remaining int, msg string, fields ...zap.Field) error {
	if d.opts.Strict {
		return errors.TrailingBytes(phase, offset, remaining)
	}
	d.logger().Warn(msg, append(fields, zap.Int("offset", offset), zap.Int("remaining", remaining))...)
	return nil
}
