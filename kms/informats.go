package kms

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// IN_FORMATS blob layout (struct drm_format_modifier_blob / struct
// drm_format_modifier in drm_mode.h): a 6-field u32 header
// (version, flags, count_formats, formats_offset, count_modifiers,
// modifiers_offset) giving byte offsets into the same blob for a
// plain __u32 format array and an array of (bitmask, offset,
// modifier) triples, each covering a 64-format window of the format
// array starting at its offset.
const (
	formatModifierBlobHeaderLen = 24
	formatModifierEntryLen      = 24
)

var errShortFormatBlob = errors.New("kms: IN_FORMATS blob too short")

func parseFormatModifierBlob(data []byte) (*FormatModifierBlob, error) {
	if len(data) < formatModifierBlobHeaderLen {
		return nil, errShortFormatBlob
	}

	countFormats := binary.LittleEndian.Uint32(data[8:12])
	formatsOffset := binary.LittleEndian.Uint32(data[12:16])
	countModifiers := binary.LittleEndian.Uint32(data[16:20])
	modifiersOffset := binary.LittleEndian.Uint32(data[20:24])

	blob := &FormatModifierBlob{}

	formatsEnd := uint64(formatsOffset) + uint64(countFormats)*4
	if formatsEnd > uint64(len(data)) {
		return nil, errShortFormatBlob
	}
	blob.Formats = make([]uint32, countFormats)
	for i := uint32(0); i < countFormats; i++ {
		off := formatsOffset + i*4
		blob.Formats[i] = binary.LittleEndian.Uint32(data[off : off+4])
	}

	modifiersEnd := uint64(modifiersOffset) + uint64(countModifiers)*formatModifierEntryLen
	if modifiersEnd > uint64(len(data)) {
		return nil, errShortFormatBlob
	}
	blob.Modifiers = make([]FormatModifier, countModifiers)
	for i := uint32(0); i < countModifiers; i++ {
		off := modifiersOffset + i*formatModifierEntryLen
		entry := data[off : off+formatModifierEntryLen]
		bitmap := binary.LittleEndian.Uint64(entry[0:8])
		offset := binary.LittleEndian.Uint32(entry[8:12])
		modifier := binary.LittleEndian.Uint64(entry[16:24])
		blob.Modifiers[i] = FormatModifier{
			Modifier:      modifier,
			Offset:        int(offset),
			FormatsBitmap: bitmap,
		}
	}

	return blob, nil
}
