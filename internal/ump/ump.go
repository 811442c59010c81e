// Package ump decodes the platform's length-framed multipart container
// format used for Onesie responses. A buffer is a sequence of parts, each
// a variable-length type tag, a variable-length payload size, and the
// payload bytes.
package ump

import (
	"fmt"

	"github.com/rs/zerolog"
)

// PartType identifies a part within the multipart stream.
type PartType int

// Part types handled by this client. The stream carries many more; anything
// not listed here is skipped.
const (
	PartOnesieHeader PartType = 10
	PartOnesieData   PartType = 11
	PartMediaHeader  PartType = 20
	PartMedia        PartType = 21
	PartMediaEnd     PartType = 22
	PartSabrRedirect PartType = 43
	PartSabrError    PartType = 44
)

// Record is a header part plus the payload accumulated from the data parts
// that followed it.
type Record struct {
	Header []byte // raw header part payload, decoded by the caller
	Data   []byte
}

// Parse walks the full in-memory buffer and reconstructs records. A data
// part belongs to the most recently opened header part; a data part with no
// preceding header is a protocol anomaly that is logged and discarded, not
// a parse failure. Error parts are logged as decode warnings. Unknown part
// types are ignored.
func Parse(buf []byte, logger zerolog.Logger) ([]Record, error) {
	var records []Record
	offset := 0

	for offset < len(buf) {
		partType, n, err := readVarint(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("part type at offset %d: %w", offset, err)
		}
		offset += n

		size, n, err := readVarint(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("part size at offset %d: %w", offset, err)
		}
		offset += n

		if size < 0 || offset+size > len(buf) {
			return nil, fmt.Errorf("part payload of %d bytes at offset %d exceeds buffer", size, offset)
		}
		payload := buf[offset : offset+size]
		offset += size

		switch PartType(partType) {
		case PartOnesieHeader:
			records = append(records, Record{Header: payload})
		case PartOnesieData:
			if len(records) == 0 {
				logger.Warn().Msg("data part without a preceding header, discarding")
				continue
			}
			last := &records[len(records)-1]
			last.Data = append(last.Data, payload...)
		case PartSabrError:
			logger.Warn().
				Hex("payload", payload).
				Msg("stream carried an error part")
		default:
			// Media and policy parts are irrelevant to metadata retrieval.
		}
	}

	return records, nil
}

// readVarint decodes the container's variable-length integer. The count of
// leading one bits in the first byte selects the total width (1 to 5
// bytes); the remaining bits of the first byte are the low-order value
// bits, with subsequent bytes contributing higher-order bits in
// little-endian order. Five-byte integers ignore the first byte entirely
// and read the next four bytes little-endian.
func readVarint(buf []byte) (value, width int, err error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("truncated varint")
	}

	prefix := buf[0]
	size := 1
	for shift := 7; shift >= 3 && prefix&(1<<shift) != 0; shift-- {
		size++
	}
	if size > 5 {
		size = 5
	}
	if len(buf) < size {
		return 0, 0, fmt.Errorf("truncated varint: need %d bytes, have %d", size, len(buf))
	}

	switch size {
	case 1:
		return int(prefix), 1, nil
	case 5:
		v := int(buf[1]) | int(buf[2])<<8 | int(buf[3])<<16 | int(buf[4])<<24
		return v, 5, nil
	default:
		shift := 8 - size
		v := int(prefix) & ((1 << shift) - 1)
		for i := 1; i < size; i++ {
			v |= int(buf[i]) << (shift + 8*(i-1))
		}
		return v, size, nil
	}
}
