// Package wire implements fixed-header, template-discriminated binary
// framing: a request or response frame is a small fixed header followed by
// a body whose layout depends on the header's template ID.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the encoded length of Header, in bytes.
const HeaderSize = 8

// ErrorTemplateID is the template ID the broker-wide error envelope is
// sent with. TryDecodeResponse does not consult it: any frame whose header
// the handler does not match is decoded as an error envelope.
const ErrorTemplateID uint16 = 0xFFFF

// Header is the fixed frame header preceding every request and response
// body, bit-exact with the broker's schema.
type Header struct {
	BlockLength   uint16
	TemplateID    uint16
	SchemaID      uint16
	SchemaVersion uint16
}

// DecodeHeader reads the fixed-size header at offset 0 of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: frame too short for header: got %d bytes, need %d", len(buf), HeaderSize)
	}
	return Header{
		BlockLength:   binary.LittleEndian.Uint16(buf[0:2]),
		TemplateID:    binary.LittleEndian.Uint16(buf[2:4]),
		SchemaID:      binary.LittleEndian.Uint16(buf[4:6]),
		SchemaVersion: binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}

// PutHeader encodes h at offset 0 of buf, which must have length >=
// HeaderSize.
func PutHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.BlockLength)
	binary.LittleEndian.PutUint16(buf[2:4], h.TemplateID)
	binary.LittleEndian.PutUint16(buf[4:6], h.SchemaID)
	binary.LittleEndian.PutUint16(buf[6:8], h.SchemaVersion)
}
