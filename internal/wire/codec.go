package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/ringbroker/client/internal/entity"
)

// ResponseHandler is the narrow slice of a Request Handler's capability set
// the codec needs: enough to recognize its own success template and decode
// the body that follows the header.
type ResponseHandler interface {
	// MatchesResponse reports whether h is the header of this handler's
	// expected success response.
	MatchesResponse(h Header) bool
	// DecodeSuccess decodes the success body of buf starting at offset,
	// using blockLength/schemaVersion as emitted by the sender's schema.
	DecodeSuccess(buf []byte, offset int, blockLength, schemaVersion uint16) (interface{}, error)
}

// ErrorEnvelope is the one other template every handler recognizes
// unconditionally: { error_code, error_data }.
type ErrorEnvelope struct {
	Code ErrorCode
	Data []byte
}

// ErrorCode is a type alias of entity.ErrorCode, so an envelope's Code can
// be used wherever an entity.ErrorCode is expected without conversion.
type ErrorCode = entity.ErrorCode

// Decoded is the result of TryDecodeResponse: exactly one of Success or
// Error is set.
type Decoded struct {
	Success interface{}
	Error   *ErrorEnvelope
}

// TryDecodeResponse asks handler whether the frame's header matches its
// expected success template, and only falls back to error-envelope
// decoding on a mismatch. There is no tag in the wire format that
// distinguishes success from error directly — the handler's expected
// template identity IS the discriminator, so getting this decision
// backwards is the headline bug class this function exists to prevent.
func TryDecodeResponse(handler ResponseHandler, frame []byte) (Decoded, error) {
	header, err := DecodeHeader(frame)
	if err != nil {
		return Decoded{}, err
	}
	body := frame[HeaderSize:]

	if handler.MatchesResponse(header) {
		obj, err := handler.DecodeSuccess(body, 0, header.BlockLength, header.SchemaVersion)
		if err != nil {
			return Decoded{}, fmt.Errorf("wire: decode success body (template %d): %w", header.TemplateID, err)
		}
		return Decoded{Success: obj}, nil
	}

	env, err := decodeErrorEnvelope(body)
	if err != nil {
		return Decoded{}, fmt.Errorf("wire: decode error envelope: %w", err)
	}
	return Decoded{Error: &env}, nil
}

// decodeErrorEnvelope decodes { error_code: u16, error_data_length: u16,
// error_data: bytes[error_data_length] } at the start of body.
func decodeErrorEnvelope(body []byte) (ErrorEnvelope, error) {
	const prefixLen = 4
	if len(body) < prefixLen {
		return ErrorEnvelope{}, fmt.Errorf("error envelope too short: got %d bytes, need at least %d", len(body), prefixLen)
	}
	code := ErrorCode(binary.LittleEndian.Uint16(body[0:2]))
	dataLen := int(binary.LittleEndian.Uint16(body[2:4]))
	if len(body) < prefixLen+dataLen {
		return ErrorEnvelope{}, fmt.Errorf("error envelope data truncated: declared %d bytes, have %d", dataLen, len(body)-prefixLen)
	}
	data := make([]byte, dataLen)
	copy(data, body[prefixLen:prefixLen+dataLen])
	return ErrorEnvelope{Code: code, Data: data}, nil
}

// EncodeErrorEnvelope is the inverse of decodeErrorEnvelope, used by test
// doubles and the embedded test broker to synthesize error frames.
func EncodeErrorEnvelope(code ErrorCode, data []byte) []byte {
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(code))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(data)))
	copy(buf[4:], data)
	return buf
}

// EncodeFrame prepends a header to body, producing a full wire frame.
func EncodeFrame(templateID, schemaID, schemaVersion uint16, body []byte) []byte {
	frame := make([]byte, HeaderSize+len(body))
	PutHeader(frame, Header{
		BlockLength:   uint16(len(body)),
		TemplateID:    templateID,
		SchemaID:      schemaID,
		SchemaVersion: schemaVersion,
	})
	copy(frame[HeaderSize:], body)
	return frame
}
