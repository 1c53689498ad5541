package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ringbroker/client/internal/entity"
)

type stubHandler struct {
	matchTemplate uint16
	decoded       interface{}
	decodeErr     error
}

func (h *stubHandler) MatchesResponse(hdr Header) bool {
	return hdr.TemplateID == h.matchTemplate
}

func (h *stubHandler) DecodeSuccess(buf []byte, offset int, blockLength, schemaVersion uint16) (interface{}, error) {
	if h.decodeErr != nil {
		return nil, h.decodeErr
	}
	return h.decoded, nil
}

func TestTryDecodeResponse_SuccessRoundTrip(t *testing.T) {
	h := &stubHandler{matchTemplate: 7, decoded: "hello"}
	body := []byte("payload")
	frame := EncodeFrame(7, 1, 1, body)

	decoded, err := TryDecodeResponse(h, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Error != nil {
		t.Fatalf("expected no error envelope, got %+v", decoded.Error)
	}
	if diff := cmp.Diff("hello", decoded.Success); diff != "" {
		t.Errorf("decoded success mismatch:\n%s", diff)
	}
}

func TestTryDecodeResponse_TemplateMismatchIsErrorEnvelope(t *testing.T) {
	h := &stubHandler{matchTemplate: 7}
	env := EncodeErrorEnvelope(entity.TopicNotFound, []byte("topic foo"))
	frame := EncodeFrame(999, 1, 1, env)

	decoded, err := TryDecodeResponse(h, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Success != nil {
		t.Fatalf("expected no success object, got %v", decoded.Success)
	}
	if decoded.Error == nil {
		t.Fatalf("expected an error envelope")
	}
	if decoded.Error.Code != entity.TopicNotFound {
		t.Errorf("expected code %v, got %v", entity.TopicNotFound, decoded.Error.Code)
	}
	if string(decoded.Error.Data) != "topic foo" {
		t.Errorf("expected data %q, got %q", "topic foo", decoded.Error.Data)
	}
}

func TestDecodeHeader_TooShort(t *testing.T) {
	if _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Errorf("expected error decoding a too-short header")
	}
}

func TestEncodeErrorEnvelope_RoundTrip(t *testing.T) {
	want := entity.ConstraintViolated
	data := []byte("duplicate id")
	env := EncodeErrorEnvelope(want, data)

	decoded, err := decodeErrorEnvelope(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Code != want {
		t.Errorf("expected code %v, got %v", want, decoded.Code)
	}
	if string(decoded.Data) != "duplicate id" {
		t.Errorf("expected data %q, got %q", "duplicate id", decoded.Data)
	}
}

func TestDecodeErrorEnvelope_TruncatedData(t *testing.T) {
	env := EncodeErrorEnvelope(entity.RequestTimeout, []byte("this is long"))
	truncated := env[:len(env)-2]

	if _, err := decodeErrorEnvelope(truncated); err == nil {
		t.Errorf("expected error decoding a truncated error envelope")
	}
}
