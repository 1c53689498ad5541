package handler

import (
	"fmt"

	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/wire"
)

// ControlMessageHandler wraps a bound entity.ControlMessage, which may
// target the cluster leader, a specific node, or any reachable node
// depending on its kind.
type ControlMessageHandler struct {
	mapper  ObjectMapper
	message entity.ControlMessage
}

// NewControlMessageHandler builds a Handler for msg.
func NewControlMessageHandler(mapper ObjectMapper, msg entity.ControlMessage) *ControlMessageHandler {
	return &ControlMessageHandler{mapper: mapper, message: msg}
}

func (h *ControlMessageHandler) PickTarget(topology TopologyPicker) (entity.Endpoint, bool) {
	return topology.Pick(h.message.Target)
}

func (h *ControlMessageHandler) Serialize() ([]byte, error) {
	body, err := h.mapper.Marshal(h.message.Payload)
	if err != nil {
		return nil, fmt.Errorf("control message handler %s: marshal payload: %w", h.message.Name, err)
	}
	return wire.EncodeFrame(h.message.ResponseTemplateID, 1, 1, body), nil
}

func (h *ControlMessageHandler) MatchesResponse(hdr wire.Header) bool {
	return hdr.TemplateID == h.message.ResponseTemplateID
}

func (h *ControlMessageHandler) DecodeSuccess(buf []byte, offset int, blockLength, schemaVersion uint16) (interface{}, error) {
	body := buf[offset:]
	if int(blockLength) > len(body) {
		return nil, fmt.Errorf("control message handler %s: block length %d exceeds available %d bytes", h.message.Name, blockLength, len(body))
	}
	result := newResult(h.message.NewResult)
	if err := h.mapper.Unmarshal(body[:blockLength], result); err != nil {
		return nil, fmt.Errorf("control message handler %s: unmarshal success body: %w", h.message.Name, err)
	}
	return result, nil
}

func (h *ControlMessageHandler) Describe() string {
	return fmt.Sprintf("control-message[%s]", h.message.Name)
}
