package handler

import (
	"fmt"

	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/wire"
)

// CommandHandler wraps a bound entity.Command and the shared object
// mapper, targeting a specific (topic, partition) through the Topology
// View.
type CommandHandler struct {
	mapper  ObjectMapper
	command entity.Command
}

// NewCommandHandler builds a Handler for cmd, using mapper to serialize its
// payload.
func NewCommandHandler(mapper ObjectMapper, cmd entity.Command) *CommandHandler {
	return &CommandHandler{mapper: mapper, command: cmd}
}

func (h *CommandHandler) PickTarget(topology TopologyPicker) (entity.Endpoint, bool) {
	return topology.Pick(entity.LogicalRequest{
		Kind:      entity.TargetPartition,
		Partition: h.command.Partition,
	})
}

func (h *CommandHandler) Serialize() ([]byte, error) {
	body, err := h.mapper.Marshal(h.command.Payload)
	if err != nil {
		return nil, fmt.Errorf("command handler: marshal payload: %w", err)
	}
	return wire.EncodeFrame(h.command.ResponseTemplateID, 1, 1, body), nil
}

func (h *CommandHandler) MatchesResponse(hdr wire.Header) bool {
	return hdr.TemplateID == h.command.ResponseTemplateID
}

func (h *CommandHandler) DecodeSuccess(buf []byte, offset int, blockLength, schemaVersion uint16) (interface{}, error) {
	body := buf[offset:]
	if int(blockLength) > len(body) {
		return nil, fmt.Errorf("command handler: block length %d exceeds available %d bytes", blockLength, len(body))
	}
	result := newResult(h.command.NewResult)
	if err := h.mapper.Unmarshal(body[:blockLength], result); err != nil {
		return nil, fmt.Errorf("command handler: unmarshal success body: %w", err)
	}
	return result, nil
}

func (h *CommandHandler) Describe() string {
	return fmt.Sprintf("command[topic=%s partition=%d]", h.command.Partition.Topic, h.command.Partition.Partition)
}
