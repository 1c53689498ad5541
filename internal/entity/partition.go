package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// PartitionKey identifies a logical destination inside the cluster: a topic
// split into a fixed number of partitions, each owned by exactly one
// endpoint at a time.
type PartitionKey struct {
	Topic     string
	Partition uint32
}

// MarshalText lets PartitionKey serve as a JSON object key (used by
// topology Update gossip messages).
func (k PartitionKey) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%s#%d", k.Topic, k.Partition)), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *PartitionKey) UnmarshalText(text []byte) error {
	topic, partStr, ok := strings.Cut(string(text), "#")
	if !ok {
		return fmt.Errorf("malformed partition key %q", text)
	}
	part, err := strconv.ParseUint(partStr, 10, 32)
	if err != nil {
		return fmt.Errorf("malformed partition key %q: %w", text, err)
	}
	k.Topic, k.Partition = topic, uint32(part)
	return nil
}

// TargetKind distinguishes how a control message picks its destination: a
// specific partition, the cluster leader, a specific node, or any
// reachable node.
type TargetKind int

const (
	TargetPartition TargetKind = iota
	TargetLeader
	TargetNode
	TargetAny
)

// LogicalRequest is what a Request Handler hands the Topology View in order
// to resolve a concrete Endpoint.
type LogicalRequest struct {
	Kind      TargetKind
	Partition PartitionKey // meaningful when Kind == TargetPartition
	NodeID    string       // meaningful when Kind == TargetNode
}
