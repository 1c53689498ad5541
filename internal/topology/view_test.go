package topology

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ringbroker/client/internal/entity"
)

type stubRefresher struct {
	update entity.Update
	err    error
	calls  int
}

func (r *stubRefresher) Refresh() (entity.Update, error) {
	r.calls++
	return r.update, r.err
}

func TestView_PickUnknownPartitionReturnsFalse(t *testing.T) {
	v := New(&stubRefresher{})
	_, ok := v.Pick(entity.LogicalRequest{
		Kind:      entity.TargetPartition,
		Partition: entity.PartitionKey{Topic: "orders", Partition: 0},
	})
	if ok {
		t.Errorf("expected no answer before any refresh")
	}
}

func TestView_RefreshNowAppliesUpdate(t *testing.T) {
	endpoint := entity.Endpoint{NodeID: "broker-1"}
	part := entity.PartitionKey{Topic: "orders", Partition: 0}
	refresher := &stubRefresher{
		update: entity.Update{
			Owner: "broker-1",
			Seq:   1,
			Nodes: map[string]entity.NodeInfo{
				"broker-1": {Endpoint: endpoint, Alive: true},
			},
			Partitions: map[entity.PartitionKey]string{
				part: "broker-1",
			},
		},
	}
	v := New(refresher)

	handle := v.RefreshNow()
	<-handle.Done()
	if _, err := handle.Get(); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	got, ok := v.Pick(entity.LogicalRequest{Kind: entity.TargetPartition, Partition: part})
	if !ok {
		t.Fatalf("expected an answer after refresh")
	}
	if got != endpoint {
		t.Errorf("expected %v, got %v", endpoint, got)
	}
}

func TestView_RefreshNowDeduplicatesConcurrentCalls(t *testing.T) {
	refresher := &stubRefresher{update: entity.Update{Nodes: map[string]entity.NodeInfo{}}}
	v := New(refresher)

	h1 := v.RefreshNow()
	h2 := v.RefreshNow()
	if h1 != h2 {
		t.Errorf("expected concurrent RefreshNow calls to share one handle")
	}
	<-h1.Done()
}

func TestView_FailedRefreshSurfacesError(t *testing.T) {
	wantErr := errors.New("lookup failed")
	v := New(&stubRefresher{err: wantErr})

	handle := v.RefreshNow()
	<-handle.Done()
	if _, err := handle.Get(); err != wantErr {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestView_PickLeaderPrefersLowestAliveNodeID(t *testing.T) {
	epA := entity.Endpoint{NodeID: "broker-a"}
	epB := entity.Endpoint{NodeID: "broker-b"}
	refresher := &stubRefresher{
		update: entity.Update{
			Nodes: map[string]entity.NodeInfo{
				"broker-b": {Endpoint: epB, Alive: true},
				"broker-a": {Endpoint: epA, Alive: true},
			},
		},
	}
	v := New(refresher)
	handle := v.RefreshNow()
	<-handle.Done()

	got, ok := v.Pick(entity.LogicalRequest{Kind: entity.TargetLeader})
	if !ok {
		t.Fatalf("expected a leader to be resolved")
	}
	if got != epA {
		t.Errorf("expected leader %v, got %v", epA, got)
	}
}

func TestView_DiagnosticsTableRendering(t *testing.T) {
	epAlive := entity.Endpoint{NodeID: "broker-a"}
	epDead := entity.Endpoint{NodeID: "broker-b"}
	livePart := entity.PartitionKey{Topic: "orders", Partition: 0}
	stalePart := entity.PartitionKey{Topic: "orders", Partition: 1}

	refresher := &stubRefresher{
		update: entity.Update{
			Nodes: map[string]entity.NodeInfo{
				"broker-a": {Endpoint: epAlive, Alive: true},
				"broker-b": {Endpoint: epDead, Alive: false},
			},
			Partitions: map[entity.PartitionKey]string{
				livePart:  "broker-a",
				stalePart: "broker-b",
			},
		},
	}
	v := New(refresher)
	handle := v.RefreshNow()
	<-handle.Done()

	snap := v.Snapshot()

	var nodes bytes.Buffer
	ReportNodes(&nodes, snap)
	if !strings.Contains(nodes.String(), "broker-a") || !strings.Contains(nodes.String(), "broker-b") {
		t.Errorf("expected both nodes in rendered table, got:\n%s", nodes.String())
	}

	var partitions bytes.Buffer
	ReportPartitions(&partitions, snap)
	if !strings.Contains(partitions.String(), "orders") {
		t.Errorf("expected partition table to list the orders topic, got:\n%s", partitions.String())
	}

	var unreachable bytes.Buffer
	ReportUnreachablePartitions(&unreachable, snap)
	if !strings.Contains(unreachable.String(), "broker-b") {
		t.Errorf("expected unreachable-partition report to flag broker-b, got:\n%s", unreachable.String())
	}
	if strings.Contains(unreachable.String(), "broker-a") {
		t.Errorf("did not expect the live broker-a partition in the unreachable report, got:\n%s", unreachable.String())
	}
}
