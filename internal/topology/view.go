// Package topology implements the client's cached directory of which
// endpoint currently serves which partition, refreshed out-of-band and
// read by the controller's cooperative step under a short read lock.
package topology

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/future"
)

// Refresher supplies the Update a refresh applies; the production
// implementation, NSQRefresher, returns the latest Update gossiped on
// entity.TopologyTopic, and tests supply a fake.
type Refresher interface {
	Refresh() (entity.Update, error)
}

// RefreshHandle is the completion handle returned by RefreshNow: done once
// the refresh attempt finishes, successfully or not.
type RefreshHandle = future.Future[struct{}]

// View is a cached (topic, partition) -> endpoint directory, generalizing
// the broker membership view into partition ownership.
type View struct {
	mu         sync.RWMutex
	partitions map[entity.PartitionKey]entity.Endpoint
	nodes      map[string]entity.NodeInfo
	leader     string

	refresher Refresher
	log       log.Logger

	refreshMu     sync.Mutex
	activeRefresh *RefreshHandle
}

// New returns an empty View backed by refresher.
func New(refresher Refresher) *View {
	return &View{
		partitions: make(map[entity.PartitionKey]entity.Endpoint),
		nodes:      make(map[string]entity.NodeInfo),
		refresher:  refresher,
		log:        log.New("module", "topology"),
	}
}

// Pick resolves a logical request to a concrete endpoint, or reports
// false when the current view has no answer — the caller should refresh
// and retry rather than treat this as an error.
func (v *View) Pick(req entity.LogicalRequest) (entity.Endpoint, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	switch req.Kind {
	case entity.TargetPartition:
		ep, ok := v.partitions[req.Partition]
		return ep, ok
	case entity.TargetLeader:
		if v.leader == "" {
			return entity.Endpoint{}, false
		}
		info, ok := v.nodes[v.leader]
		if !ok || !info.Alive {
			return entity.Endpoint{}, false
		}
		return info.Endpoint, true
	case entity.TargetNode:
		info, ok := v.nodes[req.NodeID]
		if !ok || !info.Alive {
			return entity.Endpoint{}, false
		}
		return info.Endpoint, true
	case entity.TargetAny:
		for _, info := range v.nodes {
			if info.Alive {
				return info.Endpoint, true
			}
		}
		return entity.Endpoint{}, false
	default:
		return entity.Endpoint{}, false
	}
}

// RefreshNow schedules an asynchronous refresh and returns a handle that
// becomes done once the attempt completes, successfully or not.
// Concurrent callers observing an in-flight refresh are handed the same
// handle instead of starting a redundant one.
func (v *View) RefreshNow() *RefreshHandle {
	v.refreshMu.Lock()
	if v.activeRefresh != nil && !v.activeRefresh.IsDone() {
		h := v.activeRefresh
		v.refreshMu.Unlock()
		return h
	}
	h := future.New[struct{}]()
	v.activeRefresh = h
	v.refreshMu.Unlock()

	go v.runRefresh(h)
	return h
}

func (v *View) runRefresh(h *RefreshHandle) {
	update, err := v.refresher.Refresh()
	if err != nil {
		v.log.Debug("topology refresh failed", "err", err)
		h.CompleteErr(err)
		return
	}
	v.apply(update)
	h.Complete(struct{}{})
}

func (v *View) apply(update entity.Update) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nodes = update.Nodes
	v.partitions = make(map[entity.PartitionKey]entity.Endpoint, len(update.Partitions))
	for part, nodeID := range update.Partitions {
		info, ok := update.Nodes[nodeID]
		if !ok {
			continue
		}
		v.partitions[part] = info.Endpoint
	}
	v.leader = pickLeader(update)
	v.log.Debug("topology updated", "owner", update.Owner, "seq", update.Seq, "partitions", len(v.partitions))
}

// pickLeader designates the lowest node ID among alive nodes as leader.
// The wire protocol carries no explicit leader marker in an Update, so
// this is a deterministic stand-in every client in the cluster agrees on.
func pickLeader(update entity.Update) string {
	leader := ""
	for id, info := range update.Nodes {
		if !info.Alive {
			continue
		}
		if leader == "" || id < leader {
			leader = id
		}
	}
	return leader
}
