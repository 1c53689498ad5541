package topology

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/ringbroker/client/internal/entity"
)

// Snapshot is a consistent, read-only copy of a View's current state,
// cheap enough to take on every diagnostics render.
type Snapshot struct {
	Nodes      map[string]entity.NodeInfo
	Partitions map[entity.PartitionKey]entity.Endpoint
	Leader     string
}

// Snapshot copies the view's current node and partition maps under lock.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	nodes := make(map[string]entity.NodeInfo, len(v.nodes))
	for id, n := range v.nodes {
		nodes[id] = n
	}
	partitions := make(map[entity.PartitionKey]entity.Endpoint, len(v.partitions))
	for k, e := range v.partitions {
		partitions[k] = e
	}
	return Snapshot{Nodes: nodes, Partitions: partitions, Leader: v.leader}
}

// ReportNodes renders a membership table: every known node, its address,
// liveness, and whether it is the currently resolved leader.
func ReportNodes(w io.Writer, snap Snapshot) {
	ids := make([]string, 0, len(snap.Nodes))
	for id := range snap.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		n := snap.Nodes[id]
		alive := "N"
		if n.Alive {
			alive = "Y"
		}
		leader := ""
		if id == snap.Leader {
			leader = "*"
		}
		rows = append(rows, []string{id, n.Endpoint.String(), alive, leader})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node", "Address", "Alive", "Leader"})
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}

// ReportPartitions renders which node currently owns each known partition,
// grouped by topic.
func ReportPartitions(w io.Writer, snap Snapshot) {
	keys := make([]entity.PartitionKey, 0, len(snap.Partitions))
	for k := range snap.Partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Topic != keys[j].Topic {
			return keys[i].Topic < keys[j].Topic
		}
		return keys[i].Partition < keys[j].Partition
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k.Topic, fmt.Sprintf("%d", k.Partition), snap.Partitions[k].String()})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Topic", "Partition", "Owner"})
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}

// ReportUnreachablePartitions lists partitions whose recorded owner node is
// not currently known alive, the case an operator most wants surfaced.
func ReportUnreachablePartitions(w io.Writer, snap Snapshot) {
	var stale [][]string
	for k, e := range snap.Partitions {
		if n, ok := snap.Nodes[e.NodeID]; !ok || !n.Alive {
			stale = append(stale, []string{k.Topic, fmt.Sprintf("%d", k.Partition), e.String()})
		}
	}
	if len(stale) == 0 {
		return
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i][0]+stale[i][1] < stale[j][0]+stale[j][1] })

	fmt.Fprintf(w, "Partitions owned by an unreachable node:\n")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Topic", "Partition", "Owner"})
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.AppendBulk(stale)
	table.Render()
}
