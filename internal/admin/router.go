// Package admin exposes read-only cluster-topology introspection over
// HTTP, for operators and dashboards that would rather poll JSON than
// read the text diagnostics tables.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/ringbroker/client/internal/topology"
)

// nodeView and partitionView are the wire shapes returned by the
// introspection endpoints; they exist so entity.Endpoint's *net.TCPAddr
// renders as a plain string instead of leaking its internal struct shape.
type nodeView struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
	Alive   bool   `json:"alive"`
	Leader  bool   `json:"leader"`
}

type partitionView struct {
	Topic     string `json:"topic"`
	Partition uint32 `json:"partition"`
	Owner     string `json:"owner"`
}

// NewRouter registers the introspection endpoints on router and returns it.
func NewRouter(router *httprouter.Router, view *topology.View) *httprouter.Router {
	router.GET("/nodes", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		snap := view.Snapshot()

		out := make([]nodeView, 0, len(snap.Nodes))
		for id, n := range snap.Nodes {
			out = append(out, nodeView{
				NodeID:  id,
				Address: n.Endpoint.String(),
				Alive:   n.Alive,
				Leader:  id == snap.Leader,
			})
		}
		writeJSON(w, out)
	})

	router.GET("/partitions", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		snap := view.Snapshot()

		out := make([]partitionView, 0, len(snap.Partitions))
		for k, e := range snap.Partitions {
			out = append(out, partitionView{Topic: k.Topic, Partition: k.Partition, Owner: e.NodeID})
		}
		writeJSON(w, out)
	})

	router.POST("/refresh", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		handle := view.RefreshNow()
		<-handle.Done()
		if _, err := handle.Get(); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return router
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
