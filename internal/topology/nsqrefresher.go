package topology

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	gonsq "github.com/nsqio/go-nsq"

	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/pkg/nsqlog"
	"github.com/ringbroker/client/pkg/tlsutil"
)

// NSQRefresher is a Refresher backed by a standing subscription to
// entity.TopologyTopic: every node gossips its view of the cluster onto
// that topic, and Refresh simply hands back whatever the subscription
// last decoded rather than issuing a fresh round-trip.
type NSQRefresher struct {
	consumer *gonsq.Consumer

	mu      sync.Mutex
	latest  entity.Update
	haveAny bool
	lastErr error
}

// NewNSQRefresher subscribes clientID's own channel to entity.TopologyTopic
// via the given nsqlookupd address, authenticating with the TLS identity
// derived from certPEM/keyPEM.
func NewNSQRefresher(lookupdHTTPAddr, clientID string, certPEM, keyPEM []byte, logger log.Logger) (*NSQRefresher, error) {
	if logger == nil {
		logger = log.New("module", "topology")
	}

	config := gonsq.NewConfig()
	config.Snappy = true
	if certPEM != nil {
		tlsConfig, err := tlsutil.MakeTLSConfig(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("topology: build tls config: %w", err)
		}
		config.TlsV1 = true
		config.TlsConfig = tlsConfig
	}

	consumer, err := gonsq.NewConsumer(entity.TopologyTopic, clientID, config)
	if err != nil {
		return nil, fmt.Errorf("topology: new consumer: %w", err)
	}
	consumer.SetLogger(&nsqlog.ConsumerLogger{Logger: logger}, gonsq.LogLevelWarning)

	r := &NSQRefresher{consumer: consumer}
	consumer.AddHandler(gonsq.HandlerFunc(r.handle))

	if err := consumer.ConnectToNSQLookupd(lookupdHTTPAddr); err != nil {
		return nil, fmt.Errorf("topology: connect to nsqlookupd at %s: %w", lookupdHTTPAddr, err)
	}
	return r, nil
}

func (r *NSQRefresher) handle(msg *gonsq.Message) error {
	var update entity.Update
	if err := json.Unmarshal(msg.Body, &update); err != nil {
		r.mu.Lock()
		r.lastErr = fmt.Errorf("topology: decode gossip update: %w", err)
		r.mu.Unlock()
		return nil
	}

	r.mu.Lock()
	if !r.haveAny || update.Seq >= r.latest.Seq {
		r.latest = update
		r.haveAny = true
		r.lastErr = nil
	}
	r.mu.Unlock()
	return nil
}

// Refresh implements Refresher by returning the most recently gossiped
// Update, or the decode error from the last malformed message if nothing
// valid has arrived yet.
func (r *NSQRefresher) Refresh() (entity.Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.haveAny {
		if r.lastErr != nil {
			return entity.Update{}, r.lastErr
		}
		return entity.Update{}, fmt.Errorf("topology: no gossip update received yet")
	}
	return r.latest, nil
}

// Close stops the underlying consumer.
func (r *NSQRefresher) Close() {
	r.consumer.Stop()
}
