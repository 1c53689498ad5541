// Package nsqtransport implements transport.Transport over NSQ: each
// broker node owns a "<node>.req" topic and a "<node>.resp" topic, and a
// correlation id prefixed ahead of every wire frame lets one long-lived
// response subscription fan back out to many concurrent callers.
package nsqtransport

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	gonsq "github.com/nsqio/go-nsq"

	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/transport"
	"github.com/ringbroker/client/pkg/nsqlog"
	"github.com/ringbroker/client/pkg/tlsutil"
)

// correlationLen is the byte length of the correlation id carried ahead of
// every published frame. NSQ has no reply-to address of its own.
const correlationLen = 16

// Transport sends request frames to broker nodes over NSQ.
type Transport struct {
	certPEM  []byte
	keyPEM   []byte
	clientID string
	log      log.Logger

	mu        sync.Mutex
	producers map[string]*gonsq.Producer
	consumers map[string]*gonsq.Consumer

	pendingMu sync.Mutex
	pending   map[string]*pending
}

// New returns a Transport authenticated with the cluster TLS identity
// derived by tlsutil.MakeTLSCert. clientID names this client's response
// channel on every node it talks to and must be stable for the process's
// lifetime.
func New(certPEM, keyPEM []byte, clientID string, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.New("module", "nsqtransport")
	}
	return &Transport{
		certPEM:   certPEM,
		keyPEM:    keyPEM,
		clientID:  clientID,
		log:       logger,
		producers: make(map[string]*gonsq.Producer),
		consumers: make(map[string]*gonsq.Consumer),
		pending:   make(map[string]*pending),
	}
}

// Send publishes frame to endpoint's request topic and returns a Pending
// that resolves when the matching reply arrives on that endpoint's
// response topic, or when sending itself fails.
func (t *Transport) Send(endpoint entity.Endpoint, frame []byte) transport.Pending {
	p := newPending()

	producer, err := t.producerFor(endpoint)
	if err != nil {
		p.complete(nil, err)
		return p
	}
	if err := t.ensureConsumer(endpoint); err != nil {
		p.complete(nil, err)
		return p
	}

	corrID := uuid.New()
	key := string(corrID[:])

	t.pendingMu.Lock()
	t.pending[key] = p
	t.pendingMu.Unlock()

	wire := make([]byte, correlationLen+len(frame))
	copy(wire, corrID[:])
	copy(wire[correlationLen:], frame)

	if err := producer.Publish(endpoint.NodeID+".req", wire); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, key)
		t.pendingMu.Unlock()
		p.complete(nil, fmt.Errorf("nsqtransport: publish to %s: %w", endpoint, err))
	}
	return p
}

// Close tears down every producer and consumer this transport has opened.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.producers {
		p.Stop()
	}
	for _, c := range t.consumers {
		c.Stop()
	}
}

func (t *Transport) producerFor(endpoint entity.Endpoint) (*gonsq.Producer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.producers[endpoint.NodeID]; ok {
		return p, nil
	}
	if endpoint.Addr == nil {
		return nil, fmt.Errorf("nsqtransport: endpoint %s has no address", endpoint)
	}

	config, err := t.nsqConfig()
	if err != nil {
		return nil, err
	}
	producer, err := gonsq.NewProducer(endpoint.Addr.String(), config)
	if err != nil {
		return nil, fmt.Errorf("nsqtransport: new producer for %s: %w", endpoint, err)
	}
	producer.SetLogger(&nsqlog.ProducerLogger{Logger: t.log}, gonsq.LogLevelWarning)
	t.producers[endpoint.NodeID] = producer
	return producer, nil
}

func (t *Transport) ensureConsumer(endpoint entity.Endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.consumers[endpoint.NodeID]; ok {
		return nil
	}
	if endpoint.Addr == nil {
		return fmt.Errorf("nsqtransport: endpoint %s has no address", endpoint)
	}

	config, err := t.nsqConfig()
	if err != nil {
		return err
	}
	consumer, err := gonsq.NewConsumer(endpoint.NodeID+".resp", t.clientID, config)
	if err != nil {
		return fmt.Errorf("nsqtransport: new consumer for %s: %w", endpoint, err)
	}
	consumer.SetLogger(&nsqlog.ConsumerLogger{Logger: t.log}, gonsq.LogLevelWarning)
	consumer.AddHandler(gonsq.HandlerFunc(t.dispatch))
	if err := consumer.ConnectToNSQD(endpoint.Addr.String()); err != nil {
		return fmt.Errorf("nsqtransport: connect consumer to %s: %w", endpoint, err)
	}
	t.consumers[endpoint.NodeID] = consumer
	return nil
}

func (t *Transport) nsqConfig() (*gonsq.Config, error) {
	config := gonsq.NewConfig()
	config.Snappy = true
	if t.certPEM != nil {
		tlsConfig, err := tlsutil.MakeTLSConfig(t.certPEM, t.keyPEM)
		if err != nil {
			return nil, fmt.Errorf("nsqtransport: build tls config: %w", err)
		}
		config.TlsV1 = true
		config.TlsConfig = tlsConfig
	}
	return config, nil
}

// dispatch is the go-nsq message handler for every "<node>.resp" consumer:
// it strips the correlation id prefix and resolves the matching Pending.
// A reply with no known correlation id is stale or addressed to a
// different process sharing this channel, and is dropped without requeue.
func (t *Transport) dispatch(msg *gonsq.Message) error {
	if len(msg.Body) < correlationLen {
		t.log.Warn("nsqtransport: response shorter than correlation prefix", "len", len(msg.Body))
		return nil
	}
	key := string(msg.Body[:correlationLen])
	frame := msg.Body[correlationLen:]

	t.pendingMu.Lock()
	p, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.pendingMu.Unlock()
	if !ok {
		return nil
	}

	out := make([]byte, len(frame))
	copy(out, frame)
	p.complete(out, nil)
	return nil
}

// pending is the transport.Pending implementation backing one Send call.
type pending struct {
	mu       sync.Mutex
	done     chan struct{}
	frame    []byte
	err      error
	released bool
}

func newPending() *pending {
	return &pending{done: make(chan struct{})}
}

func (p *pending) complete(frame []byte, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}
	p.frame, p.err = frame, err
	close(p.done)
}

func (p *pending) IsDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *pending) Take() ([]byte, error) {
	<-p.done
	return p.frame, p.err
}

func (p *pending) Release() {
	p.mu.Lock()
	p.released = true
	p.mu.Unlock()
}
