// Package testbroker embeds a single-process nsqd daemon so integration
// tests can exercise the real NSQTransport without a separately deployed
// broker.
package testbroker

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	gonsq "github.com/nsqio/go-nsq"
	"github.com/nsqio/nsq/nsqd"

	"github.com/ringbroker/client/pkg/nsqlog"
	"github.com/ringbroker/client/pkg/tlsutil"
)

// Broker is a locally running nsqd instance plus the TLS identity derived
// from its secret. The daemon does not require TLS, and the producers and
// consumers it hands out connect without it.
type Broker struct {
	name    string
	daemon  *nsqd.NSQD
	tlsCert []byte
	tlsKey  []byte
	logger  log.Logger
}

// New starts an embedded nsqd on an ephemeral port under dataDir,
// deriving its TLS identity from secret. name must be a valid NSQ
// channel name (letters, digits, '.', '_' and '-').
func New(name, dataDir, secret string) (*Broker, error) {
	if !gonsq.IsValidChannelName(name) {
		return nil, fmt.Errorf("testbroker: invalid broker name %q, must be a valid NSQ channel name", name)
	}
	logger := log.New("module", "testbroker", "name", name)

	cert, key, err := tlsutil.MakeTLSCert(secret)
	if err != nil {
		return nil, fmt.Errorf("testbroker: derive tls identity: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("testbroker: create data dir: %w", err)
	}

	opts := nsqd.NewOptions()
	opts.DataPath = dataDir
	opts.TCPAddress = "127.0.0.1:0"
	opts.HTTPAddress = ""
	opts.LogLevel = nsqd.LOG_WARN
	opts.Logger = &nsqlog.DaemonLogger{Logger: logger}
	opts.TLSRequired = nsqd.TLSNotRequired

	daemon, err := nsqd.New(opts)
	if err != nil {
		return nil, fmt.Errorf("testbroker: create daemon: %w", err)
	}
	go daemon.Main()

	return &Broker{name: name, daemon: daemon, tlsCert: cert, tlsKey: key, logger: logger}, nil
}

// Addr returns the TCP address the embedded daemon is listening on.
func (b *Broker) Addr() string {
	return b.daemon.RealTCPAddr().String()
}

// Name returns the broker's configured name.
func (b *Broker) Name() string {
	return b.name
}

// Close shuts the embedded daemon down.
func (b *Broker) Close() error {
	b.daemon.Exit()
	return nil
}

// NewProducer returns a producer connected to this broker without TLS.
func (b *Broker) NewProducer() (*gonsq.Producer, error) {
	config := gonsq.NewConfig()
	config.Snappy = true

	producer, err := gonsq.NewProducer(b.Addr(), config)
	if err != nil {
		return nil, fmt.Errorf("testbroker: new producer: %w", err)
	}
	producer.SetLogger(&nsqlog.ProducerLogger{Logger: b.logger}, gonsq.LogLevelWarning)
	return producer, nil
}

// NewConsumer returns a consumer for this broker, bound to topic/channel,
// configured without TLS.
func (b *Broker) NewConsumer(topic, channel string) (*gonsq.Consumer, error) {
	config := gonsq.NewConfig()
	config.Snappy = true

	consumer, err := gonsq.NewConsumer(topic, channel, config)
	if err != nil {
		return nil, fmt.Errorf("testbroker: new consumer: %w", err)
	}
	consumer.SetLogger(&nsqlog.ConsumerLogger{Logger: b.logger}, gonsq.LogLevelWarning)
	return consumer, nil
}
