// Package app wires the topology view, transport, and request-controller
// pool into runnable compositions: a long-lived admin/introspection daemon
// and a one-shot request sender, both driven by cmd/ringctl.
package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/ringbroker/client/config"
	"github.com/ringbroker/client/internal/admin"
	"github.com/ringbroker/client/internal/clock"
	"github.com/ringbroker/client/internal/controller"
	"github.com/ringbroker/client/internal/entity"
	"github.com/ringbroker/client/internal/future"
	"github.com/ringbroker/client/internal/handler"
	"github.com/ringbroker/client/internal/topology"
	"github.com/ringbroker/client/internal/transport/nsqtransport"
	"github.com/ringbroker/client/pkg/httpserver"
	"github.com/ringbroker/client/pkg/tlsutil"
)

// cluster bundles the pieces every composition in this package needs:
// a topology view kept current by NSQ gossip, and a transport that can
// reach whatever endpoints that view resolves.
type cluster struct {
	view      *topology.View
	refresher *topology.NSQRefresher
	transport *nsqtransport.Transport
	pool      *controller.Pool
	runner    *controller.Runner
}

func dial(cfg *config.Config) (*cluster, error) {
	certPEM, keyPEM, err := tlsutil.MakeTLSCert(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("app: derive tls identity: %w", err)
	}

	refresher, err := topology.NewNSQRefresher(cfg.NSQLookupdHTTP.String(), cfg.ClientID, certPEM, keyPEM, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("app: start topology refresher: %w", err)
	}
	view := topology.New(refresher)

	tr := nsqtransport.New(certPEM, keyPEM, cfg.ClientID, cfg.Logger)

	pool := controller.New(view, tr, clock.Real{})
	runner := controller.NewRunner(10 * time.Millisecond)

	return &cluster{view: view, refresher: refresher, transport: tr, pool: pool, runner: runner}, nil
}

func (c *cluster) Close() {
	c.runner.Stop()
	c.transport.Close()
	c.refresher.Close()
}

// Run starts the admin introspection API and blocks until a termination
// signal arrives.
func Run(cfg *config.Config) error {
	c, err := dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	go c.runner.Run()

	handle := c.view.RefreshNow()
	<-handle.Done()
	if _, err := handle.Get(); err != nil {
		cfg.Logger.Warn("app: initial topology refresh failed", "err", err)
	}

	router := admin.NewRouter(httprouter.New(), c.view)
	cfg.Logger.Info("starting admin api", "addr", cfg.AdminListener.String())
	srv := httpserver.New(router, httpserver.Addr(cfg.AdminListener.String()))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		cfg.Logger.Info("signal received, shutting down", "signal", s.String())
	case err := <-srv.Notify():
		cfg.Logger.Error("admin api stopped unexpectedly", "err", err)
	}

	return srv.Shutdown()
}

// SendCommand resolves and drives a single command to completion, or to
// the configured request deadline, whichever comes first.
func SendCommand(cfg *config.Config, mapper handler.ObjectMapper, cmd entity.Command) (interface{}, error) {
	c, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	go c.runner.Run()

	handle := c.view.RefreshNow()
	<-handle.Done()
	if _, err := handle.Get(); err != nil {
		return nil, fmt.Errorf("app: initial topology refresh: %w", err)
	}

	rc := c.pool.Acquire()
	result := future.New[interface{}]()
	if err := rc.ConfigureCommand(mapper, cmd, result); err != nil {
		return nil, err
	}
	c.runner.Track(rc)

	<-result.Done()
	return result.Get()
}

// PrintStatus forces a topology refresh and renders the resulting node
// membership and partition-ownership tables to w, the client analogue of
// the teacher's cluster-membership status report.
func PrintStatus(cfg *config.Config, w io.Writer) error {
	c, err := dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	go c.runner.Run()

	handle := c.view.RefreshNow()
	<-handle.Done()
	if _, err := handle.Get(); err != nil {
		return fmt.Errorf("app: topology refresh: %w", err)
	}

	snap := c.view.Snapshot()
	fmt.Fprintln(w, "Nodes:")
	topology.ReportNodes(w, snap)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Partitions:")
	topology.ReportPartitions(w, snap)
	fmt.Fprintln(w)
	topology.ReportUnreachablePartitions(w, snap)
	return nil
}

// SendControlMessage mirrors SendCommand for cluster-management traffic.
func SendControlMessage(cfg *config.Config, mapper handler.ObjectMapper, msg entity.ControlMessage) (interface{}, error) {
	c, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	go c.runner.Run()

	handle := c.view.RefreshNow()
	<-handle.Done()
	if _, err := handle.Get(); err != nil {
		return nil, fmt.Errorf("app: initial topology refresh: %w", err)
	}

	rc := c.pool.Acquire()
	result := future.New[interface{}]()
	if err := rc.ConfigureControlMessage(mapper, msg, result); err != nil {
		return nil, err
	}
	c.runner.Track(rc)

	<-result.Done()
	return result.Get()
}
