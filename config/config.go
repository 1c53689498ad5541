package config

import (
	"net"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/ringbroker/client/pkg/netutil"
)

// Config is everything a ringctl invocation needs to stand up a
// RequestController against a running cluster.
type Config struct {
	ClientID string
	Secret   string

	NSQLookupdHTTP *net.TCPAddr
	AdminListener  *net.TCPAddr

	Logger log.Logger
}

// NewConfig reads the flags registered by RegisterFlags off cmd.
func NewConfig(cmd *cobra.Command) (*Config, error) {
	clientID, _ := cmd.Flags().GetString("client.id")
	secret, _ := cmd.Flags().GetString("cluster.secret")

	lookupdAddr, _ := cmd.Flags().GetString("nsqlookupd.addr")
	lookupdHTTPPort, _ := cmd.Flags().GetInt("nsqlookupd.httpport")

	adminAddr, _ := cmd.Flags().GetString("admin.addr")
	adminPort, _ := cmd.Flags().GetInt("admin.port")

	return &Config{
		ClientID: clientID,
		Secret:   secret,
		NSQLookupdHTTP: &net.TCPAddr{
			IP:   net.ParseIP(lookupdAddr),
			Port: lookupdHTTPPort,
		},
		AdminListener: &net.TCPAddr{
			IP:   net.ParseIP(adminAddr),
			Port: adminPort,
		},
		Logger: log.New("client", clientID),
	}, nil
}

// RegisterFlags attaches every flag NewConfig reads to cmd.
func RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().String("client.id", "", "Unique identifier for this client's NSQ response channel")
	cmd.Flags().String("cluster.secret", "", "Shared secret used to derive this cluster's TLS identity")
	cmd.Flags().String("nsqlookupd.addr", "127.0.0.1", "Interface address to reach nsqlookupd on")
	cmd.Flags().Int("nsqlookupd.httpport", 4161, "HTTP port nsqlookupd listens on")
	cmd.Flags().String("admin.addr", netutil.ExternalAddress(), "Interface to serve the admin introspection API on")
	cmd.Flags().Int("admin.port", 4180, "Port to serve the admin introspection API on")
	cmd.MarkFlagRequired("client.id")
	cmd.MarkFlagRequired("cluster.secret")
}
