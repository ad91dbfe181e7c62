package hcloud

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/pkg-perl/petprov/internal/config"
	"github.com/pkg-perl/petprov/internal/util/retry"
)

// EnvToken is the environment variable holding the API token.
const EnvToken = "HCLOUD_TOKEN"

var (
	// ErrServerNotFound is returned when no server has the requested name.
	ErrServerNotFound = errors.New("server not found")
	// ErrNoPublicIP is returned when the server has no public address.
	ErrNoPublicIP = errors.New("server has no public IP")
	// ErrNoToken is returned when HCLOUD_TOKEN is unset.
	ErrNoToken = errors.New(EnvToken + " is not set")
)

// ServerResolver maps a server name to a reachable address.
type ServerResolver interface {
	ServerIP(ctx context.Context, name string) (string, error)
}

// RealClient implements ServerResolver on the Hetzner Cloud API.
type RealClient struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
}

var _ ServerResolver = (*RealClient)(nil)

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom retry settings for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client:   hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("petprov", "")),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv creates a RealClient with the token from HCLOUD_TOKEN.
func NewFromEnv(opts ...ClientOption) (*RealClient, error) {
	token := os.Getenv(EnvToken)
	if token == "" {
		return nil, ErrNoToken
	}
	return NewRealClient(token, opts...), nil
}

// ServerIP returns the public IP of the server, preferring IPv4.
func (c *RealClient) ServerIP(ctx context.Context, name string) (string, error) {
	var server *hcloud.Server
	err := retry.Do(ctx, func(ctx context.Context) error {
		s, _, err := c.client.Server.Get(ctx, name)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return retry.Fatal(err)
		}
		server = s
		return nil
	},
		retry.WithMaxAttempts(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
	)
	if err != nil {
		return "", fmt.Errorf("failed to get server %s: %w", name, err)
	}
	if server == nil {
		return "", fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}

	if ip := server.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		return ip.String(), nil
	}
	if ip := server.PublicNet.IPv6.IP; ip != nil && !ip.IsUnspecified() {
		// The /64 network address is returned; ::1 is the conventional host.
		host := make(net.IP, len(ip))
		copy(host, ip)
		host[len(host)-1] = 1
		return host.String(), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoPublicIP, name)
}
