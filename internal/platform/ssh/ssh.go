package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/pkg-perl/petprov/internal/provisioning/host"
	"github.com/pkg-perl/petprov/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 5
	defaultRetryDelay  = time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// CommandTimeout bounds every command. Zero means no limit.
	CommandTimeout time.Duration

	// HostKeyCallback verifies the server. Required; see HostKeyCallback.
	HostKeyCallback ssh.HostKeyCallback
}

// Client executes commands on a remote server via SSH.
// It parses the private key once during construction and dials on the
// first Run.
type Client struct {
	config *Config
	signer ssh.Signer

	mu   sync.Mutex
	conn *ssh.Client
}

var _ host.Executor = (*Client)(nil)

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}
	if cfg.HostKeyCallback == nil {
		return nil, fmt.Errorf("config host key callback cannot be nil")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		config: &configCopy,
		signer: signer,
	}, nil
}

// HostKeyCallback returns a known_hosts based verifier, or one that accepts
// any key when insecure is set. An empty path means ~/.ssh/known_hosts.
func HostKeyCallback(knownHostsPath string, insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly requested by the plan
	}

	path := strings.TrimSpace(knownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", path, err)
	}
	return callback, nil
}

// Address returns host:port of the remote server.
func (c *Client) Address() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Run implements host.Executor.
func (c *Client) Run(ctx context.Context, cmd host.Command) (host.Result, error) {
	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return host.Result{}, err
	}

	session, err := conn.NewSession()
	if err != nil {
		c.reset()
		return host.Result{}, fmt.Errorf("failed to create SSH session on %s: %w", c.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	session.Stdin = cmd.Stdin

	line := host.JoinCommand(cmd.Argv())
	done := make(chan error, 1)
	go func() { done <- session.Run(line) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		// The copy goroutines own the buffers until session.Run returns.
		_ = session.Close()
		<-done
		return host.Result{Stdout: stdout.String(), Stderr: stderr.String()},
			fmt.Errorf("command %s on %s interrupted: %w", cmd, c.config.Host, ctx.Err())
	case err = <-done:
	}

	res := host.Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, nil
	}
	return res, fmt.Errorf("command %s on %s could not run: %w", cmd, c.config.Host, err)
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) reset() {
	_ = c.Close()
}

// connect establishes the SSH connection with retry logic, or returns the
// one already open.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	var hostKeyErr error
	config := &ssh.ClientConfig{
		User: c.config.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(c.signer),
		},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			if err := c.config.HostKeyCallback(hostname, remote, key); err != nil {
				hostKeyErr = err
				return err
			}
			return nil
		},
		Timeout: c.config.DialTimeout,
	}

	addr := c.Address()
	var client *ssh.Client

	err := retry.Do(ctx, func(context.Context) error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, config)
		if dialErr != nil && hostKeyErr != nil {
			// A mismatching host key will not fix itself.
			return retry.Fatal(fmt.Errorf("host key verification failed for %s: %w", addr, hostKeyErr))
		}
		return dialErr
	},
		retry.WithMaxAttempts(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	c.conn = client
	return client, nil
}
