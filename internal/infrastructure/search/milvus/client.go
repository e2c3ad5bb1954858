// Package milvus stores knowledge-chunk vectors in Milvus, one collection per
// advisory domain.
package milvus

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/errors"
)

// ClientFactory creates the SDK client; replaced in tests.
type ClientFactory func(ctx context.Context, conf client.Config) (client.Client, error)

var milvusNewClient ClientFactory = client.NewClient

var (
	ErrConnectionFailed = errors.New(errors.ErrCodeVectorStore, "milvus connection failed")
	ErrUnhealthy        = errors.New(errors.ErrCodeServiceUnavailable, "milvus unhealthy")
)

// ClientConfig holds connection parameters.
type ClientConfig struct {
	Address             string
	Username            string
	Password            string
	DBName              string
	TLSEnabled          bool
	TLSCertPath         string
	TLSServerName       string
	ConnectTimeout      time.Duration
	HealthCheckInterval time.Duration
	KeepAliveTime       time.Duration
	KeepAliveTimeout    time.Duration
}

// Client owns the SDK connection and watches its health in the background,
// reconnecting after three consecutive failed checks.
type Client struct {
	milvusClient client.Client
	config       ClientConfig
	logger       logging.Logger
	healthy      atomic.Bool
	cancel       context.CancelFunc
	closeOnce    sync.Once
	mu           sync.RWMutex
}

// NewClient connects and verifies the server answers a health check.
func NewClient(cfg ClientConfig, logger logging.Logger) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.DBName == "" {
		cfg.DBName = "default"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.KeepAliveTime == 0 {
		cfg.KeepAliveTime = 60 * time.Second
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = 20 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	mc, err := connect(ctx, cfg)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.ErrCodeVectorStore, "failed to create milvus client")
	}

	c := &Client{
		milvusClient: mc,
		config:       cfg,
		logger:       logger.Named("milvus"),
		cancel:       cancel,
	}
	if err := c.CheckHealth(ctx); err != nil {
		_ = c.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	go c.watchHealth(ctx)

	c.logger.Info("milvus client connected", logging.String("address", cfg.Address), logging.String("db", cfg.DBName))
	return c, nil
}

func connect(ctx context.Context, cfg ClientConfig) (client.Client, error) {
	conf := client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	}

	var dialOpts []grpc.DialOption
	if cfg.TLSEnabled {
		tlsConfig := &tls.Config{ServerName: cfg.TLSServerName}
		if cfg.TLSCertPath != "" {
			pem, err := os.ReadFile(cfg.TLSCertPath)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to read TLS cert")
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, errors.New(errors.ErrCodeValidation, "failed to parse TLS cert")
			}
			tlsConfig.RootCAs = pool
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
		conf.EnableTLSAuth = true
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
		Time:                cfg.KeepAliveTime,
		Timeout:             cfg.KeepAliveTimeout,
		PermitWithoutStream: true,
	}))
	conf.DialOptions = dialOpts

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	return milvusNewClient(connectCtx, conf)
}

// CheckHealth pings the server and records the outcome.
func (c *Client) CheckHealth(ctx context.Context) error {
	mc := c.sdk()
	if mc == nil {
		return ErrConnectionFailed
	}
	state, err := mc.CheckHealth(ctx)
	if err == nil && state != nil && !state.IsHealthy {
		err = errors.Newf(errors.ErrCodeServiceUnavailable, "milvus reports unhealthy: %v", state.Reasons)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("milvus health check failed", logging.Err(err))
		return ErrUnhealthy.WithCause(err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *Client) sdk() client.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.milvusClient
}

// Close stops the health watcher and closes the connection. Safe to call
// more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.milvusClient != nil {
			err = c.milvusClient.Close()
		}
		c.logger.Info("milvus client closed")
	})
	return err
}

func (c *Client) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasHealthy := c.healthy.Load()
			err := c.CheckHealth(ctx)
			switch {
			case err == nil && !wasHealthy:
				c.logger.Info("milvus recovered")
				failures = 0
			case err == nil:
				failures = 0
			default:
				failures++
			}
			if failures >= 3 {
				c.logger.Warn("milvus failed consecutive health checks, reconnecting", logging.Int("failures", failures))
				if err := c.reconnect(ctx); err != nil {
					c.logger.Error("milvus reconnect failed", logging.Err(err))
					continue
				}
				failures = 0
			}
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	mc, err := connect(ctx, c.config)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.milvusClient
	c.milvusClient = mc
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	c.logger.Warn("milvus client reconnected")
	return nil
}

// ValidateConfig checks the connection parameters.
func ValidateConfig(cfg ClientConfig) error {
	if cfg.Address == "" {
		return errors.New(errors.ErrCodeValidation, "milvus address is required")
	}
	if cfg.ConnectTimeout < 0 {
		return errors.New(errors.ErrCodeValidation, "milvus connect timeout must be >= 0")
	}
	return nil
}
