// Package db stores similarity indexes and thread checkpoints in SurrealDB,
// over an auto-reconnecting WebSocket connection.
package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrade needs HTTP/1.1; pin ALPN so wss:// never negotiates h2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Auth levels accepted in Config.AuthLevel.
const (
	AuthRoot     = "root"
	AuthDatabase = "database"
)

// Tables owned by the stores in this package.
var Tables = []string{"chunk", "collection_index", "thread_checkpoint"}

// Config holds SurrealDB connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // AuthRoot (default) or AuthDatabase
}

// Validate reports settings that cannot produce a working connection.
func (c Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		errs = append(errs, fmt.Errorf("url %q must use ws:// or wss://", c.URL))
	}
	if c.Namespace == "" || c.Database == "" {
		errs = append(errs, errors.New("namespace and database are required"))
	}
	switch c.AuthLevel {
	case "", AuthRoot, AuthDatabase:
	default:
		errs = append(errs, fmt.Errorf("unknown auth level %q", c.AuthLevel))
	}
	return errors.Join(errs...)
}

// baseURL strips the /rpc suffix; gorillaws appends it itself.
func (c Config) baseURL() string {
	return strings.TrimSuffix(strings.TrimRight(c.URL, "/"), "/rpc")
}

// auth returns sign-in credentials scoped to the configured level.
func (c Config) auth() surrealdb.Auth {
	a := surrealdb.Auth{Username: c.Username, Password: c.Password}
	if c.AuthLevel == AuthDatabase {
		a.Namespace = c.Namespace
		a.Database = c.Database
	}
	return a
}

// Client is a SurrealDB session shared by IndexStore and CheckpointStore.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger *slog.Logger
}

// NewClient connects, signs in and selects the configured namespace and
// database. The connection reconnects with exponential backoff on drops.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("surrealdb config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "surrealdb", "namespace", cfg.Namespace, "database", cfg.Database)

	conn := dial(cfg, logger.New(log.Handler()))
	log.Info("connecting", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, cfg.auth()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin as %s (%s): %w", cfg.Username, cfg.AuthLevel, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	log.Info("connected", "auth_level", cfg.AuthLevel)
	return &Client{conn: conn, db: db, cfg: cfg, logger: log}, nil
}

func dial(cfg Config, sdkLogger logger.Logger) *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	base := cfg.baseURL()

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     base,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer
	return conn
}

// Close ends the session.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Debug("closing connection")
	return c.conn.Close(ctx)
}

// DB exposes the session for queries.
func (c *Client) DB() *surrealdb.DB {
	return c.db
}

// InitSchema defines the index and checkpoint tables. It is idempotent.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.logger.Debug("schema ready", "tables", strings.Join(Tables, ","))
	return nil
}

// WipeData deletes every row of Tables and keeps their definitions. Tests only.
func (c *Client) WipeData(ctx context.Context) error {
	for _, table := range Tables {
		if _, err := surrealdb.Query[any](ctx, c.db, "DELETE "+table, nil); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	c.logger.Warn("wiped index and checkpoint data")
	return nil
}
