package db

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// Client wraps the sqlx connection used by the analytics read/write model.
type Client struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewClient connects to PostgreSQL through the pgx stdlib driver.
func NewClient(dsn string, log *logger.Logger) (*Client, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Client{db: db, log: log}, nil
}

// NewClientFromDB wraps an existing sqlx handle. Used in tests.
func NewClientFromDB(db *sqlx.DB, log *logger.Logger) *Client {
	return &Client{db: db, log: log}
}

// DB exposes the underlying sqlx handle.
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Close closes the database connection.
func (c *Client) Close() error {
	if err := c.db.Close(); err != nil {
		c.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
