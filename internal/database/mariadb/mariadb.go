// Package mariadb stores the directory in MariaDB or MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"go.uber.org/zap"
)

func init() {
	database.RegisterBackend(config.BackendMariaDB, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.Backend, error) {
		pool, err := NewPool(ctx, cfg.MariaDB.DSN)
		if err != nil {
			return nil, err
		}
		store := NewUserStore(pool)
		if err := store.EnsureTable(ctx); err != nil {
			_ = pool.Close()
			return nil, err
		}
		logger.Debug("mariadb users table ready")
		return store, nil
	})
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sqlx.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: sqlx.NewDb(db, "mysql")}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
