// Package postgres is the concrete Storage implementation: the only
// process-wide synchronization medium the workers share (spec §4.1).
package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "storage")

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config mirrors spec §6's db.{host,port,username,password,database,
// max_connections,use_ssl} configuration block.
type Config struct {
	Host          string
	Port          uint16
	Username      string
	Password      string
	Database      string
	MaxConnections int32
	UseSSL        bool
}

func (c Config) dsn(scheme string) string {
	sslmode := "disable"
	if c.UseSSL {
		sslmode = "require"
	}
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		scheme, c.Username, c.Password, c.Host, c.Port, c.Database, sslmode, c.MaxConnections,
	)
}

// Postgres is the pgx-backed Storage implementation.
type Postgres struct {
	pool *pgxpool.Pool
	cfg  Config
}

// Connect opens a connection pool against the configured database. It does
// not run migrations; call Migrate explicitly (the scheduler/process root
// does this once, at startup, before any worker is scheduled).
func Connect(ctx context.Context, cfg Config) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.dsn("postgres"))
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging postgres")
	}
	return &Postgres{pool: pool, cfg: cfg}, nil
}

// Migrate applies every pending migration, in deterministic forward-only
// order (spec §6 "Persisted state layout").
func (p *Postgres) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, "loading embedded migrations")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, p.cfg.dsn("pgx5"))
	if err != nil {
		return errors.Wrap(err, "constructing migrator")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "applying migrations")
	}

	log.Info("migrations applied")
	return nil
}

// Close releases the underlying connection pool. Called once, at process
// shutdown, after every worker task has exited.
func (p *Postgres) Close() {
	p.pool.Close()
}
