package store

import (
	"context"
	"fmt"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type OpenOptions struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	Silent      bool
}

// Open connects the configured backend and migrates it. The returned close
// func is never nil.
func Open(ctx context.Context, opts OpenOptions) (Store, func() error, error) {
	var (
		g   *Gorm
		err error
	)
	switch opts.Driver {
	case DriverMemory:
		return NewMemory(MemoryOptions{}), func() error { return nil }, nil
	case DriverSQLite:
		g, err = OpenSQLite(opts.SQLitePath, Options{Silent: opts.Silent})
	case DriverPostgres, "":
		g, err = OpenPostgres(opts.DatabaseURL, Options{Silent: opts.Silent})
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := g.Migrate(ctx); err != nil {
		_ = g.Close()
		return nil, nil, err
	}
	return g, g.Close, nil
}
