// Package store selects and assembles the persistence collaborator.
package store

import (
	"context"
	"fmt"
	"os"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/store/memory"
	"github.com/dkeye/roomgate/internal/store/postgres"
	"github.com/dkeye/roomgate/internal/store/sqlite"
	"github.com/rs/zerolog/log"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects the configured backend. For the memory driver dsn is an
// optional JSON seed file.
func Open(ctx context.Context, driver, dsn string) (core.Store, error) {
	log.Info().Str("module", "store").Str("driver", driver).Msg("opening store")
	switch driver {
	case DriverMemory:
		s := memory.New(nil)
		if dsn != "" {
			f, err := os.Open(dsn)
			if err != nil {
				return nil, fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()
			if err := s.LoadSeed(f); err != nil {
				return nil, err
			}
		}
		return s, nil
	case DriverSQLite:
		s, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		return postgres.Connect(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
