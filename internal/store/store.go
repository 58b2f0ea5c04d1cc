// Package store implements core.Store on PostgreSQL via pgx.
//
// All SQL is raw and parameterized. Natural-key lookups match on
// lower(btrim(nombre)) so stored spellings keep their case while
// comparisons ignore case and surrounding whitespace.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gesinv/gesinv/internal/core"
)

// Store is the pgx-backed implementation of core.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps a connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// masterTables whitelists the tables reachable through MasterKind.
// Table names are interpolated into SQL, so anything not in this map
// is rejected before it gets near a query.
var masterTables = map[core.MasterKind]bool{
	core.KindAssetTypes:         true,
	core.KindAssetStatuses:      true,
	core.KindContractTypes:      true,
	core.KindLocations:          true,
	core.KindDepartments:        true,
	core.KindAcquisitionFormats: true,
	core.KindManufacturers:      true,
	core.KindProviders:          true,
}

func masterTable(kind core.MasterKind) (string, error) {
	if !masterTables[kind] {
		return "", fmt.Errorf("unknown master table %q", kind)
	}
	return string(kind), nil
}

// MasterByName resolves a master record by its natural key.
// Returns (nil, nil) when no record matches.
func (s *Store) MasterByName(ctx context.Context, kind core.MasterKind, name string) (*core.Ref, error) {
	table, err := masterTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT id, nombre FROM %s WHERE lower(btrim(nombre)) = lower(btrim($1))`, table)

	var ref core.Ref
	err = s.pool.QueryRow(ctx, query, name).Scan(&ref.ID, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s %q: %w", table, name, err)
	}
	return &ref, nil
}

// InsertMaster creates a master record with a trimmed name.
func (s *Store) InsertMaster(ctx context.Context, kind core.MasterKind, name string) (int64, error) {
	table, err := masterTable(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (nombre) VALUES (btrim($1)) RETURNING id`, table)

	var id int64
	if err := s.pool.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", table, name, err)
	}
	return id, nil
}

// UpdateMasterName refreshes the stored spelling of a master record.
func (s *Store) UpdateMasterName(ctx context.Context, kind core.MasterKind, id int64, name string) error {
	table, err := masterTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET nombre = btrim($1) WHERE id = $2`, table)

	tag, err := s.pool.Exec(ctx, query, name, id)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %d: no such record", table, id)
	}
	return nil
}

// ModelByName resolves a model by (name, manufacturer).
func (s *Store) ModelByName(ctx context.Context, name string, manufacturerID int64) (*core.Ref, error) {
	const query = `
		SELECT id, nombre FROM modelos
		WHERE lower(btrim(nombre)) = lower(btrim($1)) AND fabricante_id = $2`

	var ref core.Ref
	err := s.pool.QueryRow(ctx, query, name, manufacturerID).Scan(&ref.ID, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup model %q: %w", name, err)
	}
	return &ref, nil
}

// InsertModel creates a model under a manufacturer.
func (s *Store) InsertModel(ctx context.Context, name string, manufacturerID int64) (int64, error) {
	const query = `
		INSERT INTO modelos (nombre, fabricante_id)
		VALUES (btrim($1), $2) RETURNING id`

	var id int64
	if err := s.pool.QueryRow(ctx, query, name, manufacturerID).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert model %q: %w", name, err)
	}
	return id, nil
}

// NextSequence atomically increments and returns the named counter.
// The single UPDATE ... RETURNING relies on row-level locking, so
// concurrent callers serialize on the counter row and never see the
// same value. Counter rows must be pre-provisioned by migrations.
func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	const query = `
		UPDATE contadores SET valor = valor + 1
		WHERE nombre = $1 RETURNING valor`

	var value int64
	err := s.pool.QueryRow(ctx, query, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("counter %q is not provisioned", name)
	}
	if err != nil {
		return 0, fmt.Errorf("advance counter %q: %w", name, err)
	}
	return value, nil
}

// toPgDate converts an optional ISO yyyy-mm-dd string to a date param.
func toPgDate(iso *string) pgtype.Date {
	if iso == nil || *iso == "" {
		return pgtype.Date{}
	}
	t, err := time.Parse("2006-01-02", *iso)
	if err != nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// toPgNumeric converts an optional dot-notation decimal string to a
// numeric param.
func toPgNumeric(dec *string) pgtype.Numeric {
	var n pgtype.Numeric
	if dec == nil || *dec == "" {
		return n
	}
	if err := n.Scan(*dec); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// toPgText converts a possibly empty string to a nullable text param.
func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgInt8 converts an optional id to a nullable bigint param.
func toPgInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
