package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gesinv/gesinv/internal/core"
)

// InsertProvider creates a provider with its contact fields.
func (s *Store) InsertProvider(ctx context.Context, p *core.Provider) (int64, error) {
	const query = `
		INSERT INTO proveedores (nombre, cif, email, telefono)
		VALUES (btrim($1), $2, $3, $4) RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		p.Name, toPgText(p.TaxID), toPgText(p.Email), toPgText(p.Phone),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert provider %q: %w", p.Name, err)
	}
	return id, nil
}

// UpdateProvider rewrites a provider record.
func (s *Store) UpdateProvider(ctx context.Context, p *core.Provider) error {
	const query = `
		UPDATE proveedores
		SET nombre = btrim($1), cif = $2, email = $3, telefono = $4
		WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query,
		p.Name, toPgText(p.TaxID), toPgText(p.Email), toPgText(p.Phone), p.ID)
	if err != nil {
		return fmt.Errorf("update provider %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update provider %d: no such record", p.ID)
	}
	return nil
}

// ContractByName resolves a contract by its unique name.
// Returns (nil, nil) when no record matches.
func (s *Store) ContractByName(ctx context.Context, name string) (*core.Contract, error) {
	const query = `
		SELECT id, nombre, tipo_contrato_id, proveedor_id,
			to_char(fecha_inicio, 'YYYY-MM-DD'),
			to_char(fecha_fin, 'YYYY-MM-DD'),
			importe::text,
			coalesce(descripcion, '')
		FROM contratos
		WHERE lower(btrim(nombre)) = lower(btrim($1))`

	var c core.Contract
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&c.ID, &c.Name, &c.TypeID, &c.ProviderID,
		&c.StartDate, &c.EndDate, &c.Amount, &c.Description,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup contract %q: %w", name, err)
	}
	return &c, nil
}

// InsertContract creates a contract.
func (s *Store) InsertContract(ctx context.Context, c *core.Contract) (int64, error) {
	const query = `
		INSERT INTO contratos (
			nombre, tipo_contrato_id, proveedor_id,
			fecha_inicio, fecha_fin, importe, descripcion
		) VALUES (btrim($1), $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		c.Name, c.TypeID, c.ProviderID,
		toPgDate(c.StartDate), toPgDate(c.EndDate),
		toPgNumeric(c.Amount), toPgText(c.Description),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert contract %q: %w", c.Name, err)
	}
	return id, nil
}

// UpdateContract rewrites a contract record.
func (s *Store) UpdateContract(ctx context.Context, c *core.Contract) error {
	const query = `
		UPDATE contratos SET
			nombre = btrim($1), tipo_contrato_id = $2, proveedor_id = $3,
			fecha_inicio = $4, fecha_fin = $5, importe = $6, descripcion = $7
		WHERE id = $8`

	tag, err := s.pool.Exec(ctx, query,
		c.Name, c.TypeID, c.ProviderID,
		toPgDate(c.StartDate), toPgDate(c.EndDate),
		toPgNumeric(c.Amount), toPgText(c.Description),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update contract %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update contract %d: no such record", c.ID)
	}
	return nil
}
