package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gesinv/gesinv/internal/core"
)

const assetColumns = `
	id, nombre, numero_serie, tipo_activo_id,
	fabricante_id, modelo_id, estado_id, localizacion_id,
	departamento_id, formato_adquisicion_id, proveedor_id,
	to_char(fecha_compra, 'YYYY-MM-DD'),
	precio_compra::text,
	to_char(fecha_fin_garantia, 'YYYY-MM-DD'),
	coalesce(observaciones, '')`

func scanAsset(row pgx.Row) (*core.Asset, error) {
	var a core.Asset
	err := row.Scan(
		&a.ID, &a.Name, &a.Serial, &a.TypeID,
		&a.ManufacturerID, &a.ModelID, &a.StatusID, &a.LocationID,
		&a.DepartmentID, &a.AcquisitionFormatID, &a.ProviderID,
		&a.PurchaseDate, &a.PurchasePrice, &a.WarrantyEnd, &a.Notes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AssetBySerial looks up an asset by (serial, asset type).
// Returns (nil, nil) when no record matches.
func (s *Store) AssetBySerial(ctx context.Context, serial string, typeID int64) (*core.Asset, error) {
	query := `SELECT` + assetColumns + `
		FROM activos
		WHERE lower(btrim(numero_serie)) = lower(btrim($1)) AND tipo_activo_id = $2`

	a, err := scanAsset(s.pool.QueryRow(ctx, query, serial, typeID))
	if err != nil {
		return nil, fmt.Errorf("lookup asset by serial %q: %w", serial, err)
	}
	return a, nil
}

// AssetByName looks up an asset by (name, asset type). Used only as
// an existence check for rows arriving without a serial.
func (s *Store) AssetByName(ctx context.Context, name string, typeID int64) (*core.Asset, error) {
	query := `SELECT` + assetColumns + `
		FROM activos
		WHERE lower(btrim(nombre)) = lower(btrim($1)) AND tipo_activo_id = $2`

	a, err := scanAsset(s.pool.QueryRow(ctx, query, name, typeID))
	if err != nil {
		return nil, fmt.Errorf("lookup asset by name %q: %w", name, err)
	}
	return a, nil
}

// CreateAsset inserts the base record and its custom-field values in
// one transaction, so a rejected value never leaves a half-written
// asset behind.
func (s *Store) CreateAsset(ctx context.Context, a *core.Asset, values []core.FieldValue) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin create asset: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO activos (
			nombre, numero_serie, tipo_activo_id,
			fabricante_id, modelo_id, estado_id, localizacion_id,
			departamento_id, formato_adquisicion_id, proveedor_id,
			fecha_compra, precio_compra, fecha_fin_garantia, observaciones
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	var id int64
	err = tx.QueryRow(ctx, query,
		a.Name, a.Serial, a.TypeID,
		toPgInt8(a.ManufacturerID), toPgInt8(a.ModelID), toPgInt8(a.StatusID),
		toPgInt8(a.LocationID), toPgInt8(a.DepartmentID),
		toPgInt8(a.AcquisitionFormatID), toPgInt8(a.ProviderID),
		toPgDate(a.PurchaseDate), toPgNumeric(a.PurchasePrice),
		toPgDate(a.WarrantyEnd), toPgText(a.Notes),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert asset %q: %w", a.Name, err)
	}

	if err := writeFieldValues(ctx, tx, id, values); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit create asset: %w", err)
	}
	return id, nil
}

// UpdateAsset rewrites the base record and upserts the supplied
// custom-field values, transactionally.
func (s *Store) UpdateAsset(ctx context.Context, a *core.Asset, values []core.FieldValue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update asset: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		UPDATE activos SET
			nombre = $1, numero_serie = $2, tipo_activo_id = $3,
			fabricante_id = $4, modelo_id = $5, estado_id = $6,
			localizacion_id = $7, departamento_id = $8,
			formato_adquisicion_id = $9, proveedor_id = $10,
			fecha_compra = $11, precio_compra = $12,
			fecha_fin_garantia = $13, observaciones = $14
		WHERE id = $15`

	tag, err := tx.Exec(ctx, query,
		a.Name, a.Serial, a.TypeID,
		toPgInt8(a.ManufacturerID), toPgInt8(a.ModelID), toPgInt8(a.StatusID),
		toPgInt8(a.LocationID), toPgInt8(a.DepartmentID),
		toPgInt8(a.AcquisitionFormatID), toPgInt8(a.ProviderID),
		toPgDate(a.PurchaseDate), toPgNumeric(a.PurchasePrice),
		toPgDate(a.WarrantyEnd), toPgText(a.Notes),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update asset %d: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update asset %d: no such record", a.ID)
	}

	if err := writeFieldValues(ctx, tx, a.ID, values); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update asset: %w", err)
	}
	return nil
}

func writeFieldValues(ctx context.Context, tx pgx.Tx, assetID int64, values []core.FieldValue) error {
	const query = `
		INSERT INTO valores_campo (activo_id, campo_id, valor)
		VALUES ($1, $2, $3)
		ON CONFLICT (activo_id, campo_id) DO UPDATE SET valor = EXCLUDED.valor`

	for _, v := range values {
		if _, err := tx.Exec(ctx, query, assetID, v.FieldID, v.Value); err != nil {
			return fmt.Errorf("write field value %d: %w", v.FieldID, err)
		}
	}
	return nil
}

// CustomFieldDefs loads the custom-field definitions configured for an
// asset type, in display order.
func (s *Store) CustomFieldDefs(ctx context.Context, assetTypeID int64) ([]core.CustomFieldDef, error) {
	const query = `
		SELECT id, nombre, tipo_dato, coalesce(unidad, ''), es_requerido
		FROM campos_personalizados
		WHERE tipo_activo_id = $1
		ORDER BY orden, id`

	rows, err := s.pool.Query(ctx, query, assetTypeID)
	if err != nil {
		return nil, fmt.Errorf("load custom fields for type %d: %w", assetTypeID, err)
	}
	defer rows.Close()

	var defs []core.CustomFieldDef
	for rows.Next() {
		var d core.CustomFieldDef
		if err := rows.Scan(&d.ID, &d.Name, &d.DataType, &d.Unit, &d.Required); err != nil {
			return nil, fmt.Errorf("scan custom field: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custom fields: %w", err)
	}
	return defs, nil
}
