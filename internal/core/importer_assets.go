package core

import (
	"context"
	"fmt"
	"strings"
)

// importAsset upserts one asset row.
//
// Upsert strategy: a row carrying a serial number is keyed by
// (serial, asset type) and updated in place on match. A row without a
// serial is keyed by (name, asset type) for the existence check only;
// a match is a conflict the engine refuses to resolve by guessing, and
// a miss creates the asset under a synthesized serial.
func importAsset(ctx context.Context, st Store, run *RunContext, row RawRow) (RowOutcome, error) {
	s := run.Schema

	name := s.Value(row, FieldName)
	if name == "" {
		return RowOutcome{}, Validationf("El campo %q es obligatorio", s.Header(FieldName))
	}

	typeName := s.Value(row, FieldAssetType)
	if typeName == "" {
		return RowOutcome{}, Validationf("El campo %q es obligatorio", s.Header(FieldAssetType))
	}
	typeID, err := resolveRequired(ctx, st, KindAssetTypes, "el tipo de activo", typeName)
	if err != nil {
		return RowOutcome{}, err
	}

	statusName := s.Value(row, FieldStatus)
	if statusName == "" {
		return RowOutcome{}, Validationf("El campo %q es obligatorio", s.Header(FieldStatus))
	}
	statusID, err := resolveRequired(ctx, st, KindAssetStatuses, "el estado", statusName)
	if err != nil {
		return RowOutcome{}, err
	}

	asset := &Asset{
		Name:     name,
		TypeID:   typeID,
		StatusID: &statusID,
		Notes:    s.Value(row, FieldNotes),
	}

	if manufacturer := s.Value(row, FieldManufacturer); manufacturer != "" {
		mfrID, err := resolveRequired(ctx, st, KindManufacturers, "el fabricante", manufacturer)
		if err != nil {
			return RowOutcome{}, err
		}
		asset.ManufacturerID = &mfrID

		if model := s.Value(row, FieldModel); model != "" {
			ref, err := st.ModelByName(ctx, model, mfrID)
			if err != nil {
				return RowOutcome{}, &StorageError{Op: OpRead, Err: err}
			}
			if ref == nil {
				return RowOutcome{}, Validationf("No se encontró el modelo: %s", model)
			}
			asset.ModelID = &ref.ID
		}
	}

	if asset.LocationID, err = resolveOptional(ctx, st, KindLocations, "la localización", s.Value(row, FieldLocation)); err != nil {
		return RowOutcome{}, err
	}
	if asset.DepartmentID, err = resolveOptional(ctx, st, KindDepartments, "el departamento", s.Value(row, FieldDepartment)); err != nil {
		return RowOutcome{}, err
	}
	if asset.AcquisitionFormatID, err = resolveOptional(ctx, st, KindAcquisitionFormats, "el formato de adquisición", s.Value(row, FieldAcquisitionFormat)); err != nil {
		return RowOutcome{}, err
	}
	if asset.ProviderID, err = resolveOptional(ctx, st, KindProviders, "el proveedor", s.Value(row, FieldProvider)); err != nil {
		return RowOutcome{}, err
	}

	if asset.PurchaseDate, err = parseDateField(run, s, row, FieldPurchaseDate); err != nil {
		return RowOutcome{}, err
	}
	if asset.WarrantyEnd, err = parseDateField(run, s, row, FieldWarrantyEnd); err != nil {
		return RowOutcome{}, err
	}
	if asset.PurchasePrice, err = parseDecimalField(run, s, row, FieldPurchasePrice); err != nil {
		return RowOutcome{}, err
	}

	values, err := customFieldValues(run, row)
	if err != nil {
		return RowOutcome{}, err
	}

	serial := s.Value(row, FieldSerial)
	if serial != "" {
		asset.Serial = serial
		return upsertBySerial(ctx, st, asset, values)
	}
	return createWithSyntheticSerial(ctx, st, asset, values)
}

func upsertBySerial(ctx context.Context, st Store, asset *Asset, values []FieldValue) (RowOutcome, error) {
	existing, err := st.AssetBySerial(ctx, asset.Serial, asset.TypeID)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpRead, Err: err}
	}

	if existing != nil {
		asset.ID = existing.ID
		if err := st.UpdateAsset(ctx, asset, values); err != nil {
			return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
		}
		auditAsset(ctx, st, "update", asset.ID, map[string]any{
			"antes":   assetDiffFields(existing),
			"despues": assetDiffFields(asset),
		})
		return RowOutcome{Status: StatusUpdated, Message: "Activo actualizado"}, nil
	}

	id, err := st.CreateAsset(ctx, asset, values)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
	}
	auditAsset(ctx, st, "create", id, map[string]any{
		"nombre":       asset.Name,
		"numero_serie": asset.Serial,
	})
	return RowOutcome{Status: StatusNew, Message: "Activo creado"}, nil
}

func createWithSyntheticSerial(ctx context.Context, st Store, asset *Asset, values []FieldValue) (RowOutcome, error) {
	existing, err := st.AssetByName(ctx, asset.Name, asset.TypeID)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpRead, Err: err}
	}
	if existing != nil {
		return RowOutcome{}, Validationf("Ya existe un activo sin número de serie")
	}

	n, err := st.NextSequence(ctx, "asset_serial_null")
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
	}
	asset.Serial = fmt.Sprintf("SN#null#%08d", n)

	id, err := st.CreateAsset(ctx, asset, values)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
	}
	auditAsset(ctx, st, "create", id, map[string]any{
		"nombre":       asset.Name,
		"numero_serie": asset.Serial,
	})
	return RowOutcome{Status: StatusNew, Message: "Activo creado"}, nil
}

// customFieldValues validates and coerces the trailing custom-field
// columns for the run's asset type.
func customFieldValues(run *RunContext, row RawRow) ([]FieldValue, error) {
	if len(run.CustomFields) == 0 {
		return nil, nil
	}

	values := make([]FieldValue, 0, len(run.CustomFields))
	for _, def := range run.CustomFields {
		raw := row.Get(CustomFieldColumn(def))
		if raw == "" {
			if def.Required {
				return nil, Validationf("El campo personalizado %q es obligatorio", def.Name)
			}
			continue
		}

		value := raw
		switch strings.ToLower(def.DataType) {
		case "booleano":
			v, ok := ParseBool(raw)
			if !ok {
				return nil, Validationf("Valor booleano no válido en %q: %s", def.Name, raw)
			}
			value = v
		case "fecha":
			v, ok := ParseDate(raw)
			if !ok {
				if run.Strict {
					return nil, Validationf("Fecha no válida en %q: %s", def.Name, raw)
				}
				continue
			}
			value = v
		case "numero":
			v, ok := ParseDecimal(raw)
			if !ok {
				if run.Strict {
					return nil, Validationf("Número no válido en %q: %s", def.Name, raw)
				}
				continue
			}
			value = v
		}

		values = append(values, FieldValue{FieldID: def.ID, Value: value})
	}
	return values, nil
}

func parseDateField(run *RunContext, s ColumnSchema, row RawRow, field string) (*string, error) {
	raw := s.Value(row, field)
	v, ok := ParseDate(raw)
	if !ok {
		if run.Strict {
			return nil, Validationf("Fecha no válida en %q: %s", s.Header(field), raw)
		}
		return nil, nil
	}
	if v == "" {
		return nil, nil
	}
	return &v, nil
}

func parseDecimalField(run *RunContext, s ColumnSchema, row RawRow, field string) (*string, error) {
	raw := s.Value(row, field)
	v, ok := ParseDecimal(raw)
	if !ok {
		if run.Strict {
			return nil, Validationf("Número no válido en %q: %s", s.Header(field), raw)
		}
		return nil, nil
	}
	if v == "" {
		return nil, nil
	}
	return &v, nil
}

// auditAsset writes a best-effort audit entry for an asset mutation.
func auditAsset(ctx context.Context, st Store, action string, id int64, detail map[string]any) {
	_ = st.LogAudit(ctx, AuditEntry{
		Action:    action,
		Entity:    "activos",
		RecordID:  id,
		Detail:    detail,
		IPAddress: IPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	})
}

// assetDiffFields extracts the audited subset of an asset record.
func assetDiffFields(a *Asset) map[string]any {
	return map[string]any{
		"nombre":        a.Name,
		"numero_serie":  a.Serial,
		"estado_id":     deref(a.StatusID),
		"localizacion":  deref(a.LocationID),
		"departamento":  deref(a.DepartmentID),
		"observaciones": a.Notes,
	}
}

func deref(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
