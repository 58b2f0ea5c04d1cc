package core

import "context"

// AnalyzeRow inspects one asset row for a manufacturer/model pair that
// does not exist in the catalog yet.
//
// A pair is pending only when the manufacturer itself resolves: an
// unknown manufacturer is a plain row error at import time, not a
// confirmation candidate, because the engine never invents
// manufacturers the user did not name alongside a model. Blank model
// cells never produce a pending pair.
func AnalyzeRow(ctx context.Context, st Store, schema ColumnSchema, row RawRow) (*PendingNewModel, error) {
	manufacturer := schema.Value(row, FieldManufacturer)
	model := schema.Value(row, FieldModel)
	if manufacturer == "" || model == "" {
		return nil, nil
	}

	ref, err := st.MasterByName(ctx, KindManufacturers, manufacturer)
	if err != nil {
		return nil, &StorageError{Op: OpRead, Err: err}
	}
	if ref == nil {
		// Unknown manufacturer: the model cannot be pre-created under
		// it, Pass 2 will reject the row instead.
		return nil, nil
	}

	existing, err := st.ModelByName(ctx, model, ref.ID)
	if err != nil {
		return nil, &StorageError{Op: OpRead, Err: err}
	}
	if existing != nil {
		return nil, nil
	}

	return &PendingNewModel{ManufacturerName: manufacturer, ModelName: model}, nil
}
