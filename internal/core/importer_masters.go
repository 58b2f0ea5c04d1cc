package core

import "context"

// masterImporter builds the row importer for a name-keyed master
// catalog. Matching an existing name refreshes its stored spelling
// (case and surrounding whitespace), a miss inserts a new record.
func masterImporter(kind MasterKind, label string) ImportFunc {
	return func(ctx context.Context, st Store, run *RunContext, row RawRow) (RowOutcome, error) {
		name := run.Schema.Value(row, FieldName)
		if name == "" {
			return RowOutcome{}, Validationf("El campo %q es obligatorio", run.Schema.Header(FieldName))
		}

		existing, err := st.MasterByName(ctx, kind, name)
		if err != nil {
			return RowOutcome{}, &StorageError{Op: OpRead, Err: err}
		}

		if existing != nil {
			if err := st.UpdateMasterName(ctx, kind, existing.ID, name); err != nil {
				return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
			}
			auditMaster(ctx, st, "update", kind, existing.ID, name)
			return RowOutcome{Status: StatusUpdated, Message: "Registro actualizado"}, nil
		}

		id, err := st.InsertMaster(ctx, kind, name)
		if err != nil {
			return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
		}
		auditMaster(ctx, st, "create", kind, id, name)
		return RowOutcome{Status: StatusNew, Message: "Registro creado"}, nil
	}
}

// importProvider upserts a provider row, carrying the contact fields
// beyond the name key.
func importProvider(ctx context.Context, st Store, run *RunContext, row RawRow) (RowOutcome, error) {
	s := run.Schema

	name := s.Value(row, FieldName)
	if name == "" {
		return RowOutcome{}, Validationf("El campo %q es obligatorio", s.Header(FieldName))
	}

	p := &Provider{
		Name:  name,
		TaxID: s.Value(row, FieldTaxID),
		Email: s.Value(row, FieldEmail),
		Phone: s.Value(row, FieldPhone),
	}

	existing, err := st.MasterByName(ctx, KindProviders, name)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpRead, Err: err}
	}

	if existing != nil {
		p.ID = existing.ID
		if err := st.UpdateProvider(ctx, p); err != nil {
			return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
		}
		auditMaster(ctx, st, "update", KindProviders, p.ID, name)
		return RowOutcome{Status: StatusUpdated, Message: "Registro actualizado"}, nil
	}

	id, err := st.InsertProvider(ctx, p)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
	}
	auditMaster(ctx, st, "create", KindProviders, id, name)
	return RowOutcome{Status: StatusNew, Message: "Registro creado"}, nil
}

func auditMaster(ctx context.Context, st Store, action string, kind MasterKind, id int64, name string) {
	_ = st.LogAudit(ctx, AuditEntry{
		Action:    action,
		Entity:    string(kind),
		RecordID:  id,
		Detail:    map[string]any{"nombre": name},
		IPAddress: IPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	})
}
