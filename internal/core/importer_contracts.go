package core

import "context"

// importContract upserts one contract row keyed by its unique name.
// Contract type and provider are required references.
func importContract(ctx context.Context, st Store, run *RunContext, row RawRow) (RowOutcome, error) {
	s := run.Schema

	name := s.Value(row, FieldName)
	if name == "" {
		return RowOutcome{}, Validationf("El campo %q es obligatorio", s.Header(FieldName))
	}

	typeName := s.Value(row, FieldContractType)
	if typeName == "" {
		return RowOutcome{}, Validationf("El campo %q es obligatorio", s.Header(FieldContractType))
	}
	typeID, err := resolveRequired(ctx, st, KindContractTypes, "el tipo de contrato", typeName)
	if err != nil {
		return RowOutcome{}, err
	}

	providerName := s.Value(row, FieldProvider)
	if providerName == "" {
		return RowOutcome{}, Validationf("El campo %q es obligatorio", s.Header(FieldProvider))
	}
	providerID, err := resolveRequired(ctx, st, KindProviders, "el proveedor", providerName)
	if err != nil {
		return RowOutcome{}, err
	}

	c := &Contract{
		Name:        name,
		TypeID:      typeID,
		ProviderID:  providerID,
		Description: s.Value(row, FieldDescription),
	}

	if c.StartDate, err = parseDateField(run, s, row, FieldStartDate); err != nil {
		return RowOutcome{}, err
	}
	if c.EndDate, err = parseDateField(run, s, row, FieldEndDate); err != nil {
		return RowOutcome{}, err
	}
	if c.Amount, err = parseDecimalField(run, s, row, FieldAmount); err != nil {
		return RowOutcome{}, err
	}

	existing, err := st.ContractByName(ctx, name)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpRead, Err: err}
	}

	if existing != nil {
		c.ID = existing.ID
		if err := st.UpdateContract(ctx, c); err != nil {
			return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
		}
		auditContract(ctx, st, "update", c.ID, name)
		return RowOutcome{Status: StatusUpdated, Message: "Contrato actualizado"}, nil
	}

	id, err := st.InsertContract(ctx, c)
	if err != nil {
		return RowOutcome{}, &StorageError{Op: OpWrite, Err: err}
	}
	auditContract(ctx, st, "create", id, name)
	return RowOutcome{Status: StatusNew, Message: "Contrato creado"}, nil
}

func auditContract(ctx context.Context, st Store, action string, id int64, name string) {
	_ = st.LogAudit(ctx, AuditEntry{
		Action:    action,
		Entity:    "contratos",
		RecordID:  id,
		Detail:    map[string]any{"nombre": name},
		IPAddress: IPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	})
}
