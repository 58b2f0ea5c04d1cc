package core

import "context"

// resolveRequired resolves a master-data reference that must exist.
// The label is the Spanish article+noun used in the error message,
// e.g. "el estado", "la localización".
func resolveRequired(ctx context.Context, st Store, kind MasterKind, label, name string) (int64, error) {
	ref, err := st.MasterByName(ctx, kind, name)
	if err != nil {
		return 0, &StorageError{Op: OpRead, Err: err}
	}
	if ref == nil {
		return 0, Validationf("No se encontró %s: %s", label, name)
	}
	return ref.ID, nil
}

// resolveOptional resolves a reference that may be blank. A blank name
// yields (nil, nil); a non-blank name that matches nothing is still a
// row error, since silently dropping a reference would corrupt data.
func resolveOptional(ctx context.Context, st Store, kind MasterKind, label, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	id, err := resolveRequired(ctx, st, kind, label, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
