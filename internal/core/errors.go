package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors surfaced to the HTTP layer for status mapping.
var (
	ErrUnsupportedEntity = errors.New("unsupported entity type")
	ErrJobNotFound       = errors.New("import job not found")
	ErrJobNotPending     = errors.New("import job is not awaiting confirmation")
)

// ValidationError is a row-level error caused by the row's own content:
// missing required cells, unknown references, malformed values. Its
// Message is user-facing and already localized.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Storage operation kinds, used to pick the right user message for
// constraint violations.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
)

// StorageError wraps a database failure with the operation that caused
// it. UserMessage translates it for the row result; the wrapped error
// keeps the driver detail for logs.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PostgreSQL SQLSTATE codes the engine classifies.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// UserMessage maps an error to the Spanish message shown on the row.
// Validation errors carry their own message; storage errors are
// classified by SQLSTATE; anything else falls back to a generic line.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	var se *StorageError
	if errors.As(err, &se) {
		return storageMessage(se)
	}

	return "Error inesperado: " + err.Error()
}

func storageMessage(se *StorageError) string {
	var pgErr *pgconn.PgError
	if errors.As(se.Err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if strings.Contains(pgErr.ConstraintName, "numero_serie") {
				return "Ya existe un activo con ese número de serie"
			}
			return "Datos duplicados"
		case pgForeignKeyViolation:
			if se.Op == OpDelete {
				return "Tiene registros dependientes"
			}
			return "El registro referenciado no existe"
		}
		detail := pgErr.Message
		if pgErr.Detail != "" {
			detail = pgErr.Detail
		}
		return "Error de base de datos: " + detail
	}
	return "Error de base de datos: " + se.Err.Error()
}
