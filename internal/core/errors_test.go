package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUserMessage_Validation(t *testing.T) {
	err := Validationf("El campo %q es obligatorio", "Nombre")
	if got := UserMessage(err); got != `El campo "Nombre" es obligatorio` {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestUserMessage_StorageClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"serial unique violation",
			&StorageError{Op: OpWrite, Err: &pgconn.PgError{
				Code: "23505", ConstraintName: "activos_numero_serie_tipo_key",
			}},
			"Ya existe un activo con ese número de serie",
		},
		{
			"other unique violation",
			&StorageError{Op: OpWrite, Err: &pgconn.PgError{
				Code: "23505", ConstraintName: "fabricantes_nombre_key",
			}},
			"Datos duplicados",
		},
		{
			"foreign key on write",
			&StorageError{Op: OpWrite, Err: &pgconn.PgError{Code: "23503"}},
			"El registro referenciado no existe",
		},
		{
			"foreign key on delete",
			&StorageError{Op: OpDelete, Err: &pgconn.PgError{Code: "23503"}},
			"Tiene registros dependientes",
		},
		{
			"other pg error uses detail",
			&StorageError{Op: OpWrite, Err: &pgconn.PgError{
				Code: "22001", Message: "value too long", Detail: "column nombre",
			}},
			"Error de base de datos: column nombre",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserMessage_NonPgStorageError(t *testing.T) {
	err := &StorageError{Op: OpRead, Err: errors.New("connection refused")}
	got := UserMessage(err)
	if !strings.HasPrefix(got, "Error de base de datos:") {
		t.Errorf("UserMessage() = %q, want generic database error", got)
	}
}

func TestUserMessage_WrappedValidation(t *testing.T) {
	// Classification must survive wrapping
	inner := Validationf("No se encontró el estado: Roto")
	wrapped := &StorageError{Op: OpWrite, Err: inner}

	// A validation error inside a storage wrapper still reads as
	// validation via errors.As precedence
	if got := UserMessage(wrapped); got != "No se encontró el estado: Roto" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505"}
	se := &StorageError{Op: OpWrite, Err: pgErr}

	var target *pgconn.PgError
	if !errors.As(se, &target) {
		t.Fatal("errors.As should reach the wrapped PgError")
	}
}
