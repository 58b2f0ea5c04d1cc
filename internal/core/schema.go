package core

import (
	"context"
	"fmt"
	"sync"
)

// Canonical field names. Importer code addresses cells through these,
// never through the localized header strings.
const (
	FieldName              = "name"
	FieldSerial            = "serial_number"
	FieldAssetType         = "asset_type"
	FieldManufacturer      = "manufacturer"
	FieldModel             = "model"
	FieldStatus            = "status"
	FieldLocation          = "location"
	FieldDepartment        = "department"
	FieldAcquisitionFormat = "acquisition_format"
	FieldProvider          = "provider"
	FieldPurchaseDate      = "purchase_date"
	FieldPurchasePrice     = "purchase_price"
	FieldWarrantyEnd       = "warranty_end"
	FieldNotes             = "notes"
	FieldContractType      = "contract_type"
	FieldStartDate         = "start_date"
	FieldEndDate           = "end_date"
	FieldAmount            = "amount"
	FieldDescription       = "description"
	FieldTaxID             = "tax_id"
	FieldEmail             = "email"
	FieldPhone             = "phone"
)

// Column binds a canonical field to its localized CSV header.
type Column struct {
	Field    string
	Header   string
	Required bool
}

// ColumnSchema is the ordered column layout of an entity's CSV file.
// It is the single place where localized headers live.
type ColumnSchema []Column

// Header returns the localized header for a canonical field, or ""
// if the schema has no such column.
func (s ColumnSchema) Header(field string) string {
	for _, c := range s {
		if c.Field == field {
			return c.Header
		}
	}
	return ""
}

// Headers returns the localized headers in schema order.
func (s ColumnSchema) Headers() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Header
	}
	return out
}

// Value reads a row cell by canonical field name.
func (s ColumnSchema) Value(row RawRow, field string) string {
	h := s.Header(field)
	if h == "" {
		return ""
	}
	return row.Get(h)
}

// RowOutcome is the successful result of importing one row.
type RowOutcome struct {
	Status  RowStatus
	Message string
}

// RunContext carries per-run state into row importers.
type RunContext struct {
	Entity       EntityType
	Schema       ColumnSchema
	AssetTypeID  int64
	CustomFields []CustomFieldDef
	Strict       bool
}

// ImportFunc processes one row. It returns the outcome on success, or
// a ValidationError/StorageError describing why the row was rejected.
type ImportFunc func(ctx context.Context, st Store, run *RunContext, row RawRow) (RowOutcome, error)

// EntityDefinition describes one importable entity type.
type EntityDefinition struct {
	Entity EntityType
	Label  string
	Schema ColumnSchema
	Import ImportFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[EntityType]*EntityDefinition)
)

// Register adds an entity definition to the global registry.
// Panics on duplicate registration, which indicates a programming error.
func Register(def *EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Entity]; exists {
		panic(fmt.Sprintf("entity %q already registered", def.Entity))
	}
	registry[def.Entity] = def
}

// Definition looks up an entity definition by type.
func Definition(entity EntityType) (*EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[entity]
	return def, ok
}

// All returns every registered definition. Order is unspecified.
func All() []*EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	defs := make([]*EntityDefinition, 0, len(registry))
	for _, def := range registry {
		defs = append(defs, def)
	}
	return defs
}

// nameOnlySchema is the layout shared by all simple master catalogs.
var nameOnlySchema = ColumnSchema{
	{Field: FieldName, Header: "Nombre", Required: true},
}

func init() {
	Register(&EntityDefinition{
		Entity: EntityAssets,
		Label:  "Activos",
		Schema: ColumnSchema{
			{Field: FieldName, Header: "Nombre", Required: true},
			{Field: FieldSerial, Header: "Número de serie"},
			{Field: FieldAssetType, Header: "Tipo de activo", Required: true},
			{Field: FieldManufacturer, Header: "Fabricante"},
			{Field: FieldModel, Header: "Modelo"},
			{Field: FieldStatus, Header: "Estado", Required: true},
			{Field: FieldLocation, Header: "Localización"},
			{Field: FieldDepartment, Header: "Departamento"},
			{Field: FieldAcquisitionFormat, Header: "Formato de adquisición"},
			{Field: FieldProvider, Header: "Proveedor"},
			{Field: FieldPurchaseDate, Header: "Fecha de compra"},
			{Field: FieldPurchasePrice, Header: "Precio de compra"},
			{Field: FieldWarrantyEnd, Header: "Fecha fin garantía"},
			{Field: FieldNotes, Header: "Observaciones"},
		},
		Import: importAsset,
	})

	Register(&EntityDefinition{
		Entity: EntityManufacturers,
		Label:  "Fabricantes",
		Schema: nameOnlySchema,
		Import: masterImporter(KindManufacturers, "el fabricante"),
	})

	Register(&EntityDefinition{
		Entity: EntityProviders,
		Label:  "Proveedores",
		Schema: ColumnSchema{
			{Field: FieldName, Header: "Nombre", Required: true},
			{Field: FieldTaxID, Header: "CIF"},
			{Field: FieldEmail, Header: "Email"},
			{Field: FieldPhone, Header: "Teléfono"},
		},
		Import: importProvider,
	})

	Register(&EntityDefinition{
		Entity: EntityContracts,
		Label:  "Contratos",
		Schema: ColumnSchema{
			{Field: FieldName, Header: "Nombre", Required: true},
			{Field: FieldContractType, Header: "Tipo de contrato", Required: true},
			{Field: FieldProvider, Header: "Proveedor", Required: true},
			{Field: FieldStartDate, Header: "Fecha de inicio"},
			{Field: FieldEndDate, Header: "Fecha de fin"},
			{Field: FieldAmount, Header: "Importe"},
			{Field: FieldDescription, Header: "Descripción"},
		},
		Import: importContract,
	})

	Register(&EntityDefinition{
		Entity: EntityAssetTypes,
		Label:  "Tipos de activo",
		Schema: nameOnlySchema,
		Import: masterImporter(KindAssetTypes, "el tipo de activo"),
	})

	Register(&EntityDefinition{
		Entity: EntityAssetStatuses,
		Label:  "Estados de activo",
		Schema: nameOnlySchema,
		Import: masterImporter(KindAssetStatuses, "el estado"),
	})

	Register(&EntityDefinition{
		Entity: EntityContractTypes,
		Label:  "Tipos de contrato",
		Schema: nameOnlySchema,
		Import: masterImporter(KindContractTypes, "el tipo de contrato"),
	})

	Register(&EntityDefinition{
		Entity: EntityLocations,
		Label:  "Localizaciones",
		Schema: nameOnlySchema,
		Import: masterImporter(KindLocations, "la localización"),
	})

	Register(&EntityDefinition{
		Entity: EntityDepartments,
		Label:  "Departamentos",
		Schema: nameOnlySchema,
		Import: masterImporter(KindDepartments, "el departamento"),
	})

	Register(&EntityDefinition{
		Entity: EntityAcquisitionFormats,
		Label:  "Formatos de adquisición",
		Schema: nameOnlySchema,
		Import: masterImporter(KindAcquisitionFormats, "el formato de adquisición"),
	})
}
