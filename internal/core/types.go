package core

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// EntityType identifies the kind of records a CSV file carries.
type EntityType string

const (
	EntityAssets             EntityType = "assets"
	EntityManufacturers      EntityType = "manufacturers"
	EntityProviders          EntityType = "providers"
	EntityContracts          EntityType = "contracts"
	EntityAssetTypes         EntityType = "asset_types"
	EntityAssetStatuses      EntityType = "asset_statuses"
	EntityContractTypes      EntityType = "contract_types"
	EntityLocations          EntityType = "locations"
	EntityDepartments        EntityType = "departments"
	EntityAcquisitionFormats EntityType = "acquisition_formats"
)

// RowStatus classifies the outcome of processing one CSV row.
type RowStatus string

const (
	StatusNew     RowStatus = "new"
	StatusUpdated RowStatus = "updated"
	StatusError   RowStatus = "error"
)

// RawRow is one parsed CSV data row keyed by header.
//
// Cell access goes through Get, which trims surrounding whitespace.
// Line is the 1-based line number in the original file: the first data
// row is line 2, directly after the header.
type RawRow struct {
	Line    int
	headers []string
	cells   map[string]string
}

// NewRawRow builds a RawRow from a header list and the matching record.
// Records shorter than the header list leave the trailing cells empty;
// extra cells beyond the headers are ignored.
func NewRawRow(line int, headers, record []string) RawRow {
	cells := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(record) {
			cells[h] = record[i]
		} else {
			cells[h] = ""
		}
	}
	return RawRow{Line: line, headers: headers, cells: cells}
}

// Get returns the trimmed cell under the given header, or "" if the
// column is absent from the file.
func (r RawRow) Get(header string) string {
	return CleanCell(r.cells[header])
}

// Headers returns the file's header list in original order.
func (r RawRow) Headers() []string {
	return r.headers
}

// MarshalJSON encodes the row as a JSON object preserving header order.
func (r RawRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range r.headers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.cells[h])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RowResult is the per-row entry of an import summary and audit log.
type RowResult struct {
	Row     int       `json:"row"`
	Status  RowStatus `json:"status"`
	Message string    `json:"message"`
	Data    RawRow    `json:"data"`
}

// ImportSummary aggregates the results of one import pass.
// SuccessfulRows + FailedRows always equals TotalRows.
type ImportSummary struct {
	TotalRows      int         `json:"total_rows"`
	SuccessfulRows int         `json:"successful_rows"`
	FailedRows     int         `json:"failed_rows"`
	Results        []RowResult `json:"results"`
}

// PendingNewModel is a manufacturer/model pair referenced by the file
// but absent from the catalog, awaiting user confirmation.
type PendingNewModel struct {
	ManufacturerName string `json:"manufacturer_name"`
	ModelName        string `json:"model_name"`
}

// JobStatus tracks the lifecycle of a two-phase import job.
type JobStatus string

const (
	JobPendingConfirmation JobStatus = "pending_confirmation"
	JobCompleted           JobStatus = "completed"
	JobCancelled           JobStatus = "cancelled"
)

// ImportJob records an asset import halted at the confirmation step.
// The job owns the staged temp file until a terminal transition.
type ImportJob struct {
	ID          string            `json:"id"`
	EntityType  EntityType        `json:"entity_type"`
	AssetTypeID int64             `json:"asset_type_id"`
	TempPath    string            `json:"-"`
	NewModels   []PendingNewModel `json:"new_models"`
	Status      JobStatus         `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Ref is a resolved catalog record: its id and stored name.
type Ref struct {
	ID   int64
	Name string
}

// MasterKind names a simple master-data table keyed by a unique name.
// Values are the table names themselves, whitelisted by the store.
type MasterKind string

const (
	KindAssetTypes         MasterKind = "tipos_activo"
	KindAssetStatuses      MasterKind = "estados_activo"
	KindContractTypes      MasterKind = "tipos_contrato"
	KindLocations          MasterKind = "localizaciones"
	KindDepartments        MasterKind = "departamentos"
	KindAcquisitionFormats MasterKind = "formatos_adquisicion"
	KindManufacturers      MasterKind = "fabricantes"
	KindProviders          MasterKind = "proveedores"
)

// Asset is the storage shape of an inventory asset row.
// Optional foreign keys and value fields are nil/empty when absent.
// Date fields hold ISO yyyy-mm-dd strings, decimal fields dot notation.
type Asset struct {
	ID                  int64
	Name                string
	Serial              string
	TypeID              int64
	ManufacturerID      *int64
	ModelID             *int64
	StatusID            *int64
	LocationID          *int64
	DepartmentID        *int64
	AcquisitionFormatID *int64
	ProviderID          *int64
	PurchaseDate        *string
	PurchasePrice       *string
	WarrantyEnd         *string
	Notes               string
}

// FieldValue is one custom-field value attached to an asset.
type FieldValue struct {
	FieldID int64
	Value   string
}

// CustomFieldDef describes a custom field configured for an asset type.
// DataType is one of "texto", "numero", "fecha", "booleano".
type CustomFieldDef struct {
	ID       int64
	Name     string
	DataType string
	Unit     string
	Required bool
}

// Provider is the storage shape of a provider record.
type Provider struct {
	ID    int64
	Name  string
	TaxID string
	Email string
	Phone string
}

// Contract is the storage shape of a contract record.
type Contract struct {
	ID          int64
	Name        string
	TypeID      int64
	ProviderID  int64
	StartDate   *string
	EndDate     *string
	Amount      *string
	Description string
}

// AuditEntry is one best-effort audit trail record.
type AuditEntry struct {
	Action    string
	Entity    string
	RecordID  int64
	Detail    map[string]any
	IPAddress string
	UserAgent string
}

// Store is the persistence boundary of the import engine.
//
// Name lookups are case- and whitespace-insensitive on the natural key.
// Lookup methods return (nil, nil) when no record matches; errors are
// reserved for infrastructure failures.
type Store interface {
	// Master data keyed by unique name.
	MasterByName(ctx context.Context, kind MasterKind, name string) (*Ref, error)
	InsertMaster(ctx context.Context, kind MasterKind, name string) (int64, error)
	UpdateMasterName(ctx context.Context, kind MasterKind, id int64, name string) error

	// Models, keyed by (name, manufacturer).
	ModelByName(ctx context.Context, name string, manufacturerID int64) (*Ref, error)
	InsertModel(ctx context.Context, name string, manufacturerID int64) (int64, error)

	// Providers carry contact fields beyond the name key.
	InsertProvider(ctx context.Context, p *Provider) (int64, error)
	UpdateProvider(ctx context.Context, p *Provider) error

	// Contracts, keyed by unique name.
	ContractByName(ctx context.Context, name string) (*Contract, error)
	InsertContract(ctx context.Context, c *Contract) (int64, error)
	UpdateContract(ctx context.Context, c *Contract) error

	// Assets. Create and Update write the base record and custom-field
	// values in a single transaction.
	AssetBySerial(ctx context.Context, serial string, typeID int64) (*Asset, error)
	AssetByName(ctx context.Context, name string, typeID int64) (*Asset, error)
	CreateAsset(ctx context.Context, a *Asset, values []FieldValue) (int64, error)
	UpdateAsset(ctx context.Context, a *Asset, values []FieldValue) error
	CustomFieldDefs(ctx context.Context, assetTypeID int64) ([]CustomFieldDef, error)

	// NextSequence atomically increments and returns the named counter.
	NextSequence(ctx context.Context, name string) (int64, error)

	// Two-phase import job records.
	CreateImportJob(ctx context.Context, job *ImportJob) error
	ImportJobByID(ctx context.Context, id string) (*ImportJob, error)
	SetImportJobStatus(ctx context.Context, id string, status JobStatus) error
	ExpiredPendingJobs(ctx context.Context, olderThan time.Time) ([]ImportJob, error)

	// LogAudit records an audit trail entry. Callers treat failures as
	// best-effort and never fail the import over them.
	LogAudit(ctx context.Context, entry AuditEntry) error
}
