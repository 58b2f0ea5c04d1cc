package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the engine tests.
// All methods are safe for concurrent use.
type memStore struct {
	mu sync.Mutex

	nextID   int64
	masters  map[MasterKind]map[int64]string
	models   []memModel
	provs    map[int64]*Provider
	conts    map[int64]*Contract
	assets   map[int64]*Asset
	values   map[int64]map[int64]string
	fields   map[int64][]CustomFieldDef
	counters map[string]int64
	jobs     map[string]*ImportJob
	audits   []AuditEntry
}

type memModel struct {
	id    int64
	name  string
	mfrID int64
}

func newMemStore() *memStore {
	return &memStore{
		masters:  make(map[MasterKind]map[int64]string),
		provs:    make(map[int64]*Provider),
		conts:    make(map[int64]*Contract),
		assets:   make(map[int64]*Asset),
		values:   make(map[int64]map[int64]string),
		fields:   make(map[int64][]CustomFieldDef),
		counters: map[string]int64{"asset_serial_null": 0},
		jobs:     make(map[string]*ImportJob),
	}
}

// seedMaster inserts a master record directly, for test setup.
func (m *memStore) seedMaster(kind MasterKind, name string) int64 {
	id, _ := m.InsertMaster(context.Background(), kind, name)
	return id
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) MasterByName(_ context.Context, kind MasterKind, name string) (*Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, stored := range m.masters[kind] {
		if NormalizeName(stored) == NormalizeName(name) {
			return &Ref{ID: id, Name: stored}, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertMaster(_ context.Context, kind MasterKind, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.masters[kind] == nil {
		m.masters[kind] = make(map[int64]string)
	}
	id := m.id()
	m.masters[kind][id] = name
	return id, nil
}

func (m *memStore) UpdateMasterName(_ context.Context, kind MasterKind, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.masters[kind][id]; !ok {
		return fmt.Errorf("no such record %d in %s", id, kind)
	}
	m.masters[kind][id] = name
	return nil
}

func (m *memStore) ModelByName(_ context.Context, name string, manufacturerID int64) (*Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, md := range m.models {
		if md.mfrID == manufacturerID && NormalizeName(md.name) == NormalizeName(name) {
			return &Ref{ID: md.id, Name: md.name}, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertModel(_ context.Context, name string, manufacturerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.models = append(m.models, memModel{id: id, name: name, mfrID: manufacturerID})
	return id, nil
}

func (m *memStore) InsertProvider(_ context.Context, p *Provider) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	cp := *p
	cp.ID = id
	m.provs[id] = &cp
	if m.masters[KindProviders] == nil {
		m.masters[KindProviders] = make(map[int64]string)
	}
	m.masters[KindProviders][id] = p.Name
	return id, nil
}

func (m *memStore) UpdateProvider(_ context.Context, p *Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.provs[p.ID]; !ok {
		return fmt.Errorf("no such provider %d", p.ID)
	}
	cp := *p
	m.provs[p.ID] = &cp
	m.masters[KindProviders][p.ID] = p.Name
	return nil
}

func (m *memStore) ContractByName(_ context.Context, name string) (*Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conts {
		if NormalizeName(c.Name) == NormalizeName(name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertContract(_ context.Context, c *Contract) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	cp := *c
	cp.ID = id
	m.conts[id] = &cp
	return id, nil
}

func (m *memStore) UpdateContract(_ context.Context, c *Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conts[c.ID]; !ok {
		return fmt.Errorf("no such contract %d", c.ID)
	}
	cp := *c
	m.conts[c.ID] = &cp
	return nil
}

func (m *memStore) AssetBySerial(_ context.Context, serial string, typeID int64) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assets {
		if a.TypeID == typeID && NormalizeName(a.Serial) == NormalizeName(serial) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) AssetByName(_ context.Context, name string, typeID int64) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assets {
		if a.TypeID == typeID && NormalizeName(a.Name) == NormalizeName(name) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateAsset(_ context.Context, a *Asset, values []FieldValue) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assets {
		if existing.TypeID == a.TypeID && NormalizeName(existing.Serial) == NormalizeName(a.Serial) {
			return 0, fmt.Errorf("duplicate serial %q", a.Serial)
		}
	}
	id := m.id()
	cp := *a
	cp.ID = id
	m.assets[id] = &cp
	m.writeValues(id, values)
	return id, nil
}

func (m *memStore) UpdateAsset(_ context.Context, a *Asset, values []FieldValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[a.ID]; !ok {
		return fmt.Errorf("no such asset %d", a.ID)
	}
	cp := *a
	m.assets[a.ID] = &cp
	m.writeValues(a.ID, values)
	return nil
}

func (m *memStore) writeValues(assetID int64, values []FieldValue) {
	if m.values[assetID] == nil {
		m.values[assetID] = make(map[int64]string)
	}
	for _, v := range values {
		m.values[assetID][v.FieldID] = v.Value
	}
}

func (m *memStore) CustomFieldDefs(_ context.Context, assetTypeID int64) ([]CustomFieldDef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[assetTypeID], nil
}

func (m *memStore) NextSequence(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[name]; !ok {
		return 0, fmt.Errorf("counter %q is not provisioned", name)
	}
	m.counters[name]++
	return m.counters[name], nil
}

func (m *memStore) CreateImportJob(_ context.Context, job *ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) ImportJobByID(_ context.Context, id string) (*ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) SetImportJobStatus(_ context.Context, id string, status JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("no such job %s", id)
	}
	job.Status = status
	return nil
}

func (m *memStore) ExpiredPendingJobs(_ context.Context, olderThan time.Time) ([]ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ImportJob
	for _, job := range m.jobs {
		if job.Status == JobPendingConfirmation && job.CreatedAt.Before(olderThan) {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *memStore) LogAudit(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

// assetCount reports how many assets are stored, for test assertions.
func (m *memStore) assetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

// assetBySerialDirect fetches without the Store interface, for asserts.
func (m *memStore) allAssets() []Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, *a)
	}
	return out
}
