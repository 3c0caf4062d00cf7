package edorg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
	"github.com/ed-fi-alliance/ods-admin-api/internal/encryption"
	"github.com/ed-fi-alliance/ods-admin-api/internal/odsinstances"
	adminotel "github.com/ed-fi-alliance/ods-admin-api/internal/otel"
)

type fakeResolver struct {
	mu      sync.Mutex
	tenants map[string]*db.Handle
	calls   []string
}

func (f *fakeResolver) Resolve(_ context.Context, tenantID string) (*db.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenantID)
	h, ok := f.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant not found: %q", tenantID)
	}
	return h, nil
}

func (f *fakeResolver) Default(context.Context) (*db.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "")
	return &db.Handle{}, nil
}

type fakeRepo struct {
	instances []odsinstances.OdsInstance
	listErr   error
}

func (f *fakeRepo) Get(_ context.Context, id int) (*odsinstances.OdsInstance, error) {
	for _, inst := range f.instances {
		if inst.ID == id {
			return &inst, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", odsinstances.ErrNotFound, id)
}

func (f *fakeRepo) List(context.Context) ([]odsinstances.OdsInstance, error) {
	return f.instances, f.listErr
}

// fakeSource serves results keyed by the decrypted connection string and
// tracks how many fetches overlap.
type fakeSource struct {
	results map[string][]Result
	errs    map[string]error
	panics  map[string]bool
	delay   time.Duration

	inflight   atomic.Int32
	peak       atomic.Int32
	perConn    sync.Map
	perConnMax atomic.Int32
}

func (f *fakeSource) Fetch(_ context.Context, _ db.Engine, connStr string) ([]Result, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	counter, _ := f.perConn.LoadOrStore(connStr, new(atomic.Int32))
	c := counter.(*atomic.Int32).Add(1)
	defer counter.(*atomic.Int32).Add(-1)
	if c > f.perConnMax.Load() {
		f.perConnMax.Store(c)
	}

	time.Sleep(f.delay)
	if f.panics[connStr] {
		panic("driver bug")
	}
	if err := f.errs[connStr]; err != nil {
		return nil, err
	}
	return f.results[connStr], nil
}

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int][]EducationOrganization
	applyErr map[int]error
	applied  map[int]int
}

func newMemStore() *memStore {
	return &memStore{rows: map[int][]EducationOrganization{}, applyErr: map[int]error{}, applied: map[int]int{}}
}

func (m *memStore) ListByInstance(_ context.Context, instanceID int) ([]EducationOrganization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EducationOrganization(nil), m.rows[instanceID]...), nil
}

func (m *memStore) List(_ context.Context, instanceID *int) ([]EducationOrganization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EducationOrganization
	for id, rows := range m.rows {
		if instanceID == nil || *instanceID == id {
			out = append(out, rows...)
		}
	}
	return out, nil
}

func (m *memStore) Apply(_ context.Context, instanceID int, cs ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.applyErr[instanceID]; err != nil {
		return err
	}
	m.applied[instanceID]++

	byID := map[int64]EducationOrganization{}
	for _, r := range m.rows[instanceID] {
		byID[r.EducationOrganizationID] = r
	}
	for _, r := range cs.Inserts {
		m.nextID++
		r.ID = m.nextID
		byID[r.EducationOrganizationID] = r
	}
	for _, r := range cs.Updates {
		byID[r.EducationOrganizationID] = r
	}
	for _, id := range cs.Deletes {
		delete(byID, id)
	}

	rows := make([]EducationOrganization, 0, len(byID))
	for _, r := range byID {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].EducationOrganizationID < rows[j].EducationOrganizationID })
	m.rows[instanceID] = rows
	return nil
}

func (m *memStore) snapshot(instanceID int) []EducationOrganization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EducationOrganization(nil), m.rows[instanceID]...)
}

type fixture struct {
	key      string
	resolver *fakeResolver
	repo     *fakeRepo
	source   *fakeSource
	store    *memStore
	clock    *clock.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	c := clock.NewMock()
	c.Set(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	return &fixture{
		key:      key,
		resolver: &fakeResolver{tenants: map[string]*db.Handle{"tenant1": {}}},
		repo:     &fakeRepo{},
		source:   &fakeSource{results: map[string][]Result{}, errs: map[string]error{}, panics: map[string]bool{}},
		store:    newMemStore(),
		clock:    c,
	}
}

func (f *fixture) encrypt(t *testing.T, plaintext string) string {
	t.Helper()
	raw, err := encryption.DecodeKey(f.key)
	require.NoError(t, err)
	ct, err := encryption.NewProvider().Encrypt(plaintext, raw)
	require.NoError(t, err)
	return ct
}

// addInstance registers an instance whose remote database serves results.
func (f *fixture) addInstance(t *testing.T, id int, results ...Result) {
	t.Helper()
	conn := fmt.Sprintf("host=ods%d", id)
	f.repo.instances = append(f.repo.instances, odsinstances.OdsInstance{
		ID: id, Name: fmt.Sprintf("ODS %d", id), ConnectionString: f.encrypt(t, conn),
	})
	f.source.results[conn] = results
}

func (f *fixture) service(settings Settings, opts ...Option) *Service {
	if settings.EncryptionKey == "" {
		settings.EncryptionKey = f.key
	}
	if settings.Engine == db.EngineUnknown {
		settings.Engine = db.EnginePostgreSQL
	}
	return NewService(settings, f.resolver, encryption.NewProvider(),
		WithSource(f.source),
		WithInstanceRepository(func(*db.Handle) odsinstances.Repository { return f.repo }),
		WithStore(func(*db.Handle) Store { return f.store }),
		append([]Option{WithClock(f.clock)}, opts...)...,
	)
}

func edorgIDs(rows []EducationOrganization) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.EducationOrganizationID)
	}
	return ids
}

func TestExecute_UndecryptableInstanceIsSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addInstance(t, 1, Result{EducationOrganizationID: 11, NameOfInstitution: "One"})
	f.addInstance(t, 2, Result{EducationOrganizationID: 22, NameOfInstitution: "Two"})
	f.addInstance(t, 3, Result{EducationOrganizationID: 33, NameOfInstitution: "Three"})
	f.repo.instances[1].ConnectionString = "not-a-ciphertext"
	f.store.rows[2] = []EducationOrganization{{ID: 99, InstanceID: 2, EducationOrganizationID: 7, NameOfInstitution: "Stale"}}

	require.NoError(t, f.service(Settings{}).Execute(t.Context(), "", nil))

	assert.Equal(t, []int64{11}, edorgIDs(f.store.snapshot(1)))
	assert.Equal(t, []int64{33}, edorgIDs(f.store.snapshot(3)))
	assert.Equal(t, []EducationOrganization{{ID: 99, InstanceID: 2, EducationOrganizationID: 7, NameOfInstitution: "Stale"}},
		f.store.snapshot(2))
	assert.Zero(t, f.store.applied[2])
}

func TestExecute_FailureIsolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for id := 1; id <= 5; id++ {
		f.addInstance(t, id, Result{EducationOrganizationID: int64(id * 10), NameOfInstitution: "Org"})
	}
	f.source.errs["host=ods2"] = errors.New("connection refused")
	f.source.panics["host=ods3"] = true
	f.store.applyErr[4] = errors.New("commit failed")

	require.NoError(t, f.service(Settings{MaxParallelism: 2}).Execute(t.Context(), "", nil))

	assert.Equal(t, []int64{10}, edorgIDs(f.store.snapshot(1)))
	assert.Empty(t, f.store.snapshot(2))
	assert.Empty(t, f.store.snapshot(3))
	assert.Empty(t, f.store.snapshot(4))
	assert.Equal(t, []int64{50}, edorgIDs(f.store.snapshot(5)))
}

func TestExecute_ParallelismBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		maxParallelism int
		wantMax        int32
	}{
		{name: "sequential", maxParallelism: 1, wantMax: 1},
		{name: "bounded", maxParallelism: 3, wantMax: 3},
		{name: "unset uses default", maxParallelism: 0, wantMax: config.DefaultMaxParallelism},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.source.delay = 20 * time.Millisecond
			for id := 1; id <= 12; id++ {
				f.addInstance(t, id, Result{EducationOrganizationID: int64(id)})
			}

			require.NoError(t, f.service(Settings{MaxParallelism: tt.maxParallelism}).Execute(t.Context(), "", nil))

			assert.LessOrEqual(t, f.source.peak.Load(), tt.wantMax)
			if tt.wantMax == 1 {
				assert.Equal(t, int32(1), f.source.peak.Load())
			}
			for id := 1; id <= 12; id++ {
				assert.Len(t, f.store.snapshot(id), 1)
			}
		})
	}
}

func TestExecute_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings Settings
		wantErr  error
	}{
		{
			name:     "missing key",
			settings: Settings{Engine: db.EnginePostgreSQL},
			wantErr:  config.ErrMissingEncryptionKey,
		},
		{
			name:     "unsupported engine",
			settings: Settings{EncryptionKey: "a2V5", Engine: db.Engine(42)},
			wantErr:  db.ErrUnsupportedEngine,
		},
		{
			name:     "invalid key",
			settings: Settings{EncryptionKey: "not base64!", Engine: db.EngineSQLServer},
			wantErr:  encryption.ErrInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.addInstance(t, 1, Result{EducationOrganizationID: 1})
			svc := NewService(tt.settings, f.resolver, encryption.NewProvider(),
				WithSource(f.source),
				WithInstanceRepository(func(*db.Handle) odsinstances.Repository { return f.repo }),
				WithStore(func(*db.Handle) Store { return f.store }),
			)

			err := svc.Execute(t.Context(), "", nil)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.resolver.calls)
			assert.Empty(t, f.store.snapshot(1))
		})
	}
}

func TestExecute_MultiTenancy(t *testing.T) {
	t.Parallel()

	t.Run("missing tenant is a no-op", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.addInstance(t, 1, Result{EducationOrganizationID: 1})
		require.NoError(t, f.service(Settings{MultiTenancy: true}).Execute(t.Context(), "", nil))
		assert.Empty(t, f.resolver.calls)
		assert.Empty(t, f.store.snapshot(1))
	})

	t.Run("tenant admin database is resolved", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.addInstance(t, 1, Result{EducationOrganizationID: 1})
		require.NoError(t, f.service(Settings{MultiTenancy: true}).Execute(t.Context(), "tenant1", nil))
		assert.Equal(t, []string{"tenant1"}, f.resolver.calls)
		assert.Len(t, f.store.snapshot(1), 1)
	})

	t.Run("unknown tenant propagates", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		err := f.service(Settings{MultiTenancy: true}).Execute(t.Context(), "ghost", nil)
		assert.ErrorContains(t, err, "tenant not found")
	})

	t.Run("single tenant ignores the tenant name", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.addInstance(t, 1, Result{EducationOrganizationID: 1})
		require.NoError(t, f.service(Settings{}).Execute(t.Context(), "tenant1", nil))
		assert.Equal(t, []string{""}, f.resolver.calls)
	})
}

func TestExecute_SingleInstance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addInstance(t, 1, Result{EducationOrganizationID: 1})
	f.addInstance(t, 2, Result{EducationOrganizationID: 2})
	svc := f.service(Settings{})

	id := 2
	require.NoError(t, svc.Execute(t.Context(), "", &id))
	assert.Empty(t, f.store.snapshot(1))
	assert.Len(t, f.store.snapshot(2), 1)

	missing := 404
	require.NoError(t, svc.Execute(t.Context(), "", &missing))
}

func TestExecute_ListFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.repo.listErr = errors.New("admin database unavailable")
	assert.ErrorContains(t, f.service(Settings{}).Execute(t.Context(), "", nil), "admin database unavailable")
}

func TestExecute_Hierarchy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addInstance(t, 5,
		Result{EducationOrganizationID: 100, NameOfInstitution: "School", Discriminator: DiscriminatorSchool, ParentID: i64(50)},
		Result{EducationOrganizationID: 50, NameOfInstitution: "LEA", Discriminator: DiscriminatorLocalEducationAgency,
			ParentID: i64(10)},
		Result{EducationOrganizationID: 10, NameOfInstitution: "SEA", Discriminator: DiscriminatorStateEducationAgency},
	)

	require.NoError(t, f.service(Settings{}).Execute(t.Context(), "", nil))

	parents := map[int64]*int64{}
	for _, r := range f.store.snapshot(5) {
		parents[r.EducationOrganizationID] = r.ParentID
		assert.Equal(t, "ODS 5", r.InstanceName)
	}
	require.Len(t, parents, 3)
	assert.Equal(t, int64(50), *parents[100])
	assert.Equal(t, int64(10), *parents[50])
	assert.Nil(t, parents[10])
}

func TestExecute_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addInstance(t, 1,
		Result{EducationOrganizationID: 1, NameOfInstitution: "A"},
		Result{EducationOrganizationID: 2, NameOfInstitution: "B"},
	)
	svc := f.service(Settings{})

	require.NoError(t, svc.Execute(t.Context(), "", nil))
	first := f.store.snapshot(1)

	f.clock.Add(time.Hour)
	require.NoError(t, svc.Execute(t.Context(), "", nil))
	second := f.store.snapshot(1)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].NameOfInstitution, second[i].NameOfInstitution)
		assert.Equal(t, f.clock.Now().UTC(), second[i].LastRefreshed)
	}
}

func TestExecute_SameInstanceIsSerialised(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.source.delay = 20 * time.Millisecond
	f.addInstance(t, 1, Result{EducationOrganizationID: 1})
	svc := f.service(Settings{})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Execute(context.Background(), "", nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.source.perConnMax.Load())
	assert.Equal(t, 4, f.store.applied[1])
	assert.Zero(t, svc.locks.size())
}

func TestExecute_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addInstance(t, 1, Result{EducationOrganizationID: 1})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := f.service(Settings{}).Execute(ctx, "", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.snapshot(1))
}

func TestExecute_Spans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t)
	f.addInstance(t, 1, Result{EducationOrganizationID: 11, NameOfInstitution: "One"},
		Result{EducationOrganizationID: 12, NameOfInstitution: "Two"})
	f.addInstance(t, 2)
	f.source.errs["host=ods2"] = errors.New("connection refused")

	svc := f.service(Settings{MultiTenancy: true, Engine: db.EngineSQLServer}, WithTracer(tp.Tracer("test")))
	require.NoError(t, svc.Execute(t.Context(), "tenant1", nil))

	byInstance := map[int64]sdktrace.ReadOnlySpan{}
	var execute sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		attrs := spanAttrs(span)
		assert.Equal(t, "tenant1", attrs[adminotel.AttrTenant].AsString(), span.Name())
		switch span.Name() {
		case adminotel.SpanRefresh:
			execute = span
		case adminotel.SpanRefreshInstance:
			byInstance[attrs[adminotel.AttrInstanceID].AsInt64()] = span
		}
	}

	require.NotNil(t, execute)
	execAttrs := spanAttrs(execute)
	assert.Equal(t, int64(2), execAttrs[adminotel.AttrInstanceCount].AsInt64())
	assert.Equal(t, db.EngineSQLServer.String(), execAttrs[adminotel.AttrEngine].AsString())
	assert.Equal(t, codes.Unset, execute.Status().Code)

	require.Len(t, byInstance, 2)
	ok := byInstance[1]
	assert.Equal(t, codes.Unset, ok.Status().Code)
	assert.Equal(t, int64(2), spanAttrs(ok)[adminotel.AttrResultCount].AsInt64())
	assert.Equal(t, execute.SpanContext().SpanID(), ok.Parent().SpanID())

	failed := byInstance[2]
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "failed", failed.Status().Description)
	require.Len(t, failed.Events(), 1)
	assert.NotContains(t, failed.Status().Description, "connection refused")
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}
