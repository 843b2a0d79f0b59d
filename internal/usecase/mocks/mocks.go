package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/usecase"
)

// MockOracle is a func-field mock of PriceOracle. Without an override
// it serves prices from the Prices table keyed by asset.
type MockOracle struct {
	mu     sync.RWMutex
	Prices map[string]decimal.Decimal

	GetUnitPriceFunc func(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error)
}

func NewMockOracle() *MockOracle {
	return &MockOracle{Prices: make(map[string]decimal.Decimal)}
}

func (m *MockOracle) SetPrice(asset string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prices[asset] = price
}

func (m *MockOracle) GetUnitPrice(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
	if m.GetUnitPriceFunc != nil {
		return m.GetUnitPriceFunc(ctx, asset, at)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if price, ok := m.Prices[asset]; ok {
		return price, true, nil
	}
	return decimal.Zero, false, nil
}

// MockFeed is a func-field mock of ActivityFeed.
type MockFeed struct {
	Records []domain.RawRecord

	FetchFunc func(ctx context.Context, wallet string) ([]domain.RawRecord, error)
}

func NewMockFeed() *MockFeed {
	return &MockFeed{}
}

func (m *MockFeed) Fetch(ctx context.Context, wallet string) ([]domain.RawRecord, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, wallet)
	}
	return m.Records, nil
}

// MockCheckpoints is a func-field mock of CheckpointRepository backed
// by an in-memory map.
type MockCheckpoints struct {
	mu          sync.RWMutex
	checkpoints map[string]*domain.Checkpoint

	SaveFunc func(ctx context.Context, tx usecase.Transaction, cp *domain.Checkpoint) error
	GetFunc  func(ctx context.Context, wallet string) (*domain.Checkpoint, error)
}

func NewMockCheckpoints() *MockCheckpoints {
	return &MockCheckpoints{checkpoints: make(map[string]*domain.Checkpoint)}
}

func (m *MockCheckpoints) Save(ctx context.Context, tx usecase.Transaction, cp *domain.Checkpoint) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, cp)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.Wallet] = cp
	return nil
}

func (m *MockCheckpoints) Get(ctx context.Context, wallet string) (*domain.Checkpoint, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, wallet)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cp, ok := m.checkpoints[wallet]; ok {
		return cp, nil
	}
	return nil, domain.ErrCheckpointNotFound
}

// MockTx is a no-op Transaction recording whether it was committed or
// rolled back.
type MockTx struct {
	Committed  bool
	RolledBack bool

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTx) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *MockTx) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// MockTxManager hands out MockTx transactions.
type MockTxManager struct {
	Last *MockTx

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

func (m *MockTxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.Last = &MockTx{}
	return m.Last, nil
}

// MockIDGen returns a fixed ID, or sequential IDs when Sequence is set.
type MockIDGen struct {
	ID string

	GenerateFunc func() string
}

func NewMockIDGen() *MockIDGen {
	return &MockIDGen{ID: "run-test-1"}
}

func (m *MockIDGen) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	return m.ID
}

// MockRunMetrics counts RunMetrics calls.
type MockRunMetrics struct {
	mu           sync.Mutex
	Normalized   int
	Unclassified int
	Unpriced     int
	Aborted      []string
	Entries      int
	Disposals    int
	LotsCreated  int
}

func NewMockRunMetrics() *MockRunMetrics {
	return &MockRunMetrics{}
}

func (m *MockRunMetrics) EventsNormalized(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Normalized += n
}

func (m *MockRunMetrics) EventUnclassifiable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unclassified++
}

func (m *MockRunMetrics) EventUnpriced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unpriced++
}

func (m *MockRunMetrics) AssetAborted(asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Aborted = append(m.Aborted, asset)
}

func (m *MockRunMetrics) EntriesPosted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries += n
}

func (m *MockRunMetrics) DisposalsMatched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disposals += n
}

func (m *MockRunMetrics) LotsOpened(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LotsCreated += n
}

// MockKV is an in-memory Cache.
type MockKV struct {
	mu     sync.RWMutex
	values map[string]string

	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockKV() *MockKV {
	return &MockKV{values: make(map[string]string)}
}

// ErrCacheMiss is returned by MockKV.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

func (m *MockKV) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", ErrCacheMiss
}

func (m *MockKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MockKV) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
