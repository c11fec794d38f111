package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playforge/payments-backend/pkg/db/models"
	"github.com/playforge/payments-backend/pkg/enums"
)

// MemoryRepository is an in-process Repository for dev mode and tests. Lookups
// by provider reference are O(1) via a maintained index; a per-store mutex
// gives each record the atomic read-modify-write the reconciler relies on.
type MemoryRepository struct {
	mu    sync.Mutex
	seq   int64
	byID  map[string]*memoryRecord
	byRef map[string]string
}

type memoryRecord struct {
	txn models.Transaction
	seq int64
}

// NewMemoryRepository returns an empty in-memory transaction store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  map[string]*memoryRecord{},
		byRef: map[string]string{},
	}
}

func (m *MemoryRepository) Create(ctx context.Context, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareForCreate(txn)
	now := time.Now().UTC()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = txn.CreatedAt

	m.seq++
	m.byID[txn.ID] = &memoryRecord{txn: *txn, seq: m.seq}
	if ref := txn.ProviderReference(); ref != "" {
		m.byRef[ref] = txn.ID
	}
	return nil
}

func (m *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	clone := rec.txn
	return &clone, nil
}

func (m *MemoryRepository) FindByProviderReferenceID(ctx context.Context, ref string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byRef[ref]
	if !ok {
		return nil, nil
	}
	rec := m.byID[id]
	clone := rec.txn
	return &clone, nil
}

func (m *MemoryRepository) TransitionStatus(ctx context.Context, ref string, update StatusUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byRef[ref]
	if !ok {
		return false, nil
	}
	rec := m.byID[id]
	if rec.txn.Status != enums.TransactionStatusPending {
		return false, nil
	}
	rec.txn.Status = update.Status
	if update.FailureReason != nil {
		rec.txn.FailureReason = update.FailureReason
	}
	rec.txn.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]*memoryRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].txn.CreatedAt.Equal(records[j].txn.CreatedAt) {
			return records[i].txn.CreatedAt.After(records[j].txn.CreatedAt)
		}
		return records[i].seq > records[j].seq
	})

	txns := make([]models.Transaction, 0, len(records))
	for _, rec := range records {
		txns = append(txns, rec.txn)
	}
	return txns, nil
}
