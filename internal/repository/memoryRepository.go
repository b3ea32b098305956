package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps orders and the release log in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	byCode   map[string]*domain.Order
	releases []domain.ReleaseRecord
}

var _ OrderRepo = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byCode: make(map[string]*domain.Order)}
}

func (m *MemoryRepository) AddOrder(_ context.Context, o *domain.Order) error {
	o.Normalize()
	if err := o.Validate(); err != nil {
		return err
	}
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[o.OrderCode]; ok {
		return ErrOrderAlreadyExists
	}
	m.byCode[o.OrderCode] = o.Clone()
	return nil
}

func (m *MemoryRepository) GetOrderByCode(_ context.Context, code string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.byCode[domain.NormalizeCode(code)]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (m *MemoryRepository) ListOrders(_ context.Context, f OrderFilter) ([]domain.Order, error) {
	m.mu.RLock()
	out := make([]domain.Order, 0, len(m.byCode))
	for _, o := range m.byCode {
		if f.Match(o) {
			out = append(out, *o.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderCode < out[j].OrderCode
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepository) MarkReleased(_ context.Context, code string, releasedAt time.Time) (domain.ReleaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byCode[domain.NormalizeCode(code)]
	if !ok {
		return domain.ReleaseRecord{}, ErrOrderNotFound
	}
	if o.Status != domain.StatusReadyForPickup {
		return domain.ReleaseRecord{}, ErrOrderNotReady
	}

	at := releasedAt
	o.Status = domain.StatusCompleted
	o.PickupDate = &at

	rec := domain.ReleaseRecord{OrderID: o.OrderID, OrderCode: o.OrderCode, ReleasedAt: at}
	m.releases = append([]domain.ReleaseRecord{rec}, m.releases...)
	return rec, nil
}

func (m *MemoryRepository) ListReleases(_ context.Context, limit int) ([]domain.ReleaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.releases)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ReleaseRecord, n)
	copy(out, m.releases[:n])
	return out, nil
}
