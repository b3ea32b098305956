package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/logger"
	"github.com/RaikyD/merch-pickup-service/internal/repository"
	"github.com/shopspring/decimal"
)

// OrdersService is a read-through cache in front of the order store. It
// satisfies repository.OrderRepo so the verifier can sit on top of it.
type OrdersService struct {
	repo   repository.OrderRepo
	mu     sync.RWMutex
	byCode map[string]*domain.Order
}

var _ repository.OrderRepo = (*OrdersService)(nil)

func NewOrdersService(r repository.OrderRepo) *OrdersService {
	return &OrdersService{
		repo:   r,
		byCode: make(map[string]*domain.Order),
	}
}

func (s *OrdersService) AddOrder(ctx context.Context, order *domain.Order) error {
	if err := s.repo.AddOrder(ctx, order); err != nil {
		if !errors.Is(err, repository.ErrOrderAlreadyExists) {
			logger.Warn("add order failed", "code", order.OrderCode, "err", err)
		}
		return err
	}

	s.mu.Lock()
	s.byCode[order.OrderCode] = order.Clone()
	s.mu.Unlock()
	return nil
}

func (s *OrdersService) GetOrderByCode(ctx context.Context, code string) (*domain.Order, error) {
	code = domain.NormalizeCode(code)

	s.mu.RLock()
	if o, ok := s.byCode[code]; ok {
		s.mu.RUnlock()
		return o.Clone(), nil
	}
	s.mu.RUnlock()

	o, err := s.repo.GetOrderByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.byCode[o.OrderCode] = o.Clone()
	s.mu.Unlock()
	return o, nil
}

func (s *OrdersService) ListOrders(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, f)
}

// MarkReleased releases in the store and then refreshes the cached copy.
func (s *OrdersService) MarkReleased(ctx context.Context, code string, releasedAt time.Time) (domain.ReleaseRecord, error) {
	rec, err := s.repo.MarkReleased(ctx, code, releasedAt)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotReady) || errors.Is(err, repository.ErrOrderNotFound) {
			s.Invalidate(code)
		}
		return rec, err
	}

	s.mu.Lock()
	if o, ok := s.byCode[rec.OrderCode]; ok {
		at := rec.ReleasedAt
		o.Status = domain.StatusCompleted
		o.PickupDate = &at
	}
	s.mu.Unlock()
	return rec, nil
}

func (s *OrdersService) ListReleases(ctx context.Context, limit int) ([]domain.ReleaseRecord, error) {
	return s.repo.ListReleases(ctx, limit)
}

func (s *OrdersService) Invalidate(code string) {
	s.mu.Lock()
	delete(s.byCode, domain.NormalizeCode(code))
	s.mu.Unlock()
}

// RestoreCache warms the cache with the most recent orders.
func (s *OrdersService) RestoreCache(ctx context.Context, limit int) error {
	rows, err := s.repo.ListOrders(ctx, repository.OrderFilter{Limit: limit})
	if err != nil {
		return err
	}

	// build outside the lock
	tmp := make(map[string]*domain.Order, len(rows))
	for i := range rows {
		o := rows[i]
		tmp[o.OrderCode] = &o
	}

	s.mu.Lock()
	s.byCode = tmp
	s.mu.Unlock()
	logger.Info("order cache restored", "orders", len(tmp))
	return nil
}

// Summary is the dashboard view of the order book.
type Summary struct {
	Orders             int                        `json:"orders"`
	ByStatus           map[domain.OrderStatus]int `json:"by_status"`
	ByDepartment       map[string]DepartmentStats `json:"by_department"`
	OutstandingBalance decimal.Decimal            `json:"outstanding_balance"`
	ReadyWithBalance   int                        `json:"ready_with_balance"`
	Revenue            decimal.Decimal            `json:"revenue"`
}

type DepartmentStats struct {
	Ready     int `json:"ready"`
	Completed int `json:"completed"`
}

func (s *OrdersService) Summary(ctx context.Context) (Summary, error) {
	list, err := s.repo.ListOrders(ctx, repository.OrderFilter{})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Orders:             len(list),
		ByStatus:           make(map[domain.OrderStatus]int),
		ByDepartment:       make(map[string]DepartmentStats),
		OutstandingBalance: decimal.Zero,
		Revenue:            decimal.Zero,
	}
	for i := range list {
		o := &list[i]
		sum.ByStatus[o.Status]++
		sum.OutstandingBalance = sum.OutstandingBalance.Add(o.RemainingBalance)
		sum.Revenue = sum.Revenue.Add(o.Total.Sub(o.RemainingBalance))

		dept := o.Department
		if dept == "" {
			dept = "unassigned"
		}
		ds := sum.ByDepartment[dept]
		switch o.Status {
		case domain.StatusReadyForPickup:
			ds.Ready++
			if o.HasBalance() {
				sum.ReadyWithBalance++
			}
		case domain.StatusCompleted:
			ds.Completed++
		}
		sum.ByDepartment[dept] = ds
	}
	return sum, nil
}
