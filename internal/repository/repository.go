package repository

import (
	"context"
	"errors"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
)

var (
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotReady      = errors.New("order is not ready for pickup")
)

// OrderRepo is the order store plus the release log.
type OrderRepo interface {
	AddOrder(ctx context.Context, order *domain.Order) error
	GetOrderByCode(ctx context.Context, code string) (*domain.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	// MarkReleased completes a ready order and appends it to the release log
	// in one step: either all of it happens or none of it does.
	MarkReleased(ctx context.Context, code string, releasedAt time.Time) (domain.ReleaseRecord, error)
	ListReleases(ctx context.Context, limit int) ([]domain.ReleaseRecord, error)
}

type OrderFilter struct {
	Status            domain.OrderStatus
	OwnerIdentityCode string
	Department        string
	Limit             int
}

func (f OrderFilter) Match(o *domain.Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.OwnerIdentityCode != "" && o.OwnerIdentityCode != domain.NormalizeCode(f.OwnerIdentityCode) {
		return false
	}
	if f.Department != "" && o.Department != f.Department {
		return false
	}
	return true
}
