package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusReadyForPickup OrderStatus = "ready-for-pickup"
	StatusCompleted      OrderStatus = "completed"
)

func (s OrderStatus) Valid() bool {
	return s == StatusReadyForPickup || s == StatusCompleted
}

var ErrInvalidOrder = errors.New("invalid order")

type Order struct {
	OrderID           uuid.UUID       `json:"order_id"`
	OrderCode         string          `json:"order_code"`
	OwnerIdentityCode string          `json:"owner_identity_code"`
	OwnerName         string          `json:"owner_name,omitempty"`
	Department        string          `json:"department,omitempty"`
	Status            OrderStatus     `json:"status"`
	Items             []Item          `json:"items"`
	Total             decimal.Decimal `json:"total"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	PickupDate        *time.Time      `json:"pickup_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type Item struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ReleaseRecord is one entry of the release log.
type ReleaseRecord struct {
	OrderID    uuid.UUID `json:"order_id"`
	OrderCode  string    `json:"order_code"`
	ReleasedAt time.Time `json:"released_at"`
}

// NormalizeCode trims and uppercases an order or identity code.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ItemsTotal sums item subtotals. Order.Total is trusted as given and is not
// compared against it.
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

func (o *Order) HasBalance() bool {
	return o.RemainingBalance.IsPositive()
}

func (o *Order) Normalize() {
	o.OrderCode = NormalizeCode(o.OrderCode)
	o.OwnerIdentityCode = NormalizeCode(o.OwnerIdentityCode)
	if o.Status == "" {
		o.Status = StatusReadyForPickup
	}
}

// Validate checks the order shape before it enters a store.
func (o *Order) Validate() error {
	if o.OrderCode == "" {
		return fmt.Errorf("%w: order_code is required", ErrInvalidOrder)
	}
	if o.OwnerIdentityCode == "" {
		return fmt.Errorf("%w: owner_identity_code is required", ErrInvalidOrder)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, o.Status)
	}
	if o.Total.IsNegative() || o.RemainingBalance.IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidOrder)
	}
	for i, it := range o.Items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidOrder, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidOrder, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d has negative price", ErrInvalidOrder, i)
		}
	}
	switch o.Status {
	case StatusCompleted:
		if o.PickupDate == nil {
			return fmt.Errorf("%w: completed order without pickup_date", ErrInvalidOrder)
		}
	case StatusReadyForPickup:
		if o.PickupDate != nil {
			return fmt.Errorf("%w: pickup_date set on order not yet released", ErrInvalidOrder)
		}
	}
	return nil
}

// Clone returns a deep copy so stores never hand out their own pointers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.PickupDate != nil {
		t := *o.PickupDate
		c.PickupDate = &t
	}
	return &c
}
