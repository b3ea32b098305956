// Package fixtures holds the sample campus store orders used when the
// service runs without a database.
package fixtures

import (
	"context"
	"errors"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/repository"
	"github.com/shopspring/decimal"
)

type Store interface {
	AddOrder(ctx context.Context, o *domain.Order) error
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Orders returns a fresh copy of the sample order book.
func Orders(now time.Time) []domain.Order {
	released := now.Add(-48 * time.Hour)
	return []domain.Order{
		{
			OrderCode:         "MERCH-ORD001-S023118",
			OwnerIdentityCode: "S023118",
			OwnerName:         "Lin Chen",
			Department:        "Computer Science",
			Status:            domain.StatusCompleted,
			Items: []domain.Item{
				{Name: "Campus Hoodie", Quantity: 1, UnitPrice: d("450.00"), Size: "L", Color: "Navy"},
			},
			Total:            d("450.00"),
			RemainingBalance: decimal.Zero,
			PickupDate:       &released,
			CreatedAt:        now.Add(-96 * time.Hour),
		},
		{
			OrderCode:         "MERCH-ORD002-S024045",
			OwnerIdentityCode: "S024045",
			OwnerName:         "Maya Rivera",
			Department:        "Mechanical Engineering",
			Status:            domain.StatusReadyForPickup,
			Items: []domain.Item{
				{Name: "Logo T-Shirt", Quantity: 2, UnitPrice: d("180.00"), Size: "M", Color: "White"},
				{Name: "Enamel Mug", Quantity: 1, UnitPrice: d("95.00")},
			},
			Total:            d("455.00"),
			RemainingBalance: decimal.Zero,
			CreatedAt:        now.Add(-72 * time.Hour),
		},
		{
			OrderCode:         "MERCH-ORD003-F000001",
			OwnerIdentityCode: "F000001",
			OwnerName:         "Dr. Amara Okafor",
			Department:        "Physics",
			Status:            domain.StatusReadyForPickup,
			Items: []domain.Item{
				{Name: "Embroidered Polo", Quantity: 1, UnitPrice: d("320.00"), Size: "XL", Color: "Maroon"},
			},
			Total:            d("320.00"),
			RemainingBalance: d("120.00"),
			CreatedAt:        now.Add(-48 * time.Hour),
		},
		{
			OrderCode:         "MERCH-ORD004-S025310",
			OwnerIdentityCode: "S025310",
			OwnerName:         "Jonas Weber",
			Department:        "Computer Science",
			Status:            domain.StatusReadyForPickup,
			Items: []domain.Item{
				{Name: "Sticker Pack", Quantity: 3, UnitPrice: d("25.00")},
				{Name: "Tote Bag", Quantity: 1, UnitPrice: d("120.00"), Color: "Natural"},
			},
			Total:            d("195.00"),
			RemainingBalance: decimal.Zero,
			CreatedAt:        now.Add(-24 * time.Hour),
		},
		{
			OrderCode:         "MERCH-ORD005-S022987",
			OwnerIdentityCode: "S022987",
			OwnerName:         "Priya Nair",
			Department:        "Design",
			Status:            domain.StatusReadyForPickup,
			Items: []domain.Item{
				{Name: "Community Design Tee", Quantity: 1, UnitPrice: d("210.00"), Size: "S", Color: "Black"},
			},
			Total:            d("210.00"),
			RemainingBalance: d("210.00"),
			CreatedAt:        now.Add(-2 * time.Hour),
		},
	}
}

// Seed loads the sample orders into s. Orders already present are skipped.
func Seed(ctx context.Context, s Store, now time.Time) (int, error) {
	n := 0
	for _, o := range Orders(now) {
		o := o
		err := s.AddOrder(ctx, &o)
		if errors.Is(err, repository.ErrOrderAlreadyExists) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
