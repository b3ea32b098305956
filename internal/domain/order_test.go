package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrder() *Order {
	return &Order{
		OrderID:           uuid.New(),
		OrderCode:         "MERCH-ORD002-S024045",
		OwnerIdentityCode: "S024045",
		Status:            StatusReadyForPickup,
		Items: []Item{
			{Name: "Campus Hoodie", Quantity: 2, UnitPrice: decimal.RequireFromString("450.00"), Size: "M"},
			{Name: "Tote Bag", Quantity: 1, UnitPrice: decimal.RequireFromString("120.50")},
		},
		Total:            decimal.RequireFromString("1020.50"),
		RemainingBalance: decimal.Zero,
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "S024045", NormalizeCode("  s024045\t"))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestOrderNormalize(t *testing.T) {
	o := &Order{OrderCode: " merch-ord002-s024045 ", OwnerIdentityCode: "s024045"}
	o.Normalize()
	assert.Equal(t, "MERCH-ORD002-S024045", o.OrderCode)
	assert.Equal(t, "S024045", o.OwnerIdentityCode)
	assert.Equal(t, StatusReadyForPickup, o.Status)
}

func TestItemsTotal(t *testing.T) {
	o := validOrder()
	assert.True(t, o.ItemsTotal().Equal(decimal.RequireFromString("1020.50")))
}

func TestValidate(t *testing.T) {
	require.NoError(t, validOrder().Validate())

	now := time.Now()
	cases := map[string]func(o *Order){
		"missing code":          func(o *Order) { o.OrderCode = "" },
		"missing owner":         func(o *Order) { o.OwnerIdentityCode = "" },
		"unknown status":        func(o *Order) { o.Status = "shipped" },
		"negative balance":      func(o *Order) { o.RemainingBalance = decimal.NewFromInt(-1) },
		"zero quantity":         func(o *Order) { o.Items[0].Quantity = 0 },
		"unnamed item":          func(o *Order) { o.Items[1].Name = " " },
		"completed no pickup":   func(o *Order) { o.Status = StatusCompleted },
		"ready with pickupDate": func(o *Order) { o.PickupDate = &now },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := validOrder()
			mutate(o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	o := validOrder()
	o.Status = StatusCompleted
	o.PickupDate = &now

	c := o.Clone()
	c.Items[0].Name = "changed"
	*c.PickupDate = now.Add(time.Hour)

	assert.Equal(t, "Campus Hoodie", o.Items[0].Name)
	assert.Equal(t, now, *o.PickupDate)
}

func TestHasBalance(t *testing.T) {
	o := validOrder()
	assert.False(t, o.HasBalance())
	o.RemainingBalance = decimal.RequireFromString("0.01")
	assert.True(t, o.HasBalance())
}
