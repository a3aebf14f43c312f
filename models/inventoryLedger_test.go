package models

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestWarehouseQuantityDefaultsToZero(t *testing.T) {
	p := Product{ID: 1}
	if got := p.WarehouseQuantity(5); got != 0 {
		t.Fatalf("expected 0 for missing warehouse entry, got %d", got)
	}
}

func TestSetWarehouseQuantityUpsertsAndRejectsNegative(t *testing.T) {
	p := Product{ID: 1}

	if err := p.SetWarehouseQuantity(3, 10); err != nil {
		t.Fatalf("SetWarehouseQuantity: %v", err)
	}
	if got := p.WarehouseQuantity(3); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if len(p.WarehouseInventories) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(p.WarehouseInventories))
	}

	// same warehouse updates in place, no duplicate row
	if err := p.SetWarehouseQuantity(3, 4); err != nil {
		t.Fatalf("SetWarehouseQuantity update: %v", err)
	}
	if len(p.WarehouseInventories) != 1 {
		t.Fatalf("expected one ledger row after update, got %d", len(p.WarehouseInventories))
	}
	if got := p.WarehouseQuantity(3); got != 4 {
		t.Fatalf("expected 4 after update, got %d", got)
	}

	if err := p.SetWarehouseQuantity(3, -1); err == nil {
		t.Fatal("expected error for negative quantity")
	}
	if got := p.WarehouseQuantity(3); got != 4 {
		t.Fatalf("failed set must not mutate; expected 4, got %d", got)
	}
}

func TestIncreaseDecreaseWarehouseQuantity(t *testing.T) {
	p := Product{ID: 1}

	if err := p.IncreaseWarehouseQuantity(7, 0); err == nil {
		t.Fatal("expected error increasing by zero")
	}
	if err := p.IncreaseWarehouseQuantity(7, 5); err != nil {
		t.Fatalf("IncreaseWarehouseQuantity: %v", err)
	}
	if err := p.IncreaseWarehouseQuantity(7, 3); err != nil {
		t.Fatalf("IncreaseWarehouseQuantity: %v", err)
	}
	if got := p.WarehouseQuantity(7); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}

	if err := p.DecreaseWarehouseQuantity(7, 3); err != nil {
		t.Fatalf("DecreaseWarehouseQuantity: %v", err)
	}
	if got := p.WarehouseQuantity(7); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}

	// draining past the balance is rejected and reports what is available
	err := p.DecreaseWarehouseQuantity(7, 6)
	var insufficient *InsufficientQuantityError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientQuantityError, got %v", err)
	}
	if insufficient.Available != 5 || insufficient.Requested != 6 {
		t.Fatalf("expected available=5 requested=6, got %+v", insufficient)
	}
	if got := p.WarehouseQuantity(7); got != 5 {
		t.Fatalf("failed decrease must not mutate; expected 5, got %d", got)
	}

	// decreasing a warehouse with no ledger row
	if err := p.DecreaseWarehouseQuantity(99, 1); !errors.Is(err, ErrWarehouseEntryNotFound) {
		t.Fatalf("expected ErrWarehouseEntryNotFound, got %v", err)
	}
}

func TestTotalQuantityAndIsInStock(t *testing.T) {
	p := Product{ID: 1}
	_ = p.SetWarehouseQuantity(1, 10)
	_ = p.SetWarehouseQuantity(2, 0)
	_ = p.SetWarehouseQuantity(3, 7)

	if got := p.TotalQuantity(); got != 17 {
		t.Fatalf("expected total 17, got %d", got)
	}
	if !p.IsInStock(1, 10) {
		t.Fatal("warehouse 1 holds exactly 10, IsInStock(10) must be true")
	}
	if p.IsInStock(1, 11) {
		t.Fatal("warehouse 1 holds 10, IsInStock(11) must be false")
	}
	if p.IsInStock(2, 1) {
		t.Fatal("warehouse 2 is empty, IsInStock(1) must be false")
	}
}

func TestAggregateVariantInventories(t *testing.T) {
	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	single := &Product{ID: 10, ParentProductId: intPtr(10)} // self-referencing, must be skipped
	_ = single.SetWarehouseQuantity(1, 1000)

	variantA := &Product{ID: 11, ParentProductId: intPtr(1), WarehouseInventories: []WarehouseInventory{
		{WarehouseId: 1, Quantity: 5, LastUpdated: older},
		{WarehouseId: 2, Quantity: 3, LastUpdated: older},
	}}
	variantB := &Product{ID: 12, ParentProductId: intPtr(1), WarehouseInventories: []WarehouseInventory{
		{WarehouseId: 2, Quantity: 4, LastUpdated: newer},
		{WarehouseId: 3, Quantity: 0, LastUpdated: newer},
	}}

	got := aggregateVariantInventories([]*Product{single, variantA, variantB})

	// warehouse 3 nets to zero and is omitted; output sorted by warehouse id
	if len(got) != 2 {
		t.Fatalf("expected 2 aggregated rows, got %d: %+v", len(got), got)
	}
	if got[0].WarehouseId != 1 || got[0].Quantity != 5 {
		t.Fatalf("warehouse 1: expected qty 5, got %+v", got[0])
	}
	if got[1].WarehouseId != 2 || got[1].Quantity != 7 {
		t.Fatalf("warehouse 2: expected qty 7, got %+v", got[1])
	}
	if !got[1].LastUpdated.Equal(newer) {
		t.Fatalf("warehouse 2: expected most recent variant timestamp, got %v", got[1].LastUpdated)
	}
}

func TestAggregateVariantInventoriesEmpty(t *testing.T) {
	if got := aggregateVariantInventories(nil); len(got) != 0 {
		t.Fatalf("expected no rows, got %+v", got)
	}
}
