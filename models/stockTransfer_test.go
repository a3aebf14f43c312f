package models

import (
	"encoding/json"
	"testing"
)

func TestGenerateTransferReferenceCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateTransferReferenceCode()
		if !IsValidTransferReferenceCode(code) {
			t.Fatalf("generated code %q does not match the reference pattern", code)
		}
		seen[code] = true
	}
	// timestamp+random makes collisions across 100 draws effectively impossible
	if len(seen) < 90 {
		t.Fatalf("expected distinct codes, got %d unique of 100", len(seen))
	}
}

func TestIsValidTransferReferenceCode(t *testing.T) {
	valid := []string{"ST-1756617600000-0042", "ST-1-0000", "ST-99999999999999-9999"}
	for _, code := range valid {
		if !IsValidTransferReferenceCode(code) {
			t.Errorf("expected %q to be valid", code)
		}
	}
	invalid := []string{"", "ST-", "ST-abc-1234", "ST-1756617600000-123", "ST-1756617600000-12345", "XX-1756617600000-1234", "st-1756617600000-1234", " ST-1-0000"}
	for _, code := range invalid {
		if IsValidTransferReferenceCode(code) {
			t.Errorf("expected %q to be invalid", code)
		}
	}
}

func TestNewStockTransferUnmarshalSnakeCase(t *testing.T) {
	body := `{"product_id": 3, "from_warehouse_id": 1, "to_warehouse_id": 2, "quantity": 15, "notes": "restock"}`
	var input NewStockTransfer
	if err := json.Unmarshal([]byte(body), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if input.ProductId != 3 || input.FromWarehouseId != 1 || input.ToWarehouseId != 2 {
		t.Fatalf("unexpected ids: %+v", input)
	}
	if input.Quantity != "15" {
		t.Fatalf("expected quantity %q, got %q", "15", input.Quantity)
	}
	if input.Notes != "restock" {
		t.Fatalf("expected notes %q, got %q", "restock", input.Notes)
	}
}

func TestNewStockTransferUnmarshalCamelCase(t *testing.T) {
	body := `{"productId": "3", "fromWarehouseId": "1", "toWarehouseId": "2", "quantity": "15"}`
	var input NewStockTransfer
	if err := json.Unmarshal([]byte(body), &input); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if input.ProductId != 3 || input.FromWarehouseId != 1 || input.ToWarehouseId != 2 {
		t.Fatalf("unexpected ids: %+v", input)
	}
	if input.Quantity != "15" {
		t.Fatalf("expected quantity %q, got %q", "15", input.Quantity)
	}
}

func TestNewStockTransferValidateCollectsAllErrors(t *testing.T) {
	input := NewStockTransfer{} // everything missing
	_, errs := input.validate()
	if len(errs) != 4 {
		t.Fatalf("expected 4 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestNewStockTransferValidateSameWarehouse(t *testing.T) {
	input := NewStockTransfer{ProductId: 1, FromWarehouseId: 2, ToWarehouseId: 2, Quantity: "5"}
	_, errs := input.validate()
	if len(errs) != 1 {
		t.Fatalf("expected exactly the same-warehouse error, got %v", errs)
	}
}

func TestNewStockTransferValidateQuantity(t *testing.T) {
	cases := map[string]bool{
		"5":    true,
		"5.0":  true, // whole-number float tolerated
		"0":    false,
		"-3":   false,
		"2.5":  false,
		"abc":  false,
		"":     false,
		" 12 ": true,
	}
	for raw, ok := range cases {
		input := NewStockTransfer{ProductId: 1, FromWarehouseId: 1, ToWarehouseId: 2, Quantity: raw}
		qty, errs := input.validate()
		if ok && len(errs) != 0 {
			t.Errorf("quantity %q: expected valid, got %v", raw, errs)
		}
		if !ok && len(errs) == 0 {
			t.Errorf("quantity %q: expected a validation error", raw)
		}
		if ok && qty <= 0 {
			t.Errorf("quantity %q: expected parsed positive value, got %d", raw, qty)
		}
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{"a", "b"}
	if errs.Error() != "a; b" {
		t.Fatalf("unexpected joined message %q", errs.Error())
	}
	if len(errs.Messages()) != 2 {
		t.Fatalf("expected 2 messages")
	}
}

func TestInsufficientQuantityErrorMessage(t *testing.T) {
	err := &InsufficientQuantityError{WarehouseName: "Main", Available: 3, Requested: 10}
	want := `insufficient quantity in warehouse "Main": available 3, requested 10`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
