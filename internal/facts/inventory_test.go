package facts

import (
	"testing"

	"github.com/outletx/merch-engine/internal/models"
)

func TestInventory_EmptyRecord(t *testing.T) {
	inv := Inventory(&models.FactRecord{})
	if inv.Available != 0 || inv.Total != 0 {
		t.Errorf("Expected {0 0}, got %+v", inv)
	}
}

func TestInventory_NilRecord(t *testing.T) {
	inv := Inventory(nil)
	if inv.Available != 0 || inv.Total != 0 {
		t.Errorf("Expected {0 0}, got %+v", inv)
	}
}

func TestInventory_OnHandPlusOrders(t *testing.T) {
	rec := &models.FactRecord{
		InventoryLevels: []models.InventoryLevel{
			{Quantities: []models.QuantityLevel{{Name: "on_hand", Quantity: 5}}},
		},
		Orders: []models.Order{{Quantity: 3}},
	}

	inv := Inventory(rec)
	if inv.Available != 5 {
		t.Errorf("Expected available 5, got %d", inv.Available)
	}
	if inv.Total != 8 {
		t.Errorf("Expected total 8, got %d", inv.Total)
	}
}

func TestInventory_IgnoresOtherQuantityNames(t *testing.T) {
	rec := &models.FactRecord{
		InventoryLevels: []models.InventoryLevel{
			{Quantities: []models.QuantityLevel{
				{Name: "on_hand", Quantity: 4},
				{Name: "incoming", Quantity: 10},
				{Name: "committed", Quantity: 2},
			}},
			{Quantities: []models.QuantityLevel{
				{Name: "on_hand", Quantity: 6},
			}},
		},
	}

	inv := Inventory(rec)
	if inv.Available != 10 {
		t.Errorf("Expected available 10, got %d", inv.Available)
	}
	if inv.Total != 10 {
		t.Errorf("Expected total 10, got %d", inv.Total)
	}
}

func TestInventory_TotalNeverBelowAvailable(t *testing.T) {
	recs := []*models.FactRecord{
		{Orders: []models.Order{{Quantity: 1}, {Quantity: 7}}},
		{
			InventoryLevels: []models.InventoryLevel{
				{Quantities: []models.QuantityLevel{{Name: "on_hand", Quantity: 12}}},
			},
			Orders: []models.Order{{Quantity: 2}},
		},
	}

	for _, rec := range recs {
		inv := Inventory(rec)
		if inv.Total < inv.Available {
			t.Errorf("total %d < available %d", inv.Total, inv.Available)
		}
	}
}
