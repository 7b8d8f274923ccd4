// Package facts derives inventory and sales-velocity snapshots from a fact
// record's raw order and inventory-level history. All derivations are pure:
// missing slices are treated as empty and nothing is persisted here.
package facts

import (
	"github.com/outletx/merch-engine/internal/models"
)

// onHandQuantityName is the quantity bucket that counts as sellable stock.
const onHandQuantityName = "on_hand"

// Inventory derives the availability snapshot for a fact record. Available
// is the sum of on_hand quantities across all inventory levels; Total adds
// the quantities of fulfilled orders not yet reflected in on-hand counts.
func Inventory(rec *models.FactRecord) models.Inventory {
	if rec == nil {
		return models.Inventory{}
	}

	available := 0
	for _, level := range rec.InventoryLevels {
		for _, q := range level.Quantities {
			if q.Name == onHandQuantityName {
				available += q.Quantity
			}
		}
	}

	ordered := 0
	for _, order := range rec.Orders {
		ordered += order.Quantity
	}

	return models.Inventory{
		Available: available,
		Total:     available + ordered,
	}
}
