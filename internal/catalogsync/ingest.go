// Package catalogsync maintains fact records from catalog and order
// events. Each variant owns one record keyed by its numeric id and shop;
// order events append to the record's sales history and variant events
// merge the catalog snapshot.
package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/pkg/logger"
)

const variantGIDPrefix = "gid://shopify/ProductVariant/"

// RecordID derives the fact record id for a variant: the numeric variant
// id joined to the shop domain.
func RecordID(variantID, shop string) string {
	num := strings.TrimPrefix(variantID, variantGIDPrefix)
	if i := strings.LastIndex(num, "/"); i >= 0 {
		num = num[i+1:]
	}
	return num + "_" + shop
}

// OrderLineItem is one sold line of an order event.
type OrderLineItem struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// OrderEvent is the order payload the sync ingests.
type OrderEvent struct {
	ID          string          `json:"id"`
	ProcessedAt time.Time       `json:"processed_at"`
	LineItems   []OrderLineItem `json:"line_items"`
}

// VariantEvent is the catalog snapshot of one variant the sync ingests.
// TriggeredRules carries the raw mirrored ledger metafield, empty when the
// variant has none.
type VariantEvent struct {
	VariantID        string                  `json:"variant_id"`
	ProductID        string                  `json:"product_id"`
	Price            float64                 `json:"price"`
	ProductCreatedAt *time.Time              `json:"product_created_at,omitempty"`
	Tags             []string                `json:"tags,omitempty"`
	Collections      []string                `json:"collections,omitempty"`
	ProductType      string                  `json:"product_type,omitempty"`
	Vendor           string                  `json:"vendor,omitempty"`
	InventoryItemID  string                  `json:"inventory_item_id,omitempty"`
	InventoryLevels  []models.InventoryLevel `json:"inventory_levels,omitempty"`
	TriggeredRules   string                  `json:"triggered_rules,omitempty"`
}

// Ingestor applies catalog and order events to the fact store.
type Ingestor struct {
	facts storage.FactStore
}

// NewIngestor creates an ingestor over the given fact store.
func NewIngestor(facts storage.FactStore) *Ingestor {
	return &Ingestor{facts: facts}
}

// IngestOrder folds an order into the records of its variants. A line item
// seen before replaces its previous rows, so webhook redeliveries and order
// edits do not double-count. Line items for unknown variants are skipped.
func (ing *Ingestor) IngestOrder(ctx context.Context, shop string, order OrderEvent) error {
	for _, line := range order.LineItems {
		if line.VariantID == "" {
			continue
		}
		id := RecordID(line.VariantID, shop)

		rec, err := ing.facts.Load(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrFactNotFound) {
				logger.Debug("Order line for unknown variant, skipping",
					logger.String("variant_id", line.VariantID),
					logger.String("order_id", order.ID),
				)
				continue
			}
			return err
		}

		kept := make([]models.Order, 0, len(rec.Orders)+1)
		for _, o := range rec.Orders {
			if o.LineItemID != line.ID {
				kept = append(kept, o)
			}
		}
		rec.Orders = append(kept, models.Order{
			ID:          order.ID,
			LineItemID:  line.ID,
			ProcessedAt: order.ProcessedAt,
			Quantity:    line.Quantity,
		})

		if err := ing.facts.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// IngestVariant merges a catalog snapshot into the variant's record,
// creating it when first seen. The mirrored ledger metafield is parsed
// into the local ledger; an unparseable mirror leaves the ledger as-is.
func (ing *Ingestor) IngestVariant(ctx context.Context, shop string, event VariantEvent) error {
	id := RecordID(event.VariantID, shop)

	rec, err := ing.facts.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrFactNotFound) {
			return err
		}
		rec = &models.FactRecord{ID: id, Shop: shop, VariantID: event.VariantID}
	}

	rec.ProductID = event.ProductID
	rec.Price = event.Price
	rec.ProductCreatedAt = event.ProductCreatedAt
	rec.Tags = event.Tags
	rec.Collections = event.Collections
	rec.ProductType = event.ProductType
	rec.Vendor = event.Vendor
	rec.InventoryItemID = event.InventoryItemID
	rec.InventoryLevels = event.InventoryLevels

	if event.TriggeredRules != "" {
		var ledger models.Ledger
		if err := json.Unmarshal([]byte(event.TriggeredRules), &ledger); err != nil {
			logger.Warn("Unparseable ledger mirror in variant event",
				logger.ErrorField(err),
				logger.String("variant_id", event.VariantID),
			)
		} else {
			rec.TriggeredRules = ledger
		}
	}

	return ing.facts.Save(ctx, rec)
}

// DeleteProduct drops every record of the product.
func (ing *Ingestor) DeleteProduct(ctx context.Context, shop, productID string) error {
	return ing.facts.DeleteByProduct(ctx, shop, productID)
}
