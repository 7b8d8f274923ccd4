package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/internal/shopify"
	"github.com/outletx/merch-engine/pkg/logger"
)

// The ledger is mirrored into a variant metafield so other systems (and a
// reinstalled app) can see which rules touched the variant.
const (
	MetafieldNamespace = "outletx"
	MetafieldKey       = "triggered_rules"
)

// readMirror fetches and parses the mirrored ledger. An absent metafield or
// an unparseable payload both read as an empty ledger.
func readMirror(ctx context.Context, client shopify.CatalogClient, variantID string) (models.Ledger, error) {
	raw, err := client.VariantMetafield(ctx, variantID, MetafieldNamespace, MetafieldKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return models.Ledger{}, nil
	}

	var ledger models.Ledger
	if err := json.Unmarshal([]byte(raw), &ledger); err != nil {
		logger.Warn("Unparseable ledger mirror, treating as empty",
			logger.ErrorField(err),
			logger.String("variant_id", variantID),
		)
		return models.Ledger{}, nil
	}
	return ledger, nil
}

func writeMirror(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, ledger models.Ledger) error {
	payload, err := json.Marshal(ledger.WithoutReverted())
	if err != nil {
		return fmt.Errorf("failed to marshal ledger mirror: %w", err)
	}
	return client.SetVariantMetafield(ctx, rec.ProductID, rec.VariantID, MetafieldNamespace, MetafieldKey, string(payload))
}

// mergeMirror reads the mirrored ledger, upserts the entry and writes the
// result back.
func (e *Executor) mergeMirror(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, entry models.LedgerEntry) error {
	mirror, err := readMirror(ctx, client, rec.VariantID)
	if err != nil {
		return err
	}
	return writeMirror(ctx, client, rec, mirror.Upsert(entry))
}

// pruneMirror removes the given rule ids from the mirrored ledger.
func (e *Executor) pruneMirror(ctx context.Context, client shopify.CatalogClient, rec *models.FactRecord, ruleIDs []string) error {
	mirror, err := readMirror(ctx, client, rec.VariantID)
	if err != nil {
		return err
	}
	for _, id := range ruleIDs {
		mirror = mirror.Without(id)
	}
	return writeMirror(ctx, client, rec, mirror)
}
