package api

import (
	"encoding/json"
	"net/http"

	"github.com/outletx/merch-engine/internal/catalogsync"
	"github.com/outletx/merch-engine/pkg/logger"
)

// shopDomainHeader identifies the shop on webhook deliveries.
const shopDomainHeader = "X-Shopify-Shop-Domain"

// WebhookHandler feeds catalog and order webhooks into the sync ingestor.
type WebhookHandler struct {
	ingestor *catalogsync.Ingestor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(ingestor *catalogsync.Ingestor) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

// productEvent is the product payload of products/update and
// products/delete deliveries.
type productEvent struct {
	ID       string                     `json:"id"`
	Variants []catalogsync.VariantEvent `json:"variants,omitempty"`
}

// OrderCreated handles POST /webhooks/orders/create
func (h *WebhookHandler) OrderCreated(w http.ResponseWriter, r *http.Request) {
	shop := r.Header.Get(shopDomainHeader)
	if shop == "" {
		respondWithError(w, http.StatusBadRequest, "Missing shop domain header")
		return
	}

	var order catalogsync.OrderEvent
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.ingestor.IngestOrder(r.Context(), shop, order); err != nil {
		logger.Error("Failed to ingest order",
			logger.ErrorField(err),
			logger.String("shop", shop),
			logger.String("order_id", order.ID),
		)
		respondWithError(w, http.StatusInternalServerError, "Failed to ingest order")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// ProductUpdated handles POST /webhooks/products/update
func (h *WebhookHandler) ProductUpdated(w http.ResponseWriter, r *http.Request) {
	shop := r.Header.Get(shopDomainHeader)
	if shop == "" {
		respondWithError(w, http.StatusBadRequest, "Missing shop domain header")
		return
	}

	var product productEvent
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	for _, variant := range product.Variants {
		if variant.ProductID == "" {
			variant.ProductID = product.ID
		}
		if err := h.ingestor.IngestVariant(r.Context(), shop, variant); err != nil {
			logger.Error("Failed to ingest variant",
				logger.ErrorField(err),
				logger.String("shop", shop),
				logger.String("variant_id", variant.VariantID),
			)
			respondWithError(w, http.StatusInternalServerError, "Failed to ingest product")
			return
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// ProductDeleted handles POST /webhooks/products/delete
func (h *WebhookHandler) ProductDeleted(w http.ResponseWriter, r *http.Request) {
	shop := r.Header.Get(shopDomainHeader)
	if shop == "" {
		respondWithError(w, http.StatusBadRequest, "Missing shop domain header")
		return
	}

	var product productEvent
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.ingestor.DeleteProduct(r.Context(), shop, product.ID); err != nil {
		logger.Error("Failed to delete product records",
			logger.ErrorField(err),
			logger.String("shop", shop),
			logger.String("product_id", product.ID),
		)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}
