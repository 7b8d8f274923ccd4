// Package api exposes the engine over HTTP: rule and settings management,
// scheduler runs, direct trigger and revert calls, and the catalog
// webhooks feeding the sync.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/internal/scheduler"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/internal/trigger"
	"github.com/outletx/merch-engine/pkg/logger"
)

// RuleHandler handles rule management endpoints
type RuleHandler struct {
	rules storage.RuleStore
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules storage.RuleStore) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// ListRules handles GET /api/v1/rules
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())

	allRules, err := h.rules.List(r.Context(), shop)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve rules")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rules": allRules,
		"count": len(allRules),
	})
}

// GetRule handles GET /api/v1/rules/{id}
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())
	ruleID := mux.Vars(r)["id"]

	rule, err := h.rules.Get(r.Context(), shop, ruleID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Rule not found")
		return
	}

	respondWithJSON(w, http.StatusOK, rule)
}

// CreateRule handles POST /api/v1/rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())

	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.Shop = shop

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := rule.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.rules.Put(r.Context(), &rule); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create rule")
		return
	}

	logger.Info("Rule created",
		logger.String("rule_id", rule.ID),
		logger.String("rule_name", rule.Name),
		logger.String("shop", shop),
	)

	respondWithJSON(w, http.StatusCreated, rule)
}

// UpdateRule handles PUT /api/v1/rules/{id}
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())
	ruleID := mux.Vars(r)["id"]

	existing, err := h.rules.Get(r.Context(), shop, ruleID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Rule not found")
		return
	}

	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule.ID = ruleID
	rule.Shop = shop
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()

	if err := rule.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.rules.Put(r.Context(), &rule); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to update rule")
		return
	}

	logger.Info("Rule updated",
		logger.String("rule_id", rule.ID),
		logger.String("shop", shop),
	)

	respondWithJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/rules/{id}
func (h *RuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())
	ruleID := mux.Vars(r)["id"]

	if err := h.rules.Delete(r.Context(), shop, ruleID); err != nil {
		respondWithError(w, http.StatusNotFound, "Rule not found")
		return
	}

	logger.Info("Rule deleted",
		logger.String("rule_id", ruleID),
		logger.String("shop", shop),
	)

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Rule deleted"})
}

// SettingsHandler handles shop settings endpoints
type SettingsHandler struct {
	settings storage.SettingsStore
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings storage.SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())

	settings, err := h.settings.Get(r.Context(), shop)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve settings")
		return
	}
	if settings == nil {
		// A shop without stored settings runs with everything enabled.
		settings = &models.Settings{Shop: shop, Enabled: true}
	}

	respondWithJSON(w, http.StatusOK, settings)
}

// PutSettings handles PUT /api/v1/settings
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())

	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	settings.Shop = shop

	if err := h.settings.Put(r.Context(), &settings); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}

// ScheduleHandler handles scheduler runs and direct trigger/revert calls
type ScheduleHandler struct {
	runner   *scheduler.Runner
	executor *trigger.Executor
	facts    storage.FactStore
	rules    storage.RuleStore
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(runner *scheduler.Runner, executor *trigger.Executor, facts storage.FactStore, rules storage.RuleStore) *ScheduleHandler {
	return &ScheduleHandler{
		runner:   runner,
		executor: executor,
		facts:    facts,
		rules:    rules,
	}
}

// RunBatch handles POST /api/v1/schedule
func (h *ScheduleHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())

	summary, err := h.runner.Run(r.Context(), shop)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Scheduler run failed")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// TriggerRule handles POST /api/v1/schedule/trigger/{factId}/{ruleId}
func (h *ScheduleHandler) TriggerRule(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())
	vars := mux.Vars(r)

	rec, rule, ok := h.load(w, r, shop, vars["factId"], vars["ruleId"])
	if !ok {
		return
	}

	entry, err := h.executor.ApplyRule(r.Context(), rec, rule)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyApplied) {
			respondWithError(w, http.StatusConflict, "Rule already applied to this product")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to apply rule: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, entry)
}

// RevertRule handles POST /api/v1/schedule/revert/{factId}/{ruleId}
func (h *ScheduleHandler) RevertRule(w http.ResponseWriter, r *http.Request) {
	shop := ShopFromContext(r.Context())
	vars := mux.Vars(r)

	rec, rule, ok := h.load(w, r, shop, vars["factId"], vars["ruleId"])
	if !ok {
		return
	}

	if err := h.executor.RevertRule(r.Context(), rec, rule); err != nil {
		if errors.Is(err, models.ErrEntryNotFound) {
			respondWithError(w, http.StatusNotFound, "Rule was not applied to this product")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to revert rule: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Rule reverted"})
}

// load fetches the fact record and rule of a trigger/revert call, writing
// a 404 and returning ok=false when either is missing or belongs to
// another shop.
func (h *ScheduleHandler) load(w http.ResponseWriter, r *http.Request, shop, factID, ruleID string) (*models.FactRecord, *models.Rule, bool) {
	rec, err := h.facts.Load(r.Context(), factID)
	if err != nil {
		if errors.Is(err, models.ErrFactNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to load product")
		}
		return nil, nil, false
	}
	if rec.Shop != shop {
		respondWithError(w, http.StatusNotFound, "Product not found")
		return nil, nil, false
	}

	rule, err := h.rules.Get(r.Context(), shop, ruleID)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			respondWithError(w, http.StatusNotFound, "Rule not found")
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to load rule")
		}
		return nil, nil, false
	}

	return rec, rule, true
}
