package models

import (
	"time"
)

// RuleStatus is the lifecycle state of a rule.
type RuleStatus string

const (
	RuleStatusActive   RuleStatus = "active"
	RuleStatusInactive RuleStatus = "inactive"
)

// ConditionLogic combines the results of a rule's conditions.
type ConditionLogic string

const (
	ConditionLogicAll ConditionLogic = "all" // logical AND, vacuously true
	ConditionLogicAny ConditionLogic = "any" // logical OR, vacuously false
)

// ApplyScope restricts which products a rule targets.
type ApplyScope string

const (
	ScopeAll         ApplyScope = "all"
	ScopeProducts    ApplyScope = "products"
	ScopeCollections ApplyScope = "collections"
)

// ConditionKind is the closed set of product facts a condition can test.
type ConditionKind string

const (
	CondInventory             ConditionKind = "inventory"
	CondInventoryFixedAmount  ConditionKind = "inventory_fixed_amount"
	CondTimeSinceLaunch       ConditionKind = "time_since_launch"
	CondSalesVelocity         ConditionKind = "sales_velocity"
	CondSalesVelocityPerDay   ConditionKind = "sales_velocity_per_day"
	CondSalesVelocityPerWeek  ConditionKind = "sales_velocity_per_week"
	CondSalesVelocityPerMonth ConditionKind = "sales_velocity_per_month"
	CondSalesVelocityPerYear  ConditionKind = "sales_velocity_per_year"
	CondTag                   ConditionKind = "tag"
	CondCollection            ConditionKind = "collection"
	CondProductType           ConditionKind = "product_type"
	CondVendor                ConditionKind = "vendor"
	CondPrice                 ConditionKind = "price"
	CondTime                  ConditionKind = "time"
)

// Operator is the closed set of comparators a condition can use.
type Operator string

const (
	OpEquals      Operator = "="
	OpGreater     Operator = ">"
	OpGreaterEq   Operator = ">="
	OpLess        Operator = "<"
	OpLessEq      Operator = "<="
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
)

// TriggerKind is the closed set of merchandising actions a rule can take.
type TriggerKind string

const (
	TriggerDiscount            TriggerKind = "discount"
	TriggerDiscountFixedAmount TriggerKind = "discount_fixed_amount"
	TriggerMoveToCollection    TriggerKind = "move_to_collection"
	TriggerAddTag              TriggerKind = "add_tag"
)

// Condition is a single fact test inside a rule. The value is a string,
// a number or a string list depending on the kind.
type Condition struct {
	Type     ConditionKind `json:"type"`
	Operator Operator      `json:"operator"`
	Value    interface{}   `json:"value"`
}

// DiscountOptions carries optional knobs for discount triggers.
type DiscountOptions struct {
	MinPrice *float64 `json:"min_price,omitempty"`
}

// TriggerConfig holds the trigger's payload: a percentage or amount for
// discounts, a collection id for move_to_collection, a tag for add_tag.
type TriggerConfig struct {
	Value   interface{}      `json:"value"`
	Options *DiscountOptions `json:"options,omitempty"`
}

// Trigger is one merchandising action. A rule's triggers run in array order.
type Trigger struct {
	Type   TriggerKind   `json:"type"`
	Config TriggerConfig `json:"config"`
}

// ScopeTarget is a product or collection a rule is restricted to (or
// excluded from). For products the variant ids narrow the match.
type ScopeTarget struct {
	ID       string   `json:"id"`
	Variants []string `json:"variants,omitempty"`
}

// Rule is a merchant-defined merchandising rule. The engine mutates it only
// to set LastTriggeredAt and to append to ExcludedProducts on revert.
type Rule struct {
	ID               string         `json:"id"`
	Shop             string         `json:"shop"`
	Name             string         `json:"name"`
	Status           RuleStatus     `json:"status"`
	ConditionLogic   ConditionLogic `json:"condition_logic"`
	Conditions       []Condition    `json:"conditions"`
	Trigger          []Trigger      `json:"trigger"`
	ApplyScope       ApplyScope     `json:"apply_scope"`
	ScopeTargets     []ScopeTarget  `json:"scope_targets,omitempty"`
	ExcludedProducts []ScopeTarget  `json:"excluded_products,omitempty"`
	LastTriggeredAt  *time.Time     `json:"last_triggered_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsActive reports whether the rule should be considered during matching.
func (r *Rule) IsActive() bool {
	return r.Status == RuleStatusActive
}

// Settings holds shop-level configuration that constrains every rule.
type Settings struct {
	Shop                      string        `json:"shop"`
	Enabled                   bool          `json:"enabled"`
	ExcludedProducts          []ScopeTarget `json:"excluded_products,omitempty"`
	ExcludedCollections       []string      `json:"excluded_collections,omitempty"`
	DefaultOutletCollectionID string        `json:"default_outlet_collection_id,omitempty"`
	LastSyncTime              *time.Time    `json:"last_sync_time,omitempty"`
	SyncStatus                string        `json:"sync_status,omitempty"`
}

// QuantityLevel is one named quantity bucket at an inventory location.
type QuantityLevel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// InventoryLevel is the per-location inventory snapshot of a variant.
type InventoryLevel struct {
	ID         string          `json:"id"`
	Quantities []QuantityLevel `json:"quantities"`
}

// Order is a fulfilled order line attributed to a variant.
type Order struct {
	ID          string    `json:"id"`
	LineItemID  string    `json:"lineItemId"`
	ProcessedAt time.Time `json:"processedAt"`
	Quantity    int       `json:"quantity"`
}

// Inventory is the derived availability snapshot of a variant.
type Inventory struct {
	Available int `json:"available"`
	Total     int `json:"total"`
}

// SaleVelocity is the derived sales-rate snapshot of a variant. All four
// windows share CalculationEndDate as their end boundary.
type SaleVelocity struct {
	Daily              float64   `json:"daily"`
	Weekly             float64   `json:"weekly"`
	Monthly            float64   `json:"monthly"`
	Yearly             float64   `json:"yearly"`
	CalculationEndDate time.Time `json:"calculation_end_date"`
}

// FactRecord is the per-variant snapshot of catalog, inventory and order
// data that rules are evaluated against. Inventory and SaleVelocity are
// derived at read time; TriggeredRules is the local copy of the ledger.
type FactRecord struct {
	ID               string           `json:"id"`
	Shop             string           `json:"shop"`
	VariantID        string           `json:"variant_id"`
	ProductID        string           `json:"product_id,omitempty"`
	Price            float64          `json:"price,omitempty"`
	ProductCreatedAt *time.Time       `json:"created_at,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	Collections      []string         `json:"collections,omitempty"`
	ProductType      string           `json:"product_type,omitempty"`
	Vendor           string           `json:"vendor,omitempty"`
	InventoryItemID  string           `json:"inventory_item_id,omitempty"`
	InventoryLevels  []InventoryLevel `json:"inventory_levels,omitempty"`
	Orders           []Order          `json:"orders,omitempty"`
	Inventory        *Inventory       `json:"inventory,omitempty"`
	SaleVelocity     *SaleVelocity    `json:"sale_velocity,omitempty"`
	TriggeredRules   Ledger           `json:"triggered_rules,omitempty"`
}

// Validate validates a Rule.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return ErrInvalidRuleID
	}
	if r.Name == "" {
		return ErrInvalidRuleName
	}
	if r.Status != RuleStatusActive && r.Status != RuleStatusInactive {
		return ErrInvalidRuleStatus
	}
	if r.ConditionLogic != ConditionLogicAll && r.ConditionLogic != ConditionLogicAny {
		return ErrInvalidConditionLogic
	}
	if len(r.Trigger) == 0 {
		return ErrNoTriggers
	}
	switch r.ApplyScope {
	case ScopeAll, ScopeProducts, ScopeCollections:
	default:
		return ErrInvalidApplyScope
	}
	for _, c := range r.Conditions {
		if c.Type == "" {
			return ErrInvalidConditionKind
		}
		if c.Operator == "" {
			return ErrInvalidOperator
		}
	}
	for _, t := range r.Trigger {
		switch t.Type {
		case TriggerDiscount, TriggerDiscountFixedAmount, TriggerMoveToCollection, TriggerAddTag:
		default:
			return ErrInvalidTriggerKind
		}
	}
	return nil
}

// Validate validates a FactRecord.
func (f *FactRecord) Validate() error {
	if f.ID == "" {
		return ErrInvalidFactID
	}
	if f.Shop == "" {
		return ErrInvalidShop
	}
	if f.VariantID == "" {
		return ErrInvalidVariantID
	}
	return nil
}
