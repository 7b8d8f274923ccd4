package engine

import (
	"testing"
	"time"

	"github.com/outletx/merch-engine/internal/models"
)

func factWithInventory(available, total int) *models.FactRecord {
	return &models.FactRecord{
		ID:        "1_test-shop",
		Shop:      "test-shop",
		VariantID: "gid://shopify/ProductVariant/1",
		Inventory: &models.Inventory{Available: available, Total: total},
	}
}

func TestEvaluateCondition_InventoryPercent(t *testing.T) {
	cond := models.Condition{Type: models.CondInventory, Operator: models.OpLess, Value: 20.0}

	// 5/50 = 10% < 20 → match.
	if !EvaluateCondition(factWithInventory(5, 50), cond) {
		t.Error("Expected 10% inventory to match < 20")
	}
	// 25/50 = 50% → no match.
	if EvaluateCondition(factWithInventory(25, 50), cond) {
		t.Error("Expected 50% inventory not to match < 20")
	}
	// Zero total falls back to divisor 1.
	if EvaluateCondition(factWithInventory(30, 0), cond) {
		t.Error("Expected 3000% inventory not to match < 20")
	}
}

func TestEvaluateCondition_InventoryFixedAmount(t *testing.T) {
	cond := models.Condition{Type: models.CondInventoryFixedAmount, Operator: models.OpLessEq, Value: 5.0}

	if !EvaluateCondition(factWithInventory(5, 100), cond) {
		t.Error("Expected available 5 to match <= 5")
	}
	if EvaluateCondition(factWithInventory(6, 100), cond) {
		t.Error("Expected available 6 not to match <= 5")
	}
}

func TestEvaluateCondition_MissingDataIsFalse(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop"}

	conds := []models.Condition{
		{Type: models.CondSalesVelocityPerDay, Operator: models.OpGreater, Value: 0.0},
		{Type: models.CondSalesVelocity, Operator: models.OpLess, Value: 100.0},
		{Type: models.CondTag, Operator: models.OpContains, Value: "sale"},
		{Type: models.CondCollection, Operator: models.OpContains, Value: "cid"},
		{Type: models.CondTimeSinceLaunch, Operator: models.OpGreater, Value: 0.0},
	}
	for _, cond := range conds {
		if EvaluateCondition(rec, cond) {
			t.Errorf("Expected missing data to be a non-match for %s", cond.Type)
		}
	}
}

func TestEvaluateCondition_SalesVelocityWindows(t *testing.T) {
	rec := &models.FactRecord{
		ID: "1_test-shop",
		SaleVelocity: &models.SaleVelocity{
			Daily: 1.5, Weekly: 10, Monthly: 42, Yearly: 500,
			CalculationEndDate: time.Now(),
		},
	}

	tests := []struct {
		kind  models.ConditionKind
		value float64
	}{
		{models.CondSalesVelocityPerDay, 1.5},
		{models.CondSalesVelocityPerWeek, 10},
		{models.CondSalesVelocity, 42},
		{models.CondSalesVelocityPerMonth, 42},
		{models.CondSalesVelocityPerYear, 500},
	}
	for _, tt := range tests {
		cond := models.Condition{Type: tt.kind, Operator: models.OpEquals, Value: tt.value}
		if !EvaluateCondition(rec, cond) {
			t.Errorf("Expected %s == %v to match", tt.kind, tt.value)
		}
	}
}

func TestEvaluateCondition_NumericStringComparison(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop", Price: 100}

	cond := models.Condition{Type: models.CondPrice, Operator: models.OpGreaterEq, Value: "100"}
	if !EvaluateCondition(rec, cond) {
		t.Error("Expected numeric string value to compare numerically")
	}
}

func TestEvaluateCondition_TagContains(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop", Tags: []string{"sale", "summer", "clearance"}}

	tests := []struct {
		name  string
		op    models.Operator
		value interface{}
		want  bool
	}{
		{"array contains scalar", models.OpContains, "sale", true},
		{"array missing scalar", models.OpContains, "winter", false},
		{"array contains all of array", models.OpContains, []interface{}{"sale", "summer"}, true},
		{"array missing one of array", models.OpContains, []interface{}{"sale", "winter"}, false},
		{"not_contains scalar", models.OpNotContains, "winter", true},
		{"not_contains present scalar", models.OpNotContains, "sale", false},
		{"not_contains none of array", models.OpNotContains, []interface{}{"winter", "vintage"}, true},
		{"not_contains one of array present", models.OpNotContains, []interface{}{"sale", "winter"}, false},
		{"not_contains all of array present", models.OpNotContains, []interface{}{"sale", "clearance"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := models.Condition{Type: models.CondTag, Operator: tt.op, Value: tt.value}
			if got := EvaluateCondition(rec, cond); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateCondition_ContainsComplementary(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop", Vendor: "Acme Outlet"}

	values := []string{"Acme", "Outlet", "nothing"}
	for _, v := range values {
		contains := EvaluateCondition(rec, models.Condition{Type: models.CondVendor, Operator: models.OpContains, Value: v})
		notContains := EvaluateCondition(rec, models.Condition{Type: models.CondVendor, Operator: models.OpNotContains, Value: v})
		if contains == notContains {
			t.Errorf("contains and not_contains must be complementary for %q", v)
		}
	}
}

func TestEvaluateCondition_CollectionNormalization(t *testing.T) {
	rec := &models.FactRecord{
		ID:          "1_test-shop",
		Collections: []string{"gid://shopify/Collection/42", "gid://shopify/Collection/77"},
	}

	// Condition values carry a ":variant" suffix that must be stripped.
	cond := models.Condition{
		Type:     models.CondCollection,
		Operator: models.OpContains,
		Value:    []interface{}{"42:123456"},
	}
	if !EvaluateCondition(rec, cond) {
		t.Error("Expected normalized collection id 42 to match")
	}

	cond.Value = []interface{}{"99:123456"}
	if EvaluateCondition(rec, cond) {
		t.Error("Expected collection id 99 not to match")
	}
}

func TestEvaluateCondition_StringAffixes(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop", ProductType: "T-Shirt"}

	if !EvaluateCondition(rec, models.Condition{Type: models.CondProductType, Operator: models.OpStartsWith, Value: "T-"}) {
		t.Error("Expected starts_with T- to match")
	}
	if !EvaluateCondition(rec, models.Condition{Type: models.CondProductType, Operator: models.OpEndsWith, Value: "Shirt"}) {
		t.Error("Expected ends_with Shirt to match")
	}
	// Non-string condition value is always false for affix operators.
	if EvaluateCondition(rec, models.Condition{Type: models.CondProductType, Operator: models.OpStartsWith, Value: 7.0}) {
		t.Error("Expected non-string value to be a non-match for starts_with")
	}
}

func TestEvaluateCondition_TimeSinceLaunch(t *testing.T) {
	created := time.Now().AddDate(0, 0, -30)
	rec := &models.FactRecord{ID: "1_test-shop", ProductCreatedAt: &created}

	if !EvaluateCondition(rec, models.Condition{Type: models.CondTimeSinceLaunch, Operator: models.OpGreater, Value: 20.0}) {
		t.Error("Expected 30 days since launch to match > 20")
	}
	if EvaluateCondition(rec, models.Condition{Type: models.CondTimeSinceLaunch, Operator: models.OpGreater, Value: 40.0}) {
		t.Error("Expected 30 days since launch not to match > 40")
	}
}

func TestEvaluateCondition_TimeCondition(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop"}

	past := models.Condition{Type: models.CondTime, Operator: models.OpGreater, Value: "2000-01-01"}
	if !EvaluateCondition(rec, past) {
		t.Error("Expected now > year 2000")
	}
	garbage := models.Condition{Type: models.CondTime, Operator: models.OpGreater, Value: "not-a-date"}
	if EvaluateCondition(rec, garbage) {
		t.Error("Expected unparseable date to be a non-match")
	}
}

func TestEvaluateCondition_UnknownKindAndOperator(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop", Vendor: "Acme"}

	if EvaluateCondition(rec, models.Condition{Type: "nonsense", Operator: models.OpEquals, Value: "x"}) {
		t.Error("Expected unknown condition type to be a non-match")
	}
	if EvaluateCondition(rec, models.Condition{Type: models.CondVendor, Operator: "~", Value: "Acme"}) {
		t.Error("Expected unknown operator to be a non-match")
	}
}

func TestEvaluateCondition_MismatchedTypesAreFalse(t *testing.T) {
	rec := &models.FactRecord{ID: "1_test-shop", Tags: []string{"sale"}}

	// Relational operator against an array pairing.
	cond := models.Condition{Type: models.CondTag, Operator: models.OpGreater, Value: "sale"}
	if EvaluateCondition(rec, cond) {
		t.Error("Expected array vs scalar relational comparison to be false")
	}
}
