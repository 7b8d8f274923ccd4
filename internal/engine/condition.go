// Package engine evaluates merchant-defined rules against derived product
// facts: single-condition evaluation, targeting scope checks, and the
// per-record rule matcher.
package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/outletx/merch-engine/internal/models"
	"github.com/outletx/merch-engine/pkg/logger"
)

const collectionGIDPrefix = "gid://shopify/Collection/"

// EvaluateCondition reports whether a fact record satisfies a condition.
// It never panics outward: extraction or comparison failures are logged and
// treated as a non-match, and a missing derived value is always false.
func EvaluateCondition(rec *models.FactRecord, cond models.Condition) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Condition evaluation panicked",
				logger.String("fact_id", rec.ID),
				logger.String("condition_type", string(cond.Type)),
				logger.Any("panic", r),
			)
			matched = false
		}
	}()

	factValue, condValue, ok := extractValues(rec, cond)
	if !ok {
		return false
	}
	if factValue == nil {
		logger.Warn("Fact value missing for condition",
			logger.String("fact_id", rec.ID),
			logger.String("condition_type", string(cond.Type)),
		)
		return false
	}

	return compare(cond.Operator, factValue, condValue, rec, cond)
}

// extractValues maps the condition kind to the derived fact value and the
// (possibly normalized) comparison value. ok is false for unknown kinds.
func extractValues(rec *models.FactRecord, cond models.Condition) (factValue, condValue interface{}, ok bool) {
	condValue = cond.Value

	switch cond.Type {
	case models.CondInventory:
		available, total := 0, 1
		if rec.Inventory != nil {
			available = rec.Inventory.Available
			if rec.Inventory.Total != 0 {
				total = rec.Inventory.Total
			}
		}
		factValue = float64(available) / float64(total) * 100

	case models.CondInventoryFixedAmount:
		available := 0
		if rec.Inventory != nil {
			available = rec.Inventory.Available
		}
		factValue = float64(available)

	case models.CondTimeSinceLaunch:
		if rec.ProductCreatedAt == nil {
			return nil, nil, true
		}
		factValue = time.Since(*rec.ProductCreatedAt).Hours() / 24

	case models.CondSalesVelocity, models.CondSalesVelocityPerMonth:
		if rec.SaleVelocity == nil {
			return nil, nil, true
		}
		factValue = rec.SaleVelocity.Monthly

	case models.CondSalesVelocityPerDay:
		if rec.SaleVelocity == nil {
			return nil, nil, true
		}
		factValue = rec.SaleVelocity.Daily

	case models.CondSalesVelocityPerWeek:
		if rec.SaleVelocity == nil {
			return nil, nil, true
		}
		factValue = rec.SaleVelocity.Weekly

	case models.CondSalesVelocityPerYear:
		if rec.SaleVelocity == nil {
			return nil, nil, true
		}
		factValue = rec.SaleVelocity.Yearly

	case models.CondTag:
		if rec.Tags == nil {
			return nil, nil, true
		}
		factValue = rec.Tags

	case models.CondCollection:
		if rec.Collections == nil {
			return nil, nil, true
		}
		ids := make([]string, len(rec.Collections))
		for i, c := range rec.Collections {
			ids[i] = strings.TrimPrefix(c, collectionGIDPrefix)
		}
		factValue = ids
		// Condition values may carry a trailing ":variant" qualifier.
		if list, listOK := asStringSlice(cond.Value); listOK {
			stripped := make([]string, len(list))
			for i, v := range list {
				stripped[i] = strings.SplitN(v, ":", 2)[0]
			}
			condValue = stripped
		} else if s, sOK := cond.Value.(string); sOK {
			condValue = strings.SplitN(s, ":", 2)[0]
		}

	case models.CondProductType:
		factValue = rec.ProductType

	case models.CondVendor:
		factValue = rec.Vendor

	case models.CondPrice:
		factValue = rec.Price

	case models.CondTime:
		s, sOK := cond.Value.(string)
		if !sOK {
			return nil, nil, true
		}
		parsed, err := parseConditionTime(s)
		if err != nil {
			logger.Warn("Unparseable time condition value",
				logger.String("fact_id", rec.ID),
				logger.String("value", s),
			)
			return nil, nil, true
		}
		factValue = float64(time.Now().UnixMilli())
		condValue = float64(parsed.UnixMilli())

	default:
		logger.Warn("Unsupported condition type",
			logger.String("fact_id", rec.ID),
			logger.String("condition_type", string(cond.Type)),
		)
		return nil, nil, false
	}

	return factValue, condValue, true
}

// compare applies the condition operator to the extracted values.
func compare(op models.Operator, factValue, condValue interface{}, rec *models.FactRecord, cond models.Condition) bool {
	switch op {
	case models.OpEquals, models.OpGreater, models.OpGreaterEq, models.OpLess, models.OpLessEq:
		return compareOrdered(op, factValue, condValue)

	case models.OpContains:
		return containsValue(factValue, condValue)

	case models.OpNotContains:
		return notContainsValue(factValue, condValue)

	case models.OpStartsWith:
		f, fOK := factValue.(string)
		c, cOK := condValue.(string)
		return fOK && cOK && strings.HasPrefix(f, c)

	case models.OpEndsWith:
		f, fOK := factValue.(string)
		c, cOK := condValue.(string)
		return fOK && cOK && strings.HasSuffix(f, c)

	default:
		logger.Warn("Unsupported condition operator",
			logger.String("fact_id", rec.ID),
			logger.String("operator", string(op)),
			logger.String("condition_type", string(cond.Type)),
		)
		return false
	}
}

// compareOrdered compares numerically when both sides are numeric (numeric
// strings included), lexicographically when both are strings, and fails any
// other pairing.
func compareOrdered(op models.Operator, a, b interface{}) bool {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum && bNum {
		switch op {
		case models.OpEquals:
			return fa == fb
		case models.OpGreater:
			return fa > fb
		case models.OpGreaterEq:
			return fa >= fb
		case models.OpLess:
			return fa < fb
		case models.OpLessEq:
			return fa <= fb
		}
		return false
	}

	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if !aStr || !bStr {
		return false
	}
	switch op {
	case models.OpEquals:
		return sa == sb
	case models.OpGreater:
		return sa > sb
	case models.OpGreaterEq:
		return sa >= sb
	case models.OpLess:
		return sa < sb
	case models.OpLessEq:
		return sa <= sb
	}
	return false
}

// containsValue dispatches on scalar vs array shapes: array⊇array (all-of),
// array∋scalar, scalar∈array, or substring. Mismatched pairings are false.
func containsValue(factValue, condValue interface{}) bool {
	factList, factIsList := asStringSlice(factValue)
	condList, condIsList := asStringSlice(condValue)
	factStr, factIsStr := factValue.(string)
	condStr, condIsStr := condValue.(string)

	switch {
	case factIsList && condIsList:
		for _, want := range condList {
			if !sliceContains(factList, want) {
				return false
			}
		}
		return true
	case factIsList && condIsStr:
		return sliceContains(factList, condStr)
	case factIsStr && condIsList:
		return sliceContains(condList, factStr)
	case factIsStr && condIsStr:
		return strings.Contains(factStr, condStr)
	default:
		return false
	}
}

// notContainsValue negates containsValue, except array-vs-array: there it
// means none of the condition values is present, not "not all of them".
func notContainsValue(factValue, condValue interface{}) bool {
	factList, factIsList := asStringSlice(factValue)
	condList, condIsList := asStringSlice(condValue)
	if factIsList && condIsList {
		for _, want := range condList {
			if sliceContains(factList, want) {
				return false
			}
		}
		return true
	}
	return !containsValue(factValue, condValue)
}

func sliceContains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

// asFloat coerces numbers and numeric strings to float64.
func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asStringSlice coerces []string and JSON-decoded []interface{} values.
func asStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func parseConditionTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}
