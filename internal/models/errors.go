package models

import "errors"

var (
	ErrInvalidRuleID         = errors.New("invalid rule ID")
	ErrInvalidRuleName       = errors.New("invalid rule name")
	ErrInvalidRuleStatus     = errors.New("invalid rule status")
	ErrInvalidConditionLogic = errors.New("invalid condition logic")
	ErrInvalidConditionKind  = errors.New("invalid condition kind")
	ErrInvalidOperator       = errors.New("invalid operator")
	ErrInvalidApplyScope     = errors.New("invalid apply scope")
	ErrInvalidTriggerKind    = errors.New("invalid trigger kind")
	ErrNoTriggers            = errors.New("rule must have at least one trigger")
	ErrInvalidFactID         = errors.New("invalid fact record ID")
	ErrInvalidShop           = errors.New("invalid shop")
	ErrInvalidVariantID      = errors.New("invalid variant ID")

	ErrRuleNotFound  = errors.New("rule not found")
	ErrFactNotFound  = errors.New("fact record not found")
	ErrEntryNotFound = errors.New("ledger entry not found")

	ErrAlreadyApplied = errors.New("rule already applied to fact record")
)
