package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RuleType selects what a matching rule does to the navigation flow
type RuleType string

const (
	RuleSkip   RuleType = "skip"   // jump past questions
	RuleShow   RuleType = "show"   // jump to a question
	RuleRefuse RuleType = "refuse" // disqualify the respondent
)

// RuleLogic combines a rule's conditions
type RuleLogic string

const (
	LogicAnd RuleLogic = "AND"
	LogicOr  RuleLogic = "OR"
)

// ConditionOperator compares a condition against a recorded answer
type ConditionOperator string

const (
	OpSelected    ConditionOperator = "selected"
	OpNotSelected ConditionOperator = "not_selected"
	OpEq          ConditionOperator = "eq"
	OpNeq         ConditionOperator = "neq"
	OpGt          ConditionOperator = "gt"
	OpLt          ConditionOperator = "lt"
)

// Rule is one branching rule attached to a source question. It fires when
// that question is answered and its conditions hold.
type Rule struct {
	ID               int64           `json:"id"`
	SourceQuestionID int64           `json:"source_question_id"`
	TargetQuestionID *int64          `json:"target_question_id,omitempty"`
	Type             RuleType        `json:"type"`
	Logic            RuleLogic       `json:"logic"`
	IsActive         bool            `json:"is_active"`
	Conditions       []RuleCondition `json:"conditions,omitempty"`
}

// RuleCondition is one comparison inside a rule
type RuleCondition struct {
	ID                  int64             `json:"id"`
	ConditionQuestionID int64             `json:"condition_question_id"`
	Operator            ConditionOperator `json:"operator"`
	OptionID            *int64            `json:"option_id,omitempty"`
	CompareValue        FlexValue         `json:"compare_value,omitempty"`
}

// FlexValue is a comparison value that the upstream API serializes either as
// a JSON string or as a JSON number. It normalizes to the string form.
type FlexValue string

func (v *FlexValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FlexValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FlexValue(n.String())
	return nil
}

// Number returns the numeric form of the value for gt/lt comparisons.
func (v FlexValue) Number() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
