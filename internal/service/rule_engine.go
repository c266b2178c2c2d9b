package service

import (
	"formrunner/internal/model"
)

// RuleOutcome is the engine's verdict after one answered question. Refuse
// wins over any jump target; the navigation controller ignores JumpTo when
// Refuse is set.
type RuleOutcome struct {
	JumpTo *int64
	Refuse bool
}

// EvaluateRules applies every active rule attached to the answered question
// against the current answer set. Rules run in the order they appear in the
// rule set; when several matching skip/show rules carry a target, the last
// one wins. The function has no side effects.
func EvaluateRules(sourceQuestionID int64, answers model.AnswerMap, rules []model.Rule) RuleOutcome {
	var out RuleOutcome

	for i := range rules {
		rule := &rules[i]
		if rule.SourceQuestionID != sourceQuestionID || !rule.IsActive {
			continue
		}
		if !ruleMatches(rule, answers) {
			continue
		}

		switch rule.Type {
		case model.RuleRefuse:
			out.Refuse = true
		case model.RuleSkip, model.RuleShow:
			if rule.TargetQuestionID != nil {
				out.JumpTo = rule.TargetQuestionID
			}
		}
	}

	return out
}

// ruleMatches combines the rule's conditions under its AND/OR logic. A rule
// with zero conditions matches unconditionally.
func ruleMatches(rule *model.Rule, answers model.AnswerMap) bool {
	if len(rule.Conditions) == 0 {
		return true
	}

	if rule.Logic == model.LogicOr {
		for i := range rule.Conditions {
			if conditionHolds(&rule.Conditions[i], answers) {
				return true
			}
		}
		return false
	}

	for i := range rule.Conditions {
		if !conditionHolds(&rule.Conditions[i], answers) {
			return false
		}
	}
	return true
}

// conditionHolds evaluates one comparison against the referenced question's
// answer. Unknown operators evaluate false.
func conditionHolds(cond *model.RuleCondition, answers model.AnswerMap) bool {
	answer, answered := answers[cond.ConditionQuestionID]

	switch cond.Operator {
	case model.OpSelected:
		// Strict scalar equality: a multi-select answer never matches.
		return answered &&
			answer.Kind == model.AnswerSingle &&
			cond.OptionID != nil &&
			answer.OptionID == *cond.OptionID

	case model.OpNotSelected:
		return !(answered &&
			answer.Kind == model.AnswerSingle &&
			cond.OptionID != nil &&
			answer.OptionID == *cond.OptionID)

	case model.OpEq:
		return answered && answer.CoerceString() == string(cond.CompareValue)

	case model.OpNeq:
		if !answered {
			return true
		}
		return answer.CoerceString() != string(cond.CompareValue)

	case model.OpGt:
		av, aok := answer.Number()
		cv, cok := cond.CompareValue.Number()
		return answered && aok && cok && av > cv

	case model.OpLt:
		av, aok := answer.Number()
		cv, cok := cond.CompareValue.Number()
		return answered && aok && cok && av < cv

	default:
		return false
	}
}
