package model

import (
	"strconv"
	"strings"
)

// AnswerKind tags the shape of a recorded answer
type AnswerKind string

const (
	AnswerSingle AnswerKind = "single" // one option id
	AnswerMulti  AnswerKind = "multi"  // a set of option ids
	AnswerText   AnswerKind = "text"   // free text
)

// AnswerValue is a tagged union holding one recorded answer. The kind is
// fixed at the recording boundary from the question's declared type, so rule
// evaluation can switch on it exhaustively.
type AnswerValue struct {
	Kind      AnswerKind `json:"kind"`
	OptionID  int64      `json:"option_id,omitempty"`
	OptionIDs []int64    `json:"option_ids,omitempty"`
	Text      string     `json:"text,omitempty"`
}

// SingleAnswer records a single-choice selection
func SingleAnswer(optionID int64) AnswerValue {
	return AnswerValue{Kind: AnswerSingle, OptionID: optionID}
}

// MultiAnswer records a multiple-choice selection
func MultiAnswer(optionIDs []int64) AnswerValue {
	return AnswerValue{Kind: AnswerMulti, OptionIDs: optionIDs}
}

// TextAnswer records a free-text response
func TextAnswer(text string) AnswerValue {
	return AnswerValue{Kind: AnswerText, Text: text}
}

// CoerceString renders the answer for eq/neq comparisons: option ids become
// their decimal form, multi selections join with commas.
func (v AnswerValue) CoerceString() string {
	switch v.Kind {
	case AnswerSingle:
		return strconv.FormatInt(v.OptionID, 10)
	case AnswerMulti:
		parts := make([]string, len(v.OptionIDs))
		for i, id := range v.OptionIDs {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return strings.Join(parts, ",")
	default:
		return v.Text
	}
}

// Number returns the numeric form of the answer for gt/lt comparisons
func (v AnswerValue) Number() (float64, bool) {
	switch v.Kind {
	case AnswerSingle:
		return float64(v.OptionID), true
	case AnswerText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AnswerMap holds the in-progress answers keyed by question id
type AnswerMap map[int64]AnswerValue
