package model

import "github.com/golang-jwt/jwt/v5"

// RunnerStatus is the form session's navigation state
type RunnerStatus string

const (
	StatusSequential   RunnerStatus = "sequential"   // on a question, idx < total
	StatusFinalization RunnerStatus = "finalization" // identification step, idx == total
	StatusTerminated   RunnerStatus = "terminated"   // refusal path, flow exited
	StatusCompleted    RunnerStatus = "completed"    // finalized successfully
)

// Progress is the resumable snapshot persisted after every transition
type Progress struct {
	Idx     int       `json:"idx"`
	Answers AnswerMap `json:"answers"`
}

// FormState is the runner's view of a form session, returned to the form UI
// after every operation.
type FormState struct {
	Status      RunnerStatus `json:"status"`
	Idx         int          `json:"idx"`
	Total       int          `json:"total"`
	Question    *Question    `json:"question,omitempty"`
	Answers     AnswerMap    `json:"answers"`
	InterviewID int64        `json:"interview_id,omitempty"`
}

// AnswerRequest is the form UI's payload for recording one answer. Exactly
// one of OptionID, OptionIDs or Text must match the question's declared type.
type AnswerRequest struct {
	QuestionID int64   `json:"question_id"`
	OptionID   *int64  `json:"option_id,omitempty"`
	OptionIDs  []int64 `json:"option_ids,omitempty"`
	Text       *string `json:"text,omitempty"`
}

// FinalizeRequest carries the respondent identification fields
type FinalizeRequest struct {
	RespondentName  string `json:"respondent_name,omitempty"`
	RespondentPhone string `json:"respondent_phone,omitempty"`
	RespondentEmail string `json:"respondent_email"`
}

// OpenResponse is returned when a form session is opened or resumed
type OpenResponse struct {
	Token string     `json:"token"`
	State *FormState `json:"state"`
}

// SessionClaims are the JWT claims binding a token to one form session
type SessionClaims struct {
	QuizID    int64  `json:"quiz_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}
