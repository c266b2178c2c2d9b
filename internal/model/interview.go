package model

import "time"

// InterviewSession is the server-side interview record as known to the
// runner. The id is persisted redundantly in the progress store so it
// survives restarts; it must be revalidated before reuse because the server
// record may have been deleted externally while the cached id still exists.
type InterviewSession struct {
	InterviewID int64     `json:"interview_id"`
	StartedAt   time.Time `json:"started_at"`
}

// AnswerSubmission is the upstream payload for one recorded answer
type AnswerSubmission struct {
	QuestionID  int64    `json:"question_id"`
	OptionID    *int64   `json:"option_id,omitempty"`
	ValueText   *string  `json:"value_text,omitempty"`
	ValueNumber *float64 `json:"value_number,omitempty"`
	ValueBool   *bool    `json:"value_bool,omitempty"`
	TimeSpentMS int64    `json:"time_spent_ms"`
}

// FinalizeSubmission is the upstream payload for interview finalization
type FinalizeSubmission struct {
	RespondentName  string `json:"respondent_name,omitempty"`
	RespondentPhone string `json:"respondent_phone,omitempty"`
	RespondentEmail string `json:"respondent_email"`
	DurationMS      int64  `json:"duration_ms"`
}
