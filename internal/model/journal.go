package model

import "time"

// JournalKind classifies a journal entry
type JournalKind string

const (
	JournalAnswer    JournalKind = "answer"
	JournalInterview JournalKind = "interview"
)

// JournalStatus is the outcome recorded for a journal entry
type JournalStatus string

const (
	JournalSent      JournalStatus = "sent"
	JournalFailed    JournalStatus = "failed"
	JournalRefused   JournalStatus = "refused"
	JournalCompleted JournalStatus = "completed"
)

// JournalEntry is one record in the local submission journal. Per-answer
// upstream submission is fire-and-forget, so the journal is the only place
// a swallowed failure remains visible to operators.
type JournalEntry struct {
	ID          string        `json:"id" bson:"_id,omitempty"`
	QuizID      int64         `json:"quiz_id" bson:"quizId"`
	InterviewID int64         `json:"interview_id,omitempty" bson:"interviewId,omitempty"`
	QuestionID  *int64        `json:"question_id,omitempty" bson:"questionId,omitempty"`
	Kind        JournalKind   `json:"kind" bson:"kind"`
	Status      JournalStatus `json:"status" bson:"status"`
	Detail      string        `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt   time.Time     `json:"created_at" bson:"createdAt"`
}
