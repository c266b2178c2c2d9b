package service

// Broadcaster interface for WebSocket event streaming (avoids import cycle)
type Broadcaster interface {
	BroadcastToForm(quizID int64, msgType string, payload interface{})
}

// Navigation event types pushed to the form UI
const (
	EventQuestionChanged     = "question_changed"
	EventFinalizationReached = "finalization_reached"
	EventInterviewTerminated = "interview_terminated"
	EventInterviewCompleted  = "interview_completed"
)
