package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"sync"
	"time"

	"formrunner/internal/cache"
	"formrunner/internal/model"
	"formrunner/internal/repository"
)

var (
	ErrQuestionNotFound   = errors.New("question not found in quiz")
	ErrOptionNotFound     = errors.New("option does not belong to the question")
	ErrAnswerKindMismatch = errors.New("answer shape does not match question type")
	ErrInterviewOver      = errors.New("interview has been terminated")
	ErrNoActiveQuestion   = errors.New("no question is currently active")
	ErrNotAtFinalization  = errors.New("interview is not at the identification step")
	ErrInvalidEmail       = errors.New("a well-formed respondent email is required")
)

// formSession is the state of one respondent's run through a quiz. Local
// state is mutated and persisted before any network call; a failed or slow
// upstream submission never rolls the cursor back.
type formSession struct {
	doc     *model.QuizDocument
	status  model.RunnerStatus
	idx     int
	answers model.AnswerMap
	shownAt time.Time // when the current question was presented
}

// RunnerService drives the sequential, rule-driven question flow: it records
// answers, runs the rule engine after single-choice answers, moves the
// cursor, and coordinates the interview lifecycle with the upstream API.
type RunnerService struct {
	loader      *QuizLoader
	api         SurveyAPI
	progress    cache.ProgressCache
	interviews  *InterviewService
	journal     repository.JournalRepo
	broadcaster Broadcaster

	mu       sync.Mutex
	sessions map[int64]*formSession
}

func NewRunnerService(
	loader *QuizLoader,
	api SurveyAPI,
	progress cache.ProgressCache,
	interviews *InterviewService,
	journal repository.JournalRepo,
) *RunnerService {
	return &RunnerService{
		loader:     loader,
		api:        api,
		progress:   progress,
		interviews: interviews,
		journal:    journal,
		sessions:   make(map[int64]*formSession),
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *RunnerService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Open starts or resumes the form session for a quiz. Progress persisted by
// an earlier run is restored; otherwise the cursor starts at the first
// question with an empty answer set. A session left in a terminal state by a
// previous respondent is torn down here, so the next run starts fresh.
func (s *RunnerService) Open(ctx context.Context, quizID int64) (*model.FormState, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[quizID]; ok {
		switch sess.status {
		case model.StatusCompleted, model.StatusTerminated:
			delete(s.sessions, quizID)
		}
	}
	s.mu.Unlock()

	sess, err := s.ensureSession(ctx, quizID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(quizID, sess), nil
}

// State returns the current session state, resuming from the progress store
// if the in-memory session was lost to a restart.
func (s *RunnerService) State(ctx context.Context, quizID int64) (*model.FormState, error) {
	return s.Open(ctx, quizID)
}

// RecordAnswer records one answer, persists progress, dispatches the
// best-effort upstream submission and, for single-choice questions, lets the
// rule engine decide the next cursor position.
func (s *RunnerService) RecordAnswer(ctx context.Context, quizID int64, req *model.AnswerRequest) (*model.FormState, error) {
	sess, err := s.ensureSession(ctx, quizID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch sess.status {
	case model.StatusTerminated, model.StatusCompleted:
		return nil, ErrInterviewOver
	case model.StatusFinalization:
		return nil, ErrNoActiveQuestion
	}

	question, ok := sess.doc.QuestionByID(req.QuestionID)
	if !ok {
		return nil, ErrQuestionNotFound
	}

	value, err := answerValueFor(question, req)
	if err != nil {
		return nil, err
	}

	sess.answers[question.ID] = value

	timeSpent := int64(0)
	if !sess.shownAt.IsZero() {
		timeSpent = time.Since(sess.shownAt).Milliseconds()
	}

	// Rules react to single-choice answers only; multi-choice and open-text
	// questions hold the cursor until an explicit advance.
	refused := false
	prevIdx, prevStatus := sess.idx, sess.status
	if question.Type == model.QuestionSingleChoice {
		outcome := EvaluateRules(question.ID, sess.answers, sess.doc.Rules)
		switch {
		case outcome.Refuse:
			refused = true
		case outcome.JumpTo != nil:
			if target, ok := sess.doc.QuestionIndex(*outcome.JumpTo); ok {
				sess.idx = target
			} else {
				// Broken rule target: fall through to linear advance
				// rather than stranding the respondent.
				s.advanceLocked(sess)
			}
		default:
			s.advanceLocked(sess)
		}
	}

	if refused {
		// Disqualification: the triggering answer is not streamed upstream;
		// the refusal outcome is journaled instead.
		s.terminateLocked(ctx, quizID, sess)
		return s.stateLocked(quizID, sess), nil
	}

	// A held cursor keeps its presentation time; time_spent_ms measures
	// since the question was presented, not since the last edit.
	if sess.idx != prevIdx || sess.status != prevStatus {
		sess.shownAt = time.Now()
	}
	s.persistLocked(ctx, quizID, sess)
	s.submitAnswerAsync(quizID, question, value, timeSpent)

	if sess.status == model.StatusFinalization {
		s.broadcast(quizID, EventFinalizationReached, s.stateLocked(quizID, sess))
	} else {
		s.broadcast(quizID, EventQuestionChanged, s.stateLocked(quizID, sess))
	}

	return s.stateLocked(quizID, sess), nil
}

// Next advances the cursor linearly without rule evaluation; the explicit
// advance for multi-choice and open-text questions.
func (s *RunnerService) Next(ctx context.Context, quizID int64) (*model.FormState, error) {
	sess, err := s.ensureSession(ctx, quizID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch sess.status {
	case model.StatusTerminated, model.StatusCompleted:
		return nil, ErrInterviewOver
	case model.StatusFinalization:
		return s.stateLocked(quizID, sess), nil
	}

	s.advanceLocked(sess)
	sess.shownAt = time.Now()
	s.persistLocked(ctx, quizID, sess)

	if sess.status == model.StatusFinalization {
		s.broadcast(quizID, EventFinalizationReached, s.stateLocked(quizID, sess))
	} else {
		s.broadcast(quizID, EventQuestionChanged, s.stateLocked(quizID, sess))
	}

	return s.stateLocked(quizID, sess), nil
}

// Back retreats the cursor one step. Always permitted, including from the
// identification step back to the last question.
func (s *RunnerService) Back(ctx context.Context, quizID int64) (*model.FormState, error) {
	sess, err := s.ensureSession(ctx, quizID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch sess.status {
	case model.StatusTerminated, model.StatusCompleted:
		return nil, ErrInterviewOver
	}

	if sess.idx > 0 {
		sess.idx--
	}
	sess.status = model.StatusSequential
	sess.shownAt = time.Now()
	s.persistLocked(ctx, quizID, sess)
	s.broadcast(quizID, EventQuestionChanged, s.stateLocked(quizID, sess))

	return s.stateLocked(quizID, sess), nil
}

// Finalize validates the respondent identification, performs the blocking
// upstream finalize call and tears the session down on success. On failure
// the session stays at the identification step so the respondent can retry.
func (s *RunnerService) Finalize(ctx context.Context, quizID int64, req *model.FinalizeRequest) (*model.FormState, error) {
	sess, err := s.ensureSession(ctx, quizID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch sess.status {
	case model.StatusTerminated, model.StatusCompleted:
		return nil, ErrInterviewOver
	}
	if sess.status != model.StatusFinalization {
		return nil, ErrNotAtFinalization
	}

	if _, err := mail.ParseAddress(req.RespondentEmail); err != nil {
		return nil, ErrInvalidEmail
	}

	interviewID, err := s.interviews.EnsureInterviewID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to establish interview: %w", err)
	}

	duration := int64(0)
	if cur := s.interviews.Current(quizID); cur != nil {
		duration = time.Since(cur.StartedAt).Milliseconds()
	}

	fin := &model.FinalizeSubmission{
		RespondentName:  req.RespondentName,
		RespondentPhone: req.RespondentPhone,
		RespondentEmail: req.RespondentEmail,
		DurationMS:      duration,
	}

	if err := s.api.FinalizeInterview(ctx, interviewID, fin); err != nil {
		s.recordJournal(&model.JournalEntry{
			QuizID:      quizID,
			InterviewID: interviewID,
			Kind:        model.JournalInterview,
			Status:      model.JournalFailed,
			Detail:      err.Error(),
		})
		return nil, fmt.Errorf("failed to finalize interview %d: %w", interviewID, err)
	}

	s.recordJournal(&model.JournalEntry{
		QuizID:      quizID,
		InterviewID: interviewID,
		Kind:        model.JournalInterview,
		Status:      model.JournalCompleted,
	})

	s.clearLocalState(ctx, quizID)
	s.interviews.Forget(quizID)
	sess.status = model.StatusCompleted
	sess.answers = model.AnswerMap{}
	s.broadcast(quizID, EventInterviewCompleted, s.stateLocked(quizID, sess))

	return s.stateLocked(quizID, sess), nil
}

// Journal lists the recent submission journal entries for a quiz
func (s *RunnerService) Journal(ctx context.Context, quizID int64) ([]*model.JournalEntry, error) {
	return s.journal.ListByQuiz(ctx, quizID, 200)
}

// ensureSession returns the live session for quizID, constructing it from
// the quiz document and any persisted progress when missing.
func (s *RunnerService) ensureSession(ctx context.Context, quizID int64) (*formSession, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[quizID]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	doc, err := s.loader.Load(ctx, quizID)
	if err != nil {
		return nil, err
	}

	sess := &formSession{
		doc:     doc,
		status:  model.StatusSequential,
		answers: model.AnswerMap{},
		shownAt: time.Now(),
	}

	if p, err := s.progress.RestoreProgress(ctx, quizID); err != nil {
		log.Printf("[runner] failed to restore progress for quiz %d: %v", quizID, err)
	} else if p != nil {
		sess.idx = p.Idx
		sess.answers = p.Answers
	}

	total := len(doc.Questions)
	if sess.idx < 0 {
		sess.idx = 0
	}
	if sess.idx >= total {
		sess.idx = total
		sess.status = model.StatusFinalization
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[quizID]; ok {
		return existing, nil
	}
	s.sessions[quizID] = sess
	return sess, nil
}

// advanceLocked moves the cursor one step forward, crossing into the
// identification step after the last question.
func (s *RunnerService) advanceLocked(sess *formSession) {
	total := len(sess.doc.Questions)
	if sess.idx+1 >= total {
		sess.idx = total
		sess.status = model.StatusFinalization
	} else {
		sess.idx++
	}
}

// persistLocked writes the resumable snapshot. Storage being unavailable
// costs resumability, never the request.
func (s *RunnerService) persistLocked(ctx context.Context, quizID int64, sess *formSession) {
	p := &model.Progress{Idx: sess.idx, Answers: sess.answers}
	if err := s.progress.SaveProgress(ctx, quizID, p); err != nil {
		log.Printf("[runner] failed to persist progress for quiz %d: %v", quizID, err)
	}
}

// terminateLocked handles the refusal path: clear local state, drop the
// interview cache and exit the flow. Terminal; no further input is accepted.
func (s *RunnerService) terminateLocked(ctx context.Context, quizID int64, sess *formSession) {
	sess.status = model.StatusTerminated
	sess.answers = model.AnswerMap{}

	s.clearLocalState(ctx, quizID)

	var interviewID int64
	if cur := s.interviews.Current(quizID); cur != nil {
		interviewID = cur.InterviewID
	}
	s.interviews.Forget(quizID)

	s.recordJournal(&model.JournalEntry{
		QuizID:      quizID,
		InterviewID: interviewID,
		Kind:        model.JournalInterview,
		Status:      model.JournalRefused,
	})

	s.broadcast(quizID, EventInterviewTerminated, s.stateLocked(quizID, sess))
}

func (s *RunnerService) clearLocalState(ctx context.Context, quizID int64) {
	if err := s.progress.ClearProgress(ctx, quizID); err != nil {
		log.Printf("[runner] failed to clear progress for quiz %d: %v", quizID, err)
	}
	if err := s.progress.ClearInterviewID(ctx, quizID); err != nil {
		log.Printf("[runner] failed to clear interview cache for quiz %d: %v", quizID, err)
	}
}

// submitAnswerAsync streams the recorded answer upstream without blocking
// the flow. Failures are logged and journaled, never surfaced: the
// locally-recorded answer and navigation stand regardless.
func (s *RunnerService) submitAnswerAsync(quizID int64, question *model.Question, value model.AnswerValue, timeSpentMS int64) {
	go func() {
		ctx := context.Background()

		interviewID, err := s.interviews.EnsureInterviewID(ctx, quizID)
		if err != nil {
			log.Printf("[runner] answer for question %d not submitted, no interview: %v", question.ID, err)
			s.recordJournal(&model.JournalEntry{
				QuizID:     quizID,
				QuestionID: &question.ID,
				Kind:       model.JournalAnswer,
				Status:     model.JournalFailed,
				Detail:     err.Error(),
			})
			return
		}

		for _, sub := range buildSubmissions(question, value, timeSpentMS) {
			entry := &model.JournalEntry{
				QuizID:      quizID,
				InterviewID: interviewID,
				QuestionID:  &question.ID,
				Kind:        model.JournalAnswer,
				Status:      model.JournalSent,
			}
			if err := s.api.SubmitAnswer(ctx, interviewID, sub); err != nil {
				log.Printf("[runner] failed to submit answer for question %d: %v", question.ID, err)
				entry.Status = model.JournalFailed
				entry.Detail = err.Error()
			}
			s.recordJournal(entry)
		}
	}()
}

// buildSubmissions maps one recorded answer onto upstream answer payloads.
// Multi-select answers become one payload per selected option.
func buildSubmissions(question *model.Question, value model.AnswerValue, timeSpentMS int64) []*model.AnswerSubmission {
	switch value.Kind {
	case model.AnswerSingle:
		optionID := value.OptionID
		return []*model.AnswerSubmission{{
			QuestionID:  question.ID,
			OptionID:    &optionID,
			TimeSpentMS: timeSpentMS,
		}}
	case model.AnswerMulti:
		subs := make([]*model.AnswerSubmission, 0, len(value.OptionIDs))
		for _, id := range value.OptionIDs {
			optionID := id
			subs = append(subs, &model.AnswerSubmission{
				QuestionID:  question.ID,
				OptionID:    &optionID,
				TimeSpentMS: timeSpentMS,
			})
		}
		return subs
	default:
		text := value.Text
		return []*model.AnswerSubmission{{
			QuestionID:  question.ID,
			ValueText:   &text,
			TimeSpentMS: timeSpentMS,
		}}
	}
}

// answerValueFor checks the request against the question's declared type and
// produces the tagged answer value.
func answerValueFor(question *model.Question, req *model.AnswerRequest) (model.AnswerValue, error) {
	switch question.Type {
	case model.QuestionSingleChoice:
		if req.OptionID == nil {
			return model.AnswerValue{}, ErrAnswerKindMismatch
		}
		if !question.HasOption(*req.OptionID) {
			return model.AnswerValue{}, ErrOptionNotFound
		}
		return model.SingleAnswer(*req.OptionID), nil

	case model.QuestionMultipleChoice:
		if req.OptionIDs == nil {
			return model.AnswerValue{}, ErrAnswerKindMismatch
		}
		for _, id := range req.OptionIDs {
			if !question.HasOption(id) {
				return model.AnswerValue{}, ErrOptionNotFound
			}
		}
		return model.MultiAnswer(req.OptionIDs), nil

	default:
		// Open text and any unrecognized question type record free text.
		if req.Text == nil {
			return model.AnswerValue{}, ErrAnswerKindMismatch
		}
		return model.TextAnswer(*req.Text), nil
	}
}

func (s *RunnerService) recordJournal(entry *model.JournalEntry) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.Record(ctx, entry); err != nil {
		log.Printf("[runner] failed to journal %s/%s for quiz %d: %v", entry.Kind, entry.Status, entry.QuizID, err)
	}
}

func (s *RunnerService) broadcast(quizID int64, msgType string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToForm(quizID, msgType, payload)
}

// stateLocked builds the UI-facing state snapshot. Caller holds s.mu. The
// answer map is copied: handlers encode the snapshot after the lock is
// released.
func (s *RunnerService) stateLocked(quizID int64, sess *formSession) *model.FormState {
	answers := make(model.AnswerMap, len(sess.answers))
	for id, v := range sess.answers {
		answers[id] = v
	}
	state := &model.FormState{
		Status:  sess.status,
		Idx:     sess.idx,
		Total:   len(sess.doc.Questions),
		Answers: answers,
	}
	if sess.status == model.StatusSequential && sess.idx < len(sess.doc.Questions) {
		state.Question = &sess.doc.Questions[sess.idx]
	}
	if cur := s.interviews.Current(quizID); cur != nil {
		state.InterviewID = cur.InterviewID
	}
	return state
}
