package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"formrunner/internal/cache"
	"formrunner/internal/model"
)

// InterviewService owns the create-once server-side interview record for
// each active quiz. The id is held in memory and mirrored to the progress
// cache; before reuse it is revalidated against the upstream API because an
// admin may have deleted the record while the cached id still exists here.
type InterviewService struct {
	api      SurveyAPI
	progress cache.ProgressCache
	source   string

	mu       sync.Mutex
	sessions map[int64]*model.InterviewSession
}

func NewInterviewService(api SurveyAPI, progress cache.ProgressCache, source string) *InterviewService {
	return &InterviewService{
		api:      api,
		progress: progress,
		source:   source,
		sessions: make(map[int64]*model.InterviewSession),
	}
}

// EnsureInterviewID returns a valid interview id for the quiz, creating the
// upstream record only when no usable id survives revalidation. Idempotent:
// calling it twice without an intervening upstream deletion returns the same
// id and issues no second start call.
func (s *InterviewService) EnsureInterviewID(ctx context.Context, quizID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[quizID]; ok {
		exists, err := s.api.InterviewExists(ctx, sess.InterviewID)
		if err != nil {
			// Unreachable is not "gone": keep using the known id so a
			// flaky connection does not spawn duplicate interviews.
			log.Printf("[interview] existence check for %d failed, trusting known id: %v", sess.InterviewID, err)
			return sess.InterviewID, nil
		}
		if exists {
			return sess.InterviewID, nil
		}
		log.Printf("[interview] interview %d no longer exists upstream, recreating", sess.InterviewID)
		delete(s.sessions, quizID)
		if cerr := s.progress.ClearInterviewID(ctx, quizID); cerr != nil {
			log.Printf("[interview] failed to clear cached interview id for quiz %d: %v", quizID, cerr)
		}
	}

	if id, ok, err := s.progress.RestoreInterviewID(ctx, quizID); err != nil {
		log.Printf("[interview] failed to read cached interview id for quiz %d: %v", quizID, err)
	} else if ok {
		exists, perr := s.api.InterviewExists(ctx, id)
		if perr != nil || exists {
			if perr != nil {
				log.Printf("[interview] existence check for cached id %d failed, adopting optimistically: %v", id, perr)
			}
			sess := &model.InterviewSession{InterviewID: id, StartedAt: time.Now()}
			s.sessions[quizID] = sess
			return id, nil
		}
		log.Printf("[interview] cached interview %d no longer exists upstream, discarding", id)
		if cerr := s.progress.ClearInterviewID(ctx, quizID); cerr != nil {
			log.Printf("[interview] failed to clear cached interview id for quiz %d: %v", quizID, cerr)
		}
	}

	id, err := s.api.StartInterview(ctx, quizID, s.source)
	if err != nil {
		return 0, fmt.Errorf("failed to start interview for quiz %d: %w", quizID, err)
	}

	sess := &model.InterviewSession{InterviewID: id, StartedAt: time.Now()}
	s.sessions[quizID] = sess

	if err := s.progress.SaveInterviewID(ctx, quizID, id); err != nil {
		log.Printf("[interview] failed to persist interview id %d for quiz %d: %v", id, quizID, err)
	}

	return id, nil
}

// Current returns the in-memory session for the quiz, if any
func (s *InterviewService) Current(quizID int64) *model.InterviewSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[quizID]
}

// Forget drops the in-memory session after completion or refusal
func (s *InterviewService) Forget(quizID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, quizID)
}
