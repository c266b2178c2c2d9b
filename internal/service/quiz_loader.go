package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"formrunner/internal/model"
)

// QuizLoader fetches quiz documents and keeps a short-lived in-memory
// snapshot so reopening a form does not refetch the definition.
type QuizLoader struct {
	api   SurveyAPI
	cache *gocache.Cache
}

func NewQuizLoader(api SurveyAPI, ttl time.Duration) *QuizLoader {
	return &QuizLoader{
		api:   api,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Load returns the quiz document for quizID, from cache when fresh. A load
// failure is fatal for the session: no question data means no flow.
func (l *QuizLoader) Load(ctx context.Context, quizID int64) (*model.QuizDocument, error) {
	key := strconv.FormatInt(quizID, 10)
	if cached, ok := l.cache.Get(key); ok {
		return cached.(*model.QuizDocument), nil
	}

	doc, err := l.api.FetchQuizDocument(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz %d: %w", quizID, err)
	}

	l.cache.Set(key, doc, gocache.DefaultExpiration)
	return doc, nil
}

// Invalidate drops the cached snapshot for quizID
func (l *QuizLoader) Invalidate(quizID int64) {
	l.cache.Delete(strconv.FormatInt(quizID, 10))
}
