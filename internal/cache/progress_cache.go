package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"formrunner/internal/model"
)

// ProgressCache persists the resumable per-quiz form state in the
// device-local Redis. Keys mirror the form UI's storage contract:
// form_answers_{quizId} holds {idx, answers}, form_interview_{quizId} holds
// the interview id. Entries have no TTL; they are cleared explicitly on
// completion or refusal.
type ProgressCache interface {
	SaveProgress(ctx context.Context, quizID int64, p *model.Progress) error
	RestoreProgress(ctx context.Context, quizID int64) (*model.Progress, error)
	ClearProgress(ctx context.Context, quizID int64) error

	SaveInterviewID(ctx context.Context, quizID, interviewID int64) error
	RestoreInterviewID(ctx context.Context, quizID int64) (int64, bool, error)
	ClearInterviewID(ctx context.Context, quizID int64) error
}

type progressCache struct {
	client *redis.Client
}

func NewProgressCache(client *redis.Client) ProgressCache {
	return &progressCache{
		client: client,
	}
}

func (c *progressCache) answersKey(quizID int64) string {
	return fmt.Sprintf("form_answers_%d", quizID)
}

func (c *progressCache) interviewKey(quizID int64) string {
	return fmt.Sprintf("form_interview_%d", quizID)
}

func (c *progressCache) SaveProgress(ctx context.Context, quizID int64, p *model.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.answersKey(quizID), data, 0).Err()
}

func (c *progressCache) RestoreProgress(ctx context.Context, quizID int64) (*model.Progress, error) {
	data, err := c.client.Get(ctx, c.answersKey(quizID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p model.Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	if p.Answers == nil {
		p.Answers = model.AnswerMap{}
	}
	return &p, nil
}

func (c *progressCache) ClearProgress(ctx context.Context, quizID int64) error {
	return c.client.Del(ctx, c.answersKey(quizID)).Err()
}

func (c *progressCache) SaveInterviewID(ctx context.Context, quizID, interviewID int64) error {
	return c.client.Set(ctx, c.interviewKey(quizID), strconv.FormatInt(interviewID, 10), 0).Err()
}

func (c *progressCache) RestoreInterviewID(ctx context.Context, quizID int64) (int64, bool, error) {
	data, err := c.client.Get(ctx, c.interviewKey(quizID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		// Unparsable cache entry is as good as no entry
		return 0, false, nil
	}
	return id, true, nil
}

func (c *progressCache) ClearInterviewID(ctx context.Context, quizID int64) error {
	return c.client.Del(ctx, c.interviewKey(quizID)).Err()
}
