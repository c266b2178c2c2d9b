package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formrunner/internal/model"
)

// testQuiz builds a five-question quiz: Q1 single-choice gate, Q2 open text,
// Q3 multiple choice, Q4 single choice, Q5 open text.
func testQuiz(rules ...model.Rule) *model.QuizDocument {
	return &model.QuizDocument{
		Quiz: model.Quiz{ID: 1, Title: "Customer survey"},
		Questions: []model.Question{
			{
				ID:    1,
				Title: "Do you own a car?",
				Type:  model.QuestionSingleChoice,
				Options: []model.Option{
					{ID: 10, Label: "Yes"},
					{ID: 11, Label: "No"},
					{ID: 12, Label: "Prefer not to say"},
				},
			},
			{ID: 2, Title: "Tell us more", Type: model.QuestionOpenText},
			{
				ID:    3,
				Title: "Which brands do you know?",
				Type:  model.QuestionMultipleChoice,
				Options: []model.Option{
					{ID: 30, Label: "A"},
					{ID: 31, Label: "B"},
				},
			},
			{
				ID:    4,
				Title: "How satisfied are you?",
				Type:  model.QuestionSingleChoice,
				Options: []model.Option{
					{ID: 40, Label: "Satisfied"},
					{ID: 41, Label: "Unsatisfied"},
				},
			},
			{ID: 5, Title: "Anything else?", Type: model.QuestionOpenText},
		},
		Rules: rules,
	}
}

func newTestRunner(doc *model.QuizDocument) (*RunnerService, *fakeAPI, *memProgress, *memJournal) {
	api := newFakeAPI(doc)
	progress := newMemProgress()
	journal := newMemJournal()
	interviews := NewInterviewService(api, progress, "form_runner")
	loader := NewQuizLoader(api, time.Minute)
	runner := NewRunnerService(loader, api, progress, interviews, journal)
	return runner, api, progress, journal
}

func TestOpenStartsAtFirstQuestion(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())

	state, err := runner.Open(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSequential, state.Status)
	assert.Equal(t, 0, state.Idx)
	assert.Equal(t, 5, state.Total)
	require.NotNil(t, state.Question)
	assert.Equal(t, int64(1), state.Question.ID)
}

func TestOpenFailsWhenQuizLoadFails(t *testing.T) {
	runner, api, _, _ := newTestRunner(nil)
	api.docErr = errors.New("503 from upstream")

	_, err := runner.Open(context.Background(), 1)
	require.Error(t, err)
}

func TestOpenResumesPersistedProgress(t *testing.T) {
	doc := testQuiz()
	runner, _, progress, _ := newTestRunner(doc)

	saved := &model.Progress{
		Idx: 2,
		Answers: model.AnswerMap{
			1: model.SingleAnswer(11),
			2: model.TextAnswer("some detail"),
		},
	}
	require.NoError(t, progress.SaveProgress(context.Background(), 1, saved))

	state, err := runner.Open(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, state.Idx)
	assert.Equal(t, int64(3), state.Question.ID)
	assert.Equal(t, saved.Answers, state.Answers)
}

// With no matching rule the cursor advances linearly.
func TestAnswerLinearAdvance(t *testing.T) {
	runner, _, progress, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{
		QuestionID: 1,
		OptionID:   ptr(12),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSequential, state.Status)
	assert.Equal(t, 1, state.Idx)

	p, err := progress.RestoreProgress(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Idx, "transition persisted before the network call")
}

// A matching skip rule redirects the cursor to the target question.
func TestAnswerSkipJumpsToTarget(t *testing.T) {
	doc := testQuiz(model.Rule{
		ID:               1,
		SourceQuestionID: 1,
		Type:             model.RuleSkip,
		TargetQuestionID: ptr(5),
		Logic:            model.LogicAnd,
		IsActive:         true,
		Conditions: []model.RuleCondition{
			{ConditionQuestionID: 1, Operator: model.OpSelected, OptionID: ptr(11)},
		},
	})
	runner, _, _, _ := newTestRunner(doc)
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{
		QuestionID: 1,
		OptionID:   ptr(11),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, state.Idx)
	assert.Equal(t, int64(5), state.Question.ID)
}

func TestAnswerUnknownJumpTargetFallsThroughLinearly(t *testing.T) {
	doc := testQuiz(model.Rule{
		ID:               1,
		SourceQuestionID: 1,
		Type:             model.RuleSkip,
		TargetQuestionID: ptr(99),
		Logic:            model.LogicAnd,
		IsActive:         true,
	})
	runner, _, _, _ := newTestRunner(doc)
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{
		QuestionID: 1,
		OptionID:   ptr(10),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSequential, state.Status)
	assert.Equal(t, 1, state.Idx, "a broken rule must never strand the respondent")
}

// A matching refuse rule terminates the interview and clears all local state
// for the quiz.
func TestAnswerRefuseTerminates(t *testing.T) {
	doc := testQuiz(model.Rule{
		ID:               1,
		SourceQuestionID: 1,
		Type:             model.RuleRefuse,
		Logic:            model.LogicAnd,
		IsActive:         true,
		Conditions: []model.RuleCondition{
			{ConditionQuestionID: 1, Operator: model.OpSelected, OptionID: ptr(10)},
		},
	})
	runner, _, progress, journal := newTestRunner(doc)
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{
		QuestionID: 1,
		OptionID:   ptr(10),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusTerminated, state.Status)
	assert.Empty(t, state.Answers)
	assert.False(t, progress.hasProgress(1))
	_, cached := progress.cachedInterviewID(1)
	assert.False(t, cached)
	assert.Len(t, journal.byStatus(model.JournalRefused), 1)

	// Terminal: no further input is accepted.
	_, err = runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 2, Text: strPtr("x")})
	assert.ErrorIs(t, err, ErrInterviewOver)
}

// Answering the last question with no matching rule reaches the
// identification step.
func TestAnswerLastQuestionReachesFinalization(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	advanceToLastQuestion(t, runner)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 5, Text: strPtr("done")})
	require.NoError(t, err)
	// Open text holds the cursor; the explicit advance crosses over.
	assert.Equal(t, model.StatusSequential, state.Status)

	state, err = runner.Next(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinalization, state.Status)
	assert.Equal(t, state.Total, state.Idx)
	assert.Nil(t, state.Question)
}

func TestSingleChoiceOnLastQuestionCrossesToFinalization(t *testing.T) {
	doc := &model.QuizDocument{
		Quiz: model.Quiz{ID: 1, Title: "One question"},
		Questions: []model.Question{
			{
				ID:      1,
				Title:   "Yes or no?",
				Type:    model.QuestionSingleChoice,
				Options: []model.Option{{ID: 10, Label: "Yes"}, {ID: 11, Label: "No"}},
			},
		},
	}
	runner, _, _, _ := newTestRunner(doc)
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, OptionID: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinalization, state.Status)
}

func TestMultiChoiceAnswerHoldsCursor(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)
	_, err = runner.Next(ctx, 1) // to Q2
	require.NoError(t, err)
	_, err = runner.Next(ctx, 1) // to Q3
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{
		QuestionID: 3,
		OptionIDs:  []int64{30, 31},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, state.Idx, "multi-choice answers never trigger a transition")
	assert.Equal(t, model.MultiAnswer([]int64{30, 31}), state.Answers[3])
}

func TestAnswerValidation(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	_, err = runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 77, OptionID: ptr(10)})
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, Text: strPtr("oops")})
	assert.ErrorIs(t, err, ErrAnswerKindMismatch)

	_, err = runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, OptionID: ptr(999)})
	assert.ErrorIs(t, err, ErrOptionNotFound)
}

func TestBackRetreatsAndClampsAtZero(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Idx)

	_, err = runner.Next(ctx, 1)
	require.NoError(t, err)
	state, err = runner.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Idx)
}

func TestBackFromFinalizationReturnsToLastQuestion(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)
	advanceToFinalization(t, runner)

	state, err := runner.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSequential, state.Status)
	assert.Equal(t, 4, state.Idx)
	assert.Equal(t, int64(5), state.Question.ID)
}

func TestAnswerSubmitsUpstreamInBackground(t *testing.T) {
	runner, api, _, journal := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	_, err = runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, OptionID: ptr(12)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return api.submittedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	api.mu.Lock()
	sub := api.submitted[0]
	api.mu.Unlock()
	assert.Equal(t, int64(1), sub.QuestionID)
	require.NotNil(t, sub.OptionID)
	assert.Equal(t, int64(12), *sub.OptionID)

	require.Eventually(t, func() bool {
		return len(journal.byStatus(model.JournalSent)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMultiChoiceAnswerSubmitsOnePayloadPerOption(t *testing.T) {
	runner, api, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	_, err = runner.RecordAnswer(ctx, 1, &model.AnswerRequest{
		QuestionID: 3,
		OptionIDs:  []int64{30, 31},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return api.submittedCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAnswerSubmissionFailureDoesNotBlockNavigation(t *testing.T) {
	runner, api, _, journal := newTestRunner(testQuiz())
	api.submitErr = errors.New("upstream down")
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, OptionID: ptr(12)})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Idx, "navigation proceeds regardless of the submission failure")

	require.Eventually(t, func() bool {
		return len(journal.byStatus(model.JournalFailed)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStorageUnavailableDoesNotFailRequests(t *testing.T) {
	runner, _, progress, _ := newTestRunner(testQuiz())
	progress.failWrites = true
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, OptionID: ptr(12)})
	require.NoError(t, err, "loss of resumability is acceptable, loss of responsiveness is not")
	assert.Equal(t, 1, state.Idx)
}

func TestFinalizeRequiresWellFormedEmail(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)
	advanceToFinalization(t, runner)

	_, err = runner.Finalize(ctx, 1, &model.FinalizeRequest{RespondentEmail: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestFinalizeRejectedOutsideIdentificationStep(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	_, err = runner.Finalize(ctx, 1, &model.FinalizeRequest{RespondentEmail: "a@b.example"})
	assert.ErrorIs(t, err, ErrNotAtFinalization)
}

func TestFinalizeSuccessTearsDownSession(t *testing.T) {
	runner, api, progress, journal := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)
	advanceToFinalization(t, runner)

	state, err := runner.Finalize(ctx, 1, &model.FinalizeRequest{
		RespondentName:  "Jo Doe",
		RespondentEmail: "jo@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, state.Status)
	assert.False(t, progress.hasProgress(1))
	_, cached := progress.cachedInterviewID(1)
	assert.False(t, cached)

	api.mu.Lock()
	require.Len(t, api.finalized, 1)
	fin := api.finalized[0]
	api.mu.Unlock()
	assert.Equal(t, "jo@example.com", fin.RespondentEmail)
	assert.GreaterOrEqual(t, fin.DurationMS, int64(0))

	assert.Len(t, journal.byStatus(model.JournalCompleted), 1)
}

func TestFinalizeFailureKeepsIdentificationStep(t *testing.T) {
	runner, api, _, _ := newTestRunner(testQuiz())
	api.finalizeErr = errors.New("502 from upstream")
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)
	advanceToFinalization(t, runner)

	_, err = runner.Finalize(ctx, 1, &model.FinalizeRequest{RespondentEmail: "jo@example.com"})
	require.Error(t, err)

	state, err := runner.State(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinalization, state.Status, "the respondent may retry")
}

func TestOpenAfterFinalizeStartsFresh(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)
	advanceToFinalization(t, runner)

	state, err := runner.Finalize(ctx, 1, &model.FinalizeRequest{RespondentEmail: "jo@example.com"})
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, state.Status)

	// The finished run is torn down; the next respondent starts over.
	state, err = runner.Open(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSequential, state.Status)
	assert.Equal(t, 0, state.Idx)
	assert.Empty(t, state.Answers)
	require.NotNil(t, state.Question)
	assert.Equal(t, int64(1), state.Question.ID)
}

func TestOpenAfterRefusalStartsFresh(t *testing.T) {
	doc := testQuiz(model.Rule{
		ID:               1,
		SourceQuestionID: 1,
		Type:             model.RuleRefuse,
		Logic:            model.LogicAnd,
		IsActive:         true,
		Conditions: []model.RuleCondition{
			{ConditionQuestionID: 1, Operator: model.OpSelected, OptionID: ptr(10)},
		},
	})
	runner, _, _, _ := newTestRunner(doc)
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, OptionID: ptr(10)})
	require.NoError(t, err)
	require.Equal(t, model.StatusTerminated, state.Status)

	state, err = runner.Open(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSequential, state.Status)
	assert.Equal(t, 0, state.Idx)
	assert.Empty(t, state.Answers)
}

func TestHeldCursorKeepsPresentationTime(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)
	_, err = runner.Next(ctx, 1) // to Q2 (open text)
	require.NoError(t, err)

	runner.mu.Lock()
	shownAt := runner.sessions[1].shownAt
	runner.mu.Unlock()

	// Open text holds the cursor, so the presentation time stands; otherwise
	// time_spent_ms would measure since the last edit instead.
	_, err = runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 2, Text: strPtr("first draft")})
	require.NoError(t, err)

	runner.mu.Lock()
	held := runner.sessions[1].shownAt
	runner.mu.Unlock()
	assert.Equal(t, shownAt, held)

	// The explicit advance moves the cursor and restamps it.
	_, err = runner.Next(ctx, 1)
	require.NoError(t, err)

	runner.mu.Lock()
	moved := runner.sessions[1].shownAt
	runner.mu.Unlock()
	assert.NotEqual(t, shownAt, moved)
}

func TestStateSnapshotDoesNotAliasSessionAnswers(t *testing.T) {
	runner, _, _, _ := newTestRunner(testQuiz())
	ctx := context.Background()

	_, err := runner.Open(ctx, 1)
	require.NoError(t, err)

	state, err := runner.RecordAnswer(ctx, 1, &model.AnswerRequest{QuestionID: 1, OptionID: ptr(12)})
	require.NoError(t, err)

	state.Answers[99] = model.TextAnswer("mutated snapshot")

	fresh, err := runner.State(ctx, 1)
	require.NoError(t, err)
	assert.NotContains(t, fresh.Answers, int64(99))
}

func strPtr(s string) *string {
	return &s
}

func advanceToLastQuestion(t *testing.T, runner *RunnerService) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := runner.Next(ctx, 1)
		require.NoError(t, err)
	}
}

func advanceToFinalization(t *testing.T, runner *RunnerService) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := runner.Next(ctx, 1)
		require.NoError(t, err)
	}
}
