package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"formrunner/internal/model"
)

// fakeAPI is an in-memory stand-in for the upstream survey platform.
type fakeAPI struct {
	mu sync.Mutex

	doc    *model.QuizDocument
	docErr error

	nextInterviewID int64
	startCalls      int
	startErr        error
	existing        map[int64]bool
	probeErr        error

	submitted []model.AnswerSubmission
	submitErr error

	finalized   []model.FinalizeSubmission
	finalizeErr error
}

func newFakeAPI(doc *model.QuizDocument) *fakeAPI {
	return &fakeAPI{
		doc:             doc,
		nextInterviewID: 100,
		existing:        make(map[int64]bool),
	}
}

func (f *fakeAPI) FetchQuizDocument(ctx context.Context, quizID int64) (*model.QuizDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil {
		return nil, f.docErr
	}
	if f.doc == nil {
		return nil, errors.New("no quiz configured")
	}
	return f.doc, nil
}

func (f *fakeAPI) StartInterview(ctx context.Context, quizID int64, source string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return 0, f.startErr
	}
	f.nextInterviewID++
	f.existing[f.nextInterviewID] = true
	return f.nextInterviewID, nil
}

func (f *fakeAPI) InterviewExists(ctx context.Context, interviewID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.existing[interviewID], nil
}

func (f *fakeAPI) SubmitAnswer(ctx context.Context, interviewID int64, sub *model.AnswerSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, *sub)
	return nil
}

func (f *fakeAPI) FinalizeInterview(ctx context.Context, interviewID int64, fin *model.FinalizeSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = append(f.finalized, *fin)
	return nil
}

func (f *fakeAPI) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func (f *fakeAPI) callsToStart() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

// memProgress implements cache.ProgressCache over maps. Progress snapshots
// go through real JSON serialization so restore exercises the same
// round-trip as the Redis-backed store.
type memProgress struct {
	mu         sync.Mutex
	progress   map[int64][]byte
	interviews map[int64]int64
	failWrites bool
}

func newMemProgress() *memProgress {
	return &memProgress{
		progress:   make(map[int64][]byte),
		interviews: make(map[int64]int64),
	}
}

func (m *memProgress) SaveProgress(ctx context.Context, quizID int64, p *model.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("storage unavailable")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	m.progress[quizID] = data
	return nil
}

func (m *memProgress) RestoreProgress(ctx context.Context, quizID int64) (*model.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.progress[quizID]
	if !ok {
		return nil, nil
	}
	var p model.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Answers == nil {
		p.Answers = model.AnswerMap{}
	}
	return &p, nil
}

func (m *memProgress) ClearProgress(ctx context.Context, quizID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, quizID)
	return nil
}

func (m *memProgress) SaveInterviewID(ctx context.Context, quizID, interviewID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("storage unavailable")
	}
	m.interviews[quizID] = interviewID
	return nil
}

func (m *memProgress) RestoreInterviewID(ctx context.Context, quizID int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.interviews[quizID]
	return id, ok, nil
}

func (m *memProgress) ClearInterviewID(ctx context.Context, quizID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.interviews, quizID)
	return nil
}

func (m *memProgress) cachedInterviewID(quizID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.interviews[quizID]
	return id, ok
}

func (m *memProgress) hasProgress(quizID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.progress[quizID]
	return ok
}

// memJournal implements repository.JournalRepo in memory.
type memJournal struct {
	mu      sync.Mutex
	entries []model.JournalEntry
}

func newMemJournal() *memJournal {
	return &memJournal{}
}

func (m *memJournal) Record(ctx context.Context, entry *model.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memJournal) ListByQuiz(ctx context.Context, quizID int64, limit int64) ([]*model.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.JournalEntry
	for i := range m.entries {
		if m.entries[i].QuizID == quizID {
			e := m.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *memJournal) byStatus(status model.JournalStatus) []model.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.JournalEntry
	for _, e := range m.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}
