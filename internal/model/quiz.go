package model

// QuestionType is the declared answer shape of a question
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionOpenText       QuestionType = "open_text"
)

// Quiz is the upstream questionnaire header
type Quiz struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Option is one selectable choice of a choice question
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
	Order int    `json:"order,omitempty"`
}

// Question is one step of the questionnaire
type Question struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title"`
	Type     QuestionType `json:"type"`
	Required bool         `json:"required,omitempty"`
	Order    int          `json:"order,omitempty"`
	Options  []Option     `json:"options,omitempty"`
}

// HasOption reports whether the question declares the given option id.
func (q *Question) HasOption(optionID int64) bool {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return true
		}
	}
	return false
}

// QuizDocument bundles everything the runner needs to drive one
// questionnaire: the quiz header, its ordered questions and the branching
// rules. It is fetched from the upstream API in a single call.
type QuizDocument struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
	Rules     []Rule     `json:"rules,omitempty"`
}

// QuestionByID returns the question with the given id.
func (d *QuizDocument) QuestionByID(id int64) (*Question, bool) {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i], true
		}
	}
	return nil, false
}

// QuestionIndex returns the position of the question with the given id in
// the ordered question list.
func (d *QuizDocument) QuestionIndex(id int64) (int, bool) {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return i, true
		}
	}
	return 0, false
}
