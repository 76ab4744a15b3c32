package model

import "time"

// ExecutionStatus is the lifecycle of one inspection
type ExecutionStatus string

const (
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionCompleted  ExecutionStatus = "completed" // terminal, answers are frozen
)

// Value is the typed answer payload. Exactly the field matching Kind is
// populated; it is produced once at the boundary and never carries raw input.
type Value struct {
	Kind     ResponseType `json:"kind" bson:"kind"`
	Bool     bool         `json:"bool,omitempty" bson:"bool,omitempty"`         // yes_no
	OptionID string       `json:"optionId,omitempty" bson:"optionId,omitempty"` // multiple_choice
	Number   float64      `json:"number,omitempty" bson:"number,omitempty"`     // numeric
	Text     string       `json:"text,omitempty" bson:"text,omitempty"`         // text, photo caption, signature ref
	Time     string       `json:"time,omitempty" bson:"time,omitempty"`         // "15:04"
	Date     string       `json:"date,omitempty" bson:"date,omitempty"`         // "2006-01-02"
}

// Answer is one stored answer with its evidence references
type Answer struct {
	Value      Value     `json:"value" bson:"value"`
	MediaRefs  []string  `json:"mediaRefs,omitempty" bson:"mediaRefs,omitempty"`
	AnsweredAt time.Time `json:"answeredAt" bson:"answeredAt"`
	AnsweredBy string    `json:"answeredBy,omitempty" bson:"answeredBy,omitempty"`
	Seq        uint64    `json:"seq" bson:"seq"` // local sequence for conflict detection
}

// Execution is one inspection's answers bound to a template snapshot
type Execution struct {
	ID                string            `json:"id" bson:"_id"`
	TemplateID        string            `json:"templateId" bson:"templateId"`
	TemplateVersion   string            `json:"templateVersion" bson:"templateVersion"`
	Fingerprint       string            `json:"fingerprint" bson:"fingerprint"`
	Status            ExecutionStatus   `json:"status" bson:"status"`
	Answers           map[string]Answer `json:"answers" bson:"answers"`
	Seq               uint64            `json:"seq" bson:"seq"`
	ParentExecutionID string            `json:"parentExecutionId,omitempty" bson:"parentExecutionId,omitempty"`
	ParentQuestionID  string            `json:"parentQuestionId,omitempty" bson:"parentQuestionId,omitempty"`
	SubExecutions     map[string]string `json:"subExecutions,omitempty" bson:"subExecutions,omitempty"` // questionID -> executionID
	CreatedAt         time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" bson:"updatedAt"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// IsCompleted reports whether the execution reached its terminal status
func (e *Execution) IsCompleted() bool {
	return e.Status == ExecutionCompleted
}

// Answer returns the stored answer for a question
func (e *Execution) Answer(questionID string) (Answer, bool) {
	a, ok := e.Answers[questionID]
	return a, ok
}

// Clone returns a deep copy of the execution
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	out := *e
	out.Answers = make(map[string]Answer, len(e.Answers))
	for k, a := range e.Answers {
		a.MediaRefs = append([]string(nil), a.MediaRefs...)
		out.Answers[k] = a
	}
	if e.SubExecutions != nil {
		out.SubExecutions = make(map[string]string, len(e.SubExecutions))
		for k, v := range e.SubExecutions {
			out.SubExecutions[k] = v
		}
	}
	if e.CompletedAt != nil {
		c := *e.CompletedAt
		out.CompletedAt = &c
	}
	return &out
}
