package model

import "time"

// ResponseType defines the answer contract of a question
type ResponseType string

const (
	ResponseYesNo          ResponseType = "yes_no"
	ResponseMultipleChoice ResponseType = "multiple_choice"
	ResponseNumeric        ResponseType = "numeric"
	ResponseText           ResponseType = "text"
	ResponseTime           ResponseType = "time"
	ResponseDate           ResponseType = "date"
	ResponsePhoto          ResponseType = "photo"    // Answered by attaching media
	ResponseSignature      ResponseType = "signature" // Value is the signature evidence reference
)

// ResponseTypes lists the closed set of response types
var ResponseTypes = []ResponseType{
	ResponseYesNo,
	ResponseMultipleChoice,
	ResponseNumeric,
	ResponseText,
	ResponseTime,
	ResponseDate,
	ResponsePhoto,
	ResponseSignature,
}

// Valid reports whether r is one of the known response types
func (r ResponseType) Valid() bool {
	for _, known := range ResponseTypes {
		if r == known {
			return true
		}
	}
	return false
}

// TemplateStatus is the authoring lifecycle of a template
type TemplateStatus string

const (
	TemplateDraft     TemplateStatus = "draft"
	TemplatePublished TemplateStatus = "published"
	TemplateArchived  TemplateStatus = "archived"
)

// DefaultWeight is used when a question carries no explicit weight
const DefaultWeight = 1.0

// Option is a multiple-choice option. Answers reference the ID so that
// renaming the label keeps stored answers valid.
type Option struct {
	ID    string `json:"id" bson:"id" yaml:"id"`
	Label string `json:"label" bson:"label" yaml:"label"`
}

// Question is a single checklist question
type Question struct {
	ID           string       `json:"id" bson:"id" yaml:"id"`
	Text         string       `json:"text" bson:"text" yaml:"text"`
	ResponseType ResponseType `json:"responseType" bson:"responseType" yaml:"responseType"`
	Order        int          `json:"order" bson:"order" yaml:"order"`
	IsRequired   bool         `json:"isRequired" bson:"isRequired" yaml:"isRequired"`
	GroupID      string       `json:"groupId" bson:"groupId" yaml:"groupId"`

	// Evidence permissions, never requirements on their own
	AllowsPhoto bool `json:"allowsPhoto,omitempty" bson:"allowsPhoto,omitempty" yaml:"allowsPhoto,omitempty"`
	AllowsVideo bool `json:"allowsVideo,omitempty" bson:"allowsVideo,omitempty" yaml:"allowsVideo,omitempty"`
	AllowsAudio bool `json:"allowsAudio,omitempty" bson:"allowsAudio,omitempty" yaml:"allowsAudio,omitempty"`

	Options []Option `json:"options,omitempty" bson:"options,omitempty" yaml:"options,omitempty"` // multiple_choice only
	Weight  *float64 `json:"weight,omitempty" bson:"weight,omitempty" yaml:"weight,omitempty"`    // nil means DefaultWeight

	// Conditional activation
	ParentID       string `json:"parentId,omitempty" bson:"parentId,omitempty" yaml:"parentId,omitempty"`
	ConditionValue string `json:"conditionValue,omitempty" bson:"conditionValue,omitempty" yaml:"conditionValue,omitempty"`

	// Sub-checklist composition
	HasSubChecklist       bool   `json:"hasSubChecklist,omitempty" bson:"hasSubChecklist,omitempty" yaml:"hasSubChecklist,omitempty"`
	SubChecklistID        string `json:"subChecklistId,omitempty" bson:"subChecklistId,omitempty" yaml:"subChecklistId,omitempty"`
	SubChecklistCondition string `json:"subChecklistCondition,omitempty" bson:"subChecklistCondition,omitempty" yaml:"subChecklistCondition,omitempty"` // empty: any answer unlocks

	// Compliance policy
	InvertCompliance bool   `json:"invertCompliance,omitempty" bson:"invertCompliance,omitempty" yaml:"invertCompliance,omitempty"` // yes_no: "no" passes
	ComplianceRule   string `json:"complianceRule,omitempty" bson:"complianceRule,omitempty" yaml:"complianceRule,omitempty"`       // CEL expression over value
}

// EffectiveWeight returns the scoring weight, applying the default
func (q *Question) EffectiveWeight() float64 {
	if q.Weight == nil {
		return DefaultWeight
	}
	return *q.Weight
}

// AllowsEvidence reports whether any kind of media may be attached
func (q *Question) AllowsEvidence() bool {
	return q.AllowsPhoto || q.AllowsVideo || q.AllowsAudio ||
		q.ResponseType == ResponsePhoto || q.ResponseType == ResponseSignature
}

// OptionByID looks up a multiple-choice option
func (q *Question) OptionByID(id string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// Group is an ordered container of questions
type Group struct {
	ID          string   `json:"id" bson:"id" yaml:"id"`
	Title       string   `json:"title" bson:"title" yaml:"title"`
	Order       int      `json:"order" bson:"order" yaml:"order"`
	QuestionIDs []string `json:"questionIds" bson:"questionIds" yaml:"questionIds"`
}

// Template is an authored, reusable checklist definition
type Template struct {
	ID                string         `json:"id" bson:"templateId" yaml:"id"`
	Title             string         `json:"title" bson:"title" yaml:"title"`
	Description       string         `json:"description,omitempty" bson:"description,omitempty" yaml:"description,omitempty"`
	Version           string         `json:"version,omitempty" bson:"version,omitempty" yaml:"version,omitempty"`
	Status            TemplateStatus `json:"status,omitempty" bson:"status,omitempty" yaml:"status,omitempty"`
	EvidenceMandatory bool           `json:"evidenceMandatory,omitempty" bson:"evidenceMandatory,omitempty" yaml:"evidenceMandatory,omitempty"`
	Groups            []Group        `json:"groups" bson:"groups" yaml:"groups"`
	Questions         []Question     `json:"questions" bson:"questions" yaml:"questions"`
	Fingerprint       string         `json:"fingerprint,omitempty" bson:"fingerprint,omitempty" yaml:"-"`
	CreatedAt         time.Time      `json:"createdAt" bson:"createdAt" yaml:"-"`
	UpdatedAt         time.Time      `json:"updatedAt" bson:"updatedAt" yaml:"-"`
	PublishedAt       *time.Time     `json:"publishedAt,omitempty" bson:"publishedAt,omitempty" yaml:"-"`
}

// QuestionByID returns the question with the given id, or nil
func (t *Template) QuestionByID(id string) *Question {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i]
		}
	}
	return nil
}

// Clone returns a deep copy so published snapshots cannot be mutated through a draft
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t
	if t.Groups != nil {
		out.Groups = make([]Group, len(t.Groups))
	}
	for i, g := range t.Groups {
		if g.QuestionIDs != nil {
			g.QuestionIDs = append(make([]string, 0, len(g.QuestionIDs)), g.QuestionIDs...)
		}
		out.Groups[i] = g
	}
	if t.Questions != nil {
		out.Questions = make([]Question, len(t.Questions))
	}
	for i, q := range t.Questions {
		if q.Options != nil {
			q.Options = append(make([]Option, 0, len(q.Options)), q.Options...)
		}
		if q.Weight != nil {
			w := *q.Weight
			q.Weight = &w
		}
		out.Questions[i] = q
	}
	if t.PublishedAt != nil {
		p := *t.PublishedAt
		out.PublishedAt = &p
	}
	return &out
}

// TemplateSummary is a lightweight listing entry
type TemplateSummary struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Version   string         `json:"version,omitempty"`
	Status    TemplateStatus `json:"status"`
	Questions int            `json:"questions"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
