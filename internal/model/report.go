package model

import "time"

// InspectionReport is the record of a completed inspection (frozen on completion)
type InspectionReport struct {
	ExecutionID     string    `json:"executionId" bson:"executionId"`
	TemplateID      string    `json:"templateId" bson:"templateId"`
	TemplateTitle   string    `json:"templateTitle" bson:"templateTitle"`
	TemplateVersion string    `json:"templateVersion" bson:"templateVersion"`
	CompletedAt     time.Time `json:"completedAt" bson:"completedAt"`

	Progress Progress `json:"progress" bson:"progress"`

	// Active questions grouped in display order
	Sections []ReportSection `json:"sections" bson:"sections"`

	// Answered questions that failed their compliance policy
	NonCompliant []string `json:"nonCompliant,omitempty" bson:"nonCompliant,omitempty"`

	// Sub-checklist executions by question id
	SubExecutions map[string]string `json:"subExecutions,omitempty" bson:"subExecutions,omitempty"`
}

// ReportSection is one group of a report
type ReportSection struct {
	Title string       `json:"title" bson:"title"`
	Items []ReportItem `json:"items" bson:"items"`
}

// ReportItem is one question with its answer as shown to a reader
type ReportItem struct {
	QuestionID   string       `json:"questionId" bson:"questionId"`
	Text         string       `json:"text" bson:"text"`
	ResponseType ResponseType `json:"responseType" bson:"responseType"`
	Required     bool         `json:"required" bson:"required"`
	Answered     bool         `json:"answered" bson:"answered"`
	Display      string       `json:"display,omitempty" bson:"display,omitempty"`
	MediaRefs    []string     `json:"mediaRefs,omitempty" bson:"mediaRefs,omitempty"`
	Compliant    *bool        `json:"compliant,omitempty" bson:"compliant,omitempty"` // nil when unanswered
}
