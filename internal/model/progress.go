package model

// Progress is the aggregate completion and compliance of an execution
type Progress struct {
	CompletionPct       float64  `json:"completionPct"`
	CompliancePct       float64  `json:"compliancePct"`
	Active              int      `json:"active"`
	Answered            int      `json:"answered"`
	RequiredOutstanding int      `json:"requiredOutstanding"`
	WeightEarned        float64  `json:"weightEarned"`
	WeightPossible      float64  `json:"weightPossible"`
	Pending             []string `json:"pending,omitempty"` // active questions still without a counted answer
}

// IsComplete reports whether every active question has been answered
func (p Progress) IsComplete() bool {
	return p.Answered == p.Active
}

// QuestionView is the presentation-facing view of an active question
type QuestionView struct {
	Question
	GroupTitle string  `json:"groupTitle"`
	Answer     *Answer `json:"answer,omitempty"`
}

// SubmitAnswerRequest is the request body for answering a question
type SubmitAnswerRequest struct {
	QuestionID string   `json:"questionId"`
	Value      any      `json:"value"`
	MediaRefs  []string `json:"mediaRefs,omitempty"`
	AnsweredBy string   `json:"answeredBy,omitempty"`
}

// SubmitAnswerResponse is returned after an accepted submission
type SubmitAnswerResponse struct {
	Answer               Answer   `json:"answer"`
	Progress             Progress `json:"progress"`
	Activated            []string `json:"activated,omitempty"`
	Deactivated          []string `json:"deactivated,omitempty"`
	SubChecklistUnlocked string   `json:"subChecklistUnlocked,omitempty"`
}
