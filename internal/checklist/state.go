package checklist

import (
	"fmt"
	"time"

	"fieldcheck/internal/model"
)

// Submission is one user answer arriving from the interactive layer
type Submission struct {
	QuestionID string
	Value      any
	MediaRefs  []string
	AnsweredBy string
}

// Transition reports how a submission changed the set of questions in play
type Transition struct {
	Activated            []string
	Deactivated          []string
	SubChecklistUnlocked string // template id of a sub-checklist that became reachable
}

// SubChecklistLink is a reachable sub-checklist of an execution
type SubChecklistLink struct {
	QuestionID  string `json:"questionId"`
	TemplateID  string `json:"templateId"`
	ExecutionID string `json:"executionId,omitempty"` // empty until created externally
	Required    bool   `json:"required"`
}

// NewExecution creates an empty execution bound to the template version the
// graph was built from. Templates that fail validation are never bound.
func NewExecution(id string, t *model.Template, g *Graph, now time.Time) (*model.Execution, error) {
	if err := Validate(t).Err(); err != nil {
		return nil, err
	}
	fp, err := Fingerprint(t)
	if err != nil {
		return nil, err
	}
	if fp != g.Fingerprint() {
		return nil, ErrTemplateMismatch
	}
	return &model.Execution{
		ID:              id,
		TemplateID:      t.ID,
		TemplateVersion: t.Version,
		Fingerprint:     fp,
		Status:          model.ExecutionInProgress,
		Answers:         make(map[string]model.Answer),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Submit validates and records one answer. On success it returns a new
// execution and leaves st untouched; on failure it returns an *AnswerError
// and no state. Answers of questions that become inactive are retained but
// no longer counted, so toggling a controlling answer back restores them.
func Submit(t *model.Template, g *Graph, st *model.Execution, sub Submission, now time.Time) (*model.Execution, Transition, error) {
	id := sub.QuestionID
	if st.IsCompleted() {
		return nil, Transition{}, &AnswerError{QuestionID: id, Err: ErrExecutionCompleted}
	}
	if st.Fingerprint != g.Fingerprint() {
		return nil, Transition{}, &AnswerError{QuestionID: id, Err: ErrTemplateMismatch}
	}
	q := g.Question(id)
	if q == nil {
		return nil, Transition{}, &AnswerError{QuestionID: id, Err: ErrUnknownQuestion}
	}
	if !g.IsActive(id, st.Answers) {
		return nil, Transition{}, &AnswerError{QuestionID: id, Err: ErrInactiveQuestion}
	}

	value, err := ParseValue(q, sub.Value)
	if err != nil {
		return nil, Transition{}, rejectf(id, ErrTypeMismatch, "%v", err)
	}
	refs := normalizeRefs(sub.MediaRefs)
	if len(refs) > 0 && !q.AllowsEvidence() {
		return nil, Transition{}, &AnswerError{QuestionID: id, Err: ErrEvidenceNotAllowed}
	}
	if len(refs) == 0 && demandsEvidence(t, q) {
		return nil, Transition{}, rejectf(id, ErrMissingEvidence, "attach at least one %s", evidenceKinds(q))
	}

	descendants := g.Descendants(id)
	before := activeAmong(g, descendants, st.Answers)

	next := st.Clone()
	next.Seq++
	next.Answers[id] = model.Answer{
		Value:      value,
		MediaRefs:  refs,
		AnsweredAt: now,
		AnsweredBy: sub.AnsweredBy,
		Seq:        next.Seq,
	}
	next.UpdatedAt = now

	var tr Transition
	after := activeAmong(g, descendants, next.Answers)
	for _, d := range descendants {
		switch {
		case after[d] && !before[d]:
			tr.Activated = append(tr.Activated, d)
		case before[d] && !after[d]:
			tr.Deactivated = append(tr.Deactivated, d)
		}
	}
	if SubChecklistUnlocked(q, next.Answers) && !SubChecklistUnlocked(q, st.Answers) {
		tr.SubChecklistUnlocked = q.SubChecklistID
	}
	return next, tr, nil
}

func activeAmong(g *Graph, ids []string, answers map[string]model.Answer) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = g.IsActive(id, answers)
	}
	return out
}

// demandsEvidence: photo questions are answered by their media; other
// questions need evidence only when required, permitted to carry media, and
// the template marks evidence as mandatory.
func demandsEvidence(t *model.Template, q *model.Question) bool {
	if q.ResponseType == model.ResponsePhoto {
		return true
	}
	return q.IsRequired && t.EvidenceMandatory && (q.AllowsPhoto || q.AllowsVideo || q.AllowsAudio)
}

func evidenceKinds(q *model.Question) string {
	if q.ResponseType == model.ResponsePhoto {
		return "photo"
	}
	var kinds []string
	if q.AllowsPhoto {
		kinds = append(kinds, "photo")
	}
	if q.AllowsVideo {
		kinds = append(kinds, "video")
	}
	if q.AllowsAudio {
		kinds = append(kinds, "audio")
	}
	switch len(kinds) {
	case 1:
		return kinds[0]
	case 2:
		return kinds[0] + " or " + kinds[1]
	}
	return "photo, video or audio"
}

// SubChecklistUnlocked reports whether q's answer makes its sub-checklist reachable
func SubChecklistUnlocked(q *model.Question, answers map[string]model.Answer) bool {
	if !q.HasSubChecklist || q.SubChecklistID == "" {
		return false
	}
	a, ok := answers[q.ID]
	if !ok {
		return false
	}
	if q.SubChecklistCondition == "" {
		return true
	}
	cond, err := ParseCondition(q, q.SubChecklistCondition)
	return err == nil && Canonical(a.Value) == cond
}

// UnlockedSubChecklists lists the sub-checklists reachable from active questions
func UnlockedSubChecklists(g *Graph, st *model.Execution) []SubChecklistLink {
	var links []SubChecklistLink
	for _, id := range g.ActiveQuestions(st.Answers) {
		q := g.Question(id)
		if !SubChecklistUnlocked(q, st.Answers) {
			continue
		}
		links = append(links, SubChecklistLink{
			QuestionID:  id,
			TemplateID:  q.SubChecklistID,
			ExecutionID: st.SubExecutions[id],
			Required:    q.IsRequired,
		})
	}
	return links
}

// LinkSubExecution records the externally created execution of a reachable sub-checklist
func LinkSubExecution(g *Graph, st *model.Execution, questionID, subExecutionID string, now time.Time) (*model.Execution, error) {
	if st.IsCompleted() {
		return nil, &AnswerError{QuestionID: questionID, Err: ErrExecutionCompleted}
	}
	q := g.Question(questionID)
	if q == nil {
		return nil, &AnswerError{QuestionID: questionID, Err: ErrUnknownQuestion}
	}
	if !g.IsActive(questionID, st.Answers) {
		return nil, &AnswerError{QuestionID: questionID, Err: ErrInactiveQuestion}
	}
	if !SubChecklistUnlocked(q, st.Answers) {
		return nil, &AnswerError{QuestionID: questionID, Err: ErrSubChecklistLocked}
	}
	if existing, ok := st.SubExecutions[questionID]; ok && existing != subExecutionID {
		return nil, rejectf(questionID, ErrSubChecklistLocked, "already linked to execution %s", existing)
	}
	next := st.Clone()
	if next.SubExecutions == nil {
		next.SubExecutions = make(map[string]string)
	}
	next.SubExecutions[questionID] = subExecutionID
	next.Seq++
	next.UpdatedAt = now
	return next, nil
}

// Complete moves the execution into its terminal status. Like every other
// mutation it advances Seq, which storage uses for compare-and-swap.
func Complete(st *model.Execution, now time.Time) (*model.Execution, error) {
	if st.IsCompleted() {
		return nil, fmt.Errorf("execution %s: %w", st.ID, ErrExecutionCompleted)
	}
	next := st.Clone()
	next.Status = model.ExecutionCompleted
	next.CompletedAt = &now
	next.Seq++
	next.UpdatedAt = now
	return next, nil
}
