package checklist

import (
	"slices"
	"sort"

	"fieldcheck/internal/model"
)

// Conflict is a question answered differently on both sides since the common base
type Conflict struct {
	QuestionID string       `json:"questionId"`
	Local      model.Answer `json:"local"`
	Remote     model.Answer `json:"remote"`
	Kept       string       `json:"kept"` // "local" or "remote"
}

// Reconcile merges two copies of one execution that diverged from base.
// Each question keeps the later write (answeredAt, then seq, then remote),
// and every question changed on both sides to different values is reported
// so the sync layer can surface it instead of silently losing a write.
func Reconcile(base, local, remote *model.Execution) (*model.Execution, []Conflict) {
	merged := local.Clone()
	if remote.Seq > merged.Seq {
		merged.Seq = remote.Seq
	}
	if remote.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = remote.UpdatedAt
	}
	if remote.IsCompleted() && !merged.IsCompleted() {
		merged.Status = remote.Status
		merged.CompletedAt = remote.CompletedAt
	}
	for qid, execID := range remote.SubExecutions {
		if _, ok := merged.SubExecutions[qid]; !ok {
			if merged.SubExecutions == nil {
				merged.SubExecutions = make(map[string]string)
			}
			merged.SubExecutions[qid] = execID
		}
	}

	var baseAnswers map[string]model.Answer
	if base != nil {
		baseAnswers = base.Answers
	}

	var conflicts []Conflict
	for _, qid := range unionKeys(local.Answers, remote.Answers) {
		b, inBase := baseAnswers[qid]
		l, inLocal := local.Answers[qid]
		r, inRemote := remote.Answers[qid]

		localChanged := inLocal && (!inBase || !sameAnswer(b, l))
		remoteChanged := inRemote && (!inBase || !sameAnswer(b, r))

		switch {
		case !remoteChanged:
			continue
		case !localChanged:
			merged.Answers[qid] = cloneAnswer(r)
		case sameAnswer(l, r):
			if laterWrite(r, l) {
				merged.Answers[qid] = cloneAnswer(r)
			}
		default:
			kept := "local"
			if laterWrite(r, l) {
				kept = "remote"
				merged.Answers[qid] = cloneAnswer(r)
			}
			conflicts = append(conflicts, Conflict{QuestionID: qid, Local: l, Remote: r, Kept: kept})
		}
	}
	return merged, conflicts
}

// laterWrite reports whether a was written after b; ties go to a
func laterWrite(a, b model.Answer) bool {
	if !a.AnsweredAt.Equal(b.AnsweredAt) {
		return a.AnsweredAt.After(b.AnsweredAt)
	}
	return a.Seq >= b.Seq
}

func sameAnswer(a, b model.Answer) bool {
	if a.Value.Kind != b.Value.Kind || Canonical(a.Value) != Canonical(b.Value) {
		return false
	}
	x := append([]string(nil), a.MediaRefs...)
	y := append([]string(nil), b.MediaRefs...)
	sort.Strings(x)
	sort.Strings(y)
	return slices.Equal(x, y)
}

func cloneAnswer(a model.Answer) model.Answer {
	a.MediaRefs = append([]string(nil), a.MediaRefs...)
	return a
}

func unionKeys(a, b map[string]model.Answer) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
