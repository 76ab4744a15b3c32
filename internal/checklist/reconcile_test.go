package checklist

import (
	"testing"
	"time"

	"fieldcheck/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yesNoAnswer(v bool, at time.Time, seq uint64) model.Answer {
	return model.Answer{Value: model.Value{Kind: model.ResponseYesNo, Bool: v}, AnsweredAt: at, Seq: seq}
}

func textAnswer(s string, at time.Time, seq uint64) model.Answer {
	return model.Answer{Value: model.Value{Kind: model.ResponseText, Text: s}, AnsweredAt: at, Seq: seq}
}

func baseExecution() *model.Execution {
	return &model.Execution{
		ID:        "exec-1",
		Status:    model.ExecutionInProgress,
		Answers:   map[string]model.Answer{"q1": yesNoAnswer(true, now, 1)},
		Seq:       1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestReconcile_DisjointChanges(t *testing.T) {
	base := baseExecution()
	local := base.Clone()
	local.Answers["q2"] = textAnswer("east stairs", now.Add(time.Minute), 2)
	local.Seq = 2
	remote := base.Clone()
	remote.Answers["q3"] = textAnswer("west door", now.Add(2*time.Minute), 2)
	remote.Seq = 2
	remote.UpdatedAt = now.Add(2 * time.Minute)

	merged, conflicts := Reconcile(base, local, remote)
	assert.Empty(t, conflicts)
	assert.Len(t, merged.Answers, 3)
	assert.Equal(t, "east stairs", merged.Answers["q2"].Value.Text)
	assert.Equal(t, "west door", merged.Answers["q3"].Value.Text)
	assert.Equal(t, uint64(2), merged.Seq)
	assert.Equal(t, now.Add(2*time.Minute), merged.UpdatedAt)

	assert.NotContains(t, local.Answers, "q3", "inputs are not modified")
}

func TestReconcile_ConflictKeepsLaterWrite(t *testing.T) {
	base := baseExecution()

	local := base.Clone()
	local.Answers["q1"] = yesNoAnswer(false, now.Add(time.Minute), 2)
	remote := base.Clone()
	remote.Answers["q1"] = model.Answer{
		Value:      model.Value{Kind: model.ResponseYesNo, Bool: false},
		MediaRefs:  []string{"sha256:9"},
		AnsweredAt: now.Add(2 * time.Minute),
		Seq:        2,
	}

	merged, conflicts := Reconcile(base, local, remote)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "q1", conflicts[0].QuestionID)
	assert.Equal(t, "remote", conflicts[0].Kept)
	assert.Equal(t, []string{"sha256:9"}, merged.Answers["q1"].MediaRefs)

	// the older side wins nothing
	merged, conflicts = Reconcile(base, remote, local)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "local", conflicts[0].Kept)
	assert.Equal(t, []string{"sha256:9"}, merged.Answers["q1"].MediaRefs)
}

func TestReconcile_TieGoesToRemote(t *testing.T) {
	base := baseExecution()
	at := now.Add(time.Minute)

	local := base.Clone()
	local.Answers["q2"] = textAnswer("left", at, 3)
	remote := base.Clone()
	remote.Answers["q2"] = textAnswer("right", at, 3)

	merged, conflicts := Reconcile(base, local, remote)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "remote", conflicts[0].Kept)
	assert.Equal(t, "right", merged.Answers["q2"].Value.Text)

	remote.Answers["q2"] = textAnswer("right", at, 2)
	merged, conflicts = Reconcile(base, local, remote)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "local", conflicts[0].Kept, "higher seq wins at equal time")
	assert.Equal(t, "left", merged.Answers["q2"].Value.Text)
}

func TestReconcile_SameValueIsNotAConflict(t *testing.T) {
	base := baseExecution()
	local := base.Clone()
	local.Answers["q2"] = textAnswer("Loading Dock", now.Add(time.Minute), 2)
	remote := base.Clone()
	remote.Answers["q2"] = textAnswer("loading  dock", now.Add(3*time.Minute), 2)

	merged, conflicts := Reconcile(base, local, remote)
	assert.Empty(t, conflicts)
	assert.Equal(t, now.Add(3*time.Minute), merged.Answers["q2"].AnsweredAt)
}

func TestReconcile_StatusAndLinks(t *testing.T) {
	base := baseExecution()
	local := base.Clone()
	local.SubExecutions = map[string]string{"q1": "exec-a"}
	remote := base.Clone()
	done := now.Add(time.Hour)
	remote.Status = model.ExecutionCompleted
	remote.CompletedAt = &done
	remote.SubExecutions = map[string]string{"q1": "exec-b", "q4": "exec-c"}

	merged, conflicts := Reconcile(base, local, remote)
	assert.Empty(t, conflicts)
	assert.True(t, merged.IsCompleted())
	assert.Equal(t, &done, merged.CompletedAt)
	assert.Equal(t, map[string]string{"q1": "exec-a", "q4": "exec-c"}, merged.SubExecutions)
}

func TestReconcile_WithoutBase(t *testing.T) {
	local := baseExecution()
	remote := baseExecution()
	remote.Answers["q1"] = yesNoAnswer(false, now.Add(time.Second), 1)

	merged, conflicts := Reconcile(nil, local, remote)
	require.Len(t, conflicts, 1)
	assert.False(t, merged.Answers["q1"].Value.Bool)
}
