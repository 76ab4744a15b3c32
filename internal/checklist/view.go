package checklist

import "fieldcheck/internal/model"

// Views returns the active questions in display order together with their
// current answers, for rendering.
func Views(g *Graph, st *model.Execution) []model.QuestionView {
	ids := g.ActiveQuestions(st.Answers)
	views := make([]model.QuestionView, 0, len(ids))
	for _, id := range ids {
		q := g.Question(id)
		view := model.QuestionView{Question: *q, GroupTitle: g.GroupTitle(q.GroupID)}
		if a, ok := st.Answers[id]; ok {
			a := cloneAnswer(a)
			view.Answer = &a
		}
		views = append(views, view)
	}
	return views
}
