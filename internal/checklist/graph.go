package checklist

import (
	"fmt"
	"sort"

	"fieldcheck/internal/model"
)

// edge is a conditional dependency of a question on its parent
type edge struct {
	parent    string
	condition string // canonical form
}

// Graph is the conditional structure of one template version. It is built
// once per fingerprint and never changes afterwards, so concurrent readers
// need no locking.
type Graph struct {
	templateID  string
	fingerprint string
	questions   map[string]*model.Question
	groupTitles map[string]string
	edges       map[string]edge     // child -> parent
	children    map[string][]string // parent -> children, display order
	order       []string
}

// Build indexes the template's conditional links. It fails with a
// *CycleError when questions depend on each other, and with a
// *ValidationError when a parent or condition does not resolve.
func Build(t *model.Template) (*Graph, error) {
	snapshot := t.Clone()
	fp, err := Fingerprint(snapshot)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		templateID:  snapshot.ID,
		fingerprint: fp,
		questions:   make(map[string]*model.Question, len(snapshot.Questions)),
		groupTitles: make(map[string]string, len(snapshot.Groups)),
		edges:       make(map[string]edge),
		children:    make(map[string][]string),
	}

	var violations []Violation
	ids := make([]string, 0, len(snapshot.Questions))
	for i := range snapshot.Questions {
		q := &snapshot.Questions[i]
		if _, dup := g.questions[q.ID]; dup {
			violations = append(violations, Violation{EntityID: q.ID, Rule: RuleDuplicateQuestionID, Message: "question id is used more than once"})
			continue
		}
		g.questions[q.ID] = q
		ids = append(ids, q.ID)
	}
	for _, grp := range snapshot.Groups {
		g.groupTitles[grp.ID] = grp.Title
	}
	g.order = displayOrder(snapshot, g.questions)

	parents := make(map[string]string)
	for _, id := range ids {
		q := g.questions[id]
		if q.ParentID == "" {
			continue
		}
		parent, ok := g.questions[q.ParentID]
		if !ok {
			violations = append(violations, Violation{EntityID: id, Rule: RuleUnknownParent, Message: fmt.Sprintf("parent question %q does not exist", q.ParentID)})
			continue
		}
		if q.ConditionValue == "" {
			violations = append(violations, Violation{EntityID: id, Rule: RuleMissingCondition, Message: fmt.Sprintf("parent %q is set without a condition value", q.ParentID)})
			continue
		}
		parents[id] = q.ParentID
		cond, err := ParseCondition(parent, q.ConditionValue)
		if err != nil {
			violations = append(violations, Violation{EntityID: id, Rule: RuleInvalidCondition, Message: err.Error()})
			continue
		}
		g.edges[id] = edge{parent: parent.ID, condition: cond}
	}

	// cycles take precedence: a cyclic template is rejected as such even if
	// one of its conditions is also malformed
	if cycles := detectCycles(ids, parents); len(cycles) > 0 {
		return nil, &CycleError{IDs: cycles[0]}
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	for _, id := range g.order {
		if e, ok := g.edges[id]; ok {
			g.children[e.parent] = append(g.children[e.parent], id)
		}
	}
	return g, nil
}

// displayOrder sorts questions by group order then question order. Questions
// not listed by any group are appended in template order.
func displayOrder(t *model.Template, questions map[string]*model.Question) []string {
	groups := make([]model.Group, len(t.Groups))
	copy(groups, t.Groups)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Order < groups[j].Order })

	seen := make(map[string]bool, len(questions))
	order := make([]string, 0, len(questions))
	for _, grp := range groups {
		var listed []*model.Question
		for _, qid := range grp.QuestionIDs {
			if q, ok := questions[qid]; ok && !seen[qid] {
				seen[qid] = true
				listed = append(listed, q)
			}
		}
		sort.SliceStable(listed, func(i, j int) bool { return listed[i].Order < listed[j].Order })
		for _, q := range listed {
			order = append(order, q.ID)
		}
	}
	for i := range t.Questions {
		id := t.Questions[i].ID
		if _, ok := questions[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	return order
}

const (
	unvisited = iota
	visiting
	visited
)

// detectCycles walks parent links depth-first with three colors. Every edge
// into a node still marked visiting closes a cycle; each cycle is returned
// once, in dependency order starting from the first node reached.
func detectCycles(ids []string, parents map[string]string) [][]string {
	color := make(map[string]int, len(ids))
	var cycles [][]string
	for _, start := range ids {
		if color[start] != unvisited {
			continue
		}
		var stack []string
		node := start
		for {
			color[node] = visiting
			stack = append(stack, node)
			parent, ok := parents[node]
			if !ok || color[parent] == visited {
				break
			}
			if color[parent] == visiting {
				for i, id := range stack {
					if id == parent {
						cycles = append(cycles, append([]string(nil), stack[i:]...))
						break
					}
				}
				break
			}
			node = parent
		}
		for _, id := range stack {
			color[id] = visited
		}
	}
	return cycles
}

// TemplateID returns the id of the template the graph was built from
func (g *Graph) TemplateID() string { return g.templateID }

// Fingerprint identifies the template version the graph was built from
func (g *Graph) Fingerprint() string { return g.fingerprint }

// Question returns the indexed question, or nil
func (g *Graph) Question(id string) *model.Question { return g.questions[id] }

// GroupTitle returns the title of a group
func (g *Graph) GroupTitle(groupID string) string { return g.groupTitles[groupID] }

// Order returns every question id in display order
func (g *Graph) Order() []string { return append([]string(nil), g.order...) }

// Parent returns the controlling question and its canonical condition
func (g *Graph) Parent(id string) (parentID, condition string, ok bool) {
	e, ok := g.edges[id]
	return e.parent, e.condition, ok
}

// Children returns the questions directly conditioned on id
func (g *Graph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

// Descendants returns every question transitively conditioned on id
func (g *Graph) Descendants(id string) []string {
	var out []string
	queue := append([]string(nil), g.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, g.children[next]...)
	}
	return out
}

// IsActive reports whether a question is currently in play. A question with
// no parent is always active; otherwise its parent must be active and
// answered with a value equal to the condition. Unknown ids are inactive.
func (g *Graph) IsActive(id string, answers map[string]model.Answer) bool {
	if _, ok := g.questions[id]; !ok {
		return false
	}
	for {
		e, ok := g.edges[id]
		if !ok {
			return true
		}
		a, answered := answers[e.parent]
		if !answered || Canonical(a.Value) != e.condition {
			return false
		}
		id = e.parent
	}
}

// ActiveSet evaluates every question against the answers
func (g *Graph) ActiveSet(answers map[string]model.Answer) map[string]bool {
	active := make(map[string]bool, len(g.order))
	for _, id := range g.order {
		active[id] = g.IsActive(id, answers)
	}
	return active
}

// ActiveQuestions returns the active question ids in display order
func (g *Graph) ActiveQuestions(answers map[string]model.Answer) []string {
	var out []string
	for _, id := range g.order {
		if g.IsActive(id, answers) {
			out = append(out, id)
		}
	}
	return out
}
