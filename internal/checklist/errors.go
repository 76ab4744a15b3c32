package checklist

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStructuralViolation = errors.New("template structure is invalid")
	ErrCycle               = errors.New("conditional cycle")
	ErrInactiveQuestion    = errors.New("question is not active")
	ErrTypeMismatch        = errors.New("value does not match response type")
	ErrMissingEvidence     = errors.New("required evidence is missing")
	ErrNotFound            = errors.New("not found")

	ErrUnknownQuestion    = errors.New("unknown question")
	ErrEvidenceNotAllowed = errors.New("question does not accept evidence")
	ErrExecutionCompleted = errors.New("execution is completed")
	ErrSubChecklistLocked = errors.New("sub-checklist is not unlocked")
	ErrTemplateMismatch   = errors.New("execution is bound to a different template version")
	ErrNotPublished       = errors.New("template has no published version")
)

// ValidationError carries every violation found in a template
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("%v: %s", ErrStructuralViolation, e.Violations[0])
	}
	return fmt.Sprintf("%v: %d violations, first: %s", ErrStructuralViolation, len(e.Violations), e.Violations[0])
}

func (e *ValidationError) Unwrap() error { return ErrStructuralViolation }

// CycleError names the questions that form a conditional cycle, in cycle order
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	if len(e.IDs) == 0 {
		return ErrCycle.Error()
	}
	path := append(append([]string(nil), e.IDs...), e.IDs[0])
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// AnswerError is a rejected submission. The execution is left unchanged.
type AnswerError struct {
	QuestionID string
	Err        error
	Detail     string
}

func (e *AnswerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("question %s: %v", e.QuestionID, e.Err)
	}
	return fmt.Sprintf("question %s: %v: %s", e.QuestionID, e.Err, e.Detail)
}

func (e *AnswerError) Unwrap() error { return e.Err }

func rejectf(questionID string, err error, format string, args ...any) *AnswerError {
	return &AnswerError{QuestionID: questionID, Err: err, Detail: fmt.Sprintf(format, args...)}
}
