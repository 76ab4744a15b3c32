package checklist

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fieldcheck/internal/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	TimeLayout = "15:04"
	DateLayout = "2006-01-02"
)

// ParseValue converts a loosely typed input into the typed value for q.
// This is the only place raw answer payloads are interpreted.
func ParseValue(q *model.Question, raw any) (model.Value, error) {
	return parseValue(q, raw, true)
}

func parseValue(q *model.Question, raw any, allowLabel bool) (model.Value, error) {
	v := model.Value{Kind: q.ResponseType}
	switch q.ResponseType {
	case model.ResponseYesNo:
		b, err := parseYesNo(raw)
		if err != nil {
			return model.Value{}, err
		}
		v.Bool = b

	case model.ResponseMultipleChoice:
		s, ok := raw.(string)
		if !ok {
			return model.Value{}, fmt.Errorf("expected option id, got %T", raw)
		}
		id, err := resolveOption(q, strings.TrimSpace(s), allowLabel)
		if err != nil {
			return model.Value{}, err
		}
		v.OptionID = id

	case model.ResponseNumeric:
		n, err := parseNumber(raw)
		if err != nil {
			return model.Value{}, err
		}
		v.Number = n

	case model.ResponseText:
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return model.Value{}, fmt.Errorf("expected non-empty text")
		}
		v.Text = strings.TrimSpace(s)

	case model.ResponseTime:
		s, ok := raw.(string)
		if !ok {
			return model.Value{}, fmt.Errorf("expected time as HH:MM, got %T", raw)
		}
		t, err := parseClock(strings.TrimSpace(s))
		if err != nil {
			return model.Value{}, err
		}
		v.Time = t.Format(TimeLayout)

	case model.ResponseDate:
		s, ok := raw.(string)
		if !ok {
			return model.Value{}, fmt.Errorf("expected date as YYYY-MM-DD, got %T", raw)
		}
		d, err := time.Parse(DateLayout, strings.TrimSpace(s))
		if err != nil {
			return model.Value{}, fmt.Errorf("expected date as YYYY-MM-DD: %q", s)
		}
		v.Date = d.Format(DateLayout)

	case model.ResponsePhoto:
		// the photo itself travels as evidence; the value is an optional caption
		switch c := raw.(type) {
		case nil:
		case string:
			v.Text = strings.TrimSpace(c)
		default:
			return model.Value{}, fmt.Errorf("expected caption text, got %T", raw)
		}

	case model.ResponseSignature:
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return model.Value{}, fmt.Errorf("expected signature reference")
		}
		v.Text = strings.TrimSpace(s)

	default:
		return model.Value{}, fmt.Errorf("unknown response type %q", q.ResponseType)
	}
	return v, nil
}

func parseYesNo(raw any) (bool, error) {
	switch b := raw.(type) {
	case bool:
		return b, nil
	case string:
		switch NormalizeText(b) {
		case "yes", "true":
			return true, nil
		case "no", "false":
			return false, nil
		}
		return false, fmt.Errorf("expected yes or no, got %q", b)
	}
	return false, fmt.Errorf("expected yes or no, got %T", raw)
}

func parseNumber(raw any) (float64, error) {
	var n float64
	switch x := raw.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected a number: %q", x)
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number: %q", x)
		}
		n = f
	default:
		return 0, fmt.Errorf("expected a number, got %T", raw)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("expected a finite number")
	}
	return n, nil
}

func parseClock(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("expected time as HH:MM: %q", s)
}

// resolveOption matches an option by id, falling back to a unique label match
func resolveOption(q *model.Question, s string, allowLabel bool) (string, error) {
	if _, ok := q.OptionByID(s); ok {
		return s, nil
	}
	if allowLabel {
		match := ""
		want := NormalizeText(s)
		for _, opt := range q.Options {
			if NormalizeText(opt.Label) == want {
				if match != "" {
					return "", fmt.Errorf("option label %q is ambiguous", s)
				}
				match = opt.ID
			}
		}
		if match != "" {
			return match, nil
		}
	}
	return "", fmt.Errorf("no option %q", s)
}

// Canonical returns the normalized representation used for equality
func Canonical(v model.Value) string {
	switch v.Kind {
	case model.ResponseYesNo:
		if v.Bool {
			return "yes"
		}
		return "no"
	case model.ResponseMultipleChoice:
		return v.OptionID
	case model.ResponseNumeric:
		n := v.Number
		if n == 0 {
			n = 0 // -0 compares equal to 0
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	case model.ResponseTime:
		return v.Time
	case model.ResponseDate:
		return v.Date
	default:
		return NormalizeText(v.Text)
	}
}

// ParseCondition validates a condition written against q's response type and
// returns its canonical form. Multiple-choice conditions must name an option id.
func ParseCondition(q *model.Question, cond string) (string, error) {
	if q.ResponseType == model.ResponsePhoto || q.ResponseType == model.ResponseSignature {
		return "", fmt.Errorf("conditions on %s answers are not supported", q.ResponseType)
	}
	v, err := parseValue(q, cond, false)
	if err != nil {
		return "", err
	}
	return Canonical(v), nil
}

// NormalizeText folds case, applies NFC and collapses whitespace
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

func normalizeRefs(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
