package grading

import (
	"encoding/json"
	"errors"
	"strings"
)

type scored interface {
	verdict() Verdict
}

func (r Relevance) verdict() Verdict     { return r.Score }
func (h Hallucination) verdict() Verdict { return h.Score }
func (a Answer) verdict() Verdict        { return a.Score }

// Decode parses grader output into T. Anything without a valid score is a
// *SchemaError; nothing is defaulted.
func Decode[T scored](operation, raw string) (T, error) {
	var out T
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return out, &SchemaError{Operation: operation, Raw: raw, Reason: "empty output"}
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			se.Operation = operation
			se.Raw = raw
			return out, se
		}
		return out, &SchemaError{Operation: operation, Raw: raw, Reason: "output is not a json object: " + err.Error()}
	}
	if out.verdict() == "" {
		return out, &SchemaError{Operation: operation, Raw: raw, Reason: "missing score field"}
	}
	return out, nil
}

// AnswerText unwraps {"answer": "..."} generator output. Plain text passes
// through unchanged.
func AnswerText(raw string) string {
	body := stripCodeFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(body, "{") {
		return strings.TrimSpace(raw)
	}
	var payload struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || len(payload.Answer) == 0 {
		return strings.TrimSpace(raw)
	}
	var s string
	if err := json.Unmarshal(payload.Answer, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(payload.Answer))
}

// CleanQuestion trims rewriter chatter such as quotes or a leading label.
func CleanQuestion(raw, fallback string) string {
	q := strings.TrimSpace(stripCodeFence(strings.TrimSpace(raw)))
	if strings.HasPrefix(q, "{") {
		var payload struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal([]byte(q), &payload); err == nil {
			q = payload.Question
		}
	}
	if i := strings.Index(q, "\n"); i >= 0 {
		q = q[:i]
	}
	for _, p := range []string{"Improved question:", "Question:"} {
		if len(q) >= len(p) && strings.EqualFold(q[:len(p)], p) {
			q = q[len(p):]
		}
	}
	q = strings.Trim(strings.TrimSpace(q), "\"'`")
	if q == "" {
		return fallback
	}
	return q
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
