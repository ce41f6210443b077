package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Verdict string

const (
	Yes Verdict = "yes"
	No  Verdict = "no"
)

func (v Verdict) Yes() bool { return v == Yes }

// SchemaError reports grader output that does not carry a usable score.
type SchemaError struct {
	Operation string
	Raw       string
	Reason    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("grading schema error in %s: %s (raw=%q)", e.Operation, e.Reason, truncate(e.Raw, 200))
}

// UnmarshalJSON accepts "yes"/"no" either bare or as the only element of a
// list. Case and surrounding whitespace are ignored.
func (v *Verdict) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return &SchemaError{Raw: string(b), Reason: "score list is not valid json"}
		}
		if len(list) != 1 {
			return &SchemaError{Raw: string(b), Reason: fmt.Sprintf("score list has %d elements", len(list))}
		}
		b = bytes.TrimSpace(list[0])
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &SchemaError{Raw: string(b), Reason: "score is not a string"}
	}
	parsed, ok := ParseVerdict(s)
	if !ok {
		return &SchemaError{Raw: s, Reason: "score is neither yes nor no"}
	}
	*v = parsed
	return nil
}

func ParseVerdict(s string) (Verdict, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return Yes, true
	case "no":
		return No, true
	default:
		return "", false
	}
}

// TextList accepts either a JSON string or a list of strings.
type TextList []string

func (t *TextList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = nil
		return nil
	}
	if b[0] == '[' {
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				out = append(out, it)
			}
		}
		*t = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s = strings.TrimSpace(s); s == "" {
		*t = nil
		return nil
	}
	*t = TextList{s}
	return nil
}

type Relevance struct {
	Score       Verdict  `json:"score"`
	Confidence  float64  `json:"confidence,omitempty"`
	KeyMatches  TextList `json:"key_matches,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

type Hallucination struct {
	Score       Verdict  `json:"score"`
	Explanation string   `json:"explanation,omitempty"`
	Unsupported TextList `json:"unsupported_claims,omitempty"`
}

type Answer struct {
	Score      Verdict  `json:"score"`
	Confidence float64  `json:"confidence,omitempty"`
	Strengths  TextList `json:"strengths,omitempty"`
	Weaknesses TextList `json:"weaknesses,omitempty"`
	Weakness   TextList `json:"weakness,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// AllWeaknesses merges the singular and plural spellings graders use.
func (a Answer) AllWeaknesses() []string {
	out := make([]string, 0, len(a.Weaknesses)+len(a.Weakness))
	out = append(out, a.Weaknesses...)
	out = append(out, a.Weakness...)
	return out
}

// Sufficient is true only for a yes verdict with no listed weaknesses.
func (a Answer) Sufficient() bool {
	return a.Score.Yes() && len(a.AllWeaknesses()) == 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
