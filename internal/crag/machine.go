package crag

import (
	"errors"
	"fmt"

	"cragflow/internal/grading"
	"cragflow/internal/models"
)

// ErrNotConverged is reported by Result.Err when a cap ended the run before
// an answer was judged useful.
var ErrNotConverged = errors.New("answer loop did not converge")

type Retriever[C any] interface {
	Retrieve(ctx C, question string) ([]models.Document, error)
}

type Grader[C any] interface {
	FilterRelevant(ctx C, question string, docs []models.Document) ([]models.Document, error)
	Generate(ctx C, question string, docs []models.Document, feedback string) (string, error)
	CheckHallucination(ctx C, docs []models.Document, generation string) (grading.Hallucination, error)
	CheckAnswer(ctx C, question, generation string) (grading.Answer, error)
	Rewrite(ctx C, question string) (string, error)
}

type Limits struct {
	MaxGenerations int `json:"max_generations"`
	MaxRewrites    int `json:"max_rewrites"`
	// MaxAttempts caps generations and rewrites combined.
	MaxAttempts int `json:"max_attempts"`
}

func DefaultLimits() Limits {
	return Limits{MaxGenerations: 4, MaxRewrites: 2, MaxAttempts: 6}
}

// withDefaults fills unset caps. The zero Limits means DefaultLimits; once
// any cap is set, MaxRewrites 0 disables rewriting.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l == (Limits{}) {
		return d
	}
	if l.MaxGenerations <= 0 {
		l.MaxGenerations = d.MaxGenerations
	}
	if l.MaxRewrites < 0 {
		l.MaxRewrites = 0
	}
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = l.MaxGenerations + l.MaxRewrites
	}
	return l
}

type Event struct {
	Step        int      `json:"step"`
	State       string   `json:"state"`
	Decision    Decision `json:"decision,omitempty"`
	Question    string   `json:"question"`
	Documents   int      `json:"documents"`
	Generations int      `json:"generations"`
	Rewrites    int      `json:"rewrites"`
	Note        string   `json:"note,omitempty"`
}

type Result struct {
	Answer           string            `json:"answer"`
	Question         string            `json:"question"`
	OriginalQuestion string            `json:"original_question"`
	Documents        []models.Document `json:"documents"`
	Converged        bool              `json:"converged"`
	Grounded         bool              `json:"grounded"`
	Generations      int               `json:"generations"`
	Rewrites         int               `json:"rewrites"`
	StopReason       string            `json:"stop_reason,omitempty"`
	Trace            []Event           `json:"trace"`
}

func (r Result) Err() error {
	if r.Converged {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotConverged, r.StopReason)
}

type Machine[C any] struct {
	retriever Retriever[C]
	grader    Grader[C]
	limits    Limits
	observe   func(Event)
}

func NewMachine[C any](retriever Retriever[C], grader Grader[C], limits Limits) *Machine[C] {
	return &Machine[C]{retriever: retriever, grader: grader, limits: limits.withDefaults()}
}

// WithObserver registers fn to receive every completed step.
func (m *Machine[C]) WithObserver(fn func(Event)) *Machine[C] {
	m.observe = fn
	return m
}

// Run drives one question from retrieval to a useful answer or a cap. On a
// cap it returns the latest grounded generation, or the latest generation,
// with Converged false. Errors from collaborators end the run and are
// returned together with the partial result.
func (m *Machine[C]) Run(ctx C, question string) (Result, error) {
	st := GraphState{Question: question}
	res := Result{OriginalQuestion: question}
	var latest, grounded string
	state := StateRetrieve

	for step := 0; !state.Terminal(); step++ {
		decision := DecisionNone
		note := ""
		switch state {
		case StateRetrieve:
			docs, err := m.retriever.Retrieve(ctx, st.Question)
			if err != nil {
				return m.finish(res, st, state, latest, grounded, "retrieve failed"), fmt.Errorf("retrieve: %w", err)
			}
			st.Documents = docs
		case StateGradeDocuments:
			relevant, err := m.grader.FilterRelevant(ctx, st.Question, st.Documents)
			if err != nil {
				return m.finish(res, st, state, latest, grounded, "relevance grading failed"), err
			}
			note = fmt.Sprintf("%d of %d relevant", len(relevant), len(st.Documents))
			st.Documents = relevant
			if len(relevant) == 0 {
				decision = DecisionTransformQuery
			} else {
				decision = DecisionGenerate
			}
		case StateTransformQuery:
			q, err := m.grader.Rewrite(ctx, st.Question)
			if err != nil {
				return m.finish(res, st, state, latest, grounded, "rewrite failed"), err
			}
			st.Question = q
			st.Documents = nil
			res.Rewrites++
		case StateGenerate:
			gen, err := m.grader.Generate(ctx, st.Question, st.Documents, st.Feedback)
			if err != nil {
				return m.finish(res, st, state, latest, grounded, "generate failed"), err
			}
			st.Generation = gen
			latest = gen
			res.Generations++
		case StateGradeGeneration:
			h, err := m.grader.CheckHallucination(ctx, st.Documents, st.Generation)
			if err != nil {
				return m.finish(res, st, state, latest, grounded, "hallucination grading failed"), err
			}
			st.Feedback = GroundingFeedback(h)
			if !h.Score.Yes() {
				decision = DecisionNotSupported
				break
			}
			grounded = st.Generation
			a, err := m.grader.CheckAnswer(ctx, st.Question, st.Generation)
			if err != nil {
				return m.finish(res, st, state, latest, grounded, "answer grading failed"), err
			}
			if a.Sufficient() {
				decision = DecisionUseful
			} else {
				st.Feedback = ExtendFeedback(st.Feedback, a)
				decision = DecisionNotUseful
			}
		}

		next := Next(state, decision)
		if reason := m.capReached(next, res); reason != "" {
			note = joinNote(note, reason)
			res.StopReason = reason
			next = StateExhausted
		}
		m.emit(&res, Event{
			Step:        step,
			State:       state.String(),
			Decision:    decision,
			Question:    st.Question,
			Documents:   len(st.Documents),
			Generations: res.Generations,
			Rewrites:    res.Rewrites,
			Note:        note,
		})
		state = next
	}
	return m.finish(res, st, state, latest, grounded, res.StopReason), nil
}

func (m *Machine[C]) capReached(next State, res Result) string {
	attempts := res.Generations + res.Rewrites
	switch next {
	case StateGenerate:
		if res.Generations >= m.limits.MaxGenerations {
			return fmt.Sprintf("generation cap %d reached", m.limits.MaxGenerations)
		}
	case StateTransformQuery:
		if res.Rewrites >= m.limits.MaxRewrites {
			return fmt.Sprintf("rewrite cap %d reached", m.limits.MaxRewrites)
		}
	default:
		return ""
	}
	if attempts >= m.limits.MaxAttempts {
		return fmt.Sprintf("attempt cap %d reached", m.limits.MaxAttempts)
	}
	return ""
}

func (m *Machine[C]) emit(res *Result, ev Event) {
	res.Trace = append(res.Trace, ev)
	if m.observe != nil {
		m.observe(ev)
	}
}

func (m *Machine[C]) finish(res Result, st GraphState, state State, latest, grounded, reason string) Result {
	res.Question = st.Question
	res.Documents = st.Documents
	res.Converged = state == StateUseful
	if res.Converged {
		res.Answer = st.Generation
		res.Grounded = true
		res.StopReason = ""
		return res
	}
	res.StopReason = reason
	if grounded != "" {
		res.Answer = grounded
		res.Grounded = true
	} else {
		res.Answer = latest
	}
	return res
}

func joinNote(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
