package crag

import "cragflow/internal/models"

type State int

const (
	StateRetrieve State = iota
	StateGradeDocuments
	StateTransformQuery
	StateGenerate
	StateGradeGeneration
	StateUseful
	StateExhausted
)

var stateNames = map[State]string{
	StateRetrieve:        "retrieve",
	StateGradeDocuments:  "grade_documents",
	StateTransformQuery:  "transform_query",
	StateGenerate:        "generate",
	StateGradeGeneration: "grade_generation",
	StateUseful:          "useful",
	StateExhausted:       "exhausted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateUseful || s == StateExhausted
}

type Decision string

const (
	DecisionNone           Decision = ""
	DecisionGenerate       Decision = "generate"
	DecisionTransformQuery Decision = "transform_query"
	DecisionUseful         Decision = "useful"
	DecisionNotSupported   Decision = "not_supported"
	DecisionNotUseful      Decision = "not_useful"
)

// GraphState is the record threaded through one answer cycle.
type GraphState struct {
	Question  string            `json:"question"`
	Documents []models.Document `json:"documents"`
	// Generation is empty until the first generate step.
	Generation string `json:"generation,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

// Next is the transition table. Decision only matters for the two grading
// states; any other pairing that is not in the table ends the run.
func Next(s State, d Decision) State {
	switch s {
	case StateRetrieve:
		return StateGradeDocuments
	case StateGradeDocuments:
		if d == DecisionTransformQuery {
			return StateTransformQuery
		}
		if d == DecisionGenerate {
			return StateGenerate
		}
	case StateTransformQuery:
		return StateRetrieve
	case StateGenerate:
		return StateGradeGeneration
	case StateGradeGeneration:
		switch d {
		case DecisionUseful:
			return StateUseful
		case DecisionNotSupported, DecisionNotUseful:
			return StateGenerate
		}
	case StateUseful:
		return StateUseful
	}
	return StateExhausted
}
