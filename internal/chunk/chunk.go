package chunk

import (
	"encoding/json"
	"fmt"
)

// Chunk is one discrete event record in the streaming analysis response.
// The set of variants is closed: Decode rejects unknown type tags, and
// consumers dispatch with a type switch over the concrete types below.
type Chunk interface {
	chunk()
}

const (
	TypeAnalysisStart       = "analysis_start"
	TypeStepUpdate          = "step_update"
	TypeCodeCompleteDisplay = "code_complete_display"
	TypeCodeExecutionResult = "code_execution_result"
	TypeChartGenerated      = "chart_generated"
	TypeTextStream          = "text_stream"
	TypeAnalysisComplete    = "analysis_complete"
	TypeError               = "error"
)

type AnalysisStart struct {
	Content string `json:"content"`
	Step    string `json:"step,omitempty"`
}

type StepUpdate struct {
	Content string `json:"content"`
	Step    string `json:"step,omitempty"`
}

type CodeCompleteDisplay struct {
	Content string `json:"content"`
	Code    string `json:"code"`
	Step    string `json:"step,omitempty"`
}

type CodeExecutionResult struct {
	Content string `json:"content"`
	Step    string `json:"step,omitempty"`
}

type ChartGenerated struct {
	Content   string          `json:"content"`
	ChartData json.RawMessage `json:"chartData,omitempty"`
	Step      string          `json:"step,omitempty"`
}

type TextStream struct {
	Content string `json:"content"`
	Step    string `json:"step,omitempty"`
}

// CodeExecutionPayload is the completed code-execution summary attached to the
// terminal chunk.
type CodeExecutionPayload struct {
	CodeChunks  []string `json:"codeChunks"`
	IsExecuting bool     `json:"isExecuting"`
	Result      string   `json:"result,omitempty"`
	Output      string   `json:"output,omitempty"`
}

type AnalysisComplete struct {
	Answer            string                `json:"answer"`
	CodeExecution     *CodeExecutionPayload `json:"codeExecution,omitempty"`
	Insights          []string              `json:"insights,omitempty"`
	FollowUpQuestions []string              `json:"followUpQuestions,omitempty"`
	ChartData         json.RawMessage       `json:"chartData,omitempty"`
	Step              string                `json:"step,omitempty"`
}

type StreamError struct {
	Content string `json:"content"`
	Step    string `json:"step,omitempty"`
}

func (AnalysisStart) chunk()       {}
func (StepUpdate) chunk()          {}
func (CodeCompleteDisplay) chunk() {}
func (CodeExecutionResult) chunk() {}
func (ChartGenerated) chunk()      {}
func (TextStream) chunk()          {}
func (AnalysisComplete) chunk()    {}
func (StreamError) chunk()         {}

// Decode parses one event record into its concrete variant.
func Decode(data []byte) (Chunk, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("malformed chunk record: %w", err)
	}

	decode := func(dst Chunk) (Chunk, error) {
		if err := json.Unmarshal(data, dst); err != nil {
			return nil, fmt.Errorf("malformed %s chunk: %w", tag.Type, err)
		}
		return dst, nil
	}

	switch tag.Type {
	case TypeAnalysisStart:
		return decode(&AnalysisStart{})
	case TypeStepUpdate:
		return decode(&StepUpdate{})
	case TypeCodeCompleteDisplay:
		return decode(&CodeCompleteDisplay{})
	case TypeCodeExecutionResult:
		return decode(&CodeExecutionResult{})
	case TypeChartGenerated:
		return decode(&ChartGenerated{})
	case TypeTextStream:
		return decode(&TextStream{})
	case TypeAnalysisComplete:
		return decode(&AnalysisComplete{})
	case TypeError:
		return decode(&StreamError{})
	default:
		return nil, fmt.Errorf("unknown chunk type %q", tag.Type)
	}
}
