// Package mask implements observation masking: relevance scoring of fresh
// tool outputs and allocation of a shared token budget across a batch, before
// the outputs are added to conversation history.
package mask

import "time"

// OutputType classifies the content of a tool output.
type OutputType string

// The eight output types. Every table indexed by OutputType must cover all of
// them; see NewTypePriorities.
const (
	OutputCode          OutputType = "code"
	OutputError         OutputType = "error"
	OutputLog           OutputType = "log"
	OutputFileContent   OutputType = "file_content"
	OutputSearchResult  OutputType = "search_result"
	OutputCommandOutput OutputType = "command_output"
	OutputMetadata      OutputType = "metadata"
	OutputUnknown       OutputType = "unknown"
)

const numOutputTypes = 8

// OutputTypes lists every output type in declaration order.
func OutputTypes() []OutputType {
	return []OutputType{
		OutputCode, OutputError, OutputLog, OutputFileContent,
		OutputSearchResult, OutputCommandOutput, OutputMetadata, OutputUnknown,
	}
}

// index maps t to its slot in fixed-size tables. Unrecognized values share
// the slot of OutputUnknown.
func (t OutputType) index() int {
	switch t {
	case OutputCode:
		return 0
	case OutputError:
		return 1
	case OutputLog:
		return 2
	case OutputFileContent:
		return 3
	case OutputSearchResult:
		return 4
	case OutputCommandOutput:
		return 5
	case OutputMetadata:
		return 6
	default:
		return 7
	}
}

// Valid reports whether t is one of the eight known output types.
func (t OutputType) Valid() bool {
	return t == OutputUnknown || t.index() != OutputUnknown.index()
}

// Observation is one tool invocation's output before eviction.
type Observation struct {
	ID        string     `json:"id"`
	ToolName  string     `json:"tool_name"`
	Input     string     `json:"input,omitempty"`
	Output    string     `json:"output"`
	Timestamp time.Time  `json:"timestamp"`
	Type      OutputType `json:"type"`
}

// MaskedObservation is an Observation after masking. Output holds the masked
// text; OriginalLength and MaskedLength are character counts.
type MaskedObservation struct {
	Observation

	OriginalLength int     `json:"original_length"`
	MaskedLength   int     `json:"masked_length"`
	RelevanceScore float64 `json:"relevance_score"`
	WasRetained    bool    `json:"was_retained"`
	MaskReason     string  `json:"mask_reason,omitempty"`
}

// Stats summarizes a masking pass. Token figures use EstimateTokens.
type Stats struct {
	TotalObservations int     `json:"total_observations"`
	Retained          int     `json:"retained"`
	Masked            int     `json:"masked"`
	OriginalTokens    int     `json:"original_tokens"`
	MaskedTokens      int     `json:"masked_tokens"`
	TokensSaved       int     `json:"tokens_saved"`
	PercentSaved      float64 `json:"percent_saved"`
}

// Mask reasons reported in MaskedObservation.MaskReason.
const (
	ReasonLowRelevance          = "low_relevance"
	ReasonBudgetExceeded        = "budget_exceeded"
	ReasonInsufficientBudget    = "insufficient_budget"
	ReasonOutsideWindow         = "outside_window"
	ReasonPartialExtraction     = "Partial extraction"
	ReasonTruncatedToBudget     = "Truncated to fit budget"
	ReasonTruncatedToLimit      = "Truncated to per-observation limit"
	ReasonRetainedOutsideWindow = "Retained outside window"
)
