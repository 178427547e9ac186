package domain

import "time"

// ResultItem is one sourced snippet returned by a grounded research provider.
type ResultItem struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`

	// Reliability is optional; nil means the provider did not report one.
	Reliability *float64 `json:"reliability,omitempty"`
}

// ResearchQuestion is an open question the generative rewrite raised about
// the document. It drives deep research and question resolution.
type ResearchQuestion struct {
	Question         string `json:"question"`
	Importance       string `json:"importance,omitempty"`
	ExpectedInsights string `json:"expected_insights,omitempty"`
}

// Decision is the termination controller's verdict for an iteration.
type Decision int

const (
	// DecisionContinue runs another iteration.
	DecisionContinue Decision = iota
	// DecisionTerminate stops the loop. It is terminal.
	DecisionTerminate
)

// String returns the string representation.
func (d Decision) String() string {
	if d == DecisionTerminate {
		return "terminate"
	}
	return "continue"
}

// ProgressMetrics estimate how much an iteration moved the document.
// They are ephemeral and never persisted on the Document.
type ProgressMetrics struct {
	// NewInformationRate is the percentage (0-100) of novel content added.
	NewInformationRate float64 `json:"new_information_rate"`

	// TopicCoverage is the percentage (0-100) of baseline topics covered.
	TopicCoverage float64 `json:"topic_coverage"`

	// AnalysisDepth is a 1-10 depth score.
	AnalysisDepth int `json:"analysis_depth"`

	// QuestionResolutionRate is the percentage (0-100) of previously raised
	// research questions the latest rewrite no longer asks.
	QuestionResolutionRate float64 `json:"question_resolution_rate"`
}

// StopReason records why a run ended.
type StopReason string

// Stop reasons.
const (
	StopConverged     StopReason = "converged"
	StopMaxIterations StopReason = "max_iterations"
	StopCostLimit     StopReason = "cost_limit"
	StopCancelled     StopReason = "cancelled"
	StopError         StopReason = "error"
)

// RunRequest describes one research/enhancement run.
type RunRequest struct {
	Title               string
	Outline             string
	MaxIterations       int
	ConfidenceThreshold float64

	// Budget overrides the configured cost budget when positive.
	Budget float64
}

// Validate checks the request is runnable.
func (r RunRequest) Validate() error {
	switch {
	case r.Title == "":
		return ErrInvalidInput
	case r.MaxIterations < 1:
		return ErrInvalidInput
	case r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1:
		return ErrInvalidInput
	case r.Budget < 0:
		return ErrInvalidInput
	}
	return nil
}

// SectionScore pairs a section title with its confidence score.
type SectionScore struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// IterationReport summarises one research + enhancement + verification pass.
type IterationReport struct {
	Iteration         int              `json:"iteration"`
	ResearchedVersion int              `json:"researched_version"`
	EnhancedVersion   int              `json:"enhanced_version"`
	Scores            []SectionScore   `json:"scores"`
	Issues            []string         `json:"issues"`
	Questions         []string         `json:"questions,omitempty"`
	DeepResearched    bool             `json:"deep_researched,omitempty"`
	Decision          Decision         `json:"decision"`
	Metrics           *ProgressMetrics `json:"metrics,omitempty"`
	Cost              float64          `json:"cost"`
}

// RunResult is the outcome of a run. History is append-only: the
// initial document, then a researched and an enhanced version per iteration,
// plus a second researched and enhanced pair when deep research ran.
// LLMCalls and ResearchCalls count the metered provider calls.
type RunResult struct {
	Final         *Document
	History       []*Document
	Iterations    []IterationReport
	StopReason    StopReason
	Cost          float64
	LLMCalls      int
	ResearchCalls int
}

// RunStatus is the lifecycle state of a persisted run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted record of one research/enhancement run.
type Run struct {
	ID                  string
	Title               string
	Outline             string
	MaxIterations       int
	ConfidenceThreshold float64
	Status              RunStatus
	StopReason          StopReason
	Iterations          int
	Versions            int
	Cost                float64
	Error               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MarshalText encodes the decision by name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a decision name; unknown names mean continue.
func (d *Decision) UnmarshalText(b []byte) error {
	if string(b) == "terminate" {
		*d = DecisionTerminate
	} else {
		*d = DecisionContinue
	}
	return nil
}

// Step names the loop step that produced a history entry.
type Step string

// Loop steps.
const (
	StepOutline  Step = "outline"
	StepResearch Step = "research"
	StepEnhance  Step = "enhance"
)

// StepForSeq returns the step that produced history entry seq. Entry 0 is
// the structured outline; after it research and enhancement versions
// alternate, deep research passes included.
func StepForSeq(seq int) Step {
	switch {
	case seq <= 0:
		return StepOutline
	case seq%2 == 1:
		return StepResearch
	default:
		return StepEnhance
	}
}
