package entity

type IntentSource string

const (
	IntentSourcePrefix   IntentSource = "prefix"
	IntentSourceModel    IntentSource = "model"
	IntentSourceFallback IntentSource = "fallback"
)

type IntentDecision struct {
	Intent     string       `json:"intent"`
	Confidence float64      `json:"confidence"`
	Source     IntentSource `json:"source"`
}
