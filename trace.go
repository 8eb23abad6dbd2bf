package barney

import (
	"encoding/json"
	"time"
)

// Source names the tier of the pipeline that produced a dispatch result.
type Source string

const (
	SourceGlobal   Source = "global"
	SourceTarget   Source = "target"
	SourceOverride Source = "override"
	SourceFallback Source = "fallback"
	// SourceResolve marks a dispatch that failed while canonicalizing.
	SourceResolve Source = "resolve"
)

// DispatchTrace captures which entry answered a single dispatch.
type DispatchTrace struct {
	Reference string `json:"reference"`
	Identity  string `json:"identity"`
	Parent    string `json:"parent,omitempty"`
	Source    Source `json:"source"`

	// Index is the position of the answering interceptor within its chain,
	// -1 for overrides, the fallback and resolve failures.
	Index    int           `json:"index"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Failed reports whether the dispatch ended with an error.
func (t DispatchTrace) Failed() bool {
	return t.Error != ""
}

// ToJSON serialises the trace for logging or transport helpers.
func (t DispatchTrace) ToJSON() ([]byte, error) {
	type alias DispatchTrace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (DispatchTrace, error) {
	type alias DispatchTrace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return DispatchTrace{}, err
	}
	return DispatchTrace(trace), nil
}
