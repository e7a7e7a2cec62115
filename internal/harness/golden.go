package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/keepsake/internal/canon"
)

// TraceSnapshot is the golden form of a run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Codec        string       `json:"codec,omitempty"`
	Pass         bool         `json:"pass"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to plain maps for canon.Marshal.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":    event.Step,
			"op":      event.Op,
			"outcome": event.Outcome,
		}
		for k, v := range map[string]string{
			"memento": event.Memento,
			"key":     event.Key,
			"object":  event.Object,
			"token":   event.Token,
		} {
			if v != "" {
				eventMap[k] = v
			}
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"pass":          s.Pass,
		"trace":         traceList,
	}
	if s.Codec != "" {
		result["codec"] = s.Codec
	}
	return result
}

// Marshal returns the canonical JSON of the snapshot.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return canon.Marshal(s.toCanonicalMap())
}

// Digest identifies the trace. Runs with byte-identical golden forms share
// a digest.
func (s *TraceSnapshot) Digest() (string, error) {
	return canon.Digest(canon.DomainTrace, s.toCanonicalMap())
}

// Snapshot builds the golden form of a scenario's result.
func Snapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	codec := scenario.Codec
	if codec == "" {
		codec = "url"
	}
	return &TraceSnapshot{
		ScenarioName: scenario.Name,
		Codec:        codec,
		Pass:         result.Pass,
		Trace:        result.Trace,
	}
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, Snapshot(scenario, result))
}

// AssertGolden compares an existing snapshot against its golden file.
func AssertGolden(t *testing.T, snapshot *TraceSnapshot) error {
	t.Helper()

	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, snapshot.ScenarioName, traceJSON)
	return nil
}
