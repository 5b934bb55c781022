package dispatcher

import (
	"github.com/phetsims/aqua/internal/results"
	"github.com/phetsims/aqua/internal/snapshot"
)

// TestDescriptor is the test descriptor JSON returned by next-test
// (spec.md §6). The dotted-path Names are carried under the wire key
// "test" — the same key a client echoes back in its test-result payload
// — rather than "names", resolving spec.md §9's "names-keyed vs
// test-keyed" ambiguity in favor of the form its own end-to-end
// scenarios (§8, E2-E5) use.
type TestDescriptor struct {
	Type  snapshot.Type   `json:"type"`
	Names []string        `json:"test"`
	Brand snapshot.Brand  `json:"brand,omitempty"`
	URL   string          `json:"url"`
}

// NextTestResponse is the shape of GET /aquaserver/next-test.
type NextTestResponse struct {
	Count        int             `json:"count"`
	SnapshotName *string         `json:"snapshotName"`
	Test         *TestDescriptor `json:"test"`
	URL          string          `json:"url"`
}

// emptyNextTestResponse is returned whenever no test can be dispatched,
// per spec.md §4.3 and end-to-end scenario E1.
func emptyNextTestResponse() NextTestResponse {
	return NextTestResponse{Count: 0, SnapshotName: nil, Test: nil, URL: "no-test.html"}
}

// TestResultPayload is the JSON a client URL-encodes into the
// test-result endpoint's "result" query parameter (spec.md §6).
type TestResultPayload struct {
	Passed       bool     `json:"passed"`
	Test         []string `json:"test"`
	SnapshotName string   `json:"snapshotName"`
	Timestamp    int64    `json:"timestamp,omitempty"`
	Message      string   `json:"message,omitempty"`
	ID           string   `json:"id,omitempty"`
}

// ReceivedResponse is the shape every test-result response takes,
// regardless of whether the payload was actually accepted (spec.md §7:
// "do not give clients signal to retry-storm").
type ReceivedResponse struct {
	Received string `json:"received"`
}

func received() ReceivedResponse { return ReceivedResponse{Received: "true"} }

// ResultsResponse is the shape of GET /aquaserver/results.
type ResultsResponse struct {
	Children  map[string]*results.Node `json:"children"`
	Results   []results.Record         `json:"results"`
	Snapshots []SnapshotSummary        `json:"snapshots"`
}

// SnapshotStatusResponse is the shape of GET /aquaserver/snapshot-status.
type SnapshotStatusResponse struct {
	Status string `json:"status"`
}

// TestStatusResponse is the shape of GET /aquaserver/test-status.
type TestStatusResponse struct {
	ZeroCounts int `json:"zeroCounts"`
}

// SnapshotSummary is one entry of the [EXPANSION] GET /aquaserver/snapshots
// response and of ResultsResponse.Snapshots.
type SnapshotSummary struct {
	Name      string            `json:"name"`
	Timestamp int64             `json:"timestamp"`
	Repos     []string          `json:"repos"`
	Shas      map[string]string `json:"shas"`
	Exists    bool              `json:"exists"`
	TestCount int               `json:"testCount"`
}

// SnapshotsResponse is the shape of the [EXPANSION] GET /aquaserver/snapshots.
type SnapshotsResponse struct {
	Snapshots []SnapshotSummary `json:"snapshots"`
}

func summarize(s *snapshot.Snapshot) SnapshotSummary {
	return SnapshotSummary{
		Name:      s.Name,
		Timestamp: s.Timestamp,
		Repos:     s.Repos,
		Shas:      s.Shas,
		Exists:    s.Exists(),
		TestCount: len(s.Tests),
	}
}
