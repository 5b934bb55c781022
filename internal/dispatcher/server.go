// Package dispatcher implements the HTTP surface of spec.md §4.3/§6:
// next-test, test-result, results, snapshot-status, test-status, plus
// SPEC_FULL.md's snapshots and healthz expansions.
//
// Routing, CORS and JSON encoding are built on go-restful/v3, already
// present in the teacher's transitive (Kubernetes) dependency closure
// and promoted here to a direct dependency since this package actually
// imports and uses it.
package dispatcher

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phetsims/aqua/internal/catalog"
	"github.com/phetsims/aqua/internal/results"
	"github.com/phetsims/aqua/internal/snapshot"
)

// DefaultPort is the default listening port, per spec.md §6.
const DefaultPort = 45366

// timeoutSentinel is the substring that marks a result as a client-side
// timeout rather than a real failure (spec.md §4.3/§7).
const timeoutSentinel = "errors.html#timeout"

// StatusProvider exposes the cycler's current status string, decoupling
// this package from the cycler's own Status type.
type StatusProvider interface {
	StatusString() string
}

// Server holds the shared, process-wide state spec.md §5 and §9
// describe: the snapshot ring and the result tree, plus the cycler's
// status for reporting. It is constructed once at startup and its
// handler methods are safe for concurrent use.
type Server struct {
	ring    *snapshot.Ring
	results *results.Tree
	status  StatusProvider
	log     zerolog.Logger

	// dispatchMu serializes the "read every candidate's count, pick the
	// minimum pool, choose one, increment it" step of next-test so two
	// concurrent requests can't both observe and claim a test that is
	// uniquely at the minimum count. Per-Test count/complete/success
	// fields are additionally guarded at the Snapshot level (see
	// internal/snapshot), which protects individual field access from
	// the test-result handler recording a lint/build result concurrently; this mutex
	// protects the overall dispatch decision, which can span the two
	// most recent snapshots.
	dispatchMu sync.Mutex
}

// NewServer builds a Server over the given shared state.
func NewServer(ring *snapshot.Ring, tree *results.Tree, status StatusProvider, log zerolog.Logger) *Server {
	return &Server{
		ring:    ring,
		results: tree,
		status:  status,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
}

// Handler returns the http.Handler serving every /aquaserver/* route.
func (s *Server) Handler() http.Handler {
	ws := new(restful.WebService)
	ws.Path("/aquaserver").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	ws.Route(ws.GET("/next-test").To(s.nextTest))
	ws.Route(ws.GET("/test-result").To(s.testResult))
	ws.Route(ws.GET("/results").To(s.results_))
	ws.Route(ws.GET("/snapshot-status").To(s.snapshotStatus))
	ws.Route(ws.GET("/test-status").To(s.testStatus))
	ws.Route(ws.GET("/snapshots").To(s.snapshots))
	ws.Route(ws.GET("/healthz").To(s.healthz))

	container := restful.NewContainer()
	container.Add(ws)

	cors := restful.CrossOriginResourceSharing{
		AllowedDomains: []string{"*"},
		AllowedHeaders: []string{"Content-Type"},
		AllowedMethods: []string{"GET"},
		CookiesAllowed: false,
		Container:      container,
	}
	container.Filter(cors.Filter)

	return container
}

func (s *Server) nextTest(req *restful.Request, resp *restful.Response) {
	old := req.QueryParameter("old") == "true"

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	newest, second := s.ring.TwoNewest()
	if newest == nil {
		_ = resp.WriteEntity(emptyNextTestResponse())
		return
	}

	candidates := catalog.AvailableBrowserTests(newest, catalog.NewBuildIndex(newest), old)
	if second != nil {
		candidates = append(candidates, catalog.AvailableBrowserTests(second, catalog.NewBuildIndex(second), old)...)
	}
	if len(candidates) == 0 {
		_ = resp.WriteEntity(emptyNextTestResponse())
		return
	}

	minCount := candidates[0].GetCount()
	for _, t := range candidates[1:] {
		if c := t.GetCount(); c < minCount {
			minCount = c
		}
	}
	pool := make([]*snapshot.Test, 0, len(candidates))
	for _, t := range candidates {
		if t.GetCount() == minCount {
			pool = append(pool, t)
		}
	}
	if len(pool) == 0 {
		_ = resp.WriteEntity(emptyNextTestResponse())
		return
	}

	chosen := pool[rand.Intn(len(pool))]
	newCount := chosen.IncrementCount()
	snapshotName := chosen.SnapshotName()

	_ = resp.WriteEntity(NextTestResponse{
		Count:        newCount,
		SnapshotName: &snapshotName,
		Test: &TestDescriptor{
			Type:  chosen.Type,
			Names: chosen.Names,
			Brand: chosen.Brand,
			URL:   HarnessURL(chosen, snapshotName, old),
		},
		URL: HarnessURL(chosen, snapshotName, old),
	})
}

func (s *Server) testResult(req *restful.Request, resp *restful.Response) {
	raw := req.QueryParameter("result")

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("malformed test-result query encoding")
		_ = resp.WriteEntity(received())
		return
	}

	var payload TestResultPayload
	if err := json.Unmarshal([]byte(decoded), &payload); err != nil {
		s.log.Warn().Err(err).Str("raw", raw).Msg("malformed test-result payload")
		_ = resp.WriteEntity(received())
		return
	}

	snap := s.ring.ByName(payload.SnapshotName)
	if snap == nil {
		s.log.Info().Str("snapshotName", payload.SnapshotName).Msg("test-result for unknown (likely retired) snapshot, discarding")
		_ = resp.WriteEntity(received())
		return
	}

	if strings.Contains(payload.Message, timeoutSentinel) {
		_ = resp.WriteEntity(received())
		return
	}

	// a lint/build Test's Complete/Success never advance on their own
	// (there is no browser client polling for them); a client reporting a
	// result against one is this path's only signal, and
	// isBrowserAvailable's buildDependency gating depends on it (spec.md
	// §4.2, §8 property 4).
	if test := findTest(snap, payload.Test); test != nil {
		switch test.Type {
		case snapshot.TypeLint, snapshot.TypeBuild:
			test.MarkComplete(payload.Passed)
		}
	}

	message := payload.Message
	if !payload.Passed && payload.ID != "" {
		message = message + " " + payload.ID
	}

	s.results.Insert(payload.Test, results.Record{
		Passed:            payload.Passed,
		SnapshotName:      payload.SnapshotName,
		SnapshotTimestamp: snap.Timestamp,
		Message:           message,
	})

	_ = resp.WriteEntity(received())
}

// findTest looks up the Test in snap whose dotted-path Names exactly
// match path, the same array a client echoes back in a test-result
// payload's "test" field.
func findTest(snap *snapshot.Snapshot, path []string) *snapshot.Test {
	for _, t := range snap.Tests {
		if namesEqual(t.Names, path) {
			return t
		}
	}
	return nil
}

func namesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Server) results_(_ *restful.Request, resp *restful.Response) {
	root := s.results.Snapshot()
	snaps := s.ring.Snapshots()
	summaries := make([]SnapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		summaries = append(summaries, summarize(snap))
	}
	_ = resp.WriteEntity(ResultsResponse{
		Children:  root.Children,
		Results:   root.Results,
		Snapshots: summaries,
	})
}

func (s *Server) snapshotStatus(_ *restful.Request, resp *restful.Response) {
	_ = resp.WriteEntity(SnapshotStatusResponse{Status: s.status.StatusString()})
}

func (s *Server) testStatus(_ *restful.Request, resp *restful.Response) {
	newest := s.ring.Newest()
	zero := 0
	if newest != nil {
		for _, t := range newest.Tests {
			if t.Type.IsBrowserType() && t.GetCount() == 0 {
				zero++
			}
		}
	}
	_ = resp.WriteEntity(TestStatusResponse{ZeroCounts: zero})
}

func (s *Server) snapshots(_ *restful.Request, resp *restful.Response) {
	snaps := s.ring.Snapshots()
	summaries := make([]SnapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		summaries = append(summaries, summarize(snap))
	}
	_ = resp.WriteEntity(SnapshotsResponse{Snapshots: summaries})
}

func (s *Server) healthz(_ *restful.Request, resp *restful.Response) {
	_ = resp.WriteEntity(map[string]string{"status": "ok", "requestId": uuid.NewString()})
}
