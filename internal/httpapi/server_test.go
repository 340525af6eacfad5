package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/metrics"
	"github.com/abhisek/pathwise/internal/service"
	"github.com/abhisek/pathwise/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	course, err := content.Sample()
	require.NoError(t, err)
	reg := service.NewRegistry()
	require.NoError(t, reg.Register(course))

	m := metrics.NewCollector("test")
	svc := service.New(reg, st.ProgressRepo(), st.EventRepo(), service.WithMetrics(m))
	srv := httptest.NewServer(New(svc, WithMetrics(m)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, v), string(data))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, body := do(t, srv, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var out map[string]any
	decodeJSON(t, body, &out)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, 1.0, out["courses"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest("GET", srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestCourses(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, "GET", "/api/v1/courses", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []courseSummary
	decodeJSON(t, body, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "sat-math", list[0].ID)
	assert.Equal(t, 13, list[0].NodeCount)

	resp, body = do(t, srv, "GET", "/api/v1/courses/sat-math", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		ID               string   `json:"id"`
		TopologicalOrder []string `json:"topologicalOrder"`
	}
	decodeJSON(t, body, &detail)
	assert.Equal(t, "sat-math", detail.ID)
	assert.Len(t, detail.TopologicalOrder, 13)

	resp, body = do(t, srv, "GET", "/api/v1/courses/act", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var eb errorBody
	decodeJSON(t, body, &eb)
	assert.Equal(t, "NotFound", eb.Error.Kind)
}

func TestGetNode(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, "GET", "/api/v1/courses/sat-math/nodes/adv-exponential", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var nd nodeDetail
	decodeJSON(t, body, &nd)
	assert.Equal(t, "adv-exponential", nd.Node.ID)
	require.Len(t, nd.Prerequisites, 2)
	assert.Equal(t, "alg-linear-functions", nd.Prerequisites[0].ID)
	assert.Equal(t, "psda-percentages", nd.Prerequisites[1].ID)
	assert.Empty(t, nd.Dependents)

	resp, _ = do(t, srv, "GET", "/api/v1/courses/sat-math/nodes/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPaths(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, "GET", "/api/v1/courses/sat-math/paths", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []struct {
		ID string `json:"id"`
	}
	decodeJSON(t, body, &all)
	require.Len(t, all, 3)
	assert.Equal(t, "sat-math-complete", all[0].ID)
	assert.Equal(t, "sat-math-fast-track", all[1].ID)
	assert.Equal(t, "sat-math-word-problems", all[2].ID)

	resp, body = do(t, srv, "GET", "/api/v1/courses/sat-math/paths?difficulty=beginner", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, body, &all)
	require.Len(t, all, 1)
	assert.Equal(t, "sat-math-word-problems", all[0].ID)

	resp, _ = do(t, srv, "GET", "/api/v1/courses/sat-math/paths?difficulty=expert", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type envelope struct {
	UserID               string   `json:"userId"`
	CourseID             string   `json:"courseId"`
	CompletedNodes       []string `json:"completedNodes"`
	CurrentPathID        *string  `json:"currentPathId"`
	RecommendedNextNodes []string `json:"recommendedNextNodes"`
	PathProgress         *struct {
		PathID           string   `json:"pathId"`
		CurrentNodeIndex int      `json:"currentNodeIndex"`
		CompletedNodes   []string `json:"completedNodes"`
	} `json:"pathProgress"`
}

func TestProgressFlow(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/v1/users/u1/courses/sat-math"

	resp, body := do(t, srv, "GET", base+"/progress", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p envelope
	decodeJSON(t, body, &p)
	assert.Equal(t, "u1", p.UserID)
	assert.Empty(t, p.CompletedNodes)
	assert.Nil(t, p.CurrentPathID)
	assert.Nil(t, p.PathProgress)

	resp, body = do(t, srv, "PUT", base+"/path", `{"path_id": "sat-math-fast-track"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeJSON(t, body, &p)
	require.NotNil(t, p.CurrentPathID)
	assert.Equal(t, "sat-math-fast-track", *p.CurrentPathID)
	assert.Equal(t, "alg-linear-equations", p.RecommendedNextNodes[0])

	resp, body = do(t, srv, "POST", base+"/completions", `{"node_id": "alg-linear-equations"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	decodeJSON(t, body, &p)
	assert.Equal(t, []string{"alg-linear-equations"}, p.CompletedNodes)
	require.NotNil(t, p.PathProgress)
	assert.Equal(t, 1, p.PathProgress.CurrentNodeIndex)
	assert.Equal(t, "alg-systems", p.RecommendedNextNodes[0])

	resp, body = do(t, srv, "GET", base+"/recommendations?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec recommendationResponse
	decodeJSON(t, body, &rec)
	assert.Equal(t, []string{"alg-systems", "alg-linear-functions"}, rec.RecommendedNextNodes)
	require.Len(t, rec.Nodes, 2)
	assert.Equal(t, "Systems of Linear Equations", rec.Nodes[0].Title)

	resp, _ = do(t, srv, "DELETE", base+"/progress", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, body = do(t, srv, "GET", base+"/progress", "")
	decodeJSON(t, body, &p)
	assert.Empty(t, p.CompletedNodes)
}

func TestRecommendations_UnboundedWithoutLimit(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/v1/users/u1/courses/sat-math"

	done := []string{"alg-linear-equations", "psda-ratios", "alg-linear-functions", "psda-percentages"}
	var p struct {
		RecommendedNextNodes []string `json:"recommendedNextNodes"`
	}
	for _, id := range done {
		resp, body := do(t, srv, "POST", base+"/completions", `{"node_id": "`+id+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		decodeJSON(t, body, &p)
	}

	course, err := content.Sample()
	require.NoError(t, err)
	completed := map[string]bool{}
	for _, id := range done {
		completed[id] = true
	}
	var want []string
	for _, n := range course.Graph.AvailableNodes(completed) {
		want = append(want, n.ID)
	}
	require.Greater(t, len(want), 5)
	assert.ElementsMatch(t, want, p.RecommendedNextNodes)

	resp, body := do(t, srv, "GET", base+"/recommendations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec recommendationResponse
	decodeJSON(t, body, &rec)
	assert.ElementsMatch(t, want, rec.RecommendedNextNodes)
	assert.Len(t, rec.Nodes, len(want))
}

func TestSummary_ReportsPathPercent(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/v1/users/u1/courses/sat-math"

	resp, body := do(t, srv, "PUT", base+"/path", `{"path_id": "sat-math-fast-track"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	for _, id := range []string{"alg-linear-equations", "alg-systems"} {
		resp, body = do(t, srv, "POST", base+"/completions", `{"node_id": "`+id+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}

	resp, body = do(t, srv, "GET", base+"/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var sum struct {
		Progress struct {
			CompletedNodes []string `json:"completedNodes"`
		} `json:"progress"`
		PathPercent      int              `json:"pathPercent"`
		RemainingMinutes int              `json:"remainingMinutes"`
		Diagnostics      []map[string]any `json:"diagnostics"`
	}
	decodeJSON(t, body, &sum)
	assert.Equal(t, []string{"alg-linear-equations", "alg-systems"}, sum.Progress.CompletedNodes)
	assert.Equal(t, 28, sum.PathPercent) // 2 of 7
	assert.Positive(t, sum.RemainingMinutes)
	assert.NotNil(t, sum.Diagnostics)

	resp, _ = do(t, srv, "GET", "/api/v1/users/u1/courses/nope/summary", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t)
	base := "/api/v1/users/u1/courses/sat-math"

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed json", "POST", base + "/completions", `{"node_id":`, http.StatusBadRequest},
		{"missing node id", "POST", base + "/completions", `{}`, http.StatusBadRequest},
		{"unknown field", "POST", base + "/completions", `{"node": "x"}`, http.StatusBadRequest},
		{"unknown node", "POST", base + "/completions", `{"node_id": "zzz"}`, http.StatusNotFound},
		{"unknown path", "PUT", base + "/path", `{"path_id": "zzz"}`, http.StatusNotFound},
		{"unknown course", "POST", "/api/v1/users/u1/courses/act/completions", `{"node_id": "a"}`, http.StatusNotFound},
		{"bad limit", "GET", base + "/recommendations?limit=abc", "", http.StatusBadRequest},
		{"zero limit", "GET", base + "/recommendations?limit=0", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, "GET", "/api/v1/courses/sat-math", "")

	resp, body := do(t, srv, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `test_http_requests_total{method="GET",route="/api/v1/courses/{courseID}`), string(body))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&graphNotFound, http.StatusNotFound},
		{store.ErrConflict, http.StatusConflict},
		{&validationErr, http.StatusUnprocessableEntity},
		{&mismatchErr, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, "%v", tt.err)
	}
}

var (
	graphNotFound = graph.NotFoundError{Kind: "node", ID: "x"}
	validationErr = graph.ValidationError{Kind: graph.KindPrerequisiteCycle, IDs: []string{"a", "b", "a"}}
	mismatchErr   = graph.CourseMismatchError{Want: "a", Got: "b"}
)
