package gns3

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

type request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeServer records requests and answers like a GNS3 server.
type fakeServer struct {
	mu       sync.Mutex
	requests []request
	nodes    int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, request{r.Method, r.URL.Path, body})
	f.nodes++
	n := f.nodes
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v2/version":
		_, _ = io.WriteString(w, `{"version": "2.2.44", "local": false}`)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/projects":
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Project{ID: "p1", Name: body["name"].(string)})
	case r.Method == http.MethodGet && r.URL.Path == "/v2/projects/p1":
		_ = json.NewEncoder(w).Encode(Project{ID: "p1", Name: "existing"})
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/v2/projects/p1/templates/"):
		w.WriteHeader(http.StatusCreated)
		id := "n" + string(rune('0'+n))
		_ = json.NewEncoder(w).Encode(Node{ID: id, Name: "c7200-1", Directory: "/opt/gns3/projects/p1/project-files/dynamips/" + id})
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v2/projects/p1/nodes/"):
		id := strings.TrimPrefix(r.URL.Path, "/v2/projects/p1/nodes/")
		if body["name"] == "taken" {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"message": "Node name taken is already used", "status": 409}`)
			return
		}
		_ = json.NewEncoder(w).Encode(Node{ID: id, Name: body["name"].(string)})
	case r.Method == http.MethodPost && r.URL.Path == "/v2/projects/p1/links":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"link_id": "l1"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message": "Project ID p9 doesn't exist", "status": 404}`)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 1000), fake
}

func TestVersion(t *testing.T) {
	c, _ := newTestClient(t)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.2.44", v.Version)
}

func TestErrorReply(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetProject(context.Background(), "p9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't exist")
	assert.Contains(t, err.Error(), "404")
}

func TestWaitReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"version": "2.2.44"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 1000)
	v, err := c.WaitReady(context.Background(), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2.2.44", v.Version)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWaitReadyCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, 1000).WaitReady(ctx, time.Minute)
	assert.Error(t, err)
}

func TestWorkspace(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	ws, err := OpenWorkspace(ctx, c, "", "lab", "tmpl-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", ws.Project().ID)
	assert.Equal(t, "lab", ws.Project().Name)
	assert.True(t, strings.HasSuffix(ws.URL(), "/v2/projects/p1"))

	ref, err := ws.CreateNode(ctx, "r1", 0, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	assert.Contains(t, ref.Dir, ref.ID)

	linkID, err := ws.CreateLink(ctx, topology.LinkDescriptor{
		LinkID: 1,
		Members: []topology.Member{
			{NodeID: "n1", Adapter: 1, Port: 0},
			{NodeID: "n2", Adapter: 1, Port: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "l1", linkID)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.requests, 4)

	add := fake.requests[1]
	assert.Equal(t, "/v2/projects/p1/templates/tmpl-1", add.Path)
	assert.Contains(t, add.Body, "x")
	assert.Contains(t, add.Body, "y")

	rename := fake.requests[2]
	assert.Equal(t, http.MethodPut, rename.Method)
	assert.Equal(t, "r1", rename.Body["name"])

	link := fake.requests[3]
	nodes := link.Body["nodes"].([]interface{})
	require.Len(t, nodes, 2)
	assert.Equal(t, map[string]interface{}{"node_id": "n1", "adapter_number": float64(1), "port_number": float64(0)}, nodes[0])
}

func TestCreateNodeRenameFailureKeepsRef(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ws, err := OpenWorkspace(ctx, c, "p1", "", "tmpl-1")
	require.NoError(t, err)

	ref, err := ws.CreateNode(ctx, "taken", 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
	assert.Equal(t, "n2", ref.ID)
	assert.NotEmpty(t, ref.Dir)
}

func TestOpenExistingWorkspace(t *testing.T) {
	c, fake := newTestClient(t)

	ws, err := OpenWorkspace(context.Background(), c, "p1", "ignored", "tmpl-1")
	require.NoError(t, err)
	assert.Equal(t, "existing", ws.Project().Name)
	assert.Equal(t, http.MethodGet, fake.requests[0].Method)
}

func TestProjectName(t *testing.T) {
	a, b := ProjectName(), ProjectName()
	assert.True(t, strings.HasPrefix(a, ProjectPrefix))
	assert.Len(t, a, len(ProjectPrefix)+8)
	assert.NotEqual(t, a, b)
}

func TestPosition(t *testing.T) {
	x, y := Position(0, 1)
	assert.Zero(t, x)
	assert.Zero(t, y)

	seen := map[[2]int]bool{}
	for i := 0; i < 6; i++ {
		x, y := Position(i, 6)
		seen[[2]int{x, y}] = true
	}
	assert.Len(t, seen, 6)

	x, y = Position(0, 4)
	assert.Equal(t, minRadius, x)
	assert.Zero(t, y)
}
