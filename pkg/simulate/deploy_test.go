package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

type fakeSim struct {
	mu          sync.Mutex
	failNodes   map[string]bool
	failRenames map[string]bool
	failLinks   map[int]bool
	created     []string
	links       []topology.LinkDescriptor
}

func (f *fakeSim) CreateNode(_ context.Context, name string, _, _ int) (NodeRef, error) {
	if f.failNodes[name] {
		return NodeRef{}, errors.New("template not found")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	ref := NodeRef{ID: "id-" + name, Dir: "/gns3/" + name}
	if f.failRenames[name] {
		return ref, errors.New("name already used")
	}
	return ref, nil
}

func (f *fakeSim) CreateLink(_ context.Context, desc topology.LinkDescriptor) (string, error) {
	if f.failLinks[desc.LinkID] {
		return "", errors.New("port in use")
	}
	f.links = append(f.links, desc)
	return fmt.Sprintf("link-%d", desc.LinkID), nil
}

type memSink struct {
	mu    sync.Mutex
	files map[string]string
	fail  map[string]bool
}

func (s *memSink) Transfer(_ context.Context, node topology.Node, file string, content []byte) error {
	if s.fail[node.Name] {
		return errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string]string{}
	}
	s.files[node.SimDir+"/"+file] = string(content)
	return nil
}

func intf(node, name, addr string, port int) topology.Interface {
	a := netip.MustParseAddr(addr)
	return topology.Interface{
		Node:      node,
		Name:      name,
		Address:   a,
		PrefixLen: 30,
		Subnet:    topology.SubnetKey(a, 30),
		Adapter:   1,
		Port:      port,
		SimName:   "Ethernet1/" + string(rune('0'+port)),
	}
}

// chain is r1 - r2 - r3 with links 1 and 2.
func chain() *topology.Plan {
	return &topology.Plan{
		Nodes: []topology.Node{
			{Name: "r1", Interfaces: []topology.Interface{intf("r1", "Ethernet0/0", "10.0.0.1", 0)}, StartupConfig: "i1_startup-config.cfg"},
			{Name: "r2", Interfaces: []topology.Interface{
				intf("r2", "Ethernet0/0", "10.0.0.2", 0),
				intf("r2", "Ethernet0/1", "10.0.0.5", 1),
			}, StartupConfig: "i2_startup-config.cfg"},
			{Name: "r3", Interfaces: []topology.Interface{intf("r3", "Ethernet0/0", "10.0.0.6", 0)}, StartupConfig: "i3_startup-config.cfg"},
		},
		Links: []topology.Link{
			{ID: 1, Subnet: "10.0.0.0/30", Nodes: []string{"r1", "r2"}},
			{ID: 2, Subnet: "10.0.0.4/30", Nodes: []string{"r2", "r3"}},
		},
		Configs: map[string]string{"r1": "cfg1", "r2": "cfg2", "r3": "cfg3"},
	}
}

func TestDeploy(t *testing.T) {
	sim := &fakeSim{}
	sink := &memSink{}
	d := &Deployer{Nodes: sim, Links: sim, Sink: sink, Opts: Options{Concurrency: 2}}

	report, err := d.Deploy(context.Background(), chain())
	require.NoError(t, err)

	sort.Strings(sim.created)
	assert.Equal(t, []string{"r1", "r2", "r3"}, sim.created)

	require.Len(t, sim.links, 2)
	assert.Equal(t, []topology.Member{
		{NodeID: "id-r2", Adapter: 1, Port: 1},
		{NodeID: "id-r3", Adapter: 1, Port: 0},
	}, sim.links[1].Members)

	assert.Equal(t, "cfg2", sink.files["/gns3/r2/i2_startup-config.cfg"])
	assert.Equal(t, []string{"r1", "r2", "r3"}, report.Transferred)
	assert.Equal(t, "id-r1", report.Nodes[0].SimID)
}

func TestDeployNodeFailureSkipsDependents(t *testing.T) {
	sim := &fakeSim{failNodes: map[string]bool{"r3": true}}
	sink := &memSink{}
	d := &Deployer{Nodes: sim, Links: sim, Sink: sink}

	p := chain()
	report, err := d.Deploy(context.Background(), p)
	require.Error(t, err)

	var collab *topology.CollaboratorError
	require.ErrorAs(t, err, &collab)
	assert.Len(t, report.Errors.Errors, 2)

	require.Len(t, sim.links, 1)
	assert.Equal(t, 1, sim.links[0].LinkID)
	assert.Equal(t, []string{"r1", "r2"}, report.Transferred)

	assert.Empty(t, p.Nodes[0].SimID, "plan passed in is left alone")
}

func TestDeployLinkAndTransferFailures(t *testing.T) {
	sim := &fakeSim{failLinks: map[int]bool{1: true}}
	sink := &memSink{fail: map[string]bool{"r1": true}}
	d := &Deployer{Nodes: sim, Links: sim, Sink: sink}

	report, err := d.Deploy(context.Background(), chain())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port in use")
	assert.Contains(t, err.Error(), "disk full")

	require.Len(t, report.Links, 1)
	assert.Equal(t, 2, report.Links[0].LinkID)
	assert.Equal(t, []string{"r2", "r3"}, report.Transferred)
}

func TestRedeployCreatesOnlyWhatIsMissing(t *testing.T) {
	sim := &fakeSim{}
	sink := &memSink{}
	d := &Deployer{Nodes: sim, Links: sim, Sink: sink}

	p := chain()
	report, err := d.Deploy(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "link-1", 2: "link-2"}, report.SimLinks)

	p.Nodes, p.SimLinks = report.Nodes, report.SimLinks
	report, err = d.Deploy(context.Background(), p)
	require.NoError(t, err)

	assert.Len(t, sim.created, 3)
	assert.Len(t, sim.links, 2)
	assert.Empty(t, report.Links)
	assert.Equal(t, map[int]string{1: "link-1", 2: "link-2"}, report.SimLinks)
	assert.Equal(t, []string{"r1", "r2", "r3"}, report.Transferred)
}

func TestRedeployAfterPartialFailure(t *testing.T) {
	sim := &fakeSim{failNodes: map[string]bool{"r3": true}}
	d := &Deployer{Nodes: sim, Links: sim}

	p := chain()
	report, err := d.Deploy(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, map[int]string{1: "link-1"}, report.SimLinks)

	sim.failNodes = nil
	p.Nodes, p.SimLinks = report.Nodes, report.SimLinks
	report, err = d.Deploy(context.Background(), p)
	require.NoError(t, err)

	sort.Strings(sim.created)
	assert.Equal(t, []string{"r1", "r2", "r3"}, sim.created)
	require.Len(t, sim.links, 2)
	assert.Equal(t, 2, sim.links[1].LinkID)
	require.Len(t, report.Links, 1)
	assert.Equal(t, 2, report.Links[0].LinkID)
}

func TestDeployKeepsNodeWhoseSetupFailed(t *testing.T) {
	sim := &fakeSim{failRenames: map[string]bool{"r2": true}}
	d := &Deployer{Nodes: sim, Links: sim}

	report, err := d.Deploy(context.Background(), chain())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name already used")

	assert.Equal(t, "id-r2", report.Nodes[1].SimID)
	assert.Equal(t, "/gns3/r2", report.Nodes[1].SimDir)
	assert.Len(t, sim.links, 2)
}

func TestDeployCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := &fakeSim{}
	d := &Deployer{Nodes: sim, Links: sim}
	_, err := d.Deploy(ctx, chain())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sim.links)
}

type fakeWriter struct {
	dials  int
	files  map[string][]byte
	closed bool
}

func (w *fakeWriter) WriteFile(_ context.Context, p string, content []byte, _ os.FileMode) error {
	w.files[p] = content
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestSSHSink(t *testing.T) {
	w := &fakeWriter{files: map[string][]byte{}}
	s := &SSHSink{Dial: func(context.Context) (FileWriter, error) {
		w.dials++
		return w, nil
	}}

	ctx := context.Background()
	require.NoError(t, s.Transfer(ctx, topology.Node{Name: "r1", SimDir: "/opt/gns3/r1"}, "i1_startup-config.cfg", []byte("a")))
	require.NoError(t, s.Transfer(ctx, topology.Node{Name: "r2", SimDir: "/opt/gns3/r2"}, "i2_startup-config.cfg", []byte("b")))
	assert.Error(t, s.Transfer(ctx, topology.Node{Name: "r3"}, "i3_startup-config.cfg", nil))

	assert.Equal(t, 1, w.dials)
	assert.Equal(t, []byte("a"), w.files["/opt/gns3/r1/configs/i1_startup-config.cfg"])

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestDirSink(t *testing.T) {
	root := t.TempDir()
	s := &DirSink{Root: root}

	require.NoError(t, s.Transfer(context.Background(), topology.Node{Name: "r1"}, "i1_startup-config.cfg", []byte("hostname r1\n")))

	data, err := os.ReadFile(filepath.Join(root, "r1", "i1_startup-config.cfg"))
	require.NoError(t, err)
	assert.Equal(t, "hostname r1\n", string(data))
}
