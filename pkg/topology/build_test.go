package topology

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildThreeRouters(t *testing.T) {
	plan, err := Build(context.Background(), threeRouters(), nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []Link{
		{ID: 1, Subnet: "10.0.0.0/30", Nodes: []string{"A", "B"}},
		{ID: 2, Subnet: "10.0.0.4/30", Nodes: []string{"B", "C"}},
	}, plan.Links)
	assert.Equal(t, plan.Candidates, plan.Links)

	b, ok := plan.Node("B")
	require.True(t, ok)
	require.Len(t, b.Interfaces, 2)
	assert.Equal(t, 0, b.Interfaces[0].Port)
	assert.Equal(t, 1, b.Interfaces[1].Port)

	assert.Equal(t, 1, strings.Count(plan.Configs["A"], "interface "))
	assert.Equal(t, 2, strings.Count(plan.Configs["B"], "interface "))
	assert.Equal(t, 1, strings.Count(plan.Configs["C"], "interface "))

	assert.Equal(t, "interface Ethernet1/0\n description to B\n ip address 10.0.0.1 255.255.255.252\n!\n", plan.Configs["A"])
	assert.Equal(t, "interface Ethernet1/0\n ip address 10.0.0.2 255.255.255.252\n!\n"+
		"interface Ethernet1/1\n ip address 10.0.0.5 255.255.255.252\n!\n", plan.Configs["B"])
	assert.NotContains(t, plan.Configs["B"], "bfd")
	assert.NotContains(t, plan.Configs["C"], "Loopback0")
}

func TestBuildWithPruning(t *testing.T) {
	var offered []Link
	decide := DeciderFunc(func(ctx context.Context, candidates []Link) ([]int, error) {
		offered = candidates
		return []int{2, 9}, nil
	})

	plan, err := Build(context.Background(), threeRouters(), decide, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, offered, 2)
	assert.Equal(t, []int{2, 9}, plan.Pruned)
	require.Len(t, plan.Links, 1)
	assert.Equal(t, 1, plan.Links[0].ID)

	c, ok := plan.Node("C")
	require.True(t, ok)
	assert.Empty(t, c.Interfaces)
	assert.Equal(t, "", plan.Configs["C"])

	b, _ := plan.Node("B")
	assert.Len(t, b.Interfaces, 1)
}

func TestBuildDeciderError(t *testing.T) {
	decide := DeciderFunc(func(ctx context.Context, candidates []Link) ([]int, error) {
		return nil, fmt.Errorf("stdin closed")
	})

	_, err := Build(context.Background(), threeRouters(), decide, DefaultOptions())
	assert.ErrorContains(t, err, "stdin closed")
}

func TestBuildCapacityExceeded(t *testing.T) {
	hub := DeviceState{Name: "hub", Interfaces: RawInterfaces{}}
	states := []DeviceState{hub}
	for i := 0; i < 9; i++ {
		hub.Interfaces[fmt.Sprintf("Ethernet0/%d", i)] = ipv4(fmt.Sprintf("10.2.%d.1", i), 30)
		states = append(states, DeviceState{
			Name:       fmt.Sprintf("spoke%d", i),
			Interfaces: RawInterfaces{"Ethernet0/0": ipv4(fmt.Sprintf("10.2.%d.2", i), 30)},
		})
	}

	plan, err := Build(context.Background(), states, nil, DefaultOptions())
	assert.Nil(t, plan)

	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "hub", capErr.Node)
}

func TestBuildInputShape(t *testing.T) {
	t.Run("duplicate device", func(t *testing.T) {
		states := threeRouters()
		states[2].Name = "A"

		_, err := Build(context.Background(), states, nil, DefaultOptions())
		assert.ErrorAs(t, err, new(*InputShapeError))
	})

	t.Run("config without the interface stanza", func(t *testing.T) {
		states := threeRouters()
		states[2].Config = "hostname C\n!\n"

		_, err := Build(context.Background(), states, nil, DefaultOptions())
		var shapeErr *InputShapeError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, "C", shapeErr.Device)
	})

	t.Run("invalid exclude pattern", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ExcludePatterns = []string{"("}

		_, err := Build(context.Background(), threeRouters(), nil, opts)
		assert.Error(t, err)
	})
}

func TestBuildWithoutPrefixExclusion(t *testing.T) {
	states := threeRouters()
	// Give A and B the same /24 loopback subnet.
	states[1].Interfaces["Loopback0"] = ipv4("192.168.1.2", 24)
	states[1].Config = strings.Replace(states[1].Config, "192.168.2.1", "192.168.1.2", 1)

	opts := DefaultOptions()
	opts.ExcludePrefixLengths = nil

	plan, err := Build(context.Background(), states, nil, opts)
	require.NoError(t, err)
	require.Len(t, plan.Links, 3)
	assert.Equal(t, "192.168.1.0/24", plan.Links[2].Subnet)

	a, _ := plan.Node("A")
	require.Len(t, a.Interfaces, 2)
	assert.Equal(t, "Loopback0", a.Interfaces[1].Name)
	assert.Equal(t, "Ethernet1/1", a.Interfaces[1].SimName)
	assert.Contains(t, plan.Configs["A"], "interface Ethernet1/1\n ip address 192.168.1.1")
}
