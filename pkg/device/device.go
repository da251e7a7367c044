// Package device gathers interface addresses and running configuration from
// the routers being modeled.
package device

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const DefaultSSHPort = 22

// Device is one inventory entry. Snapshot, when set, names a file holding
// previously collected state and no connection is made.
type Device struct {
	Name     string `mapstructure:"name" yaml:"name" validate:"required"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Snapshot string `mapstructure:"snapshot" yaml:"snapshot"`
}

// Reader returns the state of one device.
type Reader interface {
	ReadState(ctx context.Context, dev Device) (topology.DeviceState, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, dev Device) (topology.DeviceState, error)

func (f ReaderFunc) ReadState(ctx context.Context, dev Device) (topology.DeviceState, error) {
	return f(ctx, dev)
}

// PollAll reads every device with at most limit reads in flight and returns
// the states in inventory order. The first failure cancels the remaining
// reads, since a partial inventory cannot be modeled.
func PollAll(ctx context.Context, r Reader, devices []Device, limit int) ([]topology.DeviceState, error) {
	states := make([]topology.DeviceState, len(devices))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, dev := range devices {
		g.Go(func() error {
			st, err := r.ReadState(ctx, dev)
			if err != nil {
				return &topology.CollaboratorError{Op: "read device", Entity: dev.Name, Err: err}
			}
			if st.Name == "" {
				st.Name = dev.Name
			}
			if st.Name != dev.Name {
				return &topology.InputShapeError{
					Device: dev.Name,
					Field:  "name",
					Reason: fmt.Sprintf("reader returned state for %q", st.Name),
				}
			}
			states[i] = st
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return states, nil
}
