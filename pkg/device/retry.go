package device

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const DefaultRetryBase = 500 * time.Millisecond

// RetryReader retries transient read failures with exponential backoff.
// Malformed device data is never retried.
type RetryReader struct {
	Reader  Reader
	Retries uint64
	Timeout time.Duration // per attempt, zero means none
	Base    time.Duration
}

func (r *RetryReader) ReadState(ctx context.Context, dev Device) (topology.DeviceState, error) {
	base := r.Base
	if base == 0 {
		base = DefaultRetryBase
	}
	b := retry.WithMaxRetries(r.Retries, retry.NewExponential(base))

	var (
		st      topology.DeviceState
		attempt int
	)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		actx := ctx
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}

		var err error
		st, err = r.Reader.ReadState(actx, dev)
		if err == nil {
			return nil
		}

		var shape *topology.InputShapeError
		if errors.As(err, &shape) {
			return err
		}

		log.Warn().Err(err).Str("device", dev.Name).Int("attempt", attempt).Msg("device read failed")
		return retry.RetryableError(err)
	})
	if err != nil {
		return topology.DeviceState{}, err
	}

	return st, nil
}
