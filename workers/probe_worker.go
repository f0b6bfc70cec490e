package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrTimeout = errors.New("timed out")

// DefaultReleaseGrace is how long RunProbe waits, once the deadline has
// passed, for the probe to return and release its connection. It covers the
// connection's own disconnect timeout with some margin.
const DefaultReleaseGrace = 3 * time.Second

// ProbeFunc performs one connect-and-count attempt. It must release its
// connection before returning, including when ctx is cancelled.
type ProbeFunc func(ctx context.Context) (int, error)

type ProbeResult struct {
	Count int
	Err   error
}

// RunProbe runs probe in its own goroutine under a deadline of timeout.
// When the deadline passes first, the result is a timeout, but RunProbe
// still waits up to grace for the probe to return so its connection is
// released before the caller moves on. A grace of zero uses
// DefaultReleaseGrace.
func RunProbe(ctx context.Context, timeout, grace time.Duration, probe ProbeFunc) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := make(chan ProbeResult, 1)

	go func(cc chan<- ProbeResult) {
		count, err := probe(ctx)
		cc <- ProbeResult{Count: count, Err: err}
	}(c)

	return await(ctx, c, timeout, grace)
}

func await(ctx context.Context, c <-chan ProbeResult, timeout, grace time.Duration) ProbeResult {
	if grace <= 0 {
		grace = DefaultReleaseGrace
	}

	select {
	case res := <-c:
		return finish(ctx, res, timeout)
	case <-ctx.Done():
	}

	// a result that landed together with the deadline still counts
	select {
	case res := <-c:
		return finish(ctx, res, timeout)
	default:
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-c:
		log.Debugf("probe returned after the %s deadline", timeout)
	case <-timer.C:
		log.Warnf("probe did not return within %s of the deadline, abandoning it", grace)
	}
	return ProbeResult{Err: fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, ctx.Err())}
}

func finish(ctx context.Context, res ProbeResult, timeout time.Duration) ProbeResult {
	// the driver reports an expired deadline in its own words
	if res.Err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Err = fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, res.Err)
	}
	return res
}
