// Package check runs the operation-count probe and renders its single-line
// report with performance data.
package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"mongo-opcheck/internal"
	"mongo-opcheck/workers"
)

const Prefix = "CheckMongoDBConnections "

// Prober counts the operations currently in progress on the server.
// Implementations own their connection and release it before returning.
type Prober interface {
	Probe(ctx context.Context) (int, error)
}

type Checker struct {
	Prober       Prober
	Limits       Limits
	Timeout      time.Duration
	// ReleaseGrace bounds the wait for the connection to be released after
	// the deadline. Zero means workers.DefaultReleaseGrace.
	ReleaseGrace time.Duration
	Target       string
	Logger       *logrus.Logger
}

// Run writes the prefix, probes under the timeout, and completes the report
// line. The probe's connection is released before Run returns, unless the
// probe ignores cancellation for longer than ReleaseGrace.
func (c *Checker) Run(ctx context.Context, w io.Writer) Status {
	fmt.Fprint(w, Prefix)

	res := workers.RunProbe(ctx, c.Timeout, c.ReleaseGrace, c.Prober.Probe)
	if res.Err != nil {
		c.logFailure(res.Err)
		fmt.Fprintln(w, FormatFailure(res.Err))
		return Unknown
	}

	status := Classify(res.Count, c.Limits)
	c.logger().Debugf("%s: %d operations, status %s", c.Target, res.Count, status)
	fmt.Fprintln(w, FormatResult(status, res.Count, c.Limits))
	return status
}

func (c *Checker) logger() *logrus.Logger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}

func (c *Checker) logFailure(err error) {
	internal.ErrorFormat{
		Target:   c.Target,
		Message:  "probe failed",
		Error:    err.Error(),
		Function: "Run",
		Package:  "check",
		Level:    logrus.DebugLevel,
	}.Print(c.logger())
}

// Describe returns the failure description shown after "unknown: ".
// Timeouts keep the full wrapped text so the deadline is visible.
func Describe(err error) string {
	if errors.Is(err, workers.ErrTimeout) {
		return err.Error()
	}
	return internal.Describe(err)
}

func FormatFailure(err error) string {
	return Unknown.String() + ": " + Describe(err)
}

// FormatResult renders the status text and the performance-data segment
// "operationCount=<count>;<warn>;<crit>;0;". Absent limits are empty.
func FormatResult(s Status, count int, l Limits) string {
	return fmt.Sprintf("%s: %d operations | operationCount=%d;%s;%s;0;",
		s, count, count, limit(l.Warning), limit(l.Critical))
}

func limit(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
