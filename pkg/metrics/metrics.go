// Package metrics records operation counts and latencies for the digestor,
// registry and memory layers.
package metrics

import (
	"time"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// Recorder receives operation outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ObserveOp records one completed operation of component. err selects
	// the outcome label ("ok" or the error kind).
	ObserveOp(component, op string, d time.Duration, err error)

	// AddCount adds n to a named per-component counter, such as chunks
	// ingested or entries flushed.
	AddCount(component, name string, n int)
}

// Component names used as label values.
const (
	ComponentDigestor = "digestor"
	ComponentRegistry = "registry"
	ComponentLayers   = "layers"
)

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveOp(string, string, time.Duration, error) {}
func (Noop) AddCount(string, string, int)                  {}

// Outcome returns the label value for err.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return core.Kind(err)
}

// Since is a small helper for deferred observation:
//
//	defer metrics.Since(rec, metrics.ComponentDigestor, "query", time.Now(), &err)
func Since(r Recorder, component, op string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	r.ObserveOp(component, op, time.Since(start), e)
}
