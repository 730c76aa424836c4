package aggregate

import (
	"github.com/couchcryptid/fire-proximity-features/internal/domain"
	"github.com/couchcryptid/fire-proximity-features/internal/proximity"
)

// CountFunc lets tests stand in for the proximity engine.
type CountFunc func(ev domain.Event, w domain.Window) (proximity.Counts, error)

func (f CountFunc) CountNearby(ev domain.Event, w domain.Window) (proximity.Counts, error) {
	return f(ev, w)
}

// WithCounter replaces the engine with f.
func WithCounter(f CountFunc) Option {
	return func(a *Aggregator) {
		a.newCounter = func(*proximity.Engine) counter { return f }
	}
}
