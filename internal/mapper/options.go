// Package mapper provides bidirectional transformation between HL7 v2.x
// messages and FHIR R4 resources.
package mapper

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// deps are the injectable non-deterministic collaborators shared by both
// conversion directions. Defaults generate real UUIDs, read the wall clock
// and draw from an unseeded pseudo-random source; tests pin all three.
type deps struct {
	newID func() string
	now   func() time.Time
	rng   *rand.Rand
}

func defaultDeps() deps {
	return deps{
		newID: uuid.NewString,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Option configures a mapper.
type Option func(*deps)

// WithIDFunc replaces the resource id generator.
func WithIDFunc(fn func() string) Option {
	return func(d *deps) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(d *deps) {
		if fn != nil {
			d.now = fn
		}
	}
}

// WithRand replaces the pseudo-random source used for data synthesis.
func WithRand(rng *rand.Rand) Option {
	return func(d *deps) {
		if rng != nil {
			d.rng = rng
		}
	}
}
