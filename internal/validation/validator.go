// Package validation implements the template validation simulator. A
// validation takes a template through an observable "validating" state,
// waits out a plausible scanner round-trip, and lands on a verdict.
// Verdicts stay fresh for a configurable window so repeat requests
// against a recently validated template return immediately.
package validation

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/scandeck/scandeck/internal/errors"
	"github.com/scandeck/scandeck/internal/logging"
	"github.com/scandeck/scandeck/internal/metrics"
	"github.com/scandeck/scandeck/internal/store"
)

// invalidProbability is the chance a validation lands on an invalid
// verdict. Most templates pass.
const invalidProbability = 0.05

// Simulator validates templates against a pretend scanner backend.
type Simulator struct {
	store *store.Store

	latencyMin time.Duration
	latencyMax time.Duration
	throttle   time.Duration
	freshness  time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	logger *logging.Logger
	prom   *metrics.PrometheusMetrics
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithSeed fixes the RNG seed for reproducible verdicts.
func WithSeed(seed int64) Option {
	return func(s *Simulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithLatency sets the simulated validation latency bounds.
func WithLatency(minLatency, maxLatency time.Duration) Option {
	return func(s *Simulator) {
		s.latencyMin = minLatency
		s.latencyMax = maxLatency
	}
}

// WithThrottle sets the delay between templates in a batch run.
func WithThrottle(d time.Duration) Option {
	return func(s *Simulator) { s.throttle = d }
}

// WithFreshness sets how long a valid verdict short-circuits revalidation.
func WithFreshness(d time.Duration) Option {
	return func(s *Simulator) { s.freshness = d }
}

// WithSleep replaces the blocking wait, so tests run without real delays.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Simulator) { s.sleep = fn }
}

// New creates a validation simulator bound to the store.
func New(st *store.Store, opts ...Option) *Simulator {
	s := &Simulator{
		store:      st,
		latencyMin: 800 * time.Millisecond,
		latencyMax: 1200 * time.Millisecond,
		throttle:   100 * time.Millisecond,
		freshness:  24 * time.Hour,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		sleep:      sleepContext,
		logger:     logging.Default().WithComponent("validation"),
		prom:       metrics.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Validate runs a template through the validation flow and reports the
// verdict. A template already holding a fresh valid verdict is not
// revalidated. The call blocks for the simulated latency.
func (s *Simulator) Validate(ctx context.Context, templateID string) (bool, error) {
	tmpl, err := s.store.Template(templateID)
	if err != nil {
		return false, err
	}

	now := s.now()
	if tmpl.Status == store.TemplateValid && tmpl.ValidatedAt != nil &&
		now.Sub(*tmpl.ValidatedAt) < s.freshness {
		s.logger.InfoValidation("Verdict still fresh, skipping", tmpl.TemplateID)
		s.prom.IncrementValidationsTotal("fresh")
		metrics.IncrementValidation("fresh")
		return true, nil
	}

	s.store.UpdateTemplate(templateID, func(t *store.Template) bool {
		t.Status = store.TemplateValidating
		return true
	})

	latency, valid := s.draw()
	if err := s.sleep(ctx, latency); err != nil {
		// Interrupted mid-validation; leave no template stuck in the
		// intermediate state.
		s.store.UpdateTemplate(templateID, func(t *store.Template) bool {
			t.Status = store.TemplateNotValidated
			return true
		})
		return false, errors.WrapSimulationError(errors.CodeCanceled, "validation interrupted", err)
	}

	verdict := store.TemplateInvalid
	if valid {
		verdict = store.TemplateValid
	}
	validatedAt := s.now()
	s.store.UpdateTemplate(templateID, func(t *store.Template) bool {
		t.Status = verdict
		t.ValidatedAt = &validatedAt
		return true
	})

	s.prom.IncrementValidationsTotal(string(verdict))
	s.prom.RecordValidationDuration(latency)
	metrics.IncrementValidation(string(verdict))
	metrics.Histogram(metrics.MetricValidationDuration, latency.Seconds(), nil)
	s.logger.InfoValidation("Validation finished", tmpl.TemplateID, "verdict", verdict)
	return valid, nil
}

// draw picks the latency and verdict for one validation under the RNG
// lock, so concurrent validations never interleave reads.
func (s *Simulator) draw() (time.Duration, bool) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	span := s.latencyMax - s.latencyMin
	latency := s.latencyMin
	if span > 0 {
		latency += time.Duration(s.rng.Int63n(int64(span)))
	}
	valid := s.rng.Float64() >= invalidProbability
	return latency, valid
}

// ValidateCustom revalidates every operator-uploaded template that is
// not already mid-validation. Templates run one after another with a
// short pause between them so the run does not hammer the backend.
// Returns the number of templates validated.
func (s *Simulator) ValidateCustom(ctx context.Context) (int, error) {
	var ids []string
	for _, t := range s.store.Templates() {
		if t.Source == store.SourceCustom && t.Status != store.TemplateValidating {
			ids = append(ids, t.ID)
		}
	}

	validated := 0
	for i, id := range ids {
		if i > 0 && s.throttle > 0 {
			if err := s.sleep(ctx, s.throttle); err != nil {
				return validated, errors.WrapSimulationError(errors.CodeCanceled, "batch validation interrupted", err)
			}
		}
		if _, err := s.Validate(ctx, id); err != nil {
			if errors.IsCode(err, errors.CodeCanceled) {
				return validated, err
			}
			// Template deleted between the snapshot and the run.
			continue
		}
		validated++
	}

	s.logger.Info("Custom template sweep finished", "validated", validated)
	return validated, nil
}
