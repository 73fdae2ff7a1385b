// Package startup brings the service's external dependencies up in order
// and tears them down in reverse.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is one startable unit: the database pool, the kafka consumer,
// the HTTP listener. DependsOn names dependencies that must be started
// first.
type Dependency interface {
	Name() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type status int

const (
	statusPending status = iota
	statusStarted
	statusStopped
	statusFailed
)

type Startup struct {
	dependencies map[string]Dependency
	order        []string
	statuses     map[string]status
	logger       ectologger.Logger
	maxAttempts  int
}

func New(logger ectologger.Logger, maxAttempts int) *Startup {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Startup{
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]status),
		logger:       logger,
		maxAttempts:  maxAttempts,
	}
}

func (s *Startup) Add(dependency Dependency) {
	if _, ok := s.dependencies[dependency.Name()]; !ok {
		s.order = append(s.order, dependency.Name())
	}
	s.dependencies[dependency.Name()] = dependency
}

// Start brings every dependency up, parents first. A failed attempt is
// retried with fibonacci backoff; dependencies already started are not
// restarted on retry.
func (s *Startup) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range s.order {
			if err := s.startDependency(ctx, s.dependencies[name]); err != nil {
				s.logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}

		if attempt == s.maxAttempts {
			break
		}

		s.logger.Infof("Retrying in %d seconds (attempt %d/%d)", a, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startDependency(ctx context.Context, dependency Dependency) error {
	if s.statuses[dependency.Name()] == statusStarted {
		return nil
	}

	for _, parent := range dependency.DependsOn() {
		dep, ok := s.dependencies[parent]
		if !ok {
			return fmt.Errorf("dependency '%s' depends on unknown '%s'", dependency.Name(), parent)
		}
		if s.statuses[parent] != statusStarted {
			if err := s.startDependency(ctx, dep); err != nil {
				return err
			}
		}
	}

	s.logger.WithField("dependency", dependency.Name()).Infof("Starting dependency '%s'", dependency.Name())
	s.statuses[dependency.Name()] = statusPending
	if err := dependency.Start(ctx); err != nil {
		s.statuses[dependency.Name()] = statusFailed
		return err
	}
	s.statuses[dependency.Name()] = statusStarted
	return nil
}

// Stop tears dependencies down in reverse start order. Dependencies that
// never started are skipped.
func (s *Startup) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(s.order) - 1; i >= 0; i-- {
		name := s.order[i]
		if s.statuses[name] != statusStarted {
			continue
		}

		s.logger.WithField("dependency", name).Infof("Stopping dependency '%s'", name)
		if err := s.dependencies[name].Stop(ctx); err != nil {
			s.logger.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.statuses[name] = statusStopped
	}
	return firstErr
}
