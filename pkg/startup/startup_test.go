package startup

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeDependency struct {
	name      string
	dependsOn []string
	failures  int
	events    *[]string
}

func (d *fakeDependency) Name() string        { return d.name }
func (d *fakeDependency) DependsOn() []string { return d.dependsOn }

func (d *fakeDependency) Start(context.Context) error {
	if d.failures > 0 {
		d.failures--
		return errors.Errorf("%s not ready", d.name)
	}
	*d.events = append(*d.events, "start:"+d.name)
	return nil
}

func (d *fakeDependency) Stop(context.Context) error {
	*d.events = append(*d.events, "stop:"+d.name)
	return nil
}

func TestStartup_StartsParentsFirstStopsInReverse(t *testing.T) {
	var events []string
	s := New(testLogger(), 1)
	s.Add(&fakeDependency{name: "database", events: &events})
	s.Add(&fakeDependency{name: "container", dependsOn: []string{"database"}, events: &events})
	s.Add(&fakeDependency{name: "http-server", dependsOn: []string{"container"}, events: &events})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:container", "start:http-server"}, events)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{
		"start:database", "start:container", "start:http-server",
		"stop:http-server", "stop:container", "stop:database",
	}, events)
}

func TestStartup_RetriesUntilDependencyComesUp(t *testing.T) {
	var events []string
	s := New(testLogger(), 3)
	s.Add(&fakeDependency{name: "database", failures: 2, events: &events})
	s.Add(&fakeDependency{name: "container", dependsOn: []string{"database"}, events: &events})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:container"}, events)
}

func TestStartup_FailsAfterMaxAttempts(t *testing.T) {
	var events []string
	s := New(testLogger(), 2)
	s.Add(&fakeDependency{name: "database", failures: 5, events: &events})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
}

func TestStartup_DoesNotRestartStartedDependencies(t *testing.T) {
	var events []string
	s := New(testLogger(), 3)
	s.Add(&fakeDependency{name: "database", events: &events})
	s.Add(&fakeDependency{name: "kafka-consumer", dependsOn: []string{"database"}, failures: 1, events: &events})

	require.NoError(t, s.Start(context.Background()))
	// The database came up on attempt one and is not started again on the
	// consumer's retry.
	assert.Equal(t, []string{"start:database", "start:kafka-consumer"}, events)
}

func TestStartup_UnknownDependencyIsAnError(t *testing.T) {
	var events []string
	s := New(testLogger(), 1)
	s.Add(&fakeDependency{name: "http-server", dependsOn: []string{"container"}, events: &events})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on unknown 'container'")
}

func TestStartup_StopSkipsNeverStarted(t *testing.T) {
	var events []string
	s := New(testLogger(), 1)
	s.Add(&fakeDependency{name: "database", failures: 1, events: &events})
	s.Add(&fakeDependency{name: "http-server", dependsOn: []string{"database"}, events: &events})

	require.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Empty(t, events)
}
