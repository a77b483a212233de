package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStartup_StartsPrerequisitesFirstAndStopsInReverse(t *testing.T) {
	s := newTestStartup(1)
	var events []string
	dep := func(name string, requires ...string) *Dependency {
		return &Dependency{
			Name:     name,
			Requires: requires,
			OnStart:  func(context.Context) error { events = append(events, "start "+name); return nil },
			OnStop:   func(context.Context) error { events = append(events, "stop "+name); return nil },
		}
	}
	s.AddDependency(dep("consumer", "processor", "kafka"))
	s.AddDependency(dep("processor", "catalog"))
	s.AddDependency(dep("catalog", "database"))
	s.AddDependency(dep("database"))
	s.AddDependency(dep("kafka"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{
		"start database", "start catalog", "start processor", "start kafka", "start consumer",
	}, events)

	events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{
		"stop consumer", "stop kafka", "stop processor", "stop catalog", "stop database",
	}, events)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_RetriesFailedDependency(t *testing.T) {
	s := newTestStartup(3)
	calls := 0
	s.AddDependency(&Dependency{
		Name: "redis",
		OnStart: func(context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, StartupStatusStarted, s.Status("redis"))
}

func TestStartup_GivesUpAfterMaxAttempts(t *testing.T) {
	s := newTestStartup(2)
	s.AddDependency(&Dependency{
		Name:    "database",
		OnStart: func(context.Context) error { return errors.New("down") },
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStartup_RejectsBrokenGraphs(t *testing.T) {
	tests := []struct {
		name string
		deps []*Dependency
		want string
	}{
		{
			name: "unknown dependency",
			deps: []*Dependency{{Name: "processor", Requires: []string{"catalog"}}},
			want: "unknown dependency 'catalog'",
		},
		{
			name: "cycle",
			deps: []*Dependency{
				{Name: "a", Requires: []string{"b"}},
				{Name: "b", Requires: []string{"a"}},
			},
			want: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStartup(1)
			for _, d := range tt.deps {
				s.AddDependency(d)
			}
			err := s.Start(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
