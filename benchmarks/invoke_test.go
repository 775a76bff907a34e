package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow"
)

// State is the benchmark payload data.
type State struct {
	Value int
}

func alwaysFire(context.Context, triggerflow.Payload[State], *triggerflow.Options) (bool, error) {
	return true, nil
}

func neverFire(context.Context, triggerflow.Payload[State], *triggerflow.Options) (bool, error) {
	return false, nil
}

func noopJob(name string) triggerflow.Job[State] {
	return triggerflow.Job[State]{
		Name: name,
		Run: func(context.Context, triggerflow.Payload[State], *triggerflow.Options) (any, error) {
			return nil, nil
		},
	}
}

func mustEngine(b *testing.B, detectors int, fire bool, jobsPerEvent int) *triggerflow.Engine[State] {
	b.Helper()
	engine, err := triggerflow.New[State]()
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < detectors; i++ {
		detect := neverFire
		if fire {
			detect = alwaysFire
		}
		jobs := make([]triggerflow.Job[State], jobsPerEvent)
		for j := range jobs {
			jobs[j] = noopJob(fmt.Sprintf("job-%d-%d", i, j))
		}
		err := engine.Register(triggerflow.Module[State]{
			Name:   fmt.Sprintf("event-%d", i),
			Detect: detect,
			Handle: triggerflow.StaticJobs(jobs...),
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	return engine
}

// BenchmarkInvoke_Detect_10 runs 10 detectors with no event firing.
func BenchmarkInvoke_Detect_10(b *testing.B) {
	engine := mustEngine(b, 10, false, 0)
	ctx := context.Background()
	payload := triggerflow.NewPayload(State{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Invoke(ctx, payload)
	}
}

// BenchmarkInvoke_Detect_100 runs 100 detectors with no event firing.
func BenchmarkInvoke_Detect_100(b *testing.B) {
	engine := mustEngine(b, 100, false, 0)
	ctx := context.Background()
	payload := triggerflow.NewPayload(State{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Invoke(ctx, payload)
	}
}

// BenchmarkInvoke_Fire_1x1 runs one firing event with one job.
func BenchmarkInvoke_Fire_1x1(b *testing.B) {
	engine := mustEngine(b, 1, true, 1)
	ctx := context.Background()
	payload := triggerflow.NewPayload(State{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Invoke(ctx, payload)
	}
}

// BenchmarkInvoke_Fire_10x4 runs 10 firing events with 4 jobs each.
func BenchmarkInvoke_Fire_10x4(b *testing.B) {
	engine := mustEngine(b, 10, true, 4)
	ctx := context.Background()
	payload := triggerflow.NewPayload(State{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Invoke(ctx, payload)
	}
}

// BenchmarkDetectAll_100 runs the detection phase only.
func BenchmarkDetectAll_100(b *testing.B) {
	engine := mustEngine(b, 100, false, 0)
	ctx := context.Background()
	payload := triggerflow.NewPayload(State{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.DetectAll(ctx, payload)
	}
}
