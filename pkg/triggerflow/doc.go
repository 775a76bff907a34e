// Package triggerflow is an event-detection and asynchronous job
// execution engine.
//
// Callers register event modules, each pairing a detector with a
// handler, then feed payloads through Invoke. Every detector runs
// concurrently against the payload; for each event that fires, its
// handler resolves the jobs to run and the engine executes them with
// bounded concurrency and per-job timeouts. The result is a single
// Invocation describing every verdict and job outcome.
//
// Basic usage:
//
//	engine, err := triggerflow.New[Order]()
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine.Register(triggerflow.Module[Order]{
//		Name: "large-order",
//		Detect: func(ctx context.Context, p triggerflow.Payload[Order], _ *triggerflow.Options) (bool, error) {
//			return p.Data.Total > 10_000, nil
//		},
//		Handle: triggerflow.StaticJobs(triggerflow.Job[Order]{
//			Name: "notify-sales",
//			Run:  notifySales,
//		}),
//	})
//	inv, err := engine.Invoke(ctx, triggerflow.NewPayload(order))
//
// Cross-invocation lineage is carried by tracking tokens (see the
// tracking package): each job execution stamps its id into the token it
// passes downstream, so recursive invocations stay correlated.
//
// Observability and lifecycle extension points live in the
// observability, plugin and report packages.
package triggerflow
