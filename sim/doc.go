// Package sim provides the simulation and metrics-aggregation engine for
// slo-sim: a synthetic single-endpoint service whose completions are scored
// against SLI thresholds in simulated time.
//
// # Reading Guide
//
// Start with these files to understand the kernel, leaves first:
//   - slo.go: SLI, error budget and burn rate formulas (nil = no data)
//   - sampler.go: weighted latency sampler over LatencyBucket percentages
//   - event_heap.go: min-heap of in-flight CompletionEvents
//   - window.go, metric_state.go: circular-bin sliding windows per metric
//   - engine.go: the tick loop, arrival generation and completion draining
//
// # Architecture
//
// The sim package owns the engine; sub-packages build on it:
//   - sim/allocation/: integer percentage reallocation for bucket edits
//   - sim/session/: the editable configuration that owns an Engine
//
// The engine never validates its input. Config.Validate is the external
// validator; session.Session forwards edits to the engine only once they
// validate and refuses to start on an invalid configuration.
//
// # Time
//
// Simulated time is in milliseconds. One tick runs SpeedMultiplier inner steps
// of TickMs each, so arrival and latency statistics keep the same shape at any
// speed. Windows aggregate completions into BinMs-wide bins.
package sim
