// Package engine implements the execution dispatcher.
//
// Engine.Execute validates an api.ExecutionRequest, loads the kata, checks
// the cached toolchain probe, and hands the run to a bounded worker Pool.
// A worker materializes a temporary workspace through the language's
// runner.Adapter, runs the optional compile step and the test run under the
// sandbox, and parses the harness report into an api.ExecutionResult.
// Execution failures such as compile errors or timeouts are result values;
// only contract violations, saturation and caller cancellation are returned
// as errors.
package engine
