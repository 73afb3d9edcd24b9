// Package api defines the core types shared by the dojo execution and
// judging engine.
//
// The package performs no I/O and has no external dependencies. All types
// marshal to the JSON shape exposed by the transports, so the HTTP and MCP
// front doors can return them unchanged.
//
// Core types:
//   - [ExecutionRequest] / [ExecutionResult]: running learner code against a kata's tests
//   - [SystemDependencies]: toolchain availability as reported by the prober
//   - [JudgeRequest] / [JudgeResult]: rubric-based judging by a language model
//   - [APIError]: contract violations and transport-level failures
//   - [AIServiceError]: classified failures of the completion API
//
// Failures crossing the engine boundary are values. Execution failures
// (missing toolchain, compile error, runtime error, timeout, malformed
// harness output) are reported through [ExecutionResult.Diagnostic]; only
// invalid arguments surface as an [APIError].
package api
