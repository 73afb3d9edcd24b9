// Package sandbox runs a single child process under a wall-clock deadline.
//
// Each child is started in its own process group. When the deadline expires
// or the caller's context is cancelled, the whole group receives SIGTERM,
// then SIGKILL once the grace period has elapsed. After every run the group
// is swept with SIGKILL so no descendant outlives the call. Output streams
// are captured into capped buffers that record truncation.
//
// The sandbox isolates time and process lifetime only. It does not restrict
// file system, network, or memory access. In particular the child can write
// the test report it is graded by; see package runner.
package sandbox
