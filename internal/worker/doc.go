// Package worker is a Go client for the worker side of the queue.
//
// A Runner repeats the four collaborator steps: list pending tasks of the
// types it handles, claim one, run its Handler on the payload, then report
// complete or fail. The store itself never executes payloads; Runner is a
// convenience for workers written in Go. Workers in other languages perform
// the same steps through the agentq CLI.
package worker
