// Package dispatch serialises physical actions through a bounded FIFO
// queue and a single worker goroutine.
//
// Producers submit Action values (spray, trap, camera, emergency
// shutdown); the worker executes them in order against the relay bank
// and motion controller. One worker means two actions never drive
// hardware at the same time. Per-action failures are contained and
// recorded; an emergency shutdown deactivates every relay, halts the
// worker and notifies the owner through a halt callback.
package dispatch
