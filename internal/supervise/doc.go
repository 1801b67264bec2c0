// Package supervise implements the supervision core: a monitored command
// task, an optional log task fed from the command's standard output, the
// asynchronous signal handler and the main loop that reaps and respawns them.
//
// The handler (HandleSignal) only performs single-word atomic stores, kill(2)
// for the watchdog and a non-blocking wake. Everything that blocks, spawns or
// reaps runs on the goroutine executing Run.
package supervise
