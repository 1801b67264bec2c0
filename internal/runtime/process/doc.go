// Package process spawns the supervised command and log processes.
//
// A Runner starts a process in its own process group and releases it right
// away: exit statuses are collected by the supervisor's reaper with wait4(2)
// on any child, so the runtime never waits on the processes it starts.
// Signals are delivered to the direct child only.
package process
