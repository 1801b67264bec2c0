// Package platform wraps the operating-system primitives the supervisor core
// depends on: non-blocking child reaping, the real-time alarm, the system load
// average and process resource limits.
//
// Everything here is a thin layer over golang.org/x/sys/unix so the core can
// swap each primitive for a fake in tests.
package platform
