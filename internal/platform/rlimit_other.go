//go:build !linux && !windows

package platform

import "golang.org/x/sys/unix"

var limits = map[string]limitInfo{
	"as":     {unix.RLIMIT_AS, limitSize, "address space size"},
	"core":   {unix.RLIMIT_CORE, limitSize, "core file size"},
	"cpu":    {unix.RLIMIT_CPU, limitCount, "CPU time in seconds"},
	"data":   {unix.RLIMIT_DATA, limitSize, "data segment size"},
	"fsize":  {unix.RLIMIT_FSIZE, limitSize, "size of created files"},
	"nofile": {unix.RLIMIT_NOFILE, limitCount, "number of open files"},
	"stack":  {unix.RLIMIT_STACK, limitSize, "stack size"},
}
