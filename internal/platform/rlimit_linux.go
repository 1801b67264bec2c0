package platform

import "golang.org/x/sys/unix"

var limits = map[string]limitInfo{
	"as":         {unix.RLIMIT_AS, limitSize, "address space size"},
	"core":       {unix.RLIMIT_CORE, limitSize, "core file size"},
	"cpu":        {unix.RLIMIT_CPU, limitCount, "CPU time in seconds"},
	"data":       {unix.RLIMIT_DATA, limitSize, "data segment size"},
	"fsize":      {unix.RLIMIT_FSIZE, limitSize, "size of created files"},
	"locks":      {unix.RLIMIT_LOCKS, limitCount, "number of file locks"},
	"memlock":    {unix.RLIMIT_MEMLOCK, limitSize, "locked memory size"},
	"msgqueue":   {unix.RLIMIT_MSGQUEUE, limitSize, "POSIX message queue size"},
	"nice":       {unix.RLIMIT_NICE, limitCount, "nice value ceiling"},
	"nofile":     {unix.RLIMIT_NOFILE, limitCount, "number of open files"},
	"nproc":      {unix.RLIMIT_NPROC, limitCount, "number of processes"},
	"rss":        {unix.RLIMIT_RSS, limitSize, "resident set size"},
	"rtprio":     {unix.RLIMIT_RTPRIO, limitCount, "real-time priority ceiling"},
	"rttime":     {unix.RLIMIT_RTTIME, limitCount, "real-time CPU time in microseconds"},
	"sigpending": {unix.RLIMIT_SIGPENDING, limitCount, "number of queued signals"},
	"stack":      {unix.RLIMIT_STACK, limitSize, "stack size"},
}
