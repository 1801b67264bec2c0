// Package logsink implements the log programs that are typically run as the
// supervisor's log task: a timestamping line writer and a rotating directory
// writer. Both read standard input line by line.
package logsink
