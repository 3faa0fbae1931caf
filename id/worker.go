package id

import (
	"os"
	"strconv"
)

// FromHost resolves a stable worker identity from the process environment.
// Resolution order: the WORKER_ID environment variable, then HOSTNAME, then
// the OS hostname, then the process PID as a last resort. The result is
// stable across restarts of the same container or host, which is what keeps
// dedicated queue names and credential keys meaningful after a restart.
func FromHost() string {
	if v := os.Getenv("WORKER_ID"); v != "" {
		return v
	}
	if v := os.Getenv("HOSTNAME"); v != "" {
		return v
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return strconv.Itoa(os.Getpid())
}
