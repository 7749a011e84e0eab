package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the file descriptor limit below which watch mode
// degrades: fsnotify holds one descriptor per watched directory.
const MinFileDescriptors = 1024

// CheckFileDescriptors verifies the process file descriptor limit. Low
// limits are a warning, not a failure; plain indexing needs very few.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: false,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot check file descriptor limit: %v", err)
		return result
	}

	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d (recommended: %d+)", rLimit.Cur, MinFileDescriptors)
		result.Details = "Watch mode holds one descriptor per directory; raise with 'ulimit -n 10240'."
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d", rLimit.Cur)
	return result
}
