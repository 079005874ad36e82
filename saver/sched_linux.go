//go:build linux

package saver

import "golang.org/x/sys/unix"

// realtimePriority is the highest SCHED_FIFO priority.
const realtimePriority = 99

// setRealtimePriority moves the calling thread to SCHED_FIFO at the highest
// priority. It needs CAP_SYS_NICE.
func setRealtimePriority() error {
	attr := &unix.SchedAttr{
		Policy:   unix.SCHED_FIFO,
		Priority: realtimePriority,
	}
	return unix.SchedSetAttr(0, attr, 0)
}
