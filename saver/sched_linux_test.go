//go:build linux

package saver

import (
	"errors"
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

func TestSetRealtimePriority(t *testing.T) {
	errc := make(chan error, 1)
	go func() {
		// the thread is discarded when the goroutine exits locked
		runtime.LockOSThread()
		errc <- setRealtimePriority()
	}()

	err := <-errc
	if err != nil && !errors.Is(err, unix.EPERM) {
		t.Fatalf("setRealtimePriority: unexpected error %v", err)
	}
}
