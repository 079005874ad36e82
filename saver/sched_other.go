//go:build !linux

package saver

import "errors"

func setRealtimePriority() error {
	return errors.New("real-time scheduling is only supported on linux")
}
