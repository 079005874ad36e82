// Package sysfs adapts a running Linux system to the power-saver engine:
// cpufreq policies, devfreq bandwidth devices, backlight blank state and
// ALSA PCM stream state are read from and written to sysfs/procfs.
package sysfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readUint(path string) (uint64, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return v, nil
}

func writeUint(path string, v uint64) error {
	if err := os.WriteFile(path, []byte(strconv.FormatUint(v, 10)), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// readUintList parses a whitespace separated list such as
// scaling_available_frequencies. Non-numeric fields are skipped.
func readUintList(path string) ([]uint64, error) {
	s, err := readString(path)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(s)
	out := make([]uint64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
