//go:build !linux

package main

import (
	"context"
	"errors"
)

func runInputReader(_ context.Context, _ []string, raw chan<- inputEvent) error {
	close(raw)
	return errors.New("input devices are only supported on linux")
}
