//go:build !linux

package main

import (
	"errors"
	"net"
)

type peerCred struct {
	UID uint32
	PID int32
}

func peerCredentials(net.Conn) (peerCred, error) {
	return peerCred{}, errors.New("peer credentials not supported on this platform")
}
