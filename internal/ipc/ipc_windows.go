//go:build windows

package ipc

import (
	"net"

	"github.com/Microsoft/go-winio"
)

const pipeName = `\\.\pipe\pastabox`

func socketPath() string { return pipeName }

func removeStale(string) {}

func listenIPC(path string) (net.Listener, error) {
	// Owner and SYSTEM only.
	return winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)(A;;GA;;;SY)",
	})
}

func dialIPC(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}
