// Package ipc provides the local socket the pastabox daemon serves its
// command interface on. CLI sub-commands and other front ends dial it
// instead of touching the history directly.
//
// The socket carries both gRPC and HTTP/JSON; see package grpcservice.
package ipc

import (
	"fmt"
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/pastabox.sock, else $TMPDIR/pastabox.sock
//   - Windows:       \\.\pipe\pastabox
//
// $PASTABOX_SOCKET overrides both.
func SocketPath() string {
	if s := os.Getenv("PASTABOX_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a daemon appears to be listening on path. It
// does a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := Dial(path)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on path. A stale socket left by a crashed daemon
// is removed first; a live one is reported as an error.
func Listen(path string) (net.Listener, error) {
	if IsRunning(path) {
		return nil, fmt.Errorf("another pastabox daemon is listening on %s", path)
	}
	removeStale(path)
	ln, err := listenIPC(path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return ln, nil
}

// Dial connects to the daemon socket at path.
func Dial(path string) (net.Conn, error) {
	return dialIPC(path)
}
