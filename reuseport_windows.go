//go:build windows

package mdns

import "syscall"

// reuseControl on Windows only has SO_REUSEADDR available (SO_REUSEPORT has
// no Windows equivalent; Windows' SO_REUSEADDR already permits the
// multiple-listener-on-one-port behavior reusePort asks for elsewhere).
func reuseControl(reuseAddr, reusePort bool) func(network, address string, c syscall.RawConn) error {
	if !reuseAddr && !reusePort {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
