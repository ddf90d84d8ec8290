package link

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrUnknownType indicates an unsupported link type in config.
	ErrUnknownType = errors.New("unknown link type")
	// ErrUnsupportedBaud indicates a baud outside SupportedBauds.
	ErrUnsupportedBaud = errors.New("unsupported baud")
	// ErrPendingFull indicates the UART pending buffer can't take a frame.
	ErrPendingFull = errors.New("pending write buffer full")
	// ErrPeerClosed indicates the remote end closed the socket.
	ErrPeerClosed = errors.New("closed by peer")
	// ErrReopenDeferred indicates a write skipped its reopen attempt
	// because the last one failed less than ReopenInterval ago.
	ErrReopenDeferred = errors.New("reopen deferred")
)

// Error reports a transport failure.
type Error struct {
	Op   string // open, read, write
	Link string
	Err  error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("link %s %s: %v", e.Link, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// isBrokenPipe reports errors meaning the peer is gone.
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrPeerClosed)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
