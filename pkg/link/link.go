package link

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// backend is implemented by the UART and socket transports.
type backend interface {
	open() error
	read([]byte) (int, error)
	write([]byte) (int, error)
	close() error
	// buffered transports queue writes and flush in chunks
	buffered() bool
}

// StateNotifier is told when a link opens or closes.
type StateNotifier interface {
	LinkStateChanged(l *Link, open bool, err error)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(*Link, bool, error)

// LinkStateChanged implements StateNotifier.
func (f StateChangedFunc) LinkStateChanged(l *Link, open bool, err error) {
	f(l, open, err)
}

// Stats are cumulative link counters, safe to read from any goroutine.
type Stats struct {
	BytesRead    uint64
	BytesWritten uint64
	Dropped      uint64
	Opens        uint64
	OpenFailures uint64
}

// Link owns one transport. Read/Write/Flush are meant to be called
// from a single control goroutine and never block for long.
type Link struct {
	Name     string
	Config   Config
	Notifier StateNotifier

	be      backend
	isOpen  atomic.Bool
	pending PendingWriteBuffer

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	dropped      atomic.Uint64
	opens        atomic.Uint64
	openFailures atomic.Uint64

	lastOpenFailure time.Time
	now             func() time.Time
}

// New creates a closed Link. The transport is chosen once from conf.Type.
func New(name string, conf Config) (*Link, error) {
	conf = conf.WithDefaults()
	if err := conf.Validate(); err != nil {
		return nil, &Error{Op: "config", Link: name, Err: err}
	}
	l := &Link{Name: name, Config: conf}
	switch conf.Type {
	case UART:
		l.be = &uartBackend{device: conf.Device, baud: conf.Baud}
	case Socket:
		l.be = &socketBackend{
			addr:        net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)),
			dialTimeout: conf.DialTimeout,
			pollTimeout: conf.PollTimeout,
		}
	}
	l.pending.Limit = conf.PendingLimit
	return l, nil
}

// Open creates a Link and opens it. When only opening fails, the Link
// is still returned along with the error so the caller can continue
// degraded and let writes retry.
func Open(name string, conf Config) (*Link, error) {
	l, err := New(name, conf)
	if err != nil {
		return nil, err
	}
	return l, l.Open()
}

// IsOpen reports whether the transport is open. It is safe to call
// from any goroutine.
func (l *Link) IsOpen() bool {
	return l.isOpen.Load()
}

// Open opens the transport if it isn't open.
func (l *Link) Open() error {
	if l.isOpen.Load() {
		return nil
	}
	if err := l.be.open(); err != nil {
		l.openFailures.Add(1)
		l.lastOpenFailure = l.clock()
		err = &Error{Op: "open", Link: l.Name, Err: err}
		glog.Warningf("%v", err)
		l.notify(false, err)
		return err
	}
	l.isOpen.Store(true)
	l.lastOpenFailure = time.Time{}
	l.opens.Add(1)
	glog.Infof("link %s: opened %s %s", l.Name, l.Config.Type, l.Config.Address())
	l.notify(true, nil)
	return nil
}

// Close closes the transport and drops queued bytes.
func (l *Link) Close() error {
	if !l.IsOpen() {
		return nil
	}
	return l.closeWith(nil)
}

// Reconnect closes and reopens the transport.
func (l *Link) Reconnect() error {
	l.Close()
	return l.Open()
}

// Read returns whatever bytes are available without blocking.
// A closed link reads nothing.
func (l *Link) Read(p []byte) (int, error) {
	if !l.IsOpen() {
		return 0, nil
	}
	n, err := l.be.read(p)
	if n > 0 {
		l.bytesRead.Add(uint64(n))
	}
	if err != nil {
		err = &Error{Op: "read", Link: l.Name, Err: err}
		l.closeWith(err)
		return n, err
	}
	return n, nil
}

// Write sends p on a best-effort basis. A closed link gets exactly one
// reopen attempt first. On a UART the bytes are queued and flushed in
// chunks of WriteBytesPerFrame; a socket sends immediately and is
// closed when the peer is gone.
func (l *Link) Write(p []byte) (int, error) {
	if !l.IsOpen() {
		if err := l.reopen(); err != nil {
			l.dropped.Add(uint64(len(p)))
			return 0, err
		}
	}
	if l.be.buffered() {
		if !l.pending.Append(p) {
			l.dropped.Add(uint64(len(p)))
			return 0, &Error{Op: "write", Link: l.Name, Err: ErrPendingFull}
		}
		l.Flush()
		return len(p), nil
	}
	n, err := l.be.write(p)
	if n > 0 {
		l.bytesWritten.Add(uint64(n))
	}
	if n < len(p) {
		l.dropped.Add(uint64(len(p) - n))
	}
	if err != nil {
		err = &Error{Op: "write", Link: l.Name, Err: err}
		if isBrokenPipe(err) {
			l.closeWith(err)
		}
		return n, err
	}
	return n, nil
}

// Flush writes at most WriteBytesPerFrame queued bytes to a UART.
// It does nothing for a socket.
func (l *Link) Flush() error {
	if !l.IsOpen() || !l.be.buffered() {
		return nil
	}
	n, err := l.pending.Flush(writerFunc(l.be.write), l.Config.WriteBytesPerFrame)
	if n > 0 {
		l.bytesWritten.Add(uint64(n))
	}
	if err != nil {
		return &Error{Op: "write", Link: l.Name, Err: err}
	}
	return nil
}

// Pending returns the number of bytes waiting to be flushed.
func (l *Link) Pending() int {
	return l.pending.Len()
}

// Stats returns a snapshot of the counters.
func (l *Link) Stats() Stats {
	return Stats{
		BytesRead:    l.bytesRead.Load(),
		BytesWritten: l.bytesWritten.Load(),
		Dropped:      l.dropped.Load(),
		Opens:        l.opens.Load(),
		OpenFailures: l.openFailures.Load(),
	}
}

// reopen is the single open attempt made before a write. Within
// ReopenInterval of a failed open it fails without dialing, so a tick
// with many writes tries at most once.
func (l *Link) reopen() error {
	if !l.lastOpenFailure.IsZero() && l.clock().Sub(l.lastOpenFailure) < l.Config.ReopenInterval {
		return &Error{Op: "open", Link: l.Name, Err: ErrReopenDeferred}
	}
	return l.Open()
}

func (l *Link) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *Link) closeWith(cause error) error {
	err := l.be.close()
	l.isOpen.Store(false)
	l.pending.Reset()
	if cause != nil {
		glog.Warningf("link %s: closed: %v", l.Name, cause)
	} else {
		glog.Infof("link %s: closed", l.Name)
	}
	l.notify(false, cause)
	return err
}

func (l *Link) notify(open bool, err error) {
	if n := l.Notifier; n != nil {
		n.LinkStateChanged(l, open, err)
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}
