package sh

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/packet"
)

// ErrNotConnected is returned when no vehicle is connected.
var ErrNotConnected = errors.New("no vehicle connected")

// Station is the ground end of a uart-server link: it accepts the
// vehicle's connection, receives telemetry frames and sends command
// sentences.
type Station struct {
	// Handler receives every telemetry frame.
	Handler packet.Handler
	// Dropped is told about corrupt frames.
	Dropped packet.DropNotifier
	// Connected is called with the remote address on connect and ""
	// on disconnect.
	Connected func(addr string)

	lock   sync.Mutex
	conn   net.Conn
	seq    int
	last   string
	frames atomic.Uint64
}

// Serve accepts vehicle connections on ln until ctx is done. Only one
// vehicle is served at a time.
func (s *Station) Serve(ctx context.Context, ln net.Listener) error {
	return framework.RunWithContextCloser(ctx, closerFunc(func() error {
		s.lock.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.lock.Unlock()
		return ln.Close()
	}), func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			s.serveConn(ctx, conn)
		}
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (s *Station) serveConn(ctx context.Context, conn net.Conn) {
	addr := conn.RemoteAddr().String()
	glog.Infof("vehicle connected from %s", addr)
	s.lock.Lock()
	s.conn = conn
	s.lock.Unlock()
	s.notify(addr)

	parser := &packet.Parser{Notifier: s.Dropped}
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		for _, frame := range parser.FeedBytes(buf[:n]) {
			s.frames.Add(1)
			if s.Handler != nil {
				s.Handler.HandleFrame(ctx, frame)
			}
		}
		if err != nil {
			if err != io.EOF {
				glog.Warningf("vehicle link: %v", err)
			}
			break
		}
	}

	s.lock.Lock()
	s.conn = nil
	s.lock.Unlock()
	conn.Close()
	glog.Infof("vehicle %s disconnected", addr)
	s.notify("")
}

func (s *Station) notify(addr string) {
	if s.Connected != nil {
		s.Connected(addr)
	}
}

// IsConnected reports whether a vehicle is connected.
func (s *Station) IsConnected() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.conn != nil
}

// Frames returns the number of telemetry frames received.
func (s *Station) Frames() uint64 {
	return s.frames.Load()
}

// Send writes body as a sentence with the next sequence number and
// returns the sentence.
func (s *Station) Send(body string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.conn == nil {
		return "", ErrNotConnected
	}
	sentence := command.Encode(s.seq, body)
	if _, err := io.WriteString(s.conn, sentence); err != nil {
		return "", err
	}
	s.seq++
	s.last = sentence
	return sentence, nil
}

// Repeat sends the last sentence again, unchanged. The vehicle is
// expected to drop it as a duplicate.
func (s *Station) Repeat() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.conn == nil {
		return "", ErrNotConnected
	}
	if s.last == "" {
		return "", errors.New("nothing sent yet")
	}
	_, err := io.WriteString(s.conn, s.last)
	return s.last, err
}

// SetSequence sets the next sequence number.
func (s *Station) SetSequence(seq int) {
	s.lock.Lock()
	s.seq = seq
	s.lock.Unlock()
}
