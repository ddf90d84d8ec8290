package link

import (
	"io"
	"net"
	"time"
)

type socketBackend struct {
	addr        string
	dialTimeout time.Duration
	pollTimeout time.Duration
	conn        net.Conn
}

func (s *socketBackend) open() error {
	conn, err := net.DialTimeout("tcp", s.addr, s.dialTimeout)
	if err != nil {
		return err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	s.conn = conn
	return nil
}

func (s *socketBackend) read(p []byte) (int, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.pollTimeout))
	n, err := s.conn.Read(p)
	if err == io.EOF {
		return n, ErrPeerClosed
	}
	if err != nil && isTimeout(err) {
		err = nil
	}
	return n, err
}

func (s *socketBackend) write(p []byte) (int, error) {
	s.conn.SetWriteDeadline(time.Now().Add(s.pollTimeout))
	n, err := s.conn.Write(p)
	if err != nil && isTimeout(err) {
		// the rest of the frame is dropped, like a full non-blocking send
		err = nil
	}
	return n, err
}

func (s *socketBackend) close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *socketBackend) buffered() bool {
	return false
}
