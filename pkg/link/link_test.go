package link

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort emulates a UART that accepts at most accept bytes per write.
type fakePort struct {
	accept   int
	written  []byte
	writes   []int
	rx       []byte
	timeout  time.Duration
	closed   bool
	writeErr error
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	n := len(b)
	if p.accept > 0 && n > p.accept {
		n = p.accept
	}
	p.written = append(p.written, b[:n]...)
	p.writes = append(p.writes, n)
	return n, nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

type fakeSerial struct {
	port  *fakePort
	fail  error
	opens int
	mode  serial.Mode
}

func installFakeSerial(t *testing.T, fs *fakeSerial) {
	prev := openSerial
	openSerial = func(device string, mode *serial.Mode) (serialPort, error) {
		fs.opens++
		fs.mode = *mode
		if fs.fail != nil {
			return nil, fs.fail
		}
		return fs.port, nil
	}
	t.Cleanup(func() { openSerial = prev })
}

func uartConfig() Config {
	return Config{Type: UART, Device: "/dev/ttyFAKE", Baud: 230400}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	conf := Config{Type: UART, Device: "/dev/ttyS0"}.WithDefaults()
	require.Equal(t, DefaultBaud, conf.Baud)
	require.Equal(t, DefaultWriteBytesPerFrame, conf.WriteBytesPerFrame)
	require.Equal(t, DefaultPendingLimit, conf.PendingLimit)
	require.Equal(t, DefaultDialTimeout, conf.DialTimeout)
	require.Equal(t, DefaultReopenInterval, conf.ReopenInterval)
	require.NoError(t, conf.Validate())

	testCases := []struct {
		conf Config
		err  bool
	}{
		{Config{Type: UART, Device: "/dev/x", Baud: 1234}, true},
		{Config{Type: UART, Baud: 115200}, true},
		{Config{Type: Socket, Host: "localhost", Port: 5051}, false},
		{Config{Type: Socket, Host: "localhost"}, true},
		{Config{Type: "carrier-pigeon"}, true},
	}
	for _, tc := range testCases {
		err := tc.conf.WithDefaults().Validate()
		if tc.err {
			require.Error(t, err, tc.conf)
		} else {
			require.NoError(t, err, tc.conf)
		}
	}

	_, err := New("bad", Config{Type: "x"})
	var le *Error
	require.True(t, errors.As(err, &le))
	require.True(t, errors.Is(err, ErrUnknownType))
}

func TestUARTOpenMode(t *testing.T) {
	fs := &fakeSerial{port: &fakePort{}}
	installFakeSerial(t, fs)
	l, err := Open("board", uartConfig())
	require.NoError(t, err)
	require.True(t, l.IsOpen())
	require.Equal(t, serial.Mode{BaudRate: 230400, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}, fs.mode)
	require.Zero(t, fs.port.timeout)

	require.NoError(t, l.Close())
	require.True(t, fs.port.closed)
	require.False(t, l.IsOpen())
}

func TestUARTChunkedFlush(t *testing.T) {
	fs := &fakeSerial{port: &fakePort{}}
	installFakeSerial(t, fs)
	l, err := Open("remote", uartConfig())
	require.NoError(t, err)

	frame := make([]byte, 30)
	for n := range frame {
		frame[n] = byte(n)
	}
	n, err := l.Write(frame)
	require.NoError(t, err)
	require.Equal(t, 30, n)
	require.Equal(t, []int{12}, fs.port.writes)
	require.Equal(t, 18, l.Pending())

	require.NoError(t, l.Flush())
	require.NoError(t, l.Flush())
	require.NoError(t, l.Flush())
	require.Equal(t, []int{12, 12, 6}, fs.port.writes)
	require.Equal(t, frame, fs.port.written)
	require.Zero(t, l.Pending())
	require.EqualValues(t, 30, l.Stats().BytesWritten)
}

func TestUARTSlowPortKeepsOrder(t *testing.T) {
	fs := &fakeSerial{port: &fakePort{accept: 5}}
	installFakeSerial(t, fs)
	l, err := Open("remote", uartConfig())
	require.NoError(t, err)

	l.Write([]byte("abcdefgh"))
	l.Write([]byte("ijklmnop"))
	for i := 0; i < 10; i++ {
		l.Flush()
	}
	require.Equal(t, "abcdefghijklmnop", string(fs.port.written))
}

func TestUARTPendingFull(t *testing.T) {
	fs := &fakeSerial{port: &fakePort{accept: 1}}
	installFakeSerial(t, fs)
	conf := uartConfig()
	conf.PendingLimit = 20
	l, err := Open("remote", conf)
	require.NoError(t, err)

	_, err = l.Write(make([]byte, 15))
	require.NoError(t, err)
	_, err = l.Write(make([]byte, 15))
	require.True(t, errors.Is(err, ErrPendingFull))
	require.EqualValues(t, 15, l.Stats().Dropped)
	require.Equal(t, 14, l.Pending())
}

func TestWriteReopensOnce(t *testing.T) {
	fs := &fakeSerial{port: &fakePort{}, fail: errors.New("no such device")}
	installFakeSerial(t, fs)
	var states []bool
	l, err := New("remote", uartConfig())
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.Notifier = StateChangedFunc(func(l *Link, open bool, err error) {
		states = append(states, open)
	})

	require.Error(t, l.Open())
	require.Equal(t, 1, fs.opens)

	now = now.Add(DefaultReopenInterval)
	_, err = l.Write([]byte{1, 2, 3})
	var le *Error
	require.True(t, errors.As(err, &le))
	require.Equal(t, "open", le.Op)
	require.Equal(t, 2, fs.opens)

	fs.fail = nil
	now = now.Add(DefaultReopenInterval)
	n, err := l.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, fs.opens)
	require.True(t, l.IsOpen())
	require.Equal(t, []bool{false, false, true}, states)
	require.EqualValues(t, 2, l.Stats().OpenFailures)
}

func TestWriteReopenDeferred(t *testing.T) {
	fs := &fakeSerial{port: &fakePort{}, fail: errors.New("no such device")}
	installFakeSerial(t, fs)
	l, err := New("remote", uartConfig())
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.Error(t, l.Open())
	// several writes in the same tick dial nothing more
	for n := 0; n < 5; n++ {
		_, err = l.Write([]byte{1, 2})
		require.ErrorIs(t, err, ErrReopenDeferred)
	}
	require.Equal(t, 1, fs.opens)
	require.EqualValues(t, 10, l.Stats().Dropped)

	now = now.Add(DefaultReopenInterval / 2)
	_, err = l.Write([]byte{1})
	require.ErrorIs(t, err, ErrReopenDeferred)

	fs.fail = nil
	now = now.Add(DefaultReopenInterval / 2)
	_, err = l.Write([]byte{1})
	require.NoError(t, err)
	require.Equal(t, 2, fs.opens)

	// an explicit Open always tries
	require.NoError(t, l.Close())
	fs.fail = errors.New("unplugged")
	require.Error(t, l.Open())
	require.Error(t, l.Open())
	require.Equal(t, 4, fs.opens)
}

func TestClosedLinkReadsNothing(t *testing.T) {
	fs := &fakeSerial{port: &fakePort{rx: []byte{1, 2, 3}}}
	installFakeSerial(t, fs)
	l, err := New("board", uartConfig())
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := l.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, l.Open())
	n, err = l.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	n, err = l.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPendingWriteBuffer(t *testing.T) {
	b := PendingWriteBuffer{Limit: 8}
	require.True(t, b.Append([]byte{1, 2, 3, 4, 5}))
	require.False(t, b.Append([]byte{6, 7, 8, 9}))
	require.True(t, b.Append([]byte{6, 7, 8}))
	p := &fakePort{}
	n, err := b.Flush(p, 3)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 5, b.Len())
	n, err = b.Flush(p, 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, p.written)

	p.writeErr = errors.New("boom")
	b.Append([]byte{9})
	_, err = b.Flush(p, 4)
	require.Error(t, err)
	require.Equal(t, 1, b.Len())
}
