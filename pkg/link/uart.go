package link

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// serialPort is the part of serial.Port used here.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(time.Duration) error
}

var openSerial = func(device string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(device, mode)
}

type uartBackend struct {
	device string
	baud   int
	port   serialPort
}

func (u *uartBackend) open() error {
	port, err := openSerial(u.device, &serial.Mode{
		BaudRate: u.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return err
	}
	// zero timeout makes Read return immediately when nothing is buffered
	if err = port.SetReadTimeout(0); err != nil {
		port.Close()
		return err
	}
	u.port = port
	return nil
}

func (u *uartBackend) read(p []byte) (int, error) {
	return u.port.Read(p)
}

func (u *uartBackend) write(p []byte) (int, error) {
	return u.port.Write(p)
}

func (u *uartBackend) close() error {
	if u.port == nil {
		return nil
	}
	err := u.port.Close()
	u.port = nil
	return err
}

func (u *uartBackend) buffered() bool {
	return true
}
