package link

import (
	"io"
	"sync"

	"github.com/pkg/term"
)

// serialConn is the subset of *term.Term (and, for tests, the slave side
// of a pty) SerialEndpoint needs.
type serialConn interface {
	io.ReadWriteCloser
}

// SerialEndpoint is an Endpoint backed by a real serial device, grounded on
// the teacher's serial_port_open/_write/_get1/_close quartet: same
// open-with-RawMode, read-one-byte-and-block, write-and-check-length shape,
// generalized behind the Endpoint interface instead of a handful of free
// functions operating on a package-global file descriptor.
type SerialEndpoint struct {
	conn serialConn

	mu        sync.Mutex // serializes handler reads against Set*Handler writes.
	onByte    func(b byte)
	onTXDone  func()
	closeOnce sync.Once
	done      chan struct{}
}

// Supported serial speeds, matching serial_port_open's switch statement.
var supportedSpeeds = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true,
	19200: true, 38400: true, 57600: true, 115200: true,
}

// OpenSerial opens devicename in raw mode at baud (0 leaves the speed
// alone), starts the reader goroutine, and returns the endpoint.
func OpenSerial(devicename string, baud int) (*SerialEndpoint, error) {
	fd, err := term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, err
	}

	switch {
	case baud == 0:
		// Leave it alone.
	case supportedSpeeds[baud]:
		if err := fd.SetSpeed(baud); err != nil {
			fd.Close()
			return nil, err
		}
	default:
		if err := fd.SetSpeed(4800); err != nil {
			fd.Close()
			return nil, err
		}
	}

	return newSerialEndpoint(fd), nil
}

func newSerialEndpoint(conn serialConn) *SerialEndpoint {
	e := &SerialEndpoint{conn: conn, done: make(chan struct{})}
	go e.readLoop()
	return e
}

func (e *SerialEndpoint) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			return
		}
		if n != 1 {
			continue
		}

		e.mu.Lock()
		handler := e.onByte
		e.mu.Unlock()

		if handler != nil {
			handler(buf[0])
		}

		select {
		case <-e.done:
			return
		default:
		}
	}
}

func (e *SerialEndpoint) SetByteHandler(fn func(b byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onByte = fn
}

func (e *SerialEndpoint) SetTXCompleteHandler(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTXDone = fn
}

// Send writes data to the serial port. Per the Endpoint contract,
// transmission errors are not surfaced; the on-TX-complete callback fires
// regardless so the arbiter never hangs waiting for a completion that a
// dead link can't deliver.
func (e *SerialEndpoint) Send(data []byte) {
	go func() {
		_, _ = e.conn.Write(data)

		e.mu.Lock()
		handler := e.onTXDone
		e.mu.Unlock()

		if handler != nil {
			handler()
		}
	}()
}

func (e *SerialEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		err = e.conn.Close()
	})
	return err
}
