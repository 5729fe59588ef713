package comm

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// Port is an open serial device. A Read that times out returns 0, nil.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a serial device at the given baud rate with a read timeout.
type Opener func(name string, baud int, readTimeout time.Duration) (Port, error)

// Lister returns the serial devices present, in the order to probe them.
type Lister func() ([]string, error)

// ErrHangup is returned when the device went away, usually because the
// remote was unplugged.
var ErrHangup = fmt.Errorf("serial device hung up: %w", io.ErrUnexpectedEOF)

// eofTimeoutPort adapts drivers that report an expired read timeout as
// io.EOF. A hung up tty also reads as io.EOF, but returns at once instead of
// after the timeout, so the time a Read took tells the two apart.
type eofTimeoutPort struct {
	Port
	timeout time.Duration
	now     func() time.Time
}

func newEOFTimeoutPort(p Port, timeout time.Duration) *eofTimeoutPort {
	return &eofTimeoutPort{Port: p, timeout: timeout, now: time.Now}
}

func (p *eofTimeoutPort) Read(b []byte) (int, error) {
	start := p.now()
	n, err := p.Port.Read(b)
	if err != io.EOF {
		return n, err
	}
	if n > 0 {
		return n, nil
	}
	// without a timeout the read blocks until data arrives
	if p.timeout > 0 && p.now().Sub(start) >= p.timeout/2 {
		return 0, nil
	}
	return 0, ErrHangup
}

// tarm hands the timeout to VTIME, which counts deciseconds in a byte
const maxTarmTimeout = 255 * 100 * time.Millisecond

// OpenTarm opens name with github.com/tarm/serial.
func OpenTarm(name string, baud int, readTimeout time.Duration) (Port, error) {
	p, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout})
	if err != nil {
		return nil, err
	}
	return newEOFTimeoutPort(p, min(readTimeout, maxTarmTimeout)), nil
}

// OpenBugst opens name with go.bug.st/serial, which reports a timeout as
// 0, nil and a hangup as an error on its own.
func OpenBugst(name string, baud int, readTimeout time.Duration) (Port, error) {
	p, err := bugst.Open(name, &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// ListPorts enumerates the system's serial devices in sorted order. On
// Windows, COM100 and above are skipped.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	if runtime.GOOS != "windows" {
		return ports, nil
	}
	var short []string
	for _, p := range ports {
		if len(p) < 6 {
			short = append(short, p)
		}
	}
	return short, nil
}

const maxLineLength = 1024

// lineReader splits a Port's byte stream into lines, keeping a partial line
// across read timeouts.
type lineReader struct {
	r     io.Reader
	buf   []byte
	chunk [128]byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r}
}

// ReadLine returns the next line without its terminator, or "" when the
// read timed out before a full line arrived.
func (l *lineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(l.buf, '\n'); i >= 0 {
			line := string(l.buf[:i])
			l.buf = append(l.buf[:0], l.buf[i+1:]...)
			return line, nil
		}
		if len(l.buf) > maxLineLength {
			l.buf = l.buf[:0]
		}
		n, err := l.r.Read(l.chunk[:])
		l.buf = append(l.buf, l.chunk[:n]...)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", nil
		}
	}
}
