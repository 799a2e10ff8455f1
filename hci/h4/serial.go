package h4

import (
	"io"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

func DefaultSerialOptions() serial.OpenOptions {
	return serial.OpenOptions{
		BaudRate:              115200,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
}

// NewSerial opens a UART for Serve.
func NewSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	// force these
	opts.MinimumReadSize = 0
	opts.InterCharacterTimeout = 100

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %v", opts.PortName)
	}
	return &serialPort{sp}, nil
}

// serialPort reports an idle port as an empty read rather than io.EOF.
type serialPort struct {
	io.ReadWriteCloser
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}
