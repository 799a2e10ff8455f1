// Package host sends HCI commands to a controller over an H4 transport and
// waits for the matching Command Complete or Command Status event.
package host

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/hci"
	"github.com/rigado/blesim/hci/evt"
	"github.com/rigado/blesim/hci/h4"
)

const (
	rxQueueSize = 16

	// emergency timeout to keep callers from locking up if the controller
	// never answers
	cmdTimeout = 10 * time.Second
)

var errClosed = errors.New("hci closed")

// Command is an HCI command as defined in package cmd.
type Command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

// CommandRP decodes the return parameters of a command, status byte included.
type CommandRP interface {
	Unmarshal(b []byte) error
}

type pkt struct {
	cmd  Command
	done chan []byte
}

// Host is the host side of an HCI transport.
type Host struct {
	skt    io.ReadWriteCloser
	logger blesim.Logger

	// Host to Controller command flow control [Vol 4, Part E, 4.4]; the
	// controller grants one command packet at a time
	muSend sync.Mutex

	muSent sync.Mutex
	sent   map[int]*pkt

	muClose sync.Mutex
	done    chan struct{}
	err     error
}

// New starts reading events from skt. Close releases skt.
func New(skt io.ReadWriteCloser, l blesim.Logger) *Host {
	if l == nil {
		l = blesim.GetLogger()
	}
	h := &Host{
		skt:    skt,
		logger: l,
		sent:   make(map[int]*pkt),
		done:   make(chan struct{}),
	}
	go h.rxLoop()
	return h
}

// Send issues c and waits for its completion. When r is not nil the return
// parameters are decoded into it. A non-zero status is returned as an
// hci.ErrCommand.
func (h *Host) Send(c Command, r CommandRP) error {
	b, err := h.send(c)
	if err != nil {
		return err
	}
	if len(b) > 0 && b[0] != hci.StatusSuccess {
		return hci.ErrCommand(b[0])
	}
	if r != nil {
		return errors.Wrap(r.Unmarshal(b), "can't decode return parameters")
	}
	return nil
}

func (h *Host) send(c Command) ([]byte, error) {
	h.muSend.Lock()
	defer h.muSend.Unlock()

	b := make([]byte, hci.CommandHeaderLength+c.Len())
	b[0] = hci.PktTypeCommand
	b[1] = byte(c.OpCode())
	b[2] = byte(c.OpCode() >> 8)
	b[3] = byte(c.Len())
	if err := c.Marshal(b[hci.CommandHeaderLength:]); err != nil {
		return nil, errors.Wrap(err, "can't marshal command")
	}

	p := &pkt{c, make(chan []byte, 1)}
	h.muSent.Lock()
	h.sent[c.OpCode()] = p
	h.muSent.Unlock()

	// late or duplicate events must not find a stale entry
	defer func() {
		h.muSent.Lock()
		delete(h.sent, c.OpCode())
		h.muSent.Unlock()
	}()

	if !h.isOpen() {
		return nil, h.closeErr()
	}
	if _, err := h.skt.Write(b); err != nil {
		h.close(errors.Wrap(err, "can't send command"))
		return nil, h.closeErr()
	}

	select {
	case <-time.After(cmdTimeout):
		return nil, fmt.Errorf("no response to command 0x%04X", c.OpCode())
	case <-h.done:
		return nil, h.closeErr()
	case rp := <-p.done:
		return rp, nil
	}
}

// Close stops the host and closes the transport.
func (h *Host) Close() error {
	return h.close(errClosed)
}

// Err returns why the host stopped, or nil while it is running.
func (h *Host) Err() error {
	if h.isOpen() {
		return nil
	}
	return h.closeErr()
}

func (h *Host) close(err error) error {
	h.muClose.Lock()
	defer h.muClose.Unlock()

	select {
	case <-h.done:
		return nil
	default:
		h.err = err
		close(h.done)
		return errors.Wrap(h.skt.Close(), "can't close transport")
	}
}

func (h *Host) closeErr() error {
	h.muClose.Lock()
	defer h.muClose.Unlock()
	return h.err
}

func (h *Host) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *Host) rxLoop() {
	q := make(chan []byte, rxQueueSize)
	errc := make(chan error, 1)
	go func() { errc <- h4.ReadPackets(h.skt, q, h.done) }()

	for {
		select {
		case <-h.done:
			return

		case err := <-errc:
			if err == nil {
				err = io.EOF
			}
			h.close(err)
			return

		case b := <-q:
			if err := h.handlePkt(b); err != nil {
				h.logger.Warn(err)
			}
		}
	}
}

func (h *Host) handlePkt(b []byte) error {
	// Strip the 1-byte HCI header and pass down the rest of the packet.
	t, b := b[0], b[1:]
	switch t {
	case hci.PktTypeEvent:
		return h.handleEvt(b)
	default:
		return fmt.Errorf("unexpected packet: 0x%02X % X", t, b)
	}
}

func (h *Host) handleEvt(b []byte) error {
	if len(b) < 2 || int(b[1]) != len(b[2:]) {
		return fmt.Errorf("invalid event: % X", b)
	}

	code, params := b[0], b[2:]
	switch code {
	case hci.EvtCommandCompleteCode:
		return h.handleCommandComplete(params)
	case hci.EvtCommandStatusCode:
		return h.handleCommandStatus(params)
	default:
		return fmt.Errorf("unsupported event: 0x%02X % X", code, params)
	}
}

func (h *Host) handleCommandComplete(b []byte) error {
	e := evt.CommandComplete(b)
	rp, err := e.ReturnParametersWErr()
	if err != nil {
		return fmt.Errorf("invalid command complete: % X", b)
	}

	// NOP command, used for flow control purpose [Vol 4, Part E, 4.4]
	if e.CommandOpcode() == 0x0000 {
		return nil
	}
	return h.dispatch(int(e.CommandOpcode()), rp)
}

func (h *Host) handleCommandStatus(b []byte) error {
	e := evt.CommandStatus(b)
	if !e.Valid() {
		return fmt.Errorf("invalid command status: % X", b)
	}
	return h.dispatch(int(e.CommandOpcode()), []byte{e.Status()})
}

func (h *Host) dispatch(op int, rp []byte) error {
	h.muSent.Lock()
	p, found := h.sent[op]
	h.muSent.Unlock()

	if !found {
		return fmt.Errorf("no pending command 0x%04X for event [% X]", op, rp)
	}

	select {
	case p.done <- rp:
		return nil
	default:
		return fmt.Errorf("duplicate event for command 0x%04X", op)
	}
}
