package h4

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blesim"
	"github.com/rigado/blesim/hci"
)

const rxQueueSize = 64

// CommandHandler answers one H4 command packet with one H4 event packet.
type CommandHandler interface {
	HandleCommand(b []byte) ([]byte, error)
}

// Server feeds H4 command packets from a host to a CommandHandler and
// writes back the events it returns.
type Server struct {
	h      CommandHandler
	logger blesim.Logger
}

func NewServer(h CommandHandler, l blesim.Logger) *Server {
	if l == nil {
		l = blesim.GetLogger()
	}
	return &Server{h: h, logger: l}
}

// Serve handles packets read from rwc until ctx is done or rwc fails.
// rwc is closed on return. A host hanging up is not an error.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	defer rwc.Close()

	done := make(chan struct{})
	defer close(done)

	rxQueue := make(chan []byte, rxQueueSize)
	errc := make(chan error, 1)
	go func() { errc <- ReadPackets(rwc, rxQueue, done) }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errc:
			if err == nil || err == io.EOF {
				s.logger.Info("host disconnected")
				return nil
			}
			return errors.Wrap(err, "can't read h4")

		case p := <-rxQueue:
			if p[0] != hci.PktTypeCommand {
				s.logger.Debugf("dropping packet type 0x%02X, %v bytes", p[0], len(p))
				continue
			}

			evt, err := s.h.HandleCommand(p)
			if err != nil {
				s.logger.Warnf("bad command [% X]: %v", p, err)
				continue
			}
			s.logger.Debugf("cmd [% X] evt [% X]", p, evt)

			if _, err := rwc.Write(evt); err != nil {
				return errors.Wrap(err, "can't write h4")
			}
		}
	}
}

// ReadPackets reads H4 packets from r into q until r fails or done is closed.
// Read timeouts are retried. It returns nil once done is closed.
func ReadPackets(r io.Reader, q chan<- []byte, done <-chan struct{}) error {
	f := newFrame(q, done)
	tmp := make([]byte, 512)
	for {
		select {
		case <-done:
			return nil
		default:
		}

		n, err := r.Read(tmp)
		if n > 0 {
			f.Assemble(tmp[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
	}
}

// NewSocket dials an H4 server over TCP. Reads and writes time out after timeout.
func NewSocket(addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %v", addr)
	}
	return &connWithTimeout{c: c, timeout: timeout}, nil
}

// ListenAndServe accepts H4 connections on the TCP address addr and serves
// each of them until ctx is done. Reads and writes on a connection time out
// after timeout, which only bounds how long shutdown takes.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "can't listen on %v", addr)
	}
	s.logger.Infof("listening on %v", ln.Addr())
	return s.ServeListener(ctx, ln, timeout)
}

// ServeListener is ListenAndServe on an existing listener. ln is closed on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener, timeout time.Duration) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "can't accept")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l := s.logger.ChildLogger(map[string]interface{}{"remote": conn.RemoteAddr().String()})
			l.Info("host connected")
			cs := &Server{h: s.h, logger: l}
			if err := cs.Serve(ctx, &connWithTimeout{c: conn, timeout: timeout}); err != nil {
				l.Error(err)
			}
		}()
	}
}
