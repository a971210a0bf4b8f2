// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package transport implements the TCP transport of the backup client.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/backup/client/config"
	"github.com/katzenpost/backup/core/log"
	"github.com/katzenpost/backup/core/wire/commands"
	"github.com/katzenpost/backup/internal/proxy"
)

const keepAliveInterval = 3 * time.Minute

var (
	// ErrNotConnected is returned when an operation is attempted before
	// Connect succeeds.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrReceive wraps every receive failure, timeouts included.
	ErrReceive = errors.New("transport: receive failed")
)

// ConnectError is the error used to indicate that a connect attempt has failed.
type ConnectError struct {
	// Err is the original error that caused the connect attempt to fail.
	Err error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: connect error: %v", e.Err)
}

// Unwrap returns the original error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Transport is a single TCP connection to the backup server.
type Transport struct {
	sync.Mutex

	log *logging.Logger

	dialer      *net.Dialer
	dialContext proxy.DialContextFn
	conn        net.Conn
}

// New returns a Transport configured by cfg.  Nothing is dialed until
// Connect.
func New(cfg *config.Config, logBackend *log.Backend) *Transport {
	t := &Transport{
		log: logBackend.GetLogger("backup/transport"),
		dialer: &net.Dialer{
			KeepAlive: keepAliveInterval,
			Timeout:   cfg.Debug.DialTimeoutDuration(),
		},
	}
	if pCfg := cfg.UpstreamProxyConfig(); pCfg != nil {
		t.dialContext = pCfg.ToDialContext("backup:"+cfg.Transfer.Username, t.dialer)
	}
	if t.dialContext == nil {
		t.dialContext = t.dialer.DialContext
	}
	return t
}

// Connect dials address:port over TCP.
func (t *Transport) Connect(ctx context.Context, address string, port int) error {
	t.Lock()
	defer t.Unlock()

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	addr := net.JoinHostPort(address, strconv.Itoa(port))
	t.log.Debugf("Dialing: %v", addr)
	conn, err := t.dialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectError{Err: err}
	}
	t.log.Debugf("TCP connection established: %v", conn.RemoteAddr())
	t.conn = conn
	return nil
}

func (t *Transport) getConn() (net.Conn, error) {
	t.Lock()
	defer t.Unlock()
	if t.conn == nil {
		return nil, ErrNotConnected
	}
	return t.conn, nil
}

// SendAll writes all of b.
func (t *Transport) SendAll(b []byte) error {
	conn, err := t.getConn()
	if err != nil {
		return err
	}
	return writeFull(conn, b)
}

// SendChunked writes header in one write, then body in segments of at
// most maxSegment bytes.  Every segment must be written whole.
func (t *Transport) SendChunked(header, body []byte, maxSegment int) error {
	conn, err := t.getConn()
	if err != nil {
		return err
	}
	return sendChunked(conn, header, body, maxSegment)
}

func sendChunked(w io.Writer, header, body []byte, maxSegment int) error {
	if maxSegment <= 0 {
		return fmt.Errorf("transport: invalid segment size %d", maxSegment)
	}
	if err := writeFull(w, header); err != nil {
		return err
	}
	for off := 0; off < len(body); off += maxSegment {
		end := min(off+maxSegment, len(body))
		if err := writeFull(w, body[off:end]); err != nil {
			return fmt.Errorf("transport: segment at offset %d: %w", off, err)
		}
	}
	return nil
}

func writeFull(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// Receive reads one response packet, waiting at most timeout.  The server
// pads every response to commands.PacketLength; a connection closed part
// way through a packet yields the bytes that arrived.
func (t *Transport) Receive(timeout time.Duration) ([]byte, error) {
	conn, err := t.getConn()
	if err != nil {
		return nil, err
	}
	if err = conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReceive, err)
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, commands.PacketLength)
	n, err := io.ReadFull(conn, buf)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF) && n > 0:
		t.log.Debugf("Connection closed after a partial packet of %d bytes", n)
	default:
		return nil, fmt.Errorf("%w: %w", ErrReceive, err)
	}
	return buf[:n], nil
}

// Close closes the connection.
func (t *Transport) Close() error {
	t.Lock()
	defer t.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
