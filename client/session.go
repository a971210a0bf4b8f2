// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package client implements the backup protocol client session.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/backup/client/config"
	"github.com/katzenpost/backup/client/identity"
	"github.com/katzenpost/backup/client/instrument"
	"github.com/katzenpost/backup/core/log"
	"github.com/katzenpost/backup/core/retry"
	"github.com/katzenpost/backup/core/wire/commands"
)

const (
	// MaxAttempts is the number of times a request is sent while the
	// server answers it with a general error.
	MaxAttempts = 4

	// MaxCRCAttempts is the number of times the file is uploaded while
	// the server checksum does not match.
	MaxCRCAttempts = 4
)

// State is a session state.
type State int

const (
	Identify State = iota
	Login
	Register
	KeyExchange
	Transfer
	Verify
	Done
	Fatal
)

func (s State) String() string {
	switch s {
	case Identify:
		return "Identify"
	case Login:
		return "Login"
	case Register:
		return "Register"
	case KeyExchange:
		return "KeyExchange"
	case Transfer:
		return "Transfer"
	case Verify:
		return "Verify"
	case Done:
		return "Done"
	case Fatal:
		return "Fatal"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Phase returns the protocol phase of s, folding the Login and Register
// sub-states into Identify.
func (s State) Phase() State {
	switch s {
	case Login, Register:
		return Identify
	default:
		return s
	}
}

// Transport is the connection to the backup server.
type Transport interface {
	// Connect dials the server.
	Connect(ctx context.Context, address string, port int) error

	// SendAll writes all of b.
	SendAll(b []byte) error

	// Receive reads one response packet, waiting at most timeout.
	Receive(timeout time.Duration) ([]byte, error)

	// SendChunked writes header, then body in segments of at most
	// maxSegment bytes.
	SendChunked(header, body []byte, maxSegment int) error
}

// Crypto provides the primitives used by the session.
type Crypto interface {
	GenerateKeypair() (public []byte, private []byte, err error)
	PublicKey(private []byte) ([]byte, error)
	DecryptKey(private, ciphertext []byte) ([]byte, error)
	Encrypt(key, plaintext []byte) ([]byte, error)
	Checksum(b []byte) uint32
}

// SessionConfig is the subset of the client configuration a session uses.
type SessionConfig struct {
	Address  string
	Port     int
	Username string
	FilePath string

	// ReceiveTimeout bounds the wait for each response.
	ReceiveTimeout time.Duration

	// RetryBaseDelay is the backoff applied before re-sending a request.
	// Zero retries immediately.
	RetryBaseDelay time.Duration
}

// NewSessionConfig extracts the SessionConfig from cfg.
func NewSessionConfig(cfg *config.Config) *SessionConfig {
	return &SessionConfig{
		Address:        cfg.Server.Address,
		Port:           cfg.Server.Port,
		Username:       cfg.Transfer.Username,
		FilePath:       cfg.Transfer.FilePath,
		ReceiveTimeout: cfg.Debug.ReceiveTimeoutDuration(),
		RetryBaseDelay: cfg.Debug.RetryBaseDelayDuration(),
	}
}

// FilePayload is the file being backed up.  CRC covers Plaintext.
type FilePayload struct {
	Plaintext  []byte
	CRC        uint32
	Ciphertext []byte
}

// Session drives one backup from identification to verification.  It is
// not safe for concurrent use.
type Session struct {
	log *logging.Logger

	cfg       *SessionConfig
	transport Transport
	store     identity.Store
	crypto    Crypto

	state State
	err   error

	name       string
	uid        [commands.UIDLength]byte
	identity   *identity.Identity
	publicKey  []byte
	sessionKey []byte

	payload   *FilePayload
	framer    *Framer
	serverCRC uint32
	uploads   int
}

// NewSession returns a Session in the Identify state.
func NewSession(cfg *SessionConfig, t Transport, store identity.Store, p Crypto, logBackend *log.Backend) *Session {
	return &Session{
		log:       logBackend.GetLogger("backup/session"),
		cfg:       cfg,
		transport: t,
		store:     store,
		crypto:    p,
		state:     Identify,
		name:      cfg.Username,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Err returns the fatal error, if any.
func (s *Session) Err() error {
	return s.err
}

// Identity returns the identity in use, if any.
func (s *Session) Identity() *identity.Identity {
	return s.identity
}

// Payload returns the loaded file, if any.
func (s *Session) Payload() *FilePayload {
	return s.payload
}

// Run connects to the server and steps the session until it is done or
// has failed.
func (s *Session) Run(ctx context.Context) error {
	s.log.Noticef("Connecting to %v:%d", s.cfg.Address, s.cfg.Port)
	if err := s.transport.Connect(ctx, s.cfg.Address, s.cfg.Port); err != nil {
		return s.fail(err)
	}
	for {
		switch s.state {
		case Done:
			return nil
		case Fatal:
			return s.err
		}
		if err := ctx.Err(); err != nil {
			return s.fail(err)
		}
		s.Step(ctx)
	}
}

// Step executes the current state and performs exactly one transition.
// It returns the *FatalError if the session failed.
func (s *Session) Step(ctx context.Context) error {
	var (
		next State
		err  error
	)
	switch s.state {
	case Identify:
		next, err = s.onIdentify()
	case Login:
		next, err = s.onLogin(ctx)
	case Register:
		next, err = s.onRegister(ctx)
	case KeyExchange:
		next, err = s.onKeyExchange(ctx)
	case Transfer:
		next, err = s.onTransfer(ctx)
	case Verify:
		next, err = s.onVerify(ctx)
	case Done:
		return nil
	case Fatal:
		return s.err
	default:
		err = ErrInvalidState
	}
	if err != nil {
		return s.fail(err)
	}
	if next != s.state {
		s.log.Infof("%v -> %v", s.state, next)
	}
	s.state = next
	return nil
}

func (s *Session) fail(err error) error {
	fatal := &FatalError{State: s.state, Err: err}
	s.log.Errorf("Fatal error: %v", fatal)
	s.state = Fatal
	s.err = fatal
	return fatal
}

func (s *Session) onIdentify() (State, error) {
	id, err := s.store.Load()
	switch {
	case errors.Is(err, identity.ErrNoIdentity):
		s.log.Notice("No stored identity, registering")
		return Register, nil
	case err != nil:
		return Fatal, fmt.Errorf("failed to load identity: %w", err)
	}
	if id.Name != s.cfg.Username {
		s.log.Warningf("Stored identity name '%v' differs from configured username '%v', using the stored name", id.Name, s.cfg.Username)
	}
	s.identity = id
	s.name = id.Name
	s.uid = id.UID
	s.log.Noticef("Loaded identity %v (%v)", id.Name, id.UIDHex())
	return Login, nil
}

func (s *Session) onRegister(ctx context.Context) (State, error) {
	s.uid = [commands.UIDLength]byte{}
	resp, err := s.request(ctx, &commands.Registration{Name: s.name})
	if err != nil {
		return Fatal, err
	}
	switch resp.Code() {
	case commands.RegistrationSuccess:
	case commands.RegistrationFailed:
		return Fatal, ErrNameTaken
	default:
		return Fatal, &UnexpectedResponseError{Code: resp.Code()}
	}

	if s.uid, err = commands.RegistrationSuccessFromBytes(resp.Payload); err != nil {
		return Fatal, err
	}
	public, private, err := s.crypto.GenerateKeypair()
	if err != nil {
		return Fatal, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}
	id := &identity.Identity{
		Name:       s.name,
		UID:        s.uid,
		PrivateKey: private,
	}
	if err = s.store.Save(id); err != nil {
		return Fatal, fmt.Errorf("failed to save identity: %w", err)
	}
	s.identity = id
	s.publicKey = public
	s.log.Noticef("Registered as %v (%v)", id.Name, id.UIDHex())
	return KeyExchange, nil
}

func (s *Session) onLogin(ctx context.Context) (State, error) {
	resp, err := s.request(ctx, &commands.Login{Name: s.name})
	if err != nil {
		return Fatal, err
	}
	switch resp.Code() {
	case commands.LoginSuccessSendAES:
	case commands.ReconnectFailed:
		s.log.Warning("Server rejected the stored identity, registering again")
		s.identity = nil
		return Register, nil
	default:
		return Fatal, &UnexpectedResponseError{Code: resp.Code()}
	}
	if err = s.setSessionKey(resp.Payload); err != nil {
		return Fatal, err
	}
	return Transfer, nil
}

func (s *Session) onKeyExchange(ctx context.Context) (State, error) {
	if s.publicKey == nil {
		var err error
		if s.publicKey, err = s.crypto.PublicKey(s.identity.PrivateKey); err != nil {
			return Fatal, fmt.Errorf("failed to derive public key: %w", err)
		}
	}
	resp, err := s.request(ctx, &commands.PublicKey{Name: s.name, Key: s.publicKey})
	if err != nil {
		return Fatal, err
	}
	if resp.Code() != commands.SendAESKey {
		return Fatal, &UnexpectedResponseError{Code: resp.Code()}
	}
	if err = s.setSessionKey(resp.Payload); err != nil {
		return Fatal, err
	}
	return Transfer, nil
}

func (s *Session) setSessionKey(payload []byte) error {
	kr, err := commands.KeyResponseFromBytes(payload)
	if err != nil {
		return err
	}
	if s.sessionKey, err = s.crypto.DecryptKey(s.identity.PrivateKey, kr.EncryptedKey); err != nil {
		return fmt.Errorf("failed to decrypt session key: %w", err)
	}
	s.log.Debug("Session key established")
	return nil
}

func (s *Session) loadPayload() error {
	plaintext, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	ciphertext, err := s.crypto.Encrypt(s.sessionKey, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt file: %w", err)
	}
	s.payload = &FilePayload{
		Plaintext:  plaintext,
		CRC:        s.crypto.Checksum(plaintext),
		Ciphertext: ciphertext,
	}
	s.framer = NewFramer(s.cfg.FilePath, ciphertext)
	s.log.Noticef("Loaded %v: %d bytes, %d encrypted, CRC %08x", s.framer.FileName(), len(plaintext), len(ciphertext), s.payload.CRC)
	return nil
}

func (s *Session) onTransfer(ctx context.Context) (State, error) {
	if s.payload == nil {
		if err := s.loadPayload(); err != nil {
			return Fatal, err
		}
	}
	s.log.Infof("Uploading %v, attempt %d of %d", s.framer.FileName(), s.uploads+1, MaxCRCAttempts)
	resp, err := s.exchange(ctx, commands.FileSendCode, func() (bool, error) {
		err := s.framer.Send(s.transport, s.uid)
		return !errors.Is(err, errFrame), err
	})
	if err != nil {
		return Fatal, err
	}
	if resp.Code() != commands.FileCRC {
		return Fatal, &UnexpectedResponseError{Code: resp.Code()}
	}
	fc, err := commands.FileCRCFromBytes(resp.Payload)
	if err != nil {
		return Fatal, err
	}
	s.serverCRC = fc.CRC
	s.uploads++
	return Verify, nil
}

func (s *Session) onVerify(ctx context.Context) (State, error) {
	fileName := s.framer.FileName()
	if s.serverCRC == s.payload.CRC {
		resp, err := s.request(ctx, &commands.CRCValid{FileName: fileName})
		if err != nil {
			return Fatal, err
		}
		if resp.Code() != commands.Ack {
			return Fatal, &UnexpectedResponseError{Code: resp.Code()}
		}
		s.log.Noticef("Backup of %v verified", fileName)
		return Done, nil
	}

	instrument.CRCMismatch()
	s.log.Warningf("CRC mismatch on attempt %d: server %08x, local %08x", s.uploads, s.serverCRC, s.payload.CRC)
	if s.uploads < MaxCRCAttempts {
		// The server does not answer this notice.
		b, err := commands.Encode(s.uid, &commands.CRCFailed{FileName: fileName})
		if err != nil {
			return Fatal, err
		}
		if err = s.transport.SendAll(b); err != nil {
			return Fatal, fmt.Errorf("failed to send CRC failure notice: %w", err)
		}
		instrument.Request(commands.CRCFailedCode)
		return Transfer, nil
	}

	if _, err := s.request(ctx, &commands.FourFailedCRC{FileName: fileName}); err != nil {
		s.log.Warningf("Final CRC failure notice: %v", err)
	}
	return Fatal, ErrCRCExhausted
}

// request sends req, re-sending it while the server answers with a
// general error, and returns the first other response.
func (s *Session) request(ctx context.Context, req commands.Request) (*commands.Response, error) {
	b, err := commands.Encode(s.uid, req)
	if err != nil {
		return nil, err
	}
	return s.exchange(ctx, req.Code(), func() (bool, error) {
		return false, s.transport.SendAll(b)
	})
}

// exchange runs send and reads the response, at most MaxAttempts times.
// send reports whether its failures may be retried.
func (s *Session) exchange(ctx context.Context, code commands.RequestCode, send func() (bool, error)) (*commands.Response, error) {
	budget := retry.NewBudget(MaxAttempts)
	var lastErr error
	for {
		if err := budget.Spend(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
			}
			return nil, ErrRetryExhausted
		}
		if attempt := budget.Used() - 1; attempt > 0 {
			instrument.Retry(s.state.String())
			s.log.Warningf("Retrying %v, attempt %d of %d, %d left", code, attempt+1, MaxAttempts, budget.Remaining())
			if err := retry.Sleep(ctx, s.cfg.RetryBaseDelay, attempt-1); err != nil {
				return nil, err
			}
		}

		s.log.Debugf("Sending %v", code)
		retryable, err := send()
		instrument.Request(code)
		if err != nil {
			if !retryable {
				return nil, fmt.Errorf("failed to send %v: %w", code, err)
			}
			s.log.Warningf("Failed to send %v: %v", code, err)
			lastErr = err
			continue
		}

		resp, err := s.receive()
		if err != nil {
			return nil, err
		}
		if resp.Code() == commands.GeneralError {
			s.log.Warningf("Server responded to %v with %v", code, resp.Code())
			lastErr = nil
			continue
		}
		return resp, nil
	}
}

func (s *Session) receive() (*commands.Response, error) {
	b, err := s.transport.Receive(s.cfg.ReceiveTimeout)
	if err != nil {
		return nil, err
	}
	resp, err := commands.Decode(b, len(b))
	if err != nil {
		return nil, err
	}
	instrument.Response(resp.Code())
	s.log.Debugf("Received %v, %d byte payload", resp.Code(), len(resp.Payload))
	return resp, nil
}
