// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package client

import (
	"errors"
	"fmt"

	"github.com/katzenpost/backup/core/wire/commands"
)

var (
	// ErrRetryExhausted is returned when the server kept answering a
	// request with a general error.
	ErrRetryExhausted = errors.New("server responded with an error 4 times")

	// ErrNameTaken is returned when the server refuses a registration.
	ErrNameTaken = errors.New("registration failed, the username may already be taken")

	// ErrCRCExhausted is returned when every upload attempt produced a
	// checksum mismatch.
	ErrCRCExhausted = errors.New("file checksum did not match after 4 attempts")

	// ErrInvalidState is returned by Step when the session is in an
	// unknown state.
	ErrInvalidState = errors.New("unknown session state")
)

// UnexpectedResponseError is returned when the server answers with a code
// the current state does not accept.
type UnexpectedResponseError struct {
	Code commands.ResponseCode
}

// Error implements the error interface.
func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response from server: %v", e.Code)
}

// FatalError is the error used to indicate that the session can not
// continue.
type FatalError struct {
	// State is the state the session was in when it failed.
	State State

	// Err is the original error.
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("%v: %v", e.State, e.Err)
}

// Unwrap returns the original error.
func (e *FatalError) Unwrap() error {
	return e.Err
}
