// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package commands

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidVersion is returned when a response carries a protocol
	// version other than Version.
	ErrInvalidVersion = errors.New("wire: invalid protocol version")

	// ErrShortResponse is returned when fewer bytes than a response
	// header were received.
	ErrShortResponse = errors.New("wire: short response")

	// ErrShortRequest is returned when fewer bytes than a request header
	// are available.
	ErrShortRequest = errors.New("wire: short request")

	// ErrShortPayload is returned when a response payload is too short
	// for the fields its code implies.
	ErrShortPayload = errors.New("wire: short payload")

	// ErrFieldTooLong is returned when a string does not fit its fixed
	// width wire field.
	ErrFieldTooLong = errors.New("wire: field too long")
)

// RequestHeader is the fixed header prepended to every client request.
type RequestHeader struct {
	UID         [UIDLength]byte
	Version     uint8
	Code        RequestCode
	PayloadSize uint32
}

// ToBytes serializes the RequestHeader.
func (h *RequestHeader) ToBytes() []byte {
	out := make([]byte, RequestHeaderLength)
	copy(out[:UIDLength], h.UID[:])
	out[16] = h.Version
	binary.LittleEndian.PutUint16(out[17:19], uint16(h.Code))
	binary.LittleEndian.PutUint32(out[19:23], h.PayloadSize)
	return out
}

// RequestHeaderFromBytes de-serializes a RequestHeader from the start of b.
func RequestHeaderFromBytes(b []byte) (*RequestHeader, error) {
	if len(b) < RequestHeaderLength {
		return nil, ErrShortRequest
	}
	h := new(RequestHeader)
	copy(h.UID[:], b[:UIDLength])
	h.Version = b[16]
	h.Code = RequestCode(binary.LittleEndian.Uint16(b[17:19]))
	h.PayloadSize = binary.LittleEndian.Uint32(b[19:23])
	return h, nil
}

// ResponseHeader is the fixed header prepended to every server response.
type ResponseHeader struct {
	Version     uint8
	Code        ResponseCode
	PayloadSize uint32
}

// ToBytes serializes the ResponseHeader.
func (h *ResponseHeader) ToBytes() []byte {
	out := make([]byte, ResponseHeaderLength)
	out[0] = h.Version
	binary.LittleEndian.PutUint16(out[1:3], uint16(h.Code))
	binary.LittleEndian.PutUint32(out[3:7], h.PayloadSize)
	return out
}

// Response is a decoded server response.  Payload is owned by the caller.
type Response struct {
	Header  ResponseHeader
	Payload []byte
}

// Code returns the response code.
func (r *Response) Code() ResponseCode {
	return r.Header.Code
}

// Request is the common interface exposed by all client requests.
type Request interface {
	// Code returns the request code placed in the header.
	Code() RequestCode

	// Payload serializes the request body.
	Payload() ([]byte, error)
}

// NewRequestHeader returns the header for a payload of the given size.
func NewRequestHeader(uid [UIDLength]byte, code RequestCode, payloadSize int) (*RequestHeader, error) {
	if payloadSize < 0 || uint64(payloadSize) > math.MaxUint32 {
		return nil, fmt.Errorf("wire: payload size %d does not fit the header", payloadSize)
	}
	return &RequestHeader{
		UID:         uid,
		Version:     Version,
		Code:        code,
		PayloadSize: uint32(payloadSize),
	}, nil
}

// Encode serializes req behind a request header carrying uid.
func Encode(uid [UIDLength]byte, req Request) ([]byte, error) {
	payload, err := req.Payload()
	if err != nil {
		return nil, err
	}
	h, err := NewRequestHeader(uid, req.Code(), len(payload))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, RequestHeaderLength+len(payload))
	out = append(out, h.ToBytes()...)
	return append(out, payload...), nil
}

// Decode de-serializes the response in the first n bytes of b.  The
// payload copied is the smaller of the declared payload size and the
// bytes actually received after the header.
func Decode(b []byte, n int) (*Response, error) {
	if n > len(b) {
		n = len(b)
	}
	if n < ResponseHeaderLength {
		return nil, ErrShortResponse
	}
	r := new(Response)
	r.Header.Version = b[0]
	if r.Header.Version != Version {
		return nil, ErrInvalidVersion
	}
	r.Header.Code = ResponseCode(binary.LittleEndian.Uint16(b[1:3]))
	r.Header.PayloadSize = binary.LittleEndian.Uint32(b[3:7])

	avail := uint32(n - ResponseHeaderLength)
	size := r.Header.PayloadSize
	if size > avail {
		size = avail
	}
	r.Payload = make([]byte, size)
	copy(r.Payload, b[ResponseHeaderLength:ResponseHeaderLength+int(size)])
	return r, nil
}

// EncodeResponse serializes a response with the given code and payload.
func EncodeResponse(code ResponseCode, payload []byte) []byte {
	h := &ResponseHeader{
		Version:     Version,
		Code:        code,
		PayloadSize: uint32(len(payload)),
	}
	out := make([]byte, 0, ResponseHeaderLength+len(payload))
	out = append(out, h.ToBytes()...)
	return append(out, payload...)
}

// putString copies s into dst and zero fills the remainder.  At least
// one trailing NUL must fit within dst.
func putString(dst []byte, s string) error {
	if len(s) >= len(dst) {
		return ErrFieldTooLong
	}
	n := copy(dst, s)
	clear(dst[n:])
	return nil
}

// getString returns the NUL terminated string at the start of b.
func getString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
