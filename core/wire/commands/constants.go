// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Backup wire protocol commands.
package commands

import "fmt"

const (
	// Version is the only protocol version spoken by either peer.
	Version = 3

	// PacketLength is the size of a single network packet.  Responses
	// are padded to this size by the server, and file bodies are written
	// in segments no larger than this.
	PacketLength = 2048

	// UIDLength is the length of the server assigned client identifier.
	UIDLength = 16

	// RequestHeaderLength is the length of the request header:
	// uid(16) version(1) code(2) payloadSize(4).
	RequestHeaderLength = UIDLength + 1 + 2 + 4

	// ResponseHeaderLength is the length of the response header:
	// version(1) code(2) payloadSize(4).
	ResponseHeaderLength = 1 + 2 + 4

	// NameLength is the wire width of the username field.
	NameLength = 255

	// MaxNameLength is the logical limit on a username.
	MaxNameLength = 100

	// PublicKeyLength is the wire width of the client RSA public key.
	PublicKeyLength = 160

	// FileNameLength is the wire width of the file name field.
	FileNameLength = 255

	ContentSizeLength = 4
	CRCLength         = 4

	// FileCRCLength is the length of a FileCRC payload:
	// uid(16) contentSize(4) fileName(255) crc(4).
	FileCRCLength = UIDLength + ContentSizeLength + FileNameLength + CRCLength

	fileSendBaseLength = ContentSizeLength + FileNameLength
)

// RequestCode is the type of a client request.
type RequestCode uint16

const (
	RegistrationCode  RequestCode = 1100
	PublicKeyCode     RequestCode = 1101
	LoginCode         RequestCode = 1102
	FileSendCode      RequestCode = 1103
	CRCValidCode      RequestCode = 1104
	CRCFailedCode     RequestCode = 1105
	FourFailedCRCCode RequestCode = 1106
)

func (c RequestCode) String() string {
	switch c {
	case RegistrationCode:
		return "Registration"
	case PublicKeyCode:
		return "PublicKey"
	case LoginCode:
		return "Login"
	case FileSendCode:
		return "FileSend"
	case CRCValidCode:
		return "CRCValid"
	case CRCFailedCode:
		return "CRCFailed"
	case FourFailedCRCCode:
		return "FourFailedCRC"
	default:
		return fmt.Sprintf("RequestCode(%d)", uint16(c))
	}
}

// ResponseCode is the type of a server response.
type ResponseCode uint16

const (
	RegistrationSuccess ResponseCode = 2100
	RegistrationFailed  ResponseCode = 2101
	SendAESKey          ResponseCode = 2102
	FileCRC             ResponseCode = 2103
	Ack                 ResponseCode = 2104
	LoginSuccessSendAES ResponseCode = 2105
	ReconnectFailed     ResponseCode = 2106
	GeneralError        ResponseCode = 2107
)

func (c ResponseCode) String() string {
	switch c {
	case RegistrationSuccess:
		return "RegistrationSuccess"
	case RegistrationFailed:
		return "RegistrationFailed"
	case SendAESKey:
		return "SendAESKey"
	case FileCRC:
		return "FileCRC"
	case Ack:
		return "Ack"
	case LoginSuccessSendAES:
		return "LoginSuccessSendAES"
	case ReconnectFailed:
		return "ReconnectFailed"
	case GeneralError:
		return "GeneralError"
	default:
		return fmt.Sprintf("ResponseCode(%d)", uint16(c))
	}
}
