package session

import (
	"errors"
	"fmt"

	"github.com/isecnet-bridge/isecnet-go/pkg/isecnet"
)

// Session errors.
var (
	// ErrNotAuthorized reports a command issued before the handshake
	// completed or after teardown.
	ErrNotAuthorized = errors.New("session not authorized")

	// ErrAlreadyConnected reports Connect on a live session.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrUnverified reports an arm command the panel did not answer
	// within the arm read window. The command was sent and the session
	// stays authorized; callers confirm the outcome with a status read.
	ErrUnverified = errors.New("command sent, unverified")

	// ErrUnsupported reports a command the session's transport cannot
	// carry.
	ErrUnsupported = errors.New("command not supported on this transport")
)

// HandshakeError reports a handshake step the relay, receiver, or
// panel refused. The session is torn down; callers may retry later.
type HandshakeError struct {
	// Step names the refused exchange: "connect", "get_byte", or
	// "app_connect".
	Step string

	// Result is the refusal reported by the peer.
	Result isecnet.ConnectResult
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s handshake failed: %s", e.Step, e.Result)
}

// AuthError reports a rejected authorization. The reason is final for
// the supplied password; callers must not retry with it.
type AuthError struct {
	// Reason is the decoded rejection: "invalid_password",
	// "blocked_user", or "no_permission".
	Reason string
}

func (e *AuthError) Error() string {
	return "authorization rejected: " + e.Reason
}

// CommandError reports a command the panel refused. The session stays
// authorized; only this command failed.
type CommandError struct {
	// Code is the reason byte: the NACK code on V2, the reply code on
	// V1.
	Code byte

	// Message is the decoded reason, when the dialect defines one.
	Message string
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("panel refused command: %s", e.Message)
	}
	return fmt.Sprintf("panel refused command: code 0x%02X", e.Code)
}
