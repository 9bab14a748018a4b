package session

// Stage is a session's position in the connect/authenticate flow.
// Commands may only be issued from StageAuthorized.
type Stage int32

const (
	// StageDisconnected indicates no socket.
	StageDisconnected Stage = iota

	// StageTCPOpen indicates an open socket, nothing spoken yet.
	StageTCPOpen

	// StageServerOK indicates the relay or receiver accepted the
	// session.
	StageServerOK

	// StageAppOK indicates the panel acknowledged the app handshake.
	StageAppOK

	// StageAuthorized indicates the session accepts commands.
	StageAuthorized
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageDisconnected:
		return "DISCONNECTED"
	case StageTCPOpen:
		return "TCP_OPEN"
	case StageServerOK:
		return "SERVER_OK"
	case StageAppOK:
		return "APP_OK"
	case StageAuthorized:
		return "AUTHORIZED"
	default:
		return "UNKNOWN"
	}
}
