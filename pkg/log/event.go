package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the panel connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Transport indicates the path to the panel (cloud relay or
	// direct IP receiver).
	Transport Transport `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// PanelID identifies the panel (MAC for cloud connections,
	// receiver account otherwise).
	PanelID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Command     *CommandEvent     `cbor:"11,keyasint,omitempty"` // Protocol layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerProtocol is the command layer (decoded frames).
	LayerProtocol Layer = 1
	// LayerService is the application/service layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerProtocol:
		return "PROTOCOL"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a command or status exchange.
	CategoryMessage Category = 0
	// CategoryControl indicates handshake or keep-alive traffic.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Transport indicates how the panel is reached.
type Transport uint8

const (
	// TransportCloud indicates a connection through the vendor relay.
	TransportCloud Transport = 0
	// TransportReceiver indicates a direct IP-receiver connection.
	TransportReceiver Transport = 1
)

// String returns the transport name.
func (t Transport) String() string {
	switch t {
	case TransportCloud:
		return "CLOUD"
	case TransportReceiver:
		return "RECEIVER"
	default:
		return "UNKNOWN"
	}
}

// Dialect identifies the frame format on the wire.
type Dialect uint8

const (
	// DialectV2 is the framing spoken through the cloud relay.
	DialectV2 Dialect = 0
	// DialectV1 is the framing spoken by IP receivers.
	DialectV1 Dialect = 1
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectV2:
		return "V2"
	case DialectV1:
		return "V1"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameDataSize bounds the raw bytes captured per frame event.
// Larger frames are truncated and flagged.
const MaxFrameDataSize = 4096

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Dialect of the captured frame.
	Dialect Dialect `cbor:"1,keyasint"`

	// Size is the full frame size in bytes.
	Size int `cbor:"2,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent builds a FrameEvent for a raw frame. The captured
// bytes are copied so callers may reuse their buffer; frames larger
// than MaxFrameDataSize are truncated.
func NewFrameEvent(dialect Dialect, frame []byte) *FrameEvent {
	fe := &FrameEvent{Dialect: dialect, Size: len(frame)}
	data := frame
	if len(data) > MaxFrameDataSize {
		data = data[:MaxFrameDataSize]
		fe.Truncated = true
	}
	fe.Data = append([]byte(nil), data...)
	return fe
}

// CommandEvent captures a decoded command exchange at the protocol
// layer. For V2 traffic Code is the two-byte command identifier; for
// V1 traffic it is the command byte.
type CommandEvent struct {
	// Dialect of the exchange.
	Dialect Dialect `cbor:"1,keyasint"`

	// Code is the command identifier.
	Code uint16 `cbor:"2,keyasint"`

	// Name is the human-readable command name.
	Name string `cbor:"3,keyasint,omitempty"`

	// Result classifies the reply (e.g. "ack", "nack", an error name).
	// Empty for outgoing requests.
	Result string `cbor:"4,keyasint,omitempty"`

	// PayloadSize is the command payload length in bytes.
	PayloadSize int `cbor:"5,keyasint,omitempty"`

	// ProcessingTime is the duration from request send to reply
	// receipt (replies only). Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a TCP connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session stage change.
	StateEntitySession StateEntity = 1
	// StateEntityPool indicates a pool membership change.
	StateEntityPool StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityPool:
		return "POOL"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the protocol error code (NACK reason or V1 reply code),
	// if one was reported.
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
