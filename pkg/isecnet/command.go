package isecnet

import "fmt"

// Command is a V2 command code.
type Command uint16

// V2 command codes.
const (
	CmdConnect     Command = 0x30F6
	CmdAppConnect  Command = 0xFFF1
	CmdAuthorize   Command = 0xF0F0
	CmdKeepAlive   Command = 0xF0F7
	CmdDisconnect  Command = 0xF0F1
	CmdArmDisarm   Command = 0x401E
	CmdPanelStatus Command = 0x0B4A
	CmdPanicAlarm  Command = 0x401A
	CmdSirenOff    Command = 0x4019
	CmdBypassZone  Command = 0x401F
	CmdGetMAC      Command = 0x3FAA
	CmdPGM         Command = 0x45AF

	// Reply codes echoed in the command field of a V2 response.
	CmdAck  Command = 0xF0FE
	CmdNack Command = 0xF0FD
)

// String returns the command name for logs.
func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "CONNECT"
	case CmdAppConnect:
		return "APP_CONNECT"
	case CmdAuthorize:
		return "AUTHORIZE"
	case CmdKeepAlive:
		return "KEEP_ALIVE"
	case CmdDisconnect:
		return "DISCONNECT"
	case CmdArmDisarm:
		return "ARM_DISARM"
	case CmdPanelStatus:
		return "PANEL_STATUS"
	case CmdPanicAlarm:
		return "PANIC_ALARM"
	case CmdSirenOff:
		return "SIREN_OFF"
	case CmdBypassZone:
		return "BYPASS_ZONE"
	case CmdGetMAC:
		return "GET_MAC"
	case CmdPGM:
		return "PGM"
	case CmdAck:
		return "ACK"
	case CmdNack:
		return "NACK"
	default:
		return fmt.Sprintf("CMD_0x%04X", uint16(c))
	}
}

// Operation selects the arm/disarm action in an ARM_DISARM payload.
type Operation byte

const (
	OpDisarm   Operation = 0
	OpArmAway  Operation = 1
	OpArmStay  Operation = 2
	OpForceArm Operation = 3
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpDisarm:
		return "disarm"
	case OpArmAway:
		return "arm_away"
	case OpArmStay:
		return "arm_stay"
	case OpForceArm:
		return "force_arm"
	default:
		return fmt.Sprintf("op_%d", byte(o))
	}
}

// V1 command bytes. V1 commands are short ASCII-flavored byte strings
// wrapped by EncodeV1.
const (
	v1Program byte = 0xE9 // header byte of every V1 frame

	V1PartialStatus  byte = 0x5A
	V1CompleteStatus byte = 0x53 // legacy models
	V1SmartStatus    byte = 0x5D // *_SMART models
	V1ExtendedStatus byte = 0x5B // AMT_4010
	V1CompleteInfo   byte = 0x49
	V1Arm            byte = 0x41 // 'A'
	V1Disarm         byte = 0x44 // 'D'
	V1Panic          byte = 0x50 // 'P', doubles as the stay marker
	V1SirenOff       byte = 0x4F // 'O'
	V1PGM            byte = 0x47 // 'G'
)

// V1CommandName returns the name of a V1 command byte for logs.
func V1CommandName(b byte) string {
	switch b {
	case V1Arm:
		return "ARM"
	case V1Disarm:
		return "DISARM"
	case V1SirenOff:
		return "SIREN_OFF"
	case V1PGM:
		return "PGM"
	case V1Panic:
		return "PANIC"
	case V1PartialStatus:
		return "PARTIAL_STATUS"
	case V1CompleteStatus, V1SmartStatus, V1ExtendedStatus:
		return "COMPLETE_STATUS"
	case V1CompleteInfo:
		return "COMPLETE_INFO"
	default:
		return fmt.Sprintf("V1_0x%02X", b)
	}
}

// IP-receiver handshake command bytes.
const (
	receiverGetByte byte = 0xE0
	receiverConnect byte = 0xE4

	// receiverEthernet is the connection type the official app always
	// sends on receiver APP_CONNECT.
	receiverEthernet byte = 0x45
)

// V1Code is a V1 command reply code (byte 2 of a short reply).
type V1Code byte

const (
	V1CodeSuccess            V1Code = 0xFE
	V1CodeUnknown            V1Code = 0x00
	V1CodeInvalidPacket      V1Code = 0xE0
	V1CodeIncorrectPassword  V1Code = 0xE1
	V1CodeInvalidCommand     V1Code = 0xE2
	V1CodeNoPartitions       V1Code = 0xE3
	V1CodeOpenZones          V1Code = 0xE4
	V1CodeDeprecated         V1Code = 0xE5
	V1CodeBypassDenied       V1Code = 0xE6
	V1CodeDeactivationDenied V1Code = 0xE7
	V1CodeBypassWhileArmed   V1Code = 0xE8
	V1CodeInvalidModel       V1Code = 0xFF
)

// Message returns the reply code description.
func (c V1Code) Message() string {
	switch c {
	case V1CodeSuccess:
		return "OK"
	case V1CodeInvalidPacket:
		return "invalid package"
	case V1CodeIncorrectPassword:
		return "incorrect password"
	case V1CodeInvalidCommand:
		return "invalid command"
	case V1CodeNoPartitions:
		return "no partitions"
	case V1CodeOpenZones:
		return "open zones"
	case V1CodeDeprecated:
		return "command deprecated"
	case V1CodeBypassDenied:
		return "bypass denied"
	case V1CodeDeactivationDenied:
		return "deactivation denied"
	case V1CodeBypassWhileArmed:
		return "bypass denied while armed"
	case V1CodeInvalidModel:
		return "invalid model"
	case V1CodeUnknown:
		return "unknown error"
	default:
		return fmt.Sprintf("reply 0x%02X", byte(c))
	}
}

// V2 NACK reason codes on arm commands.
const (
	NackZoneOpen     byte = 0x01
	NackBatteryLow   byte = 0x02
	NackNoPermission byte = 0x03
)

// NackMessage returns the NACK reason description, empty for codes the
// panel does not document.
func NackMessage(code byte) string {
	switch code {
	case NackZoneOpen:
		return "zone open"
	case NackBatteryLow:
		return "battery low"
	case NackNoPermission:
		return "no permission"
	default:
		return ""
	}
}

// ConnectResult is the APP_CONNECT reply code (byte 8 of the cloud
// reply, byte 2 of the receiver reply mapped onto the same scale).
type ConnectResult byte

const (
	ConnectSuccess         ConnectResult = 0
	ConnectNotConnected    ConnectResult = 1
	ConnectCentralNotFound ConnectResult = 2
	ConnectCentralBusy     ConnectResult = 3
	ConnectCentralOffline  ConnectResult = 4
)

// String returns the handshake failure description.
func (r ConnectResult) String() string {
	switch r {
	case ConnectSuccess:
		return "connected"
	case ConnectNotConnected:
		return "not connected"
	case ConnectCentralNotFound:
		return "central not found"
	case ConnectCentralBusy:
		return "central is busy"
	case ConnectCentralOffline:
		return "central is offline"
	default:
		return fmt.Sprintf("app connect result %d", byte(r))
	}
}

// AuthResult is the AUTHORIZE reply code (byte 8 of the reply).
type AuthResult byte

const (
	AuthAccepted        AuthResult = 0
	AuthInvalidPassword AuthResult = 1
	AuthBlockedUser     AuthResult = 2
	AuthNoPermission    AuthResult = 3
)

// String returns the authorization result description.
func (r AuthResult) String() string {
	switch r {
	case AuthAccepted:
		return "accepted"
	case AuthInvalidPassword:
		return "invalid_password"
	case AuthBlockedUser:
		return "blocked_user"
	case AuthNoPermission:
		return "no_permission"
	default:
		return fmt.Sprintf("auth result %d", byte(r))
	}
}
