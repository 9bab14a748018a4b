package isecnet

import "github.com/isecnet-bridge/isecnet-go/pkg/model"

// Payload builders for V2 commands and command-byte builders for V1.
// Builders return exactly the bytes EncodeV2/EncodeV1 wrap; they never
// touch the socket.

// appNamePrefix is the client name the cloud relay expects in
// APP_CONNECT, regardless of the actual panel model.
const appNamePrefix = "AMT8000-"

// AppConnectPayload builds the cloud APP_CONNECT payload for a panel
// MAC (12 uppercase hex chars, no colons).
func AppConnectPayload(mac string) []byte {
	return []byte(appNamePrefix + mac)
}

// AuthorizePayload builds the AUTHORIZE payload: auth type 3, the
// packed password digits, and software version 1.
func AuthorizePayload(password string) []byte {
	digits := PackPassword(password)
	payload := make([]byte, 0, 9)
	payload = append(payload, 0x03)
	payload = append(payload, digits[:]...)
	return append(payload, 0x00, 0x01)
}

// ConnectPayload builds the cloud CONNECT payload.
func ConnectPayload() []byte {
	return []byte{0}
}

// ArmPayload builds the ARM_DISARM payload. A nil partition targets
// all partitions (byte 0xFF); otherwise the wire carries index+1.
func ArmPayload(op Operation, partition *int) []byte {
	pb := byte(0xFF)
	if partition != nil {
		pb = byte(*partition + 1)
	}
	return []byte{pb, byte(op)}
}

// Fence energizers overload ARM_DISARM: the shock circuit answers as
// partition byte 2 and the alarm section as partition byte 1.
const (
	fenceShockPartition = 1
	fenceAlarmPartition = 0
)

// FenceShockPayload builds the ARM_DISARM payload that switches the
// shock circuit of a fence energizer.
func FenceShockPayload(on bool) []byte {
	p := fenceShockPartition
	return ArmPayload(boolOp(on), &p)
}

// FenceAlarmPayload builds the ARM_DISARM payload that switches the
// alarm section of a fence energizer.
func FenceAlarmPayload(on bool) []byte {
	p := fenceAlarmPartition
	return ArmPayload(boolOp(on), &p)
}

func boolOp(on bool) Operation {
	if on {
		return OpArmAway
	}
	return OpDisarm
}

// BypassPayload builds the BYPASS_ZONE payload: a 0xFF marker followed
// by eight zone-state bytes. Zones listed in indices (0-7) are set to
// 1 when bypassing and 0 when restoring; out-of-range indices are
// ignored. A nil indices slice addresses all eight zones.
func BypassPayload(indices []int, bypass bool) []byte {
	state := byte(0x00)
	if bypass {
		state = 0x01
	}

	payload := make([]byte, 9)
	payload[0] = 0xFF
	if indices == nil {
		for i := 1; i < len(payload); i++ {
			payload[i] = state
		}
		return payload
	}
	for _, idx := range indices {
		if idx >= 0 && idx < 8 {
			payload[1+idx] = state
		}
	}
	return payload
}

// PGMPayload builds the PGM_ON_OFF payload for a programmable output.
func PGMPayload(index int, on bool) []byte {
	state := byte(0x00)
	if on {
		state = 0x01
	}
	return []byte{byte(index), state}
}

// MACPayload builds the GET_MAC request payload.
func MACPayload() []byte {
	return []byte{0}
}

// V1ArmCommand builds the V1 arm command bytes: 'A', an optional
// partition letter ('A'+index), and the 'P' stay marker. The partition
// letter must be omitted on panels without partitions enabled.
func V1ArmCommand(partition *int, stay bool) []byte {
	cmd := []byte{V1Arm}
	if partition != nil {
		cmd = append(cmd, 0x41+byte(*partition))
	}
	if stay {
		cmd = append(cmd, V1Panic) // 'P' marks parcial (stay) mode
	}
	return cmd
}

// V1DisarmCommand builds the V1 disarm command bytes.
func V1DisarmCommand(partition *int) []byte {
	cmd := []byte{V1Disarm}
	if partition != nil {
		cmd = append(cmd, 0x41+byte(*partition))
	}
	return cmd
}

// V1StatusCommand builds the V1 partial status request.
func V1StatusCommand() []byte {
	return []byte{V1PartialStatus}
}

// V1CompleteStatusCommand picks the complete-status command byte for a
// model: SMART models answer 0x5D, the AMT_4010 0x5B, everything else
// the legacy 0x53.
func V1CompleteStatusCommand(modelCode byte) []byte {
	switch modelCode {
	case model.ModelAMT2018ESmart, model.ModelAMT1000Smart:
		return []byte{V1SmartStatus}
	case model.ModelAMT4010:
		return []byte{V1ExtendedStatus}
	default:
		return []byte{V1CompleteStatus}
	}
}

// V1SirenOffCommand builds the V1 siren-off command bytes.
func V1SirenOffCommand() []byte {
	return []byte{V1SirenOff}
}
