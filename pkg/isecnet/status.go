package isecnet

import (
	"fmt"
	"strings"

	"github.com/isecnet-bridge/isecnet-go/pkg/model"
)

// Offsets into the data section of a V1 status reply (size byte and
// checksum stripped). The zone bitmaps overlap the reply-code byte;
// that is how the panels lay it out.
const (
	statusEchoOffset     = 0
	statusOpenOffset     = 1
	statusViolatedOffset = 7
	statusBypassedOffset = 13
	statusModelOffset    = 19
	statusFirmwareOffset = 20
	statusConfigOffset   = 21 // partitions-enabled, or fence shock state
	statusPartBitsOffset = 22 // partition bit pairs, or fence alarm state
	statusBatteryOffset  = 31
	statusOutputOffset   = 38 // siren bit 7, or fence panic byte

	statusZoneCount  = 48
	statusMinDataLen = 40
)

// Complete-status extensions, same coordinate system.
const (
	completeWirelessOffset   = 64
	completeTamperOffset     = 70
	completeShortOffset      = 76
	completeBatteryLowOffset = 82
	completeSignalOffset     = 108
	completeSignalCount      = 8
)

// Offsets into a raw V2 status frame.
const (
	v2ModelOffset     = 8
	v2PartitionOffset = 10
	v2PartitionCount  = 4
	v2TriggeredOffset = 14
	v2FenceShock      = 30
	v2FenceAlarm      = 31
	v2FencePanic      = 70
	v2StatusMinLen    = 32
	v2FullStatusLen   = 144
)

// bitAt reads bit zone of an LSB-first bitmap starting at data[off].
// Out-of-range reads yield false.
func bitAt(data []byte, off, zone int) bool {
	idx := off + zone/8
	if idx < 0 || idx >= len(data) {
		return false
	}
	return data[idx]&(1<<(zone%8)) != 0
}

// parseFenceBytes decodes the two fence state bytes shared by both
// dialects. The shock byte carries enabled at bit 0 and triggered at
// bit 2; the alarm byte carries armed at bit 0, stay at bit 1 and
// triggered at bit 2, with the panic byte as an alternate trigger.
func parseFenceBytes(shock, alarm, panicByte byte) (model.FenceStatus, model.ArmMode) {
	fence := model.FenceStatus{
		ShockEnabled:   shock&0x01 != 0,
		ShockTriggered: shock&0x04 != 0,
		AlarmEnabled:   alarm&0x01 != 0,
		AlarmTriggered: alarm&0x04 != 0 || panicByte == 1,
	}

	mode := model.ModeDisarmed
	if fence.AlarmEnabled {
		if alarm&0x02 != 0 {
			mode = model.ModeArmedStay
		} else {
			mode = model.ModeArmedAway
		}
	}
	return fence, mode
}

// decodePartitionPair decodes partition i from the V1 bit-pair byte:
// bit 2i is armed, bit 2i+1 is total mode.
func decodePartitionPair(bits byte, i int) model.Partition {
	armed := bits&(1<<(i*2)) != 0
	total := bits&(1<<(i*2+1)) != 0

	state := model.ModeDisarmed
	switch {
	case armed && total:
		state = model.ModeArmedAway
	case armed:
		state = model.ModeArmedStay
	}
	return model.Partition{Index: i, State: state, Armed: armed, Total: total}
}

// overallMode folds partition states into one panel-level mode; away
// outranks stay.
func overallMode(partitions []model.Partition) model.ArmMode {
	mode := model.ModeDisarmed
	for _, p := range partitions {
		switch p.State {
		case model.ModeArmedAway:
			return model.ModeArmedAway
		case model.ModeArmedStay:
			mode = model.ModeArmedStay
		}
	}
	return mode
}

// ParsePartialStatus decodes the data section of a V1 partial status
// reply (a DecodeV1 result). Fence energizers reuse the partition
// configuration bytes for shock and alarm state and are returned with
// the Fence block set instead of partitions.
func ParsePartialStatus(data []byte) (model.AlarmStatus, error) {
	if len(data) < statusMinDataLen {
		return model.AlarmStatus{}, parseErr(ErrShortFrame, data)
	}

	modelCode := data[statusModelOffset]
	pm := model.ModelByCode(modelCode)

	status := model.AlarmStatus{
		ModelCode: modelCode,
		ModelName: pm.Name,
		Firmware:  data[statusFirmwareOffset],
	}

	if pm.Fence {
		fence, mode := parseFenceBytes(
			data[statusConfigOffset],
			data[statusPartBitsOffset],
			data[statusOutputOffset],
		)
		status.Fence = &fence
		status.Mode = mode
		status.Armed = fence.ShockEnabled || fence.AlarmEnabled
		status.Triggered = fence.ShockTriggered || fence.AlarmTriggered
		return status, nil
	}

	status.PartitionsEnabled = data[statusConfigOffset] != 0
	status.Battery = data[statusBatteryOffset]
	status.Siren = data[statusOutputOffset]&0x80 != 0
	status.Triggered = status.Siren

	bits := data[statusPartBitsOffset]
	for i := 0; i < pm.MaxPartitions; i++ {
		status.Partitions = append(status.Partitions, decodePartitionPair(bits, i))
	}
	status.Mode = overallMode(status.Partitions)
	status.Armed = status.Mode.Armed()

	for i := 0; i < statusZoneCount; i++ {
		status.Zones = append(status.Zones, model.Zone{
			Index:    i,
			Name:     model.ZoneName(i),
			Open:     bitAt(data, statusOpenOffset, i),
			Violated: bitAt(data, statusViolatedOffset, i),
			Bypassed: bitAt(data, statusBypassedOffset, i),
		})
	}

	return status, nil
}

// ParseCompleteStatus decodes the data section of a V1 complete status
// reply. It extends ParsePartialStatus with the wireless attribute
// bitmaps; signal-strength bytes are assigned to wireless zones in
// index order.
func ParseCompleteStatus(data []byte) (model.AlarmStatus, error) {
	status, err := ParsePartialStatus(data)
	if err != nil {
		return status, err
	}
	if status.IsFence() {
		return status, nil
	}

	signal := 0
	for i := range status.Zones {
		z := &status.Zones[i]
		z.Wireless = bitAt(data, completeWirelessOffset, i)
		z.Tamper = bitAt(data, completeTamperOffset, i)
		z.ShortCircuit = bitAt(data, completeShortOffset, i)
		z.BatteryLow = bitAt(data, completeBatteryLowOffset, i)

		if z.Wireless && signal < completeSignalCount {
			idx := completeSignalOffset + signal
			if idx < len(data) {
				z.SignalStrength = int(data[idx])
			}
			signal++
		}
	}

	return status, nil
}

// ParseV2Status decodes a raw V2 status frame (CmdPanelStatus reply).
// Offsets are absolute into the frame as transmitted. Frames shorter
// than the full relay status still yield the model; fence frames need
// only the fence state bytes.
func ParseV2Status(raw []byte) (model.AlarmStatus, error) {
	if len(raw) < v2StatusMinLen {
		return model.AlarmStatus{}, parseErr(ErrShortFrame, raw)
	}

	modelCode := raw[v2ModelOffset]
	pm := model.ModelByCode(modelCode)

	status := model.AlarmStatus{
		ModelCode: modelCode,
		ModelName: pm.Name,
	}

	if pm.Fence {
		var panicByte byte
		if len(raw) > v2FencePanic {
			panicByte = raw[v2FencePanic]
		}
		fence, mode := parseFenceBytes(raw[v2FenceShock], raw[v2FenceAlarm], panicByte)
		status.Fence = &fence
		status.Mode = mode
		status.Armed = fence.AlarmEnabled
		status.Triggered = fence.ShockTriggered || fence.AlarmTriggered
		return status, nil
	}

	if len(raw) < v2FullStatusLen {
		return status, nil
	}

	for i := 0; i < v2PartitionCount; i++ {
		state := v2PartitionState(raw[v2PartitionOffset+i])
		status.Partitions = append(status.Partitions, model.Partition{
			Index: i,
			State: state,
			Armed: state.Armed(),
			Total: state == model.ModeArmedAway,
		})
	}

	// The relay reports the panel-level mode through partition 0.
	status.Mode = status.Partitions[0].State
	status.Armed = status.Mode.Armed()
	status.Triggered = raw[v2TriggeredOffset] != 0

	return status, nil
}

func v2PartitionState(b byte) model.ArmMode {
	switch b {
	case 1:
		return model.ModeArmedAway
	case 2:
		return model.ModeArmedStay
	case 3:
		return model.ModeTriggered
	default:
		return model.ModeDisarmed
	}
}

// ParseMAC extracts the MAC from a GET_MAC reply: the payload bytes
// after the result byte, formatted as colon-separated uppercase hex.
func ParseMAC(raw []byte) (string, error) {
	if len(raw) < 11 {
		return "", parseErr(ErrShortFrame, raw)
	}

	macBytes := raw[9 : len(raw)-1]
	parts := make([]string, len(macBytes))
	for i, b := range macBytes {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":"), nil
}
