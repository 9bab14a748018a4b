package model

import "fmt"

// ArmMode is the arming state of a panel or partition.
type ArmMode int

const (
	// ModeDisarmed indicates the panel or partition is disarmed.
	ModeDisarmed ArmMode = iota

	// ModeArmedAway indicates full arming (all zones).
	ModeArmedAway

	// ModeArmedStay indicates partial arming (perimeter only).
	ModeArmedStay

	// ModeTriggered indicates an active alarm condition.
	ModeTriggered
)

// String returns the wire-stable name of the mode.
func (m ArmMode) String() string {
	switch m {
	case ModeDisarmed:
		return "disarmed"
	case ModeArmedAway:
		return "armed_away"
	case ModeArmedStay:
		return "armed_stay"
	case ModeTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode as its string name for JSON.
func (m ArmMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode from its string name.
func (m *ArmMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "disarmed":
		*m = ModeDisarmed
	case "armed_away":
		*m = ModeArmedAway
	case "armed_stay":
		*m = ModeArmedStay
	case "triggered":
		*m = ModeTriggered
	default:
		return fmt.Errorf("unknown arm mode %q", text)
	}
	return nil
}

// Armed reports whether the mode counts as armed.
func (m ArmMode) Armed() bool {
	return m == ModeArmedAway || m == ModeArmedStay
}

// Tristate is a three-valued boolean for panel configuration that is
// discovered at runtime rather than known up front.
type Tristate int

const (
	// TristateUnknown means the value has not been observed yet.
	TristateUnknown Tristate = iota

	// TristateEnabled means the value was observed true.
	TristateEnabled

	// TristateDisabled means the value was observed false.
	TristateDisabled
)

// String returns the tristate name.
func (t Tristate) String() string {
	switch t {
	case TristateEnabled:
		return "enabled"
	case TristateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// FromBool converts an observed boolean into a Tristate.
func FromBool(v bool) Tristate {
	if v {
		return TristateEnabled
	}
	return TristateDisabled
}

// Partition is the state of one logical partition.
type Partition struct {
	// Index is the 0-based partition index.
	Index int `json:"index"`

	// State is the decoded arming state.
	State ArmMode `json:"state"`

	// Armed mirrors the raw armed bit.
	Armed bool `json:"armed"`

	// Total mirrors the raw total-mode bit (armed_away when set).
	Total bool `json:"total"`
}

// Zone is the state of one sensor input.
type Zone struct {
	// Index is the 0-based zone index.
	Index int `json:"index"`

	// Name is the panel-order display name ("Zona 01", ...).
	Name string `json:"name"`

	// Open reports the sensor contact currently open.
	Open bool `json:"open"`

	// Violated reports the zone tripped while armed.
	Violated bool `json:"violated"`

	// Bypassed reports the zone excluded from the armed set.
	Bypassed bool `json:"bypassed"`

	// Wireless attributes, populated only from complete status reads.
	Wireless       bool `json:"is_wireless,omitempty"`
	Tamper         bool `json:"tamper,omitempty"`
	ShortCircuit   bool `json:"short_circuit,omitempty"`
	BatteryLow     bool `json:"battery_low,omitempty"`
	SignalStrength int  `json:"signal_strength,omitempty"`
}

// ZoneName returns the default display name for a 0-based zone index.
func ZoneName(index int) string {
	return fmt.Sprintf("Zona %02d", index+1)
}

// FenceStatus holds the two independent state pairs of an electrified
// fence energizer. Shock and alarm arm and trigger separately.
type FenceStatus struct {
	ShockEnabled   bool `json:"shock_enabled"`
	ShockTriggered bool `json:"shock_triggered"`
	AlarmEnabled   bool `json:"alarm_enabled"`
	AlarmTriggered bool `json:"alarm_triggered"`
}

// AlarmStatus is a full point-in-time snapshot of a panel.
type AlarmStatus struct {
	// ModelCode is the raw model byte from the status reply.
	ModelCode byte `json:"model_code"`

	// ModelName is the resolved model name.
	ModelName string `json:"model"`

	// Firmware is the firmware version byte, if reported.
	Firmware byte `json:"firmware,omitempty"`

	// MAC is the panel MAC when known (12 uppercase hex chars, no colons).
	MAC string `json:"mac,omitempty"`

	// Armed reports any partition armed.
	Armed bool `json:"is_armed"`

	// Mode is the overall arming mode (away wins over stay).
	Mode ArmMode `json:"arm_mode"`

	// Triggered reports an active alarm.
	Triggered bool `json:"is_triggered"`

	// PartitionsEnabled reports the panel configured for partitions.
	PartitionsEnabled bool `json:"partitions_enabled"`

	Partitions []Partition `json:"partitions,omitempty"`
	Zones      []Zone      `json:"zones,omitempty"`

	// Siren reports the siren output currently driven.
	Siren bool `json:"siren"`

	// Battery is the raw battery level byte.
	Battery byte `json:"battery,omitempty"`

	// Fence is set only for electrified-fence models.
	Fence *FenceStatus `json:"fence,omitempty"`
}

// IsFence reports whether the snapshot came from a fence energizer.
func (s *AlarmStatus) IsFence() bool {
	return s.Fence != nil
}

// OpenZones returns the zones whose contact is open, in index order.
func (s *AlarmStatus) OpenZones() []Zone {
	var open []Zone
	for _, z := range s.Zones {
		if z.Open {
			open = append(open, z)
		}
	}
	return open
}
