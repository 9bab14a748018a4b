package model

import (
	"encoding/json"
	"testing"
)

func TestModelByCode(t *testing.T) {
	tests := []struct {
		name          string
		code          byte
		wantName      string
		wantMax       int
		wantFence     bool
	}{
		{"amt 8000", 1, "AMT_8000", 16, false},
		{"amt 4010", 65, "AMT_4010", 4, false},
		{"amt 9000", 144, "AMT_9000", 8, false},
		{"anm 24 net", 36, "ANM_24_NET", 0, false},
		{"amt 1000 smart", 54, "AMT_1000_SMART", 0, false},
		{"smart 2018", 52, "AMT_2018_E_SMART", 2, false},
		{"fence net", 0x35, "ELC_6012_NET", 0, true},
		{"fence ind", 0x39, "ELC_6012_IND", 0, true},
		{"unknown", 0xAB, "UNKNOWN_0xAB", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ModelByCode(tt.code)
			if m.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", m.Name, tt.wantName)
			}
			if m.MaxPartitions != tt.wantMax {
				t.Errorf("MaxPartitions = %d, want %d", m.MaxPartitions, tt.wantMax)
			}
			if m.Fence != tt.wantFence {
				t.Errorf("Fence = %v, want %v", m.Fence, tt.wantFence)
			}
		})
	}
}

func TestIsFenceModel(t *testing.T) {
	if !IsFenceModel(0x35) || !IsFenceModel(0x39) {
		t.Error("fence codes 0x35/0x39 not detected")
	}
	if IsFenceModel(1) {
		t.Error("AMT_8000 wrongly detected as fence")
	}
}

func TestArmModeText(t *testing.T) {
	tests := []struct {
		mode ArmMode
		want string
	}{
		{ModeDisarmed, "disarmed"},
		{ModeArmedAway, "armed_away"},
		{ModeArmedStay, "armed_stay"},
		{ModeTriggered, "triggered"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}

		data, err := json.Marshal(tt.mode)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back ArmMode
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != tt.mode {
			t.Errorf("round trip = %v, want %v", back, tt.mode)
		}
	}

	var m ArmMode
	if err := m.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown mode name")
	}
}

func TestArmModeArmed(t *testing.T) {
	if ModeDisarmed.Armed() || ModeTriggered.Armed() {
		t.Error("disarmed/triggered should not report armed")
	}
	if !ModeArmedAway.Armed() || !ModeArmedStay.Armed() {
		t.Error("away/stay should report armed")
	}
}

func TestZoneName(t *testing.T) {
	if got := ZoneName(0); got != "Zona 01" {
		t.Errorf("ZoneName(0) = %q", got)
	}
	if got := ZoneName(3); got != "Zona 04" {
		t.Errorf("ZoneName(3) = %q", got)
	}
	if got := ZoneName(47); got != "Zona 48" {
		t.Errorf("ZoneName(47) = %q", got)
	}
}

func TestPartitionIndex(t *testing.T) {
	multi := ConnectionInfo{
		Partitions: []PartitionRef{{ID: 1589800}, {ID: 1589801}},
	}

	idx, ok := multi.PartitionIndex(1589800)
	if !ok || idx == nil || *idx != 0 {
		t.Errorf("PartitionIndex(1589800) = %v, %v", idx, ok)
	}
	idx, ok = multi.PartitionIndex(1589801)
	if !ok || idx == nil || *idx != 1 {
		t.Errorf("PartitionIndex(1589801) = %v, %v", idx, ok)
	}
	if _, ok := multi.PartitionIndex(42); ok {
		t.Error("unknown partition id should not resolve")
	}

	// Single-partition panels omit the partition byte entirely.
	single := ConnectionInfo{Partitions: []PartitionRef{{ID: 7}}}
	idx, ok = single.PartitionIndex(7)
	if !ok || idx != nil {
		t.Errorf("single-partition index = %v, %v; want nil, true", idx, ok)
	}
}

func TestOpenZones(t *testing.T) {
	s := AlarmStatus{Zones: []Zone{
		{Index: 0, Open: false},
		{Index: 3, Open: true},
		{Index: 7, Open: true},
	}}

	open := s.OpenZones()
	if len(open) != 2 || open[0].Index != 3 || open[1].Index != 7 {
		t.Errorf("OpenZones() = %+v", open)
	}
}

func TestTransportModeText(t *testing.T) {
	data, err := json.Marshal(TransportIPReceiver)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"ip_receiver"` {
		t.Errorf("marshal = %s", data)
	}

	var m TransportMode
	if err := json.Unmarshal([]byte(`"cloud"`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m != TransportCloud {
		t.Errorf("unmarshal = %v", m)
	}
}
