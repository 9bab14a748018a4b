package model

import (
	"fmt"
	"strings"
	"time"
)

// TransportMode selects how a panel is reached.
type TransportMode int

const (
	// TransportCloud reaches the panel through the vendor cloud relay
	// (ISECNet V2 dialect).
	TransportCloud TransportMode = iota

	// TransportIPReceiver reaches the panel through its direct
	// IP-receiver endpoint (ISECNet V1 dialect).
	TransportIPReceiver
)

// String returns the transport mode name.
func (m TransportMode) String() string {
	switch m {
	case TransportCloud:
		return "cloud"
	case TransportIPReceiver:
		return "ip_receiver"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode as its string name.
func (m TransportMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode from its string name.
func (m *TransportMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cloud":
		*m = TransportCloud
	case "ip_receiver":
		*m = TransportIPReceiver
	default:
		return fmt.Errorf("unknown transport mode %q", text)
	}
	return nil
}

// NormalizeMAC strips separators and uppercases a MAC address:
// "aa:bb:cc:dd:ee:ff" becomes "AABBCCDDEEFF".
func NormalizeMAC(mac string) string {
	mac = strings.ReplaceAll(mac, ":", "")
	mac = strings.ReplaceAll(mac, "-", "")
	return strings.ToUpper(mac)
}

// PartitionRef maps a vendor-assigned partition id to its panel-order
// position. The wire protocol only understands 0-based indices.
type PartitionRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConnectionInfo describes how to reach one panel. Fetched from the
// vendor cloud and cached with a short TTL.
type ConnectionInfo struct {
	// MAC is the panel MAC, 12 uppercase hex chars without colons.
	MAC string `json:"mac"`

	// Mode is the preferred transport.
	Mode TransportMode `json:"mode"`

	// IP-receiver endpoint, set when Mode is TransportIPReceiver.
	ReceiverHost    string `json:"receiver_host,omitempty"`
	ReceiverPort    int    `json:"receiver_port,omitempty"`
	ReceiverAccount string `json:"receiver_account,omitempty"`

	// Partitions lists the panel's partitions in panel order.
	Partitions []PartitionRef `json:"partitions,omitempty"`

	// FetchedAt is when the descriptor was retrieved.
	FetchedAt time.Time `json:"fetched_at"`
}

// PartitionIndex translates a vendor partition id to its 0-based index.
// Returns nil when the panel has at most one partition: the caller must
// then omit the partition byte on the wire. Small ids that match no
// partition are taken as 1-based positions, which is what the mobile
// app sends for panels the account never enumerated.
func (c ConnectionInfo) PartitionIndex(partitionID int64) (*int, bool) {
	if len(c.Partitions) <= 1 {
		return nil, true
	}
	for i, p := range c.Partitions {
		if p.ID == partitionID {
			idx := i
			return &idx, true
		}
	}
	if partitionID >= 1 && partitionID <= int64(len(c.Partitions)) {
		idx := int(partitionID) - 1
		return &idx, true
	}
	return nil, false
}
