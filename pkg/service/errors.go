package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Facade errors.
var (
	// ErrInvalidSession reports an unknown, expired, or logged-out app
	// session.
	ErrInvalidSession = errors.New("invalid or expired session")

	// ErrPasswordMissing reports no saved password for (session, panel).
	ErrPasswordMissing = errors.New("no saved password for this panel")

	// ErrPanelNotFound reports a panel id the vendor cloud does not
	// list under the session's account.
	ErrPanelNotFound = errors.New("panel not found")

	// ErrNoPartitions reports a partition command the panel rejected
	// even after the retry without the partition byte.
	ErrNoPartitions = errors.New("panel has no partitions")
)

// connectionPattern matches failure text that means the panel could
// not be reached, as opposed to the panel refusing a command. The word
// list follows the mobile app; a match usually means the vendor's own
// app is holding the panel's single connection slot.
var connectionPattern = regexp.MustCompile(`(?i)busy|offline|timeout|connection|not connected|connect`)

// ConnectionError reports the panel unreachable: TCP or handshake
// failure, relay refusal, or a read timeout mid-command.
type ConnectionError struct {
	// Message is the underlying failure text.
	Message string

	// LastKnown is the cached snapshot for the panel, when the store
	// has one. It is already flagged ConnectionUnavailable.
	LastKnown *StatusResult

	err error
}

func (e *ConnectionError) Error() string {
	return "panel connection unavailable: " + e.Message
}

func (e *ConnectionError) Unwrap() error { return e.err }

// OpenZone identifies one zone blocking an arm command.
type OpenZone struct {
	// Index is the 0-based zone index.
	Index int `json:"index"`

	// Name is the panel-order display name ("Zona 04").
	Name string `json:"name"`

	// FriendlyName is the user-assigned name, empty when none is
	// stored.
	FriendlyName string `json:"friendly_name,omitempty"`
}

// OpenZonesError reports an arm refused because sensors are open.
type OpenZonesError struct {
	// Zones lists the open zones in index order. Empty when the panel
	// refused with the open-zones code but the confirming status read
	// failed.
	Zones []OpenZone
}

func (e *OpenZonesError) Error() string {
	if len(e.Zones) == 0 {
		return "cannot arm: open zones"
	}
	names := make([]string, len(e.Zones))
	for i, z := range e.Zones {
		names[i] = z.Name
		if z.FriendlyName != "" {
			names[i] = fmt.Sprintf("%s (%s)", z.Name, z.FriendlyName)
		}
	}
	return "cannot arm, open zones: " + strings.Join(names, ", ")
}
