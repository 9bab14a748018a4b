package poller

import (
	"strings"

	"github.com/isecnet-bridge/isecnet-go/pkg/guardian"
)

// Severity buckets for feed rows.
const (
	SeverityCritical = "critical"
	SeverityInfo     = "info"
	SeverityNormal   = "normal"
)

// ZoneRef is the zone block of a stream payload.
type ZoneRef struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// AlarmEvent is the stream payload for one feed row.
type AlarmEvent struct {
	ID          int64    `json:"id"`
	Timestamp   string   `json:"timestamp"`
	EventName   string   `json:"event_name"`
	EventCode   int64    `json:"event_code"`
	Zone        *ZoneRef `json:"zone"`
	PartitionID *int64   `json:"partition_id"`
	DeviceID    int64    `json:"device_id"`
	DeviceName  string   `json:"device_name,omitempty"`
	UserID      *int64   `json:"user,omitempty"`
	Severity    string   `json:"severity"`
	IsAlarm     bool     `json:"is_alarm"`
}

// NewAlarmEvent maps a feed row to its stream payload, classifying
// severity from the Portuguese event names the cloud uses.
func NewAlarmEvent(row guardian.PanelEvent) AlarmEvent {
	ev := AlarmEvent{
		ID:          row.ID,
		Timestamp:   row.Created,
		EventName:   row.Event.Name,
		EventCode:   row.Event.ID,
		PartitionID: row.PartitionID,
		DeviceID:    row.CentralID,
		UserID:      row.UserID,
	}
	if row.Zone != nil {
		ev.Zone = &ZoneRef{
			ID:           row.Zone.ID,
			Name:         row.Zone.Name,
			FriendlyName: row.Zone.FriendlyName,
		}
	}
	if row.Central != nil {
		ev.DeviceName = row.Central.Description
	}
	ev.Severity, ev.IsAlarm = classify(row.Event.Name)
	return ev
}

// classify buckets an event name: break-ins and panic are critical,
// arm and disarm transitions informational, the rest normal.
func classify(name string) (severity string, isAlarm bool) {
	lower := strings.ToLower(name)
	for _, word := range []string{"disparo", "alarme", "violacao", "panico"} {
		if strings.Contains(lower, word) {
			return SeverityCritical, true
		}
	}
	for _, word := range []string{"ativacao", "arme", "armado", "desativacao", "desarme", "desarmado"} {
		if strings.Contains(lower, word) {
			return SeverityInfo, false
		}
	}
	return SeverityNormal, false
}
