package log

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects capture events by identity and time window. Zero-valued
// fields are wildcards: an empty Filter matches every event.
type Filter struct {
	// ConnectionID matches events from one TCP connection.
	ConnectionID string

	// PanelID matches events tagged with one panel identifier, a
	// normalized MAC for cloud panels or an account code for
	// receiver panels.
	PanelID string

	// Direction restricts to inbound or outbound traffic.
	Direction *Direction

	// Layer restricts to one protocol layer.
	Layer *Layer

	// Category restricts to one event category.
	Category *Category

	// TimeStart keeps events stamped at or after this instant.
	TimeStart *time.Time

	// TimeEnd keeps events stamped strictly before this instant.
	TimeEnd *time.Time
}

func (f *Filter) matches(event Event) bool {
	if f.ConnectionID != "" && event.ConnectionID != f.ConnectionID {
		return false
	}
	if f.PanelID != "" && event.PanelID != f.PanelID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	return f.inWindow(event.Timestamp)
}

// inWindow reports whether ts falls in [TimeStart, TimeEnd).
func (f *Filter) inWindow(ts time.Time) bool {
	if f.TimeStart != nil && ts.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !ts.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader streams events out of a capture file one at a time, so captures
// larger than memory can still be replayed or exported.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a capture file for reading every event in order.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file and yields only events matching
// the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next decodes events until one passes the filter and returns it. It
// returns io.EOF once the capture is exhausted.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
