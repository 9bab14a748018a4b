package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
)

// FilterOptions specifies filtering criteria for the filter command.
// String fields are raw flag values; parsing happens in buildFilter so
// every flag error names the offending flag.
type FilterOptions struct {
	Output    string
	ConnID    string
	PanelID   string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// buildFilter translates the flag values into a reader filter. The
// panel id goes through MAC normalization so "aa:bb:cc:dd:ee:ff"
// matches captures, which store MACs as uppercase hex without colons.
// Receiver accounts pass through unchanged.
func buildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: opts.ConnID,
		PanelID:      model.NormalizeMAC(opts.PanelID),
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if opts.Layer != "" {
		l, err := parseLayer(opts.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if opts.Direction != "" {
		d, err := parseDirection(opts.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if opts.Category != "" {
		c, err := parseCategory(opts.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	return filter, nil
}

// RunFilter copies the matching events of a capture file into a new
// capture file, which stays readable by every other iseclog command.
func RunFilter(path string, opts FilterOptions) error {
	filter, err := buildFilter(opts)
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output capture: %w", err)
	}
	defer out.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		out.Log(event)
		count++
	}

	if count == 0 {
		fmt.Printf("No events matched; wrote empty capture to %s\n", opts.Output)
		return nil
	}
	fmt.Printf("Filtered %d events to %s\n", count, opts.Output)
	return nil
}
