package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// Snapshot is the full content of the feed: report ID to raw record.
type Snapshot map[string]json.RawMessage

// record is the loose shape of a report. Reports are written by mobile
// clients, so coordinates may sit at the top level or under "location" and
// numbers may arrive as strings.
type record struct {
	Latitude   any       `json:"latitude"`
	Lat        any       `json:"lat"`
	Longitude  any       `json:"longitude"`
	Lng        any       `json:"lng"`
	Lon        any       `json:"lon"`
	Message    any       `json:"message"`
	ReportedAt any       `json:"reportedAt"`
	Timestamp  any       `json:"timestamp"`
	Location   *location `json:"location"`
}

type location struct {
	Latitude  any `json:"latitude"`
	Longitude any `json:"longitude"`
	Timestamp any `json:"timestamp"`
}

// ParseRecord decodes one feed record. Records with missing or unparseable
// coordinates or timestamp are rejected with tracking.ErrMalformedFeedRecord.
func ParseRecord(id string, raw json.RawMessage) (tracking.EmergencyEvent, error) {
	var rec record

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	if err := decoder.Decode(&rec); err != nil {
		return tracking.EmergencyEvent{}, fmt.Errorf("%w: %s: %w", tracking.ErrMalformedFeedRecord, id, err)
	}

	loc := rec.Location
	if loc == nil {
		loc = new(location)
	}

	lat, err := parseNumber(firstSet(rec.Latitude, rec.Lat, loc.Latitude))
	if err != nil {
		return tracking.EmergencyEvent{}, fmt.Errorf("%w: %s: latitude: %w", tracking.ErrMalformedFeedRecord, id, err)
	}

	lng, err := parseNumber(firstSet(rec.Longitude, rec.Lng, rec.Lon, loc.Longitude))
	if err != nil {
		return tracking.EmergencyEvent{}, fmt.Errorf("%w: %s: longitude: %w", tracking.ErrMalformedFeedRecord, id, err)
	}

	reportedAt, err := parseTimestamp(firstSet(rec.ReportedAt, rec.Timestamp, loc.Timestamp))
	if err != nil {
		return tracking.EmergencyEvent{}, fmt.Errorf("%w: %s: timestamp: %w", tracking.ErrMalformedFeedRecord, id, err)
	}

	coords := tracking.Coordinates{Latitude: lat, Longitude: lng}
	if !coords.Valid() {
		return tracking.EmergencyEvent{}, fmt.Errorf("%w: %s: coordinates out of range", tracking.ErrMalformedFeedRecord, id)
	}

	message, _ := rec.Message.(string)

	return tracking.EmergencyEvent{
		ID:          id,
		Coordinates: coords,
		Message:     strings.TrimSpace(message),
		ReportedAt:  reportedAt,
	}, nil
}

// ParseSnapshot decodes every record of a snapshot in ID order. Malformed
// records are skipped and returned as errors.
func ParseSnapshot(snapshot Snapshot) ([]tracking.EmergencyEvent, []error) {
	var (
		events = make([]tracking.EmergencyEvent, 0, len(snapshot))
		errs   []error
	)

	for _, id := range slices.Sorted(maps.Keys(snapshot)) {
		event, err := ParseRecord(id, snapshot[id])
		if err != nil {
			errs = append(errs, err)
			continue
		}

		events = append(events, event)
	}

	return events, errs
}

// Latest returns the event with the greatest ReportedAt in the snapshot.
// Ties go to the smallest ID. ok is false when no record is valid.
func Latest(snapshot Snapshot) (tracking.EmergencyEvent, bool) {
	events, _ := ParseSnapshot(snapshot)

	return latestOf(events)
}

// latestOf picks the newest event; ties go to the smallest ID.
func latestOf(events []tracking.EmergencyEvent) (tracking.EmergencyEvent, bool) {
	if len(events) == 0 {
		return tracking.EmergencyEvent{}, false
	}

	best := events[0]
	for _, event := range events[1:] {
		switch {
		case event.ReportedAt.After(best.ReportedAt):
			best = event
		case event.ReportedAt.Equal(best.ReportedAt) && event.ID < best.ID:
			best = event
		}
	}

	return best, true
}

// firstSet returns the first value that is present and not null.
func firstSet(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}

	return nil
}

var (
	// errMissing is returned for absent fields.
	errMissing = errors.New("missing")
	// errUnsupported is returned for values of the wrong kind.
	errUnsupported = errors.New("unsupported value")
)

// parseNumber accepts JSON numbers and numeric strings.
func parseNumber(v any) (float64, error) {
	var (
		f   float64
		err error
	)

	switch value := v.(type) {
	case nil:
		return 0, errMissing
	case json.Number:
		f, err = value.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
	default:
		return 0, fmt.Errorf("%w %T", errUnsupported, v)
	}

	if err != nil {
		return 0, err
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", errUnsupported)
	}

	return f, nil
}

// maxEpochMillis is 9999-12-31T23:59:59.999Z, the last instant RFC 3339 can write.
const maxEpochMillis = 253402300799999

// parseTimestamp accepts epoch milliseconds (number or numeric string) and RFC 3339 strings.
func parseTimestamp(v any) (time.Time, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			t, parseErr := time.Parse(time.RFC3339Nano, s)
			if parseErr != nil {
				return time.Time{}, parseErr
			}

			return t, nil
		}
	}

	ms, err := parseNumber(v)
	if err != nil {
		return time.Time{}, err
	}

	if ms < 0 || ms > maxEpochMillis {
		return time.Time{}, fmt.Errorf("%w: epoch %v out of range", errUnsupported, ms)
	}

	whole, frac := math.Modf(ms)

	return time.UnixMilli(int64(whole)).Add(time.Duration(math.Round(frac * float64(time.Millisecond)))), nil
}
