package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// TestParseRecord covers the accepted record layouts and rejections.
func TestParseRecord(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		want    tracking.EmergencyEvent
		wantErr bool
	}{
		{
			name: "flat",
			raw:  `{"latitude":7.08,"longitude":125.62,"message":"Fire","reportedAt":2000}`,
			want: tracking.EmergencyEvent{
				Coordinates: tracking.Coordinates{Latitude: 7.08, Longitude: 125.62},
				Message:     "Fire",
				ReportedAt:  time.UnixMilli(2000),
			},
		},
		{
			name: "nested location with string numbers",
			raw:  `{"location":{"latitude":"7.08","longitude":"125.62","timestamp":"1500"},"message":" Help ","timestamp":"2000"}`,
			want: tracking.EmergencyEvent{
				Coordinates: tracking.Coordinates{Latitude: 7.08, Longitude: 125.62},
				Message:     "Help",
				ReportedAt:  time.UnixMilli(2000),
			},
		},
		{
			name: "rfc3339 timestamp and short keys",
			raw:  `{"lat":1,"lng":2,"timestamp":"2024-05-01T10:00:00Z"}`,
			want: tracking.EmergencyEvent{
				Coordinates: tracking.Coordinates{Latitude: 1, Longitude: 2},
				ReportedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "zero epoch",
			raw:  `{"latitude":1,"longitude":2,"reportedAt":0}`,
			want: tracking.EmergencyEvent{
				Coordinates: tracking.Coordinates{Latitude: 1, Longitude: 2},
				ReportedAt:  time.UnixMilli(0),
			},
		},
		{
			name: "fractional milliseconds",
			raw:  `{"latitude":1,"longitude":2,"reportedAt":2000.5}`,
			want: tracking.EmergencyEvent{
				Coordinates: tracking.Coordinates{Latitude: 1, Longitude: 2},
				ReportedAt:  time.UnixMilli(2000).Add(500 * time.Microsecond),
			},
		},
		{name: "negative epoch", raw: `{"latitude":1,"longitude":1,"reportedAt":-1}`, wantErr: true},
		{name: "epoch beyond year 9999", raw: `{"latitude":1,"longitude":1,"reportedAt":1e300}`, wantErr: true},
		{name: "missing latitude", raw: `{"longitude":1,"timestamp":1}`, wantErr: true},
		{name: "bad longitude", raw: `{"latitude":1,"longitude":"east","timestamp":1}`, wantErr: true},
		{name: "missing timestamp", raw: `{"latitude":1,"longitude":1}`, wantErr: true},
		{name: "bad timestamp", raw: `{"latitude":1,"longitude":1,"timestamp":"yesterday"}`, wantErr: true},
		{name: "out of range", raw: `{"latitude":100,"longitude":1,"timestamp":1}`, wantErr: true},
		{name: "not an object", raw: `"hello"`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRecord("r1", json.RawMessage(tc.raw))
			if tc.wantErr {
				require.ErrorIs(t, err, tracking.ErrMalformedFeedRecord)
				return
			}

			require.NoError(t, err)
			tc.want.ID = "r1"
			require.Equal(t, tc.want.ID, got.ID)
			require.Equal(t, tc.want.Coordinates, got.Coordinates)
			require.Equal(t, tc.want.Message, got.Message)
			require.True(t, tc.want.ReportedAt.Equal(got.ReportedAt))
		})
	}
}

// TestLatest checks max selection, the stable tie-break and empty snapshots.
func TestLatest(t *testing.T) {
	t.Parallel()

	_, ok := Latest(Snapshot{})
	require.False(t, ok)

	_, ok = Latest(Snapshot{"bad": json.RawMessage(`{"message":"x"}`)})
	require.False(t, ok)

	snapshot := Snapshot{
		"c":   json.RawMessage(`{"latitude":1,"longitude":1,"timestamp":3000}`),
		"b":   json.RawMessage(`{"latitude":1,"longitude":1,"timestamp":3000}`),
		"a":   json.RawMessage(`{"latitude":1,"longitude":1,"timestamp":1000}`),
		"bad": json.RawMessage(`{"latitude":1,"timestamp":9000}`),
	}

	for range 10 {
		latest, found := Latest(snapshot)
		require.True(t, found)
		require.Equal(t, "b", latest.ID)
	}
}

// TestParseSnapshot returns events in ID order and reports skipped records.
func TestParseSnapshot(t *testing.T) {
	t.Parallel()

	events, errs := ParseSnapshot(Snapshot{
		"z": json.RawMessage(`{"latitude":1,"longitude":1,"timestamp":1}`),
		"y": json.RawMessage(`{}`),
		"x": json.RawMessage(`{"latitude":2,"longitude":2,"timestamp":2}`),
	})

	require.Len(t, events, 2)
	require.Equal(t, "x", events[0].ID)
	require.Equal(t, "z", events[1].ID)
	require.Len(t, errs, 1)
}
