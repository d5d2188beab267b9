package operator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// errMalformedMessage is returned when a response struct cannot be decoded.
var errMalformedMessage = errors.New("malformed operator message")

// toProtoState converts the state view into its wire struct.
func toProtoState(state *StateResponse) (*structpb.Struct, error) {
	alert := state.Alert

	lastSeen, err := timestampValue(alert.LastSeen)
	if err != nil {
		return nil, err
	}

	activeEvent := structpb.NewNullValue()
	if alert.ActiveEvent != nil {
		if activeEvent, err = eventValue(*alert.ActiveEvent); err != nil {
			return nil, err
		}
	}

	fields := map[string]*structpb.Value{
		"alert": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"phase":       structpb.NewStringValue(alert.Phase.String()),
			"activeEvent": activeEvent,
			"lastSeen":    lastSeen,
			"popup":       structpb.NewStringValue(alert.Popup),
			"notice":      structpb.NewStringValue(alert.Notice),
			"routeDrawn":  structpb.NewBoolValue(alert.RouteDrawn),
		}}),
		"selectedHistoryId": structpb.NewStringValue(state.SelectedHistoryID),
	}

	if state.Position != nil {
		capturedAt, err := timestampValue(state.Position.CapturedAt)
		if err != nil {
			return nil, err
		}

		fields["position"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"latitude":             structpb.NewNumberValue(state.Position.Latitude),
			"longitude":            structpb.NewNumberValue(state.Position.Longitude),
			"accuracyRadiusMeters": structpb.NewNumberValue(state.Position.AccuracyRadiusMeters),
			"capturedAt":           capturedAt,
		}})
	}

	return &structpb.Struct{Fields: fields}, nil
}

// fromProtoState converts a wire struct back into the state view.
func fromProtoState(message *structpb.Struct) (*StateResponse, error) {
	fields := message.GetFields()
	alert := fields["alert"].GetStructValue().GetFields()

	phase, ok := tracking.ParseAlertPhase(alert["phase"].GetStringValue())
	if !ok {
		return nil, fmt.Errorf("%w: unknown phase %q", errMalformedMessage, alert["phase"].GetStringValue())
	}

	lastSeen, err := timeOf(alert["lastSeen"])
	if err != nil {
		return nil, err
	}

	state := &StateResponse{
		Alert: tracking.AlertState{
			Phase:      phase,
			LastSeen:   lastSeen,
			Popup:      alert["popup"].GetStringValue(),
			Notice:     alert["notice"].GetStringValue(),
			RouteDrawn: alert["routeDrawn"].GetBoolValue(),
		},
		SelectedHistoryID: fields["selectedHistoryId"].GetStringValue(),
	}

	if active := alert["activeEvent"].GetStructValue(); active != nil {
		event, err := eventOf(active)
		if err != nil {
			return nil, err
		}

		state.Alert.ActiveEvent = &event
	}

	if position := fields["position"].GetStructValue().GetFields(); position != nil {
		capturedAt, err := timeOf(position["capturedAt"])
		if err != nil {
			return nil, err
		}

		state.Position = &tracking.Position{
			Coordinates: tracking.Coordinates{
				Latitude:  position["latitude"].GetNumberValue(),
				Longitude: position["longitude"].GetNumberValue(),
			},
			AccuracyRadiusMeters: position["accuracyRadiusMeters"].GetNumberValue(),
			CapturedAt:           capturedAt,
		}
	}

	return state, nil
}

// toProtoHistory converts history entries into their wire struct.
func toProtoHistory(entries []tracking.HistoryEntry) (*structpb.Struct, error) {
	values := make([]*structpb.Value, 0, len(entries))

	for _, entry := range entries {
		event, err := eventValue(entry.Event)
		if err != nil {
			return nil, err
		}

		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"event":       event,
			"displayTime": structpb.NewStringValue(entry.DisplayTime),
		}}))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entries": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// fromProtoHistory converts a wire struct back into history entries.
func fromProtoHistory(message *structpb.Struct) (*ListHistoryResponse, error) {
	values := message.GetFields()["entries"].GetListValue().GetValues()
	entries := make([]tracking.HistoryEntry, 0, len(values))

	for _, value := range values {
		fields := value.GetStructValue().GetFields()

		event, err := eventOf(fields["event"].GetStructValue())
		if err != nil {
			return nil, err
		}

		entries = append(entries, tracking.HistoryEntry{
			Event:       event,
			DisplayTime: fields["displayTime"].GetStringValue(),
		})
	}

	return &ListHistoryResponse{Entries: entries}, nil
}

// toProtoOverlays carries a GeoJSON feature collection as a Struct.
func toProtoOverlays(collection mapsurface.FeatureCollection) (*structpb.Struct, error) {
	data, err := json.Marshal(collection)
	if err != nil {
		return nil, fmt.Errorf("encode overlays: %w", err)
	}

	message := new(structpb.Struct)
	if err = protojson.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("encode overlays: %w", err)
	}

	return message, nil
}

// fromProtoOverlays converts a Struct back into a GeoJSON feature collection.
func fromProtoOverlays(message *structpb.Struct) (*OverlaysResponse, error) {
	data, err := protojson.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedMessage, err)
	}

	response := new(OverlaysResponse)
	if err = json.Unmarshal(data, &response.Overlays); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedMessage, err)
	}

	return response, nil
}

func eventValue(event tracking.EmergencyEvent) (*structpb.Value, error) {
	reportedAt, err := timestampValue(event.ReportedAt)
	if err != nil {
		return nil, err
	}

	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":         structpb.NewStringValue(event.ID),
		"latitude":   structpb.NewNumberValue(event.Latitude),
		"longitude":  structpb.NewNumberValue(event.Longitude),
		"message":    structpb.NewStringValue(event.Message),
		"reportedAt": reportedAt,
	}}), nil
}

func eventOf(message *structpb.Struct) (tracking.EmergencyEvent, error) {
	fields := message.GetFields()

	reportedAt, err := timeOf(fields["reportedAt"])
	if err != nil {
		return tracking.EmergencyEvent{}, err
	}

	return tracking.EmergencyEvent{
		ID: fields["id"].GetStringValue(),
		Coordinates: tracking.Coordinates{
			Latitude:  fields["latitude"].GetNumberValue(),
			Longitude: fields["longitude"].GetNumberValue(),
		},
		Message:    fields["message"].GetStringValue(),
		ReportedAt: reportedAt,
	}, nil
}

// timestampValue stores t in the JSON form of google.protobuf.Timestamp.
// The zero time is sent as null.
func timestampValue(t time.Time) (*structpb.Value, error) {
	if t.IsZero() {
		return structpb.NewNullValue(), nil
	}

	data, err := protojson.Marshal(timestamppb.New(t))
	if err != nil {
		return nil, fmt.Errorf("encode timestamp: %w", err)
	}

	text, err := strconv.Unquote(string(data))
	if err != nil {
		return nil, fmt.Errorf("encode timestamp: %w", err)
	}

	return structpb.NewStringValue(text), nil
}

// timeOf parses a value written by timestampValue.
func timeOf(value *structpb.Value) (time.Time, error) {
	text := value.GetStringValue()
	if text == "" {
		return time.Time{}, nil
	}

	timestamp := new(timestamppb.Timestamp)
	if err := protojson.Unmarshal([]byte(strconv.Quote(text)), timestamp); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %w", errMalformedMessage, text, err)
	}

	return timestamp.AsTime(), nil
}
