package operator

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/logger"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// Service abstracts the operations the transport layer depends on.
type Service interface {
	ShowOnMap(ctx context.Context) error
	SelectHistory(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) error
	Dismiss(ctx context.Context) error
	State(ctx context.Context) (tracking.AlertState, string, error)
	History(ctx context.Context) ([]tracking.HistoryEntry, error)
	Position(ctx context.Context) (tracking.Position, bool, error)
	Overlays(ctx context.Context) (mapsurface.Snapshot, error)
}

// Server implements OperatorServer on top of a Service.
type Server struct {
	// service runs the operator actions.
	service Service
}

// NewServer wires the provided service into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetState returns the alert state, the selected history entry and the live position.
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.state(ctx)
}

// ListHistory returns the received reports, most recent first. The request
// value caps the number of entries, zero returns all of them.
func (s *Server) ListHistory(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	limit := int(req.GetValue())
	if limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	entries, err := s.service.History(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	response, err := toProtoHistory(entries)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return response, nil
}

// ShowOnMap draws the active alert.
func (s *Server) ShowOnMap(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.service.ShowOnMap(ctx); err != nil {
		return nil, toStatus(ctx, err)
	}

	return s.state(ctx)
}

// SelectHistory replays the history entry named by the request value.
func (s *Server) SelectHistory(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := req.GetValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	if err := s.service.SelectHistory(ctx, id); err != nil {
		return nil, toStatus(ctx, err)
	}

	return s.state(ctx)
}

// ClearHistory removes the history visualization.
func (s *Server) ClearHistory(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.service.ClearHistory(ctx); err != nil {
		return nil, toStatus(ctx, err)
	}

	return s.state(ctx)
}

// Dismiss dismisses the active alert.
func (s *Server) Dismiss(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.service.Dismiss(ctx); err != nil {
		return nil, toStatus(ctx, err)
	}

	return s.state(ctx)
}

// GetOverlays returns what is drawn on the map as GeoJSON.
func (s *Server) GetOverlays(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snapshot, err := s.service.Overlays(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	response, err := toProtoOverlays(snapshot.GeoJSON())
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return response, nil
}

func (s *Server) state(ctx context.Context) (*structpb.Struct, error) {
	alert, selected, err := s.service.State(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	view := &StateResponse{
		Alert:             alert,
		SelectedHistoryID: selected,
	}

	position, ok, err := s.service.Position(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	if ok {
		view.Position = &position
	}

	response, err := toProtoState(view)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return response, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, tracking.ErrEntryNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, tracking.ErrNoActiveAlert),
		errors.Is(err, tracking.ErrDismissDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, tracking.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		logger.ErrorKV(ctx, "Operator call failed", "error", err)

		return status.Error(codes.Internal, "internal error")
	}
}
