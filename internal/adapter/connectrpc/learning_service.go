package connectrpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/eslsoft/masteryctx/internal/adapter/mapping"
	"github.com/eslsoft/masteryctx/internal/usecase"
)

// LearningContextServiceName is the fully-qualified name of the service.
const LearningContextServiceName = "masteryctx.v1.LearningContextService"

const (
	AssembleProcedure        = "/" + LearningContextServiceName + "/Assemble"
	AssembleRecordsProcedure = "/" + LearningContextServiceName + "/AssembleRecords"
	GetSnapshotProcedure     = "/" + LearningContextServiceName + "/GetSnapshot"
	ListSnapshotsProcedure   = "/" + LearningContextServiceName + "/ListSnapshots"
	ListFocusTopicsProcedure = "/" + LearningContextServiceName + "/ListFocusTopics"
)

// LearningContextServiceHandler is implemented by the learning context server.
type LearningContextServiceHandler interface {
	Assemble(context.Context, *connect.Request[mapping.AssembleRequest]) (*connect.Response[mapping.Snapshot], error)
	AssembleRecords(context.Context, *connect.Request[mapping.AssembleRecordsRequest]) (*connect.Response[mapping.Snapshot], error)
	GetSnapshot(context.Context, *connect.Request[mapping.GetSnapshotRequest]) (*connect.Response[mapping.Snapshot], error)
	ListSnapshots(context.Context, *connect.Request[mapping.ListSnapshotsRequest]) (*connect.Response[mapping.ListSnapshotsResponse], error)
	ListFocusTopics(context.Context, *connect.Request[mapping.ListFocusTopicsRequest]) (*connect.Response[mapping.ListFocusTopicsResponse], error)
}

var _ LearningContextServiceHandler = (*LearningContextServer)(nil)

type LearningContextServer struct {
	uc usecase.LearningContextUsecase
}

func NewLearningContextServer(uc usecase.LearningContextUsecase) *LearningContextServer {
	return &LearningContextServer{uc: uc}
}

// NewLearningContextServiceHandler mounts every procedure of svc under the
// service path. JSON is the only codec.
func NewLearningContextServiceHandler(svc LearningContextServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AssembleProcedure, connect.NewUnaryHandler(AssembleProcedure, svc.Assemble, opts...))
	mux.Handle(AssembleRecordsProcedure, connect.NewUnaryHandler(AssembleRecordsProcedure, svc.AssembleRecords, opts...))
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(GetSnapshotProcedure, svc.GetSnapshot, opts...))
	mux.Handle(ListSnapshotsProcedure, connect.NewUnaryHandler(ListSnapshotsProcedure, svc.ListSnapshots, opts...))
	mux.Handle(ListFocusTopicsProcedure, connect.NewUnaryHandler(ListFocusTopicsProcedure, svc.ListFocusTopics, opts...))
	return "/" + LearningContextServiceName + "/", mux
}

var errRequestRequired = errors.New("request required")

func (s *LearningContextServer) Assemble(ctx context.Context, req *connect.Request[mapping.AssembleRequest]) (*connect.Response[mapping.Snapshot], error) {
	if req == nil || req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errRequestRequired)
	}
	asOf, err := mapping.ParseAsOf(req.Msg.AsOf)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}

	snapshot, err := s.uc.Assemble(ctx, usecase.AssembleRequest{StudentID: req.Msg.StudentID, AsOf: asOf})
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToSnapshot(snapshot)), nil
}

// AssembleRecords builds a context over the records carried in the request.
// Nothing is persisted, so the returned snapshot has no id.
func (s *LearningContextServer) AssembleRecords(ctx context.Context, req *connect.Request[mapping.AssembleRecordsRequest]) (*connect.Response[mapping.Snapshot], error) {
	if req == nil || req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errRequestRequired)
	}
	asOf, err := mapping.ParseAsOf(req.Msg.AsOf)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}

	records := mapping.ToRecords(req.Msg.Records)
	lc, err := s.uc.AssembleRecords(ctx, asOf, &records)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&mapping.Snapshot{
		AsOf:    lc.Metadata.CurrentDate,
		Context: *lc,
	}), nil
}

func (s *LearningContextServer) GetSnapshot(ctx context.Context, req *connect.Request[mapping.GetSnapshotRequest]) (*connect.Response[mapping.Snapshot], error) {
	if req == nil || req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errRequestRequired)
	}
	id, err := mapping.ParseSnapshotID(req.Msg.ID)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}

	snapshot, err := s.uc.GetSnapshot(ctx, id)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(mapping.ToSnapshot(snapshot)), nil
}

func (s *LearningContextServer) ListSnapshots(ctx context.Context, req *connect.Request[mapping.ListSnapshotsRequest]) (*connect.Response[mapping.ListSnapshotsResponse], error) {
	if req == nil || req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errRequestRequired)
	}
	query := mapping.ToListSnapshotQuery(req.Msg)
	items, total, err := s.uc.ListSnapshots(ctx, query)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}

	page, err := mapping.ToPaginationResponse(query.Pagination, total)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&mapping.ListSnapshotsResponse{
		Snapshots:  mapping.ToSnapshots(items),
		Pagination: page,
	}), nil
}

func (s *LearningContextServer) ListFocusTopics(ctx context.Context, req *connect.Request[mapping.ListFocusTopicsRequest]) (*connect.Response[mapping.ListFocusTopicsResponse], error) {
	if req == nil || req.Msg == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errRequestRequired)
	}
	query, err := mapping.ToFocusQuery(req.Msg)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}

	topics, total, err := s.uc.FocusTopics(ctx, query)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	page, err := mapping.ToPaginationResponse(query.Pagination, total)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&mapping.ListFocusTopicsResponse{
		Topics:     topics,
		Pagination: page,
	}), nil
}
