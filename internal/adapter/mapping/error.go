package mapping

import (
	"errors"

	"connectrpc.com/connect"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eslsoft/masteryctx/internal/entity"
)

// ToCode classifies a domain error as a gRPC code.
func ToCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, entity.ErrInvalidStudentID),
		errors.Is(err, entity.ErrInvalidSnapshotID),
		errors.Is(err, entity.ErrInvalidAsOf),
		errors.Is(err, entity.ErrInvalidFilter):
		return codes.InvalidArgument
	case errors.Is(err, entity.ErrSnapshotNotFound), errors.Is(err, entity.ErrFixtureNotFound):
		return codes.NotFound
	case errors.Is(err, entity.ErrDuplicateSnapshot):
		return codes.AlreadyExists
	case errors.Is(err, entity.ErrNoRecordSource):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// ToStatus wraps err into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(ToCode(err), err.Error())
}

// ToConnectError wraps err into a connect error carrying the same code.
func ToConnectError(err error) error {
	if err == nil {
		return nil
	}
	return connect.NewError(connect.Code(ToCode(err)), err)
}
