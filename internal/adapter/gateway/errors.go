package gateway

import (
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eslsoft/masteryctx/internal/adapter/mapping"
)

// writeError renders err as a google.rpc.Status body with the HTTP status the
// gateway derives from its gRPC code.
func writeError(mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, err error) {
	_, outbound := runtime.MarshalerForRequest(mux, r)
	runtime.HTTPError(r.Context(), mux, outbound, w, r, toStatus(err))
}

func toStatus(err error) error {
	var bad *badRequestError
	if errors.As(err, &bad) {
		return status.Error(codes.InvalidArgument, bad.Error())
	}
	return mapping.ToStatus(err)
}
