package httpapi

import (
	"net/http"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// statusFor maps a gateway ErrorKind to the HTTP status the boundary
// reports it as, per the error-handling design's "only these three kinds
// reach the client" rule. Kinds absorbed by inner layers never reach here
// in practice, but are given a sane fallback status anyway.
func statusFor(kind types.ErrorKind) int {
	switch kind {
	case types.KindBadRequest:
		return http.StatusBadRequest
	case types.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	case types.KindAllThreadsFailed:
		return http.StatusBadGateway
	case types.KindFusionFailed:
		return http.StatusBadGateway
	case types.KindThreadFailed, types.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) ErrorBody {
	kind := types.KindOf(err)
	return ErrorBody{Error: ErrorDetail{Message: err.Error(), Type: string(kind)}}
}
