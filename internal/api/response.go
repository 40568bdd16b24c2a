package api

import (
	"encoding/json"
	"net/http"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/task"
)

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 按错误码选择 HTTP 状态码并输出统一的错误结构。
func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, statusOf(err), err)
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	body := errorBody{Code: string(xerrors.CodeOf(err)), Message: err.Error()}
	if e, ok := xerrors.From(err); ok {
		body.Message = e.Message()
		body.Metadata = e.Metadata()
	}
	if status >= http.StatusInternalServerError && body.Code == string(xerrors.CodeUnknown) {
		body.Message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func writeAuthError(w http.ResponseWriter, status int, err error) {
	writeErrorStatus(w, status, err)
}

func statusOf(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument, xerrors.CodeActionValidationFailed, task.CodeTaskValidation:
		return http.StatusBadRequest
	case xerrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case xerrors.CodePermissionDenied:
		return http.StatusForbidden
	case xerrors.CodeNotFound, xerrors.CodeActionNotFound, task.CodeTaskNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, task.CodeTaskConflict:
		return http.StatusConflict
	case xerrors.CodeActionWalletMissing, agent.CodeStepsExhausted:
		return http.StatusUnprocessableEntity
	case xerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeUpstreamFailure:
		return http.StatusBadGateway
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
