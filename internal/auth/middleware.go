package auth

import (
	"log/slog"
	"net/http"

	xerrors "AgentKit-Chain/internal/errors"
)

// ErrorWriter 负责把鉴权错误写回客户端。
type ErrorWriter func(w http.ResponseWriter, status int, err error)

// Require 返回校验令牌并要求 perms 的中间件。鉴权关闭时直接放行。
func (s *Service) Require(write ErrorWriter, perms ...string) func(http.Handler) http.Handler {
	if write == nil {
		write = func(w http.ResponseWriter, status int, _ error) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			subject, err := s.AuthenticateRequest(r.Header.Get("Authorization"))
			if err == nil {
				err = subject.Authorize(perms...)
			}
			if err != nil {
				status := http.StatusUnauthorized
				if xerrors.HasCode(err, xerrors.CodePermissionDenied) {
					status = http.StatusForbidden
				}
				attrs := []any{
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
					slog.Int("status", status),
					slog.String("error", err.Error()),
				}
				if subject != nil {
					attrs = append(attrs, slog.String("subject", subject.Name))
				}
				s.audit.Warn("access_denied", attrs...)
				write(w, status, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}
