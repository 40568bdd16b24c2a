package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xerrors "AgentKit-Chain/internal/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Enabled: true, Secret: "s3cret", Issuer: "agentkit"})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return svc
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue(Subject{Name: "ops", Permissions: []string{PermTasksWrite}}, time.Minute)
	require.NoError(t, err)

	subject, err := svc.AuthenticateRequest("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "ops", subject.Name)
	require.True(t, subject.HasPermission(PermTasksWrite))
	require.False(t, subject.HasPermission(PermActionsInvoke))
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.Issue(Subject{Name: "ops"}, time.Minute)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0).Add(2 * time.Minute) }
	_, err = svc.Verify(token)
	require.True(t, xerrors.HasCode(err, CodeInvalidToken))

	other, err := NewService(Config{Enabled: true, Secret: "other", Issuer: "agentkit"})
	require.NoError(t, err)
	foreign, err := other.Issue(Subject{Name: "ops"}, time.Hour)
	require.NoError(t, err)
	_, err = newTestService(t).Verify(foreign)
	require.True(t, xerrors.HasCode(err, CodeInvalidToken))
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(Config{Enabled: true})
	require.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))

	disabled, err := NewService(Config{})
	require.NoError(t, err)
	require.False(t, disabled.Enabled())
}

func TestRequireMiddleware(t *testing.T) {
	svc := newTestService(t)
	var seen *Subject
	handler := svc.Require(nil, PermActionsInvoke)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		perms  []string
		header bool
		want   int
	}{
		{name: "missing token", want: http.StatusUnauthorized},
		{name: "lacks permission", header: true, perms: []string{PermTasksWrite}, want: http.StatusForbidden},
		{name: "allowed", header: true, perms: []string{PermActionsInvoke}, want: http.StatusNoContent},
		{name: "wildcard", header: true, perms: []string{"*"}, want: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/invoke", nil)
			if tc.header {
				token, err := svc.Issue(Subject{Name: "agent", Permissions: tc.perms}, time.Minute)
				require.NoError(t, err)
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
	require.NotNil(t, seen)
	require.Equal(t, "agent", seen.Name)
}

func TestRequirePassesThroughWhenDisabled(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	handler := svc.Require(nil, PermTasksWrite)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
