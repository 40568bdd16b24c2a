package auth

import (
	"slices"
	"strings"

	xerrors "AgentKit-Chain/internal/errors"
)

// API 使用的权限。
const (
	PermActionsInvoke = "actions:invoke"
	PermTasksWrite    = "tasks:write"
)

const (
	CodeMissingToken xerrors.Code = "AUTH_MISSING_TOKEN"
	CodeInvalidToken xerrors.Code = "AUTH_INVALID_TOKEN"
)

func init() {
	xerrors.Register(CodeMissingToken, xerrors.Attributes{Message: "missing bearer token", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeInvalidToken, xerrors.Attributes{Message: "invalid token", Severity: xerrors.SeverityWarning})
}

var (
	ErrMissingToken     = xerrors.New(CodeMissingToken, "")
	ErrInvalidToken     = xerrors.New(CodeInvalidToken, "")
	ErrPermissionDenied = xerrors.New(xerrors.CodePermissionDenied, "")
)

// Config 配置鉴权服务。Enabled 为 false 时所有请求放行。
type Config struct {
	Enabled bool
	Secret  string
	Issuer  string
}

// Subject 是通过认证的调用方。
type Subject struct {
	Name        string   `json:"sub"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission 判断调用方是否拥有权限，"*" 表示全部权限。
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	permission = strings.ToLower(strings.TrimSpace(permission))
	return slices.ContainsFunc(s.Permissions, func(p string) bool {
		p = strings.ToLower(strings.TrimSpace(p))
		return p == "*" || p == permission
	})
}

// Authorize 要求调用方拥有全部 perms。
func (s *Subject) Authorize(perms ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, perm := range perms {
		if perm == "" {
			continue
		}
		if !s.HasPermission(perm) {
			return xerrors.New(xerrors.CodePermissionDenied, "缺少权限 "+perm, xerrors.WithMetadata("permission", perm))
		}
	}
	return nil
}
