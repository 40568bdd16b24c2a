package auth

import (
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/logger"
)

// claims 是 HS256 访问令牌携带的声明。
type claims struct {
	jwt.RegisteredClaims
	Permissions []string `json:"permissions,omitempty"`
}

// Service 负责签发与校验访问令牌。
type Service struct {
	enabled bool
	secret  []byte
	issuer  string
	audit   *slog.Logger
	now     func() time.Time
}

// NewService 构造鉴权服务。
func NewService(cfg Config) (*Service, error) {
	svc := &Service{
		enabled: cfg.Enabled,
		issuer:  cfg.Issuer,
		audit:   logger.Audit(),
		now:     time.Now,
	}
	if !cfg.Enabled {
		return svc, nil
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "启用鉴权时必须配置密钥")
	}
	svc.secret = []byte(cfg.Secret)
	return svc, nil
}

// Enabled 报告是否开启鉴权。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Issue 为 subject 签发有效期为 ttl 的访问令牌。
func (s *Service) Issue(subject Subject, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "鉴权未启用")
	}
	if strings.TrimSpace(subject.Name) == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "subject 不能为空")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.Name,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Permissions: subject.Permissions,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeUnknown, err, "签发令牌失败")
	}
	return signed, nil
}

// Verify 校验令牌签名、有效期与签发者，返回调用方。
func (s *Service) Verify(raw string) (*Subject, error) {
	if !s.Enabled() {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "鉴权未启用")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, xerrors.Wrap(CodeInvalidToken, err, "")
	}
	if parsed.Subject == "" {
		return nil, xerrors.New(CodeInvalidToken, "令牌缺少 subject")
	}
	return &Subject{Name: parsed.Subject, Permissions: parsed.Permissions}, nil
}

// AuthenticateRequest 解析 Authorization 头中的 Bearer 令牌。
func (s *Service) AuthenticateRequest(authorization string) (*Subject, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	return s.Verify(strings.TrimSpace(token))
}
