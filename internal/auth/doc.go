// Package auth 为 HTTP API 提供基于 HS256 JWT 的 Bearer 鉴权与权限校验。
package auth
