// Package httpx holds request helpers shared by the HTTP handlers.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/eunoia/backend/internal/middleware"
)

var (
	ErrUserMismatch = errors.New("user_id does not match the authenticated user")
	ErrUserMissing  = errors.New("user_id is required")
)

// ResolveUser 返回本次请求对应的用户 ID。
// 开启认证时以令牌中的用户为准，请求中声明的 user_id 必须与之一致；
// 未开启认证时直接使用声明的 user_id。
func ResolveUser(r *http.Request, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)

	if authenticated, ok := middleware.UserIDFromContext(r.Context()); ok {
		if claimed != "" && claimed != authenticated {
			return "", ErrUserMismatch
		}
		return authenticated, nil
	}

	if claimed == "" {
		return "", ErrUserMissing
	}
	return claimed, nil
}

// UserStatus 把 ResolveUser 的错误映射为状态码。
func UserStatus(err error) int {
	if errors.Is(err, ErrUserMismatch) {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}
