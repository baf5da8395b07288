package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/pkg/response"
)

// 参赛者会话请求头
const (
	HeaderParticipantID = "X-Participant-ID"
	HeaderSessionID     = "X-Session-ID"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetTokenMeta 提取当前 Access Token 的 JTI 与过期时间，登出时使用。
func MustGetTokenMeta(c *gin.Context) (string, time.Time, bool) {
	jti := c.GetString("token_jti")
	exp, ok := c.Get("token_exp")
	if jti == "" || !ok {
		response.Unauthorized(c, 10002, "未认证")
		return "", time.Time{}, false
	}
	t, ok := exp.(time.Time)
	if !ok {
		response.Unauthorized(c, 10002, "未认证")
		return "", time.Time{}, false
	}
	return jti, t, true
}

// ParticipantSessionFrom 从请求头读取参赛者会话；未携带时返回空会话
func ParticipantSessionFrom(c *gin.Context) dto.ParticipantSession {
	return dto.ParticipantSession{
		ParticipantID: c.GetHeader(HeaderParticipantID),
		SessionID:     c.GetHeader(HeaderSessionID),
	}
}

// MustGetParticipantSession 要求请求携带完整的参赛者会话
func MustGetParticipantSession(c *gin.Context) (dto.ParticipantSession, bool) {
	session := ParticipantSessionFrom(c)
	if session.ParticipantID == "" || session.SessionID == "" {
		response.Unauthorized(c, 15004, "缺少参赛会话")
		return session, false
	}
	return session, true
}
