package dto

// ── 认证模块 DTO ──

// RegisterRequest 教师注册请求
type RegisterRequest struct {
	Email    string `json:"email"    binding:"required,email,max=255"`
	Name     string `json:"name"     binding:"omitempty,max=100"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
