package dto

// ── 班级模块 DTO ──

// CreateClassroomRequest 创建班级请求
type CreateClassroomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// UpdateClassroomRequest 重命名班级请求
type UpdateClassroomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// ClassroomResponse 班级响应
type ClassroomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
