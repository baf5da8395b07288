package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/service"
	"imagesvoter/backend/pkg/response"
)

// ClassroomHandler 班级模块 HTTP 处理器
type ClassroomHandler struct {
	classroomSvc service.ClassroomService
}

// NewClassroomHandler 创建 ClassroomHandler
func NewClassroomHandler(classroomSvc service.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{classroomSvc: classroomSvc}
}

// ListClassrooms 获取当前教师的班级列表
// GET /api/v1/classrooms
func (h *ClassroomHandler) ListClassrooms(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	classrooms, err := h.classroomSvc.List(c.Request.Context(), teacherID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": classrooms})
}

// GetClassroom 获取班级详情
// GET /api/v1/classrooms/:id
func (h *ClassroomHandler) GetClassroom(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	classroom, err := h.classroomSvc.GetByID(c.Request.Context(), c.Param("id"), teacherID)
	if err != nil {
		h.handleClassroomError(c, err)
		return
	}

	response.OK(c, classroom)
}

// CreateClassroom 创建班级
// POST /api/v1/classrooms
func (h *ClassroomHandler) CreateClassroom(c *gin.Context) {
	var req dto.CreateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	classroom, err := h.classroomSvc.Create(c.Request.Context(), &req, teacherID)
	if err != nil {
		h.handleClassroomError(c, err)
		return
	}

	response.Created(c, classroom)
}

// RenameClassroom 重命名班级
// PUT /api/v1/classrooms/:id
func (h *ClassroomHandler) RenameClassroom(c *gin.Context) {
	var req dto.UpdateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	classroom, err := h.classroomSvc.Rename(c.Request.Context(), c.Param("id"), &req, teacherID)
	if err != nil {
		h.handleClassroomError(c, err)
		return
	}

	response.OK(c, classroom)
}

// DeleteClassroom 删除班级（级联删除其下所有比赛）
// DELETE /api/v1/classrooms/:id
func (h *ClassroomHandler) DeleteClassroom(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.classroomSvc.Delete(c.Request.Context(), c.Param("id"), teacherID); err != nil {
		h.handleClassroomError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *ClassroomHandler) handleClassroomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassroomNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrNotClassroomOwner):
		response.Forbidden(c, 12002, "无权操作该班级")
	default:
		respondKind(c, err, 12000)
	}
}
