package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/service"
	"imagesvoter/backend/pkg/response"
)

// ContestHandler 比赛模块（教师端）HTTP 处理器
type ContestHandler struct {
	contestSvc service.ContestService
}

// NewContestHandler 创建 ContestHandler
func NewContestHandler(contestSvc service.ContestService) *ContestHandler {
	return &ContestHandler{contestSvc: contestSvc}
}

// ListContests 获取比赛列表
// GET /api/v1/contests?classroom_id=xxx
func (h *ContestHandler) ListContests(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	contests, err := h.contestSvc.List(c.Request.Context(), teacherID, c.Query("classroom_id"))
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	response.OK(c, gin.H{"list": contests})
}

// GetContest 获取比赛详情（参赛者、作品与票数）
// GET /api/v1/contests/:id
func (h *ContestHandler) GetContest(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	contest, err := h.contestSvc.GetByID(c.Request.Context(), c.Param("id"), teacherID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	response.OK(c, contest)
}

// CreateContest 创建比赛
// POST /api/v1/contests
func (h *ContestHandler) CreateContest(c *gin.Context) {
	var req dto.CreateContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	contest, err := h.contestSvc.Create(c.Request.Context(), &req, teacherID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	response.Created(c, contest)
}

// DeleteContest 删除比赛
// DELETE /api/v1/contests/:id
func (h *ContestHandler) DeleteContest(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.contestSvc.Delete(c.Request.Context(), c.Param("id"), teacherID); err != nil {
		h.handleContestError(c, err)
		return
	}

	response.OK(c, nil)
}

// AdvanceStatus 推进或回退比赛阶段
// PUT /api/v1/contests/:id/status
func (h *ContestHandler) AdvanceStatus(c *gin.Context) {
	var req dto.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	contest, err := h.contestSvc.AdvanceStatus(c.Request.Context(), c.Param("id"), teacherID, &req)
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	response.OK(c, contest)
}

// UploadImagePair 教师上传一组图片
// POST /api/v1/contests/:id/submissions
func (h *ContestHandler) UploadImagePair(c *gin.Context) {
	var req dto.SubmitImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	submission, err := h.contestSvc.TeacherUploadImagePair(c.Request.Context(), c.Param("id"), teacherID, &req)
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	response.Created(c, submission)
}

// DeleteSubmission 删除作品（连同其得票）
// DELETE /api/v1/contests/:id/submissions/:submission_id
func (h *ContestHandler) DeleteSubmission(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.contestSvc.DeleteSubmission(c.Request.Context(), c.Param("id"), teacherID, c.Param("submission_id")); err != nil {
		h.handleContestError(c, err)
		return
	}

	response.OK(c, nil)
}

// KickParticipant 移除参赛者
// DELETE /api/v1/contests/:id/participants/:participant_id
func (h *ContestHandler) KickParticipant(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.contestSvc.KickParticipant(c.Request.Context(), c.Param("id"), teacherID, c.Param("participant_id")); err != nil {
		h.handleContestError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetResults 获取比赛排名（教师端任意阶段可见）
// GET /api/v1/contests/:id/results
func (h *ContestHandler) GetResults(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	results, err := h.contestSvc.GetResults(c.Request.Context(), c.Param("id"), teacherID)
	if err != nil {
		h.handleContestError(c, err)
		return
	}

	response.OK(c, results)
}

func (h *ContestHandler) handleContestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrContestNotFound):
		response.NotFound(c, 13001, "比赛不存在")
	case errors.Is(err, service.ErrNotContestOwner):
		response.Forbidden(c, 13002, "只有比赛创建者可以执行该操作")
	case errors.Is(err, service.ErrStatusTransInvalid):
		response.Unprocessable(c, 13003, "无效的比赛阶段跳转")
	case errors.Is(err, service.ErrStatusChanged):
		response.Conflict(c, 13004, "比赛阶段已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrNoSubmissions):
		response.PreconditionFailed(c, 13005, "至少需要一份作品才能开始投票")
	case errors.Is(err, service.ErrResetModeInvalid):
		response.PreconditionFailed(c, 13006, "仅在结果阶段重置到投稿阶段时可清理数据")
	case errors.Is(err, service.ErrNotTeacherUploadContest):
		response.PreconditionFailed(c, 13007, "该比赛不是教师上传类型")
	case errors.Is(err, service.ErrContestEnded):
		response.PreconditionFailed(c, 13008, "比赛已结束")
	case errors.Is(err, service.ErrParticipantNotFound):
		response.NotFound(c, 13009, "参赛者不存在")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 13010, "作品不存在")
	case errors.Is(err, service.ErrClassroomNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrNotClassroomOwner):
		response.Forbidden(c, 12002, "无权操作该班级")
	default:
		respondKind(c, err, 13000)
	}
}
