package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/realtime"
	"imagesvoter/backend/internal/service"
	"imagesvoter/backend/pkg/response"
)

// PlayHandler 参赛端 HTTP / WebSocket 处理器
type PlayHandler struct {
	playSvc  service.PlayService
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewPlayHandler 创建 PlayHandler
// allowOrigins 与 CORS 配置一致；未携带 Origin 的客户端（非浏览器）放行
func NewPlayHandler(playSvc service.PlayService, hub *realtime.Hub, allowOrigins []string, logger *zap.Logger) *PlayHandler {
	origins := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		origins[strings.TrimRight(o, "/")] = true
	}

	return &PlayHandler{
		playSvc: playSvc,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
		logger: logger,
	}
}

// Join 学生通过邀请码加入比赛
// POST /api/v1/play/join
func (h *PlayHandler) Join(c *gin.Context) {
	var req dto.JoinContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.playSvc.JoinContest(c.Request.Context(), &req)
	if err != nil {
		h.handlePlayError(c, err)
		return
	}

	response.Created(c, result)
}

// GetState 轮询比赛状态；携带会话时附带个人状态
// GET /api/v1/play/:code/state
func (h *PlayHandler) GetState(c *gin.Context) {
	state, err := h.playSvc.GetState(c.Request.Context(), c.Param("code"), ParticipantSessionFrom(c))
	if err != nil {
		h.handlePlayError(c, err)
		return
	}

	response.OK(c, state)
}

// GetResults 获取公布后的比赛结果
// GET /api/v1/play/:code/results
func (h *PlayHandler) GetResults(c *gin.Context) {
	results, err := h.playSvc.GetResults(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handlePlayError(c, err)
		return
	}

	response.OK(c, results)
}

// SubmitImages 提交一组图片（AI + 真实）
// POST /api/v1/play/submissions
func (h *PlayHandler) SubmitImages(c *gin.Context) {
	session, ok := MustGetParticipantSession(c)
	if !ok {
		return
	}

	var req dto.SubmitImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	submission, err := h.playSvc.SubmitImages(c.Request.Context(), session, &req)
	if err != nil {
		h.handlePlayError(c, err)
		return
	}

	response.Created(c, submission)
}

// CastVote 投票
// POST /api/v1/play/votes
func (h *PlayHandler) CastVote(c *gin.Context) {
	session, ok := MustGetParticipantSession(c)
	if !ok {
		return
	}

	var req dto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	vote, err := h.playSvc.CastVote(c.Request.Context(), session, &req)
	if err != nil {
		h.handlePlayError(c, err)
		return
	}

	response.Created(c, vote)
}

// Subscribe 订阅比赛事件推送
// GET /api/v1/play/:code/ws
func (h *PlayHandler) Subscribe(c *gin.Context) {
	contestID, err := h.playSvc.ContestIDByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handlePlayError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("ws 升级失败", zap.Error(err))
		return
	}

	h.hub.AddConnection(contestID, conn)
	defer h.hub.RemoveConnection(contestID, conn)

	// 客户端只接收推送，读循环仅用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *PlayHandler) handlePlayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJoinCodeNotFound):
		response.NotFound(c, 15001, "邀请码无效")
	case errors.Is(err, service.ErrNicknameInvalid):
		response.BadRequest(c, 15002, "昵称长度需在 1-30 个字符之间")
	case errors.Is(err, service.ErrNicknameReserved):
		response.BadRequest(c, 15003, "该昵称为系统保留")
	case errors.Is(err, service.ErrSessionInvalid):
		response.Unauthorized(c, 15004, "参赛会话无效，请重新加入")
	case errors.Is(err, service.ErrNicknameTaken):
		response.Conflict(c, 15005, "该昵称已被使用")
	case errors.Is(err, service.ErrContestNotJoinable):
		response.PreconditionFailed(c, 15006, "当前阶段不能加入比赛")
	case errors.Is(err, service.ErrNotSubmissionPhase):
		response.PreconditionFailed(c, 15007, "当前不是投稿阶段")
	case errors.Is(err, service.ErrNotStudentUploadContest):
		response.PreconditionFailed(c, 15008, "该比赛由教师上传图片，学生不能提交")
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Conflict(c, 15009, "已经提交过作品")
	case errors.Is(err, service.ErrNotVotingPhase):
		response.PreconditionFailed(c, 15010, "当前不是投票阶段")
	case errors.Is(err, service.ErrAlreadyVoted):
		response.Conflict(c, 15011, "已经投过票")
	case errors.Is(err, service.ErrSelfVote):
		response.PreconditionFailed(c, 15012, "不能给自己的作品投票")
	case errors.Is(err, service.ErrTeacherUploadCannotVote):
		response.Unauthorized(c, 15013, "占位参赛者不能投票")
	case errors.Is(err, service.ErrResultsNotReady):
		response.PreconditionFailed(c, 15014, "结果尚未公布")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 15015, "作品不存在")
	default:
		respondKind(c, err, 15000)
	}
}
