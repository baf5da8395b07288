package handler

import (
	"go.uber.org/zap"

	"imagesvoter/backend/internal/realtime"
	"imagesvoter/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	Classroom *ClassroomHandler
	Contest   *ContestHandler
	Export    *ExportHandler
	Play      *PlayHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, hub *realtime.Hub, allowOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth),
		Classroom: NewClassroomHandler(svc.Classroom),
		Contest:   NewContestHandler(svc.Contest),
		Export:    NewExportHandler(svc.Export),
		Play:      NewPlayHandler(svc.Play, hub, allowOrigins, logger),
	}
}
