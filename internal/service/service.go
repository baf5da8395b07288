package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"imagesvoter/backend/config"
	"imagesvoter/backend/internal/repository"
	"imagesvoter/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth      AuthService
	Classroom ClassroomService
	Contest   ContestService
	Play      PlayService
	Export    ExportService
}

// Deps 外部协作者，均可为 nil（Redis 不可用时降级运行）
type Deps struct {
	Blacklist TokenBlacklist
	Cache     StateCache
	Notifier  Notifier
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	deps Deps,
	logger *zap.Logger,
) *Service {
	feed := newChangeFeed(deps.Cache, deps.Notifier, cfg.Contest.StateCacheTTL, logger)
	return &Service{
		Auth:      NewAuthService(repo, jwtMgr, deps.Blacklist, logger),
		Classroom: NewClassroomService(repo, logger),
		Contest:   NewContestService(cfg, repo, feed, logger),
		Play:      NewPlayService(repo, feed, logger),
		Export:    NewExportService(repo, logger),
	}
}

// ── 外部协作者接口 ──

// TokenBlacklist 教师登出后的 Token 黑名单
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// StateCache 比赛概况缓存
type StateCache interface {
	GetContestState(ctx context.Context, contestID string) ([]byte, error)
	SetContestState(ctx context.Context, contestID string, data []byte, ttl time.Duration) error
	InvalidateContestState(ctx context.Context, contestID string) error
}

// Notifier 比赛事件推送（WebSocket）
type Notifier interface {
	Publish(contestID, event string, data interface{})
}

// 推送事件类型，客户端收到后重新拉取状态
const (
	EventStatusChanged     = "status_changed"
	EventParticipantJoined = "participant_joined"
	EventParticipantKicked = "participant_kicked"
	EventSubmissionCreated = "submission_created"
	EventSubmissionDeleted = "submission_deleted"
	EventVoteCast          = "vote_cast"
	EventContestDeleted    = "contest_deleted"
)

// ── 事务辅助 ──

// runInTx 在事务中执行 fn；fn 返回错误或 panic 时回滚
// repo 未绑定数据库时 tx 为 nil，fn 直接在原 Repository 上执行
func runInTx(ctx context.Context, repo *repository.Repository, logger *zap.Logger, fn func(txRepo *repository.Repository) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	return nil
}

// ── 变更通知 ──

// changeFeed 比赛数据变更后失效缓存并推送事件
// 两者都是尽力而为，失败只记录日志，不影响业务结果
type changeFeed struct {
	cache    StateCache
	notifier Notifier
	ttl      time.Duration
	logger   *zap.Logger
}

func newChangeFeed(cache StateCache, notifier Notifier, ttl time.Duration, logger *zap.Logger) *changeFeed {
	return &changeFeed{cache: cache, notifier: notifier, ttl: ttl, logger: logger}
}

func (f *changeFeed) changed(ctx context.Context, contestID, event string, data interface{}) {
	if f == nil {
		return
	}
	if f.cache != nil {
		if err := f.cache.InvalidateContestState(ctx, contestID); err != nil {
			f.logger.Warn("失效比赛缓存失败", zap.String("contest_id", contestID), zap.Error(err))
		}
	}
	if f.notifier != nil {
		f.notifier.Publish(contestID, event, data)
	}
}

// loadCached 读取缓存的 JSON 到 v，命中返回 true
func (f *changeFeed) loadCached(ctx context.Context, contestID string, v interface{}) bool {
	if f == nil || f.cache == nil {
		return false
	}
	b, err := f.cache.GetContestState(ctx, contestID)
	if err != nil {
		f.logger.Warn("读取比赛缓存失败", zap.String("contest_id", contestID), zap.Error(err))
		return false
	}
	if b == nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

func (f *changeFeed) store(ctx context.Context, contestID string, v interface{}) {
	if f == nil || f.cache == nil || f.ttl <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := f.cache.SetContestState(ctx, contestID, b, f.ttl); err != nil {
		f.logger.Warn("写入比赛缓存失败", zap.String("contest_id", contestID), zap.Error(err))
	}
}
