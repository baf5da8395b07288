package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"imagesvoter/backend/config"
	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/model"
	"imagesvoter/backend/internal/repository"
	pkgerrors "imagesvoter/backend/pkg/errors"
)

// ── 比赛模块业务错误 ──

var (
	ErrContestNotFound         = pkgerrors.Wrap(pkgerrors.ErrNotFound, "比赛不存在")
	ErrParticipantNotFound     = pkgerrors.Wrap(pkgerrors.ErrNotFound, "参赛者不存在")
	ErrSubmissionNotFound      = pkgerrors.Wrap(pkgerrors.ErrNotFound, "作品不存在")
	ErrNotContestOwner         = pkgerrors.Wrap(pkgerrors.ErrUnauthorized, "只有比赛创建者可以执行该操作")
	ErrStatusTransInvalid      = pkgerrors.Wrap(pkgerrors.ErrInvalidTransition, "无效的比赛阶段跳转")
	ErrStatusChanged           = pkgerrors.Wrap(pkgerrors.ErrConflict, "比赛阶段已被其他操作修改，请刷新后重试")
	ErrNoSubmissions           = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "至少需要一份作品才能开始投票")
	ErrResetModeInvalid        = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "仅在结果阶段重置到投稿阶段时可清理数据")
	ErrNotTeacherUploadContest = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "该比赛不是教师上传类型")
	ErrContestEnded            = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "比赛已结束")
	ErrContestTypeInvalid      = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "无效的比赛类型")
	ErrTeacherUploadBusy       = pkgerrors.Wrap(pkgerrors.ErrConflict, "上传冲突，请稍后重试")
	errJoinCodeExhausted       = errors.New("生成唯一邀请码失败")
)

const (
	joinCodeAttempts      = 5
	teacherUploadAttempts = 5
)

// ContestService 比赛生命周期管理（教师端）
//
// 阶段机：SUBMISSION → VOTING → RESULTS → ENDED，另有 RESULTS → SUBMISSION（重置）
// 与 ENDED → RESULTS（重新展示结果）。阶段变更使用条件更新，并发推进只有一个成功。
type ContestService interface {
	Create(ctx context.Context, req *dto.CreateContestRequest, teacherID string) (*dto.ContestResponse, error)
	GetByID(ctx context.Context, id, teacherID string) (*dto.ContestDetailResponse, error)
	List(ctx context.Context, teacherID, classroomID string) ([]dto.ContestResponse, error)
	Delete(ctx context.Context, id, teacherID string) error
	AdvanceStatus(ctx context.Context, id, teacherID string, req *dto.AdvanceStatusRequest) (*dto.ContestResponse, error)
	TeacherUploadImagePair(ctx context.Context, id, teacherID string, req *dto.SubmitImagesRequest) (*dto.SubmissionResponse, error)
	KickParticipant(ctx context.Context, id, teacherID, participantID string) error
	DeleteSubmission(ctx context.Context, id, teacherID, submissionID string) error
	GetResults(ctx context.Context, id, teacherID string) (*dto.ContestResultsResponse, error)
}

type contestService struct {
	cfg    *config.Config
	repo   *repository.Repository
	feed   *changeFeed
	logger *zap.Logger
}

// NewContestService 创建 ContestService 实例
func NewContestService(cfg *config.Config, repo *repository.Repository, feed *changeFeed, logger *zap.Logger) ContestService {
	return &contestService{cfg: cfg, repo: repo, feed: feed, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *contestService) Create(ctx context.Context, req *dto.CreateContestRequest, teacherID string) (*dto.ContestResponse, error) {
	contestType := model.ContestType(req.ContestType)
	if !contestType.Valid() {
		return nil, ErrContestTypeInvalid
	}

	classroom, err := s.repo.Classroom.GetByID(ctx, req.ClassroomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassroomNotFound
		}
		s.logger.Error("查询班级失败", zap.String("classroom_id", req.ClassroomID), zap.Error(err))
		return nil, err
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrNotClassroomOwner
	}

	// 邀请码冲突时由唯一索引拒绝，重新生成
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := generateJoinCode(s.cfg.Contest.JoinCodeLength)
		if err != nil {
			return nil, err
		}

		contest := &model.Contest{
			Title:       strings.TrimSpace(req.Title),
			JoinCode:    code,
			Status:      model.ContestStatusSubmission,
			ContestType: contestType,
			ClassroomID: classroom.ClassroomID,
			TeacherID:   teacherID,
		}
		err = s.repo.Contest.Create(ctx, contest)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Warn("邀请码冲突，重新生成", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			s.logger.Error("创建比赛失败", zap.Error(err))
			return nil, err
		}

		contest.Classroom = classroom
		s.logger.Info("比赛已创建",
			zap.String("contest_id", contest.ContestID),
			zap.String("join_code", contest.JoinCode),
			zap.String("teacher_id", teacherID),
		)
		return toContestResponse(contest), nil
	}

	s.logger.Error("多次生成邀请码均冲突", zap.Int("attempts", joinCodeAttempts))
	return nil, errJoinCodeExhausted
}

// ────────────────────── GetByID ──────────────────────

func (s *contestService) GetByID(ctx context.Context, id, teacherID string) (*dto.ContestDetailResponse, error) {
	contest, err := s.getOwned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	participants, err := s.repo.Participant.ListByContest(ctx, id)
	if err != nil {
		s.logger.Error("查询参赛者失败", zap.String("contest_id", id), zap.Error(err))
		return nil, err
	}
	submissions, err := s.repo.Submission.ListByContest(ctx, id)
	if err != nil {
		s.logger.Error("查询作品失败", zap.String("contest_id", id), zap.Error(err))
		return nil, err
	}
	votes, err := s.repo.Vote.ListByContest(ctx, id)
	if err != nil {
		s.logger.Error("查询投票失败", zap.String("contest_id", id), zap.Error(err))
		return nil, err
	}

	submitted := make(map[string]bool, len(submissions))
	for _, sub := range submissions {
		submitted[sub.ParticipantID] = true
	}
	voted := make(map[string]bool, len(votes))
	voteCounts := make(map[string]int64, len(submissions))
	for _, v := range votes {
		voted[v.ParticipantID] = true
		voteCounts[v.SubmissionID]++
	}

	detail := &dto.ContestDetailResponse{
		ContestResponse: *toContestResponse(contest),
		SubmissionCount: int64(len(submissions)),
		VoteCount:       int64(len(votes)),
		Participants:    make([]dto.ParticipantResponse, 0, len(participants)),
		Submissions:     make([]dto.SubmissionDetailResponse, 0, len(submissions)),
	}
	for _, p := range participants {
		if !p.IsTeacherUpload {
			detail.ParticipantCount++
		}
		detail.Participants = append(detail.Participants, dto.ParticipantResponse{
			ID:              p.ParticipantID,
			Nickname:        p.Nickname,
			IsTeacherUpload: p.IsTeacherUpload,
			HasSubmitted:    submitted[p.ParticipantID],
			HasVoted:        voted[p.ParticipantID],
			JoinedAt:        p.CreatedAt.Format(dto.TimeLayout),
		})
	}
	for _, sub := range submissions {
		item := dto.SubmissionDetailResponse{
			ID:            sub.SubmissionID,
			ParticipantID: sub.ParticipantID,
			AIImageURL:    sub.AIImageURL,
			RealImageURL:  sub.RealImageURL,
			VoteCount:     voteCounts[sub.SubmissionID],
			CreatedAt:     sub.CreatedAt.Format(dto.TimeLayout),
		}
		if sub.Participant != nil {
			item.ParticipantNickname = sub.Participant.Nickname
		}
		detail.Submissions = append(detail.Submissions, item)
	}

	return detail, nil
}

// ────────────────────── List ──────────────────────

func (s *contestService) List(ctx context.Context, teacherID, classroomID string) ([]dto.ContestResponse, error) {
	contests, err := s.repo.Contest.ListByTeacher(ctx, teacherID, classroomID)
	if err != nil {
		s.logger.Error("列出比赛失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.ContestResponse, 0, len(contests))
	for i := range contests {
		result = append(result, *toContestResponse(&contests[i]))
	}
	return result, nil
}

// ────────────────────── Delete ──────────────────────

func (s *contestService) Delete(ctx context.Context, id, teacherID string) error {
	if _, err := s.getOwned(ctx, id, teacherID); err != nil {
		return err
	}

	// 参赛者 / 作品 / 投票由外键级联删除
	if err := s.repo.Contest.Delete(ctx, id); err != nil {
		s.logger.Error("删除比赛失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("比赛已删除", zap.String("contest_id", id), zap.String("teacher_id", teacherID))
	s.feed.changed(ctx, id, EventContestDeleted, nil)
	return nil
}

// ────────────────────── AdvanceStatus ──────────────────────

func (s *contestService) AdvanceStatus(ctx context.Context, id, teacherID string, req *dto.AdvanceStatusRequest) (*dto.ContestResponse, error) {
	contest, err := s.getOwned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	from := contest.Status
	target := model.ContestStatus(req.Status)
	if !from.CanTransitionTo(target) {
		return nil, ErrStatusTransInvalid
	}

	resetMode := req.ResetMode
	if resetMode == "" {
		resetMode = dto.ResetModeKeep
	}
	isReset := from == model.ContestStatusResults && target == model.ContestStatusSubmission
	if resetMode != dto.ResetModeKeep && !isReset {
		return nil, ErrResetModeInvalid
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		// 锁住比赛行，删除作品等写操作需等待阶段变更提交
		locked, err := txRepo.Contest.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status != from {
			return ErrStatusChanged
		}

		if from == model.ContestStatusSubmission && target == model.ContestStatusVoting {
			count, err := txRepo.Submission.CountByContest(ctx, id)
			if err != nil {
				return err
			}
			if count == 0 {
				return ErrNoSubmissions
			}
		}

		// 仅当阶段仍为 from 时更新，并发推进只有一个成功
		if err := txRepo.Contest.UpdateStatus(ctx, id, from, target); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrStatusChanged
			}
			return err
		}

		if isReset {
			return clearRound(ctx, txRepo, id, resetMode)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		if !errors.Is(err, pkgerrors.ErrConflict) && !errors.Is(err, pkgerrors.ErrPreconditionFailed) {
			s.logger.Error("推进比赛阶段失败", zap.String("contest_id", id), zap.Error(err))
		}
		return nil, err
	}

	contest.Status = target
	s.logger.Info("比赛阶段已变更",
		zap.String("contest_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("reset_mode", resetMode),
	)
	s.feed.changed(ctx, id, EventStatusChanged, map[string]string{
		"from":   string(from),
		"status": string(target),
	})
	return toContestResponse(contest), nil
}

// clearRound 重置到投稿阶段时按模式清理上一轮数据
func clearRound(ctx context.Context, txRepo *repository.Repository, contestID, mode string) error {
	switch mode {
	case dto.ResetModeVotes:
		return txRepo.Vote.DeleteByContest(ctx, contestID)
	case dto.ResetModeAll:
		if err := txRepo.Vote.DeleteByContest(ctx, contestID); err != nil {
			return err
		}
		if err := txRepo.Submission.DeleteByContest(ctx, contestID); err != nil {
			return err
		}
		return txRepo.Participant.DeleteTeacherUploads(ctx, contestID)
	default:
		return nil
	}
}

// ────────────────────── TeacherUploadImagePair ──────────────────────

func (s *contestService) TeacherUploadImagePair(ctx context.Context, id, teacherID string, req *dto.SubmitImagesRequest) (*dto.SubmissionResponse, error) {
	contest, err := s.getOwned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}
	if contest.ContestType != model.ContestTypeTeacherUpload {
		return nil, ErrNotTeacherUploadContest
	}
	if contest.Status == model.ContestStatusEnded {
		return nil, ErrContestEnded
	}

	var submission *model.Submission
	for attempt := 0; attempt < teacherUploadAttempts; attempt++ {
		err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
			locked, err := txRepo.Contest.GetByIDForShare(ctx, id)
			if err != nil {
				return err
			}
			if locked.Status == model.ContestStatusEnded {
				return ErrContestEnded
			}

			participants, err := txRepo.Participant.ListByContest(ctx, id)
			if err != nil {
				return err
			}

			owner := &model.Participant{
				Nickname:        fmt.Sprintf("%s %d", model.TeacherUploadNicknamePrefix, nextTeacherUploadNumber(participants)),
				ContestID:       id,
				SessionID:       uuid.NewString(),
				IsTeacherUpload: true,
			}
			if err := txRepo.Participant.Create(ctx, owner); err != nil {
				return err
			}

			submission = &model.Submission{
				AIImageURL:    req.AIImageURL,
				RealImageURL:  req.RealImageURL,
				ParticipantID: owner.ParticipantID,
				ContestID:     id,
			}
			return txRepo.Submission.Create(ctx, submission)
		})
		// 并发上传取到同一编号时重新计算
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		s.logger.Warn("占位昵称冲突，重新编号", zap.String("contest_id", id), zap.Int("attempt", attempt+1))
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrTeacherUploadBusy
		}
		if !errors.Is(err, ErrContestEnded) {
			s.logger.Error("教师上传图片对失败", zap.String("contest_id", id), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("教师上传图片对",
		zap.String("contest_id", id),
		zap.String("submission_id", submission.SubmissionID),
	)
	s.feed.changed(ctx, id, EventSubmissionCreated, map[string]string{"submission_id": submission.SubmissionID})
	return toSubmissionResponse(submission), nil
}

// nextTeacherUploadNumber 取现有占位昵称的最大编号加一，已删除的编号不再复用
func nextTeacherUploadNumber(participants []model.Participant) int {
	prefix := model.TeacherUploadNicknamePrefix + " "
	maxN := 0
	for _, p := range participants {
		if !p.IsTeacherUpload || !strings.HasPrefix(p.Nickname, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(p.Nickname, prefix))
		if err == nil && n > maxN {
			maxN = n
		}
	}
	return maxN + 1
}

// ────────────────────── KickParticipant ──────────────────────

func (s *contestService) KickParticipant(ctx context.Context, id, teacherID, participantID string) error {
	if _, err := s.getOwned(ctx, id, teacherID); err != nil {
		return err
	}

	participant, err := s.repo.Participant.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		s.logger.Error("查询参赛者失败", zap.String("participant_id", participantID), zap.Error(err))
		return err
	}
	if participant.ContestID != id {
		return ErrParticipantNotFound
	}

	// 被移除者的作品所得票数也一并移除，不再影响排名
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Contest.GetByIDForShare(ctx, id); err != nil {
			return err
		}
		// 作品上的投票随外键级联删除
		if err := txRepo.Submission.DeleteByParticipant(ctx, participantID); err != nil {
			return err
		}
		if err := txRepo.Vote.DeleteByParticipant(ctx, participantID); err != nil {
			return err
		}
		return txRepo.Participant.Delete(ctx, participantID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContestNotFound
		}
		s.logger.Error("移除参赛者失败", zap.String("participant_id", participantID), zap.Error(err))
		return err
	}

	s.logger.Info("参赛者已被移除",
		zap.String("contest_id", id),
		zap.String("participant_id", participantID),
		zap.String("nickname", participant.Nickname),
	)
	s.feed.changed(ctx, id, EventParticipantKicked, map[string]string{"participant_id": participantID})
	return nil
}

// ────────────────────── DeleteSubmission ──────────────────────

func (s *contestService) DeleteSubmission(ctx context.Context, id, teacherID, submissionID string) error {
	if _, err := s.getOwned(ctx, id, teacherID); err != nil {
		return err
	}

	submission, err := s.repo.Submission.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		s.logger.Error("查询作品失败", zap.String("submission_id", submissionID), zap.Error(err))
		return err
	}
	if submission.ContestID != id {
		return ErrSubmissionNotFound
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Contest.GetByIDForShare(ctx, id); err != nil {
			return err
		}
		if err := txRepo.Vote.DeleteBySubmission(ctx, submissionID); err != nil {
			return err
		}
		if err := txRepo.Submission.Delete(ctx, submissionID); err != nil {
			return err
		}
		// 教师上传的占位参赛者随作品一起删除
		if submission.Participant != nil && submission.Participant.IsTeacherUpload {
			return txRepo.Participant.Delete(ctx, submission.ParticipantID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContestNotFound
		}
		s.logger.Error("删除作品失败", zap.String("submission_id", submissionID), zap.Error(err))
		return err
	}

	s.logger.Info("作品已删除", zap.String("contest_id", id), zap.String("submission_id", submissionID))
	s.feed.changed(ctx, id, EventSubmissionDeleted, map[string]string{"submission_id": submissionID})
	return nil
}

// ────────────────────── GetResults ──────────────────────

func (s *contestService) GetResults(ctx context.Context, id, teacherID string) (*dto.ContestResultsResponse, error) {
	contest, err := s.getOwned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	results, err := loadResults(ctx, s.repo, contest)
	if err != nil {
		s.logger.Error("统计比赛结果失败", zap.String("contest_id", id), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// ── 内部辅助方法 ──

// getOwned 查询比赛并校验教师归属
func (s *contestService) getOwned(ctx context.Context, id, teacherID string) (*model.Contest, error) {
	return getOwnedContest(ctx, s.repo, s.logger, id, teacherID)
}

func getOwnedContest(ctx context.Context, repo *repository.Repository, logger *zap.Logger, id, teacherID string) (*model.Contest, error) {
	contest, err := repo.Contest.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		logger.Error("查询比赛失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if !contest.OwnedBy(teacherID) {
		return nil, ErrNotContestOwner
	}
	return contest, nil
}

func toContestResponse(c *model.Contest) *dto.ContestResponse {
	resp := &dto.ContestResponse{
		ID:          c.ContestID,
		Title:       c.Title,
		JoinCode:    c.JoinCode,
		Status:      string(c.Status),
		ContestType: string(c.ContestType),
		ClassroomID: c.ClassroomID,
		CreatedAt:   c.CreatedAt.Format(dto.TimeLayout),
		UpdatedAt:   c.UpdatedAt.Format(dto.TimeLayout),
	}
	if c.Classroom != nil {
		resp.ClassroomName = c.Classroom.Name
	}
	return resp
}

func toSubmissionResponse(sub *model.Submission) *dto.SubmissionResponse {
	return &dto.SubmissionResponse{
		ID:            sub.SubmissionID,
		ParticipantID: sub.ParticipantID,
		ContestID:     sub.ContestID,
		AIImageURL:    sub.AIImageURL,
		RealImageURL:  sub.RealImageURL,
		CreatedAt:     sub.CreatedAt.Format(dto.TimeLayout),
	}
}
