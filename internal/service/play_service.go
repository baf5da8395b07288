package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/model"
	"imagesvoter/backend/internal/repository"
	pkgerrors "imagesvoter/backend/pkg/errors"
)

// ── 参赛端业务错误 ──

var (
	ErrJoinCodeNotFound        = pkgerrors.Wrap(pkgerrors.ErrNotFound, "邀请码无效")
	ErrContestNotJoinable      = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "当前阶段不能加入比赛")
	ErrNicknameTaken           = pkgerrors.Wrap(pkgerrors.ErrConflict, "该昵称已被使用")
	ErrSessionInvalid          = pkgerrors.Wrap(pkgerrors.ErrUnauthorized, "参赛会话无效，请重新加入")
	ErrTeacherUploadCannotVote = pkgerrors.Wrap(pkgerrors.ErrUnauthorized, "占位参赛者不能投票")
	ErrNotSubmissionPhase      = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "当前不是投稿阶段")
	ErrNotStudentUploadContest = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "该比赛由教师上传图片，学生不能提交")
	ErrAlreadySubmitted        = pkgerrors.Wrap(pkgerrors.ErrConflict, "已经提交过作品")
	ErrNotVotingPhase          = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "当前不是投票阶段")
	ErrAlreadyVoted            = pkgerrors.Wrap(pkgerrors.ErrConflict, "已经投过票")
	ErrSelfVote                = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "不能给自己的作品投票")
	ErrResultsNotReady         = pkgerrors.Wrap(pkgerrors.ErrPreconditionFailed, "结果尚未公布")
	ErrNicknameInvalid         = errors.New("昵称长度需在 1-30 个字符之间")
	ErrNicknameReserved        = errors.New("该昵称为系统保留")
)

const maxNicknameLength = 30

// PlayService 参赛端业务接口
//
// 参赛者无账号，凭加入时下发的 participant_id + session_id 识别身份。
type PlayService interface {
	JoinContest(ctx context.Context, req *dto.JoinContestRequest) (*dto.JoinContestResponse, error)
	// GetState 比赛状态快照，session 为空时只返回公开概况
	GetState(ctx context.Context, joinCode string, session dto.ParticipantSession) (*dto.ContestStateResponse, error)
	GetResults(ctx context.Context, joinCode string) (*dto.ContestResultsResponse, error)
	SubmitImages(ctx context.Context, session dto.ParticipantSession, req *dto.SubmitImagesRequest) (*dto.SubmissionResponse, error)
	CastVote(ctx context.Context, session dto.ParticipantSession, req *dto.CastVoteRequest) (*dto.VoteResponse, error)
	// ContestIDByCode 解析邀请码，供 WebSocket 订阅使用
	ContestIDByCode(ctx context.Context, joinCode string) (string, error)
}

type playService struct {
	repo   *repository.Repository
	feed   *changeFeed
	logger *zap.Logger
}

// NewPlayService 创建 PlayService 实例
func NewPlayService(repo *repository.Repository, feed *changeFeed, logger *zap.Logger) PlayService {
	return &playService{repo: repo, feed: feed, logger: logger}
}

// ────────────────────── JoinContest ──────────────────────

func (s *playService) JoinContest(ctx context.Context, req *dto.JoinContestRequest) (*dto.JoinContestResponse, error) {
	nickname, err := cleanNickname(req.Nickname)
	if err != nil {
		return nil, err
	}

	contest, err := s.getByCode(ctx, req.JoinCode)
	if err != nil {
		return nil, err
	}
	if !contest.Status.AcceptsParticipants() {
		return nil, ErrContestNotJoinable
	}

	participant := &model.Participant{
		Nickname:  nickname,
		ContestID: contest.ContestID,
		SessionID: uuid.NewString(),
	}
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		locked, err := txRepo.Contest.GetByIDForShare(ctx, contest.ContestID)
		if err != nil {
			return err
		}
		if !locked.Status.AcceptsParticipants() {
			return ErrContestNotJoinable
		}
		contest = locked
		return txRepo.Participant.Create(ctx, participant)
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrNicknameTaken
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrJoinCodeNotFound
		case errors.Is(err, ErrContestNotJoinable):
			return nil, err
		}
		s.logger.Error("加入比赛失败", zap.String("contest_id", contest.ContestID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("参赛者加入比赛",
		zap.String("contest_id", contest.ContestID),
		zap.String("participant_id", participant.ParticipantID),
	)
	s.feed.changed(ctx, contest.ContestID, EventParticipantJoined, map[string]string{"nickname": participant.Nickname})

	summary, err := s.summary(ctx, contest)
	if err != nil {
		return nil, err
	}
	return &dto.JoinContestResponse{
		ParticipantID: participant.ParticipantID,
		SessionID:     participant.SessionID,
		Nickname:      participant.Nickname,
		Contest:       *summary,
	}, nil
}

// ────────────────────── GetState ──────────────────────

func (s *playService) GetState(ctx context.Context, joinCode string, session dto.ParticipantSession) (*dto.ContestStateResponse, error) {
	contest, err := s.getByCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}

	summary, err := s.summary(ctx, contest)
	if err != nil {
		return nil, err
	}
	state := &dto.ContestStateResponse{Contest: *summary}

	var me *model.Participant
	if !session.Empty() {
		me, err = s.authenticate(ctx, session)
		if err != nil {
			return nil, err
		}
		if me.ContestID != contest.ContestID {
			return nil, ErrSessionInvalid
		}
		state.Me, err = s.participation(ctx, me)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case contest.Status == model.ContestStatusVoting:
		submissions, err := s.repo.Submission.ListByContest(ctx, contest.ContestID)
		if err != nil {
			s.logger.Error("查询作品失败", zap.String("contest_id", contest.ContestID), zap.Error(err))
			return nil, err
		}
		// 投票阶段匿名展示，不返回作者昵称
		state.Submissions = make([]dto.VotingEntry, 0, len(submissions))
		for _, sub := range submissions {
			state.Submissions = append(state.Submissions, dto.VotingEntry{
				SubmissionID: sub.SubmissionID,
				AIImageURL:   sub.AIImageURL,
				RealImageURL: sub.RealImageURL,
				IsOwn:        me != nil && sub.ParticipantID == me.ParticipantID,
			})
		}
	case contest.Status.ResultsVisible():
		results, err := loadResults(ctx, s.repo, contest)
		if err != nil {
			s.logger.Error("统计比赛结果失败", zap.String("contest_id", contest.ContestID), zap.Error(err))
			return nil, err
		}
		state.Results = results.Results
	}

	return state, nil
}

// ────────────────────── GetResults ──────────────────────

func (s *playService) GetResults(ctx context.Context, joinCode string) (*dto.ContestResultsResponse, error) {
	contest, err := s.getByCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}
	if !contest.Status.ResultsVisible() {
		return nil, ErrResultsNotReady
	}

	results, err := loadResults(ctx, s.repo, contest)
	if err != nil {
		s.logger.Error("统计比赛结果失败", zap.String("contest_id", contest.ContestID), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// ────────────────────── SubmitImages ──────────────────────

func (s *playService) SubmitImages(ctx context.Context, session dto.ParticipantSession, req *dto.SubmitImagesRequest) (*dto.SubmissionResponse, error) {
	participant, err := s.authenticate(ctx, session)
	if err != nil {
		return nil, err
	}

	submission := &model.Submission{
		AIImageURL:    strings.TrimSpace(req.AIImageURL),
		RealImageURL:  strings.TrimSpace(req.RealImageURL),
		ParticipantID: participant.ParticipantID,
		ContestID:     participant.ContestID,
	}
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		contest, err := txRepo.Contest.GetByIDForShare(ctx, participant.ContestID)
		if err != nil {
			return err
		}
		if contest.ContestType != model.ContestTypeStudentUpload {
			return ErrNotStudentUploadContest
		}
		if contest.Status != model.ContestStatusSubmission {
			return ErrNotSubmissionPhase
		}
		return txRepo.Submission.Create(ctx, submission)
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrAlreadySubmitted
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrContestNotFound
		case errors.Is(err, pkgerrors.ErrPreconditionFailed):
			return nil, err
		}
		s.logger.Error("提交作品失败", zap.String("participant_id", participant.ParticipantID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("参赛者提交作品",
		zap.String("contest_id", submission.ContestID),
		zap.String("submission_id", submission.SubmissionID),
	)
	s.feed.changed(ctx, submission.ContestID, EventSubmissionCreated, map[string]string{"submission_id": submission.SubmissionID})
	return toSubmissionResponse(submission), nil
}

// ────────────────────── CastVote ──────────────────────

func (s *playService) CastVote(ctx context.Context, session dto.ParticipantSession, req *dto.CastVoteRequest) (*dto.VoteResponse, error) {
	participant, err := s.authenticate(ctx, session)
	if err != nil {
		return nil, err
	}
	if participant.IsTeacherUpload {
		return nil, ErrTeacherUploadCannotVote
	}

	submission, err := s.repo.Submission.GetByID(ctx, req.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("查询作品失败", zap.String("submission_id", req.SubmissionID), zap.Error(err))
		return nil, err
	}
	if submission.ContestID != participant.ContestID {
		return nil, ErrSubmissionNotFound
	}

	vote := &model.Vote{
		ParticipantID: participant.ParticipantID,
		SubmissionID:  submission.SubmissionID,
		ContestID:     participant.ContestID,
	}
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		contest, err := txRepo.Contest.GetByIDForShare(ctx, participant.ContestID)
		if err != nil {
			return err
		}
		if contest.Status != model.ContestStatusVoting {
			return ErrNotVotingPhase
		}
		if contest.ContestType == model.ContestTypeStudentUpload && submission.ParticipantID == participant.ParticipantID {
			return ErrSelfVote
		}
		// 作品可能在读取后被教师删除
		if _, err := txRepo.Submission.GetByID(ctx, submission.SubmissionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return err
		}
		return txRepo.Vote.Create(ctx, vote)
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrAlreadyVoted
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return nil, ErrSubmissionNotFound
		case errors.Is(err, pkgerrors.ErrNotFound):
			return nil, err
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrContestNotFound
		case errors.Is(err, pkgerrors.ErrPreconditionFailed):
			return nil, err
		}
		s.logger.Error("投票失败", zap.String("participant_id", participant.ParticipantID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("参赛者投票",
		zap.String("contest_id", vote.ContestID),
		zap.String("vote_id", vote.VoteID),
	)
	s.feed.changed(ctx, vote.ContestID, EventVoteCast, nil)
	return &dto.VoteResponse{
		ID:           vote.VoteID,
		SubmissionID: vote.SubmissionID,
		CreatedAt:    vote.CreatedAt.Format(dto.TimeLayout),
	}, nil
}

// ────────────────────── ContestIDByCode ──────────────────────

func (s *playService) ContestIDByCode(ctx context.Context, joinCode string) (string, error) {
	contest, err := s.getByCode(ctx, joinCode)
	if err != nil {
		return "", err
	}
	return contest.ContestID, nil
}

// ── 内部辅助方法 ──

func (s *playService) getByCode(ctx context.Context, joinCode string) (*model.Contest, error) {
	code := normalizeJoinCode(joinCode)
	if code == "" {
		return nil, ErrJoinCodeNotFound
	}
	contest, err := s.repo.Contest.GetByJoinCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJoinCodeNotFound
		}
		s.logger.Error("按邀请码查询比赛失败", zap.Error(err))
		return nil, err
	}
	return contest, nil
}

// authenticate 校验参赛会话；参赛者被移除后会话随之失效
func (s *playService) authenticate(ctx context.Context, session dto.ParticipantSession) (*model.Participant, error) {
	if session.ParticipantID == "" || session.SessionID == "" {
		return nil, ErrSessionInvalid
	}
	if _, err := uuid.Parse(session.ParticipantID); err != nil {
		return nil, ErrSessionInvalid
	}

	participant, err := s.repo.Participant.GetByID(ctx, session.ParticipantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionInvalid
		}
		s.logger.Error("查询参赛者失败", zap.String("participant_id", session.ParticipantID), zap.Error(err))
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(participant.SessionID), []byte(session.SessionID)) != 1 {
		return nil, ErrSessionInvalid
	}
	return participant, nil
}

// summary 比赛公开概况，优先读缓存
func (s *playService) summary(ctx context.Context, contest *model.Contest) (*dto.ContestSummary, error) {
	var cached dto.ContestSummary
	if s.feed.loadCached(ctx, contest.ContestID, &cached) {
		return &cached, nil
	}

	participants, err := s.repo.Participant.CountByContest(ctx, contest.ContestID)
	if err != nil {
		s.logger.Error("统计参赛人数失败", zap.String("contest_id", contest.ContestID), zap.Error(err))
		return nil, err
	}
	submissions, err := s.repo.Submission.CountByContest(ctx, contest.ContestID)
	if err != nil {
		s.logger.Error("统计作品数失败", zap.String("contest_id", contest.ContestID), zap.Error(err))
		return nil, err
	}
	votes, err := s.repo.Vote.CountByContest(ctx, contest.ContestID)
	if err != nil {
		s.logger.Error("统计票数失败", zap.String("contest_id", contest.ContestID), zap.Error(err))
		return nil, err
	}

	summary := &dto.ContestSummary{
		ID:               contest.ContestID,
		Title:            contest.Title,
		JoinCode:         contest.JoinCode,
		Status:           string(contest.Status),
		ContestType:      string(contest.ContestType),
		ParticipantCount: participants,
		SubmissionCount:  submissions,
		VoteCount:        votes,
	}
	s.feed.store(ctx, contest.ContestID, summary)
	return summary, nil
}

// participation 当前参赛者的提交与投票情况
func (s *playService) participation(ctx context.Context, p *model.Participant) (*dto.MyParticipation, error) {
	me := &dto.MyParticipation{
		ParticipantID: p.ParticipantID,
		Nickname:      p.Nickname,
	}

	submission, err := s.repo.Submission.GetByParticipant(ctx, p.ParticipantID)
	switch {
	case err == nil:
		me.HasSubmitted = true
		me.SubmissionID = &submission.SubmissionID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询参赛者作品失败", zap.String("participant_id", p.ParticipantID), zap.Error(err))
		return nil, err
	}

	vote, err := s.repo.Vote.GetByParticipant(ctx, p.ParticipantID)
	switch {
	case err == nil:
		me.HasVoted = true
		me.VotedSubmissionID = &vote.SubmissionID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询参赛者投票失败", zap.String("participant_id", p.ParticipantID), zap.Error(err))
		return nil, err
	}

	return me, nil
}

// cleanNickname 去除首尾空白并校验长度，教师上传占位前缀保留
func cleanNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(nickname)
	if n == 0 || n > maxNicknameLength {
		return "", ErrNicknameInvalid
	}
	if strings.HasPrefix(strings.ToLower(nickname), strings.ToLower(model.TeacherUploadNicknamePrefix)) {
		return "", ErrNicknameReserved
	}
	return nickname, nil
}
