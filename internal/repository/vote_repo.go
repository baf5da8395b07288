package repository

import (
	"context"

	"gorm.io/gorm"

	"imagesvoter/backend/internal/model"
)

// VoteRepository 投票数据访问接口
type VoteRepository interface {
	// Create 同一参赛者重复投票时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, vote *model.Vote) error
	GetByParticipant(ctx context.Context, participantID string) (*model.Vote, error)
	ListByContest(ctx context.Context, contestID string) ([]model.Vote, error)
	// CountBySubmission 按作品分组统计比赛内票数
	CountBySubmission(ctx context.Context, contestID string) ([]model.VoteCount, error)
	CountByContest(ctx context.Context, contestID string) (int64, error)
	DeleteBySubmission(ctx context.Context, submissionID string) error
	DeleteByParticipant(ctx context.Context, participantID string) error
	DeleteByContest(ctx context.Context, contestID string) error
}

type voteRepo struct {
	db *gorm.DB
}

// NewVoteRepo 创建 VoteRepository 实例
func NewVoteRepo(db *gorm.DB) VoteRepository {
	return &voteRepo{db: db}
}

func (r *voteRepo) Create(ctx context.Context, vote *model.Vote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *voteRepo) GetByParticipant(ctx context.Context, participantID string) (*model.Vote, error) {
	var vote model.Vote
	err := r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *voteRepo) ListByContest(ctx context.Context, contestID string) ([]model.Vote, error) {
	var votes []model.Vote
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("created_at ASC").
		Find(&votes).Error
	return votes, err
}

func (r *voteRepo) CountBySubmission(ctx context.Context, contestID string) ([]model.VoteCount, error) {
	var counts []model.VoteCount
	err := r.db.WithContext(ctx).
		Model(&model.Vote{}).
		Select("submission_id, COUNT(*) AS votes").
		Where("contest_id = ?", contestID).
		Group("submission_id").
		Scan(&counts).Error
	return counts, err
}

func (r *voteRepo) CountByContest(ctx context.Context, contestID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Vote{}).
		Where("contest_id = ?", contestID).
		Count(&total).Error
	return total, err
}

func (r *voteRepo) DeleteBySubmission(ctx context.Context, submissionID string) error {
	return r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Delete(&model.Vote{}).Error
}

func (r *voteRepo) DeleteByParticipant(ctx context.Context, participantID string) error {
	return r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Delete(&model.Vote{}).Error
}

func (r *voteRepo) DeleteByContest(ctx context.Context, contestID string) error {
	return r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Delete(&model.Vote{}).Error
}
