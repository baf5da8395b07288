package repository

import (
	"context"

	"gorm.io/gorm"

	"imagesvoter/backend/internal/model"
)

// SubmissionRepository 作品数据访问接口
type SubmissionRepository interface {
	// Create 同一参赛者重复提交时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, submission *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	GetByParticipant(ctx context.Context, participantID string) (*model.Submission, error)
	// ListByContest 按创建顺序（created_at, submission_id）返回，附带作者
	ListByContest(ctx context.Context, contestID string) ([]model.Submission, error)
	CountByContest(ctx context.Context, contestID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByParticipant(ctx context.Context, participantID string) error
	DeleteByContest(ctx context.Context, contestID string) error
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, submission *model.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).
		Preload("Participant").
		Where("submission_id = ?", id).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) GetByParticipant(ctx context.Context, participantID string) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) ListByContest(ctx context.Context, contestID string) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.WithContext(ctx).
		Preload("Participant").
		Where("contest_id = ?", contestID).
		Order("created_at ASC, submission_id ASC").
		Find(&submissions).Error
	return submissions, err
}

func (r *submissionRepo) CountByContest(ctx context.Context, contestID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("contest_id = ?", contestID).
		Count(&total).Error
	return total, err
}

func (r *submissionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("submission_id = ?", id).
		Delete(&model.Submission{}).Error
}

func (r *submissionRepo) DeleteByParticipant(ctx context.Context, participantID string) error {
	return r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Delete(&model.Submission{}).Error
}

func (r *submissionRepo) DeleteByContest(ctx context.Context, contestID string) error {
	return r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Delete(&model.Submission{}).Error
}
