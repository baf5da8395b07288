package repository

import (
	"context"

	"gorm.io/gorm"

	"imagesvoter/backend/internal/model"
)

// ParticipantRepository 参赛者数据访问接口
type ParticipantRepository interface {
	// Create 昵称重复时返回 gorm.ErrDuplicatedKey（需开启 TranslateError）
	Create(ctx context.Context, participant *model.Participant) error
	GetByID(ctx context.Context, id string) (*model.Participant, error)
	ListByContest(ctx context.Context, contestID string) ([]model.Participant, error)
	// CountByContest 统计真实参赛者人数（不含教师上传占位参赛者）
	CountByContest(ctx context.Context, contestID string) (int64, error)
	CountTeacherUploads(ctx context.Context, contestID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteTeacherUploads(ctx context.Context, contestID string) error
}

type participantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo 创建 ParticipantRepository 实例
func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, participant *model.Participant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *participantRepo) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	var participant model.Participant
	err := r.db.WithContext(ctx).
		Where("participant_id = ?", id).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *participantRepo) ListByContest(ctx context.Context, contestID string) ([]model.Participant, error) {
	var participants []model.Participant
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("created_at ASC, participant_id ASC").
		Find(&participants).Error
	return participants, err
}

func (r *participantRepo) CountByContest(ctx context.Context, contestID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("contest_id = ? AND is_teacher_upload = ?", contestID, false).
		Count(&total).Error
	return total, err
}

func (r *participantRepo) CountTeacherUploads(ctx context.Context, contestID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("contest_id = ? AND is_teacher_upload = ?", contestID, true).
		Count(&total).Error
	return total, err
}

func (r *participantRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("participant_id = ?", id).
		Delete(&model.Participant{}).Error
}

func (r *participantRepo) DeleteTeacherUploads(ctx context.Context, contestID string) error {
	return r.db.WithContext(ctx).
		Where("contest_id = ? AND is_teacher_upload = ?", contestID, true).
		Delete(&model.Participant{}).Error
}
