package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"imagesvoter/backend/internal/model"
	pkgerrors "imagesvoter/backend/pkg/errors"
)

// ContestRepository 比赛数据访问接口
type ContestRepository interface {
	Create(ctx context.Context, contest *model.Contest) error
	GetByID(ctx context.Context, id string) (*model.Contest, error)
	GetByJoinCode(ctx context.Context, joinCode string) (*model.Contest, error)
	// GetByIDForShare 使用 SELECT ... FOR SHARE 读取比赛，阻止同一事务期间的阶段变更
	// 必须在已有事务的 *gorm.DB 上调用（通过 Repository.WithTx 注入事务连接）
	GetByIDForShare(ctx context.Context, id string) (*model.Contest, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 读取比赛，与 FOR SHARE 互斥
	GetByIDForUpdate(ctx context.Context, id string) (*model.Contest, error)
	ListByTeacher(ctx context.Context, teacherID, classroomID string) ([]model.Contest, error)
	// UpdateStatus 条件更新：仅当当前阶段为 from 时改为 to，未命中返回 ErrOptimisticLock
	UpdateStatus(ctx context.Context, id string, from, to model.ContestStatus) error
	Delete(ctx context.Context, id string) error
}

type contestRepo struct {
	db *gorm.DB
}

// NewContestRepo 创建 ContestRepository 实例
func NewContestRepo(db *gorm.DB) ContestRepository {
	return &contestRepo{db: db}
}

func (r *contestRepo) Create(ctx context.Context, contest *model.Contest) error {
	return r.db.WithContext(ctx).Create(contest).Error
}

func (r *contestRepo) GetByID(ctx context.Context, id string) (*model.Contest, error) {
	var contest model.Contest
	err := r.db.WithContext(ctx).
		Preload("Classroom").
		Where("contest_id = ?", id).
		First(&contest).Error
	if err != nil {
		return nil, err
	}
	return &contest, nil
}

func (r *contestRepo) GetByJoinCode(ctx context.Context, joinCode string) (*model.Contest, error) {
	var contest model.Contest
	err := r.db.WithContext(ctx).
		Where("join_code = ?", joinCode).
		First(&contest).Error
	if err != nil {
		return nil, err
	}
	return &contest, nil
}

func (r *contestRepo) GetByIDForShare(ctx context.Context, id string) (*model.Contest, error) {
	var contest model.Contest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("contest_id = ?", id).
		First(&contest).Error
	if err != nil {
		return nil, err
	}
	return &contest, nil
}

func (r *contestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Contest, error) {
	var contest model.Contest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("contest_id = ?", id).
		First(&contest).Error
	if err != nil {
		return nil, err
	}
	return &contest, nil
}

func (r *contestRepo) ListByTeacher(ctx context.Context, teacherID, classroomID string) ([]model.Contest, error) {
	var contests []model.Contest
	db := r.db.WithContext(ctx).
		Preload("Classroom").
		Where("teacher_id = ?", teacherID)
	if classroomID != "" {
		db = db.Where("classroom_id = ?", classroomID)
	}
	err := db.Order("created_at DESC").Find(&contests).Error
	return contests, err
}

func (r *contestRepo) UpdateStatus(ctx context.Context, id string, from, to model.ContestStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.Contest{}).
		Where("contest_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *contestRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("contest_id = ?", id).
		Delete(&model.Contest{}).Error
}
