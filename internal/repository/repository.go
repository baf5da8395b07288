package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User        UserRepository
	Classroom   ClassroomRepository
	Contest     ContestRepository
	Participant ParticipantRepository
	Submission  SubmissionRepository
	Vote        VoteRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:          db,
		User:        NewUserRepo(db),
		Classroom:   NewClassroomRepo(db),
		Contest:     NewContestRepo(db),
		Participant: NewParticipantRepo(db),
		Submission:  NewSubmissionRepo(db),
		Vote:        NewVoteRepo(db),
	}
}

// BeginTx 开启事务
// 未绑定数据库（单元测试中手工组装的 Repository）时返回 nil 事务，调用方需判空
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 副本
// tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
