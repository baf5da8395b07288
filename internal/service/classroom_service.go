package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/model"
	"imagesvoter/backend/internal/repository"
	pkgerrors "imagesvoter/backend/pkg/errors"
)

// ── 班级模块业务错误 ──

var (
	ErrClassroomNotFound = pkgerrors.Wrap(pkgerrors.ErrNotFound, "班级不存在")
	ErrNotClassroomOwner = pkgerrors.Wrap(pkgerrors.ErrUnauthorized, "无权操作该班级")
)

// ClassroomService 班级业务接口，所有操作限定在教师本人名下
type ClassroomService interface {
	Create(ctx context.Context, req *dto.CreateClassroomRequest, teacherID string) (*dto.ClassroomResponse, error)
	GetByID(ctx context.Context, id, teacherID string) (*dto.ClassroomResponse, error)
	List(ctx context.Context, teacherID string) ([]dto.ClassroomResponse, error)
	Rename(ctx context.Context, id string, req *dto.UpdateClassroomRequest, teacherID string) (*dto.ClassroomResponse, error)
	Delete(ctx context.Context, id, teacherID string) error
}

type classroomService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewClassroomService 创建 ClassroomService 实例
func NewClassroomService(repo *repository.Repository, logger *zap.Logger) ClassroomService {
	return &classroomService{repo: repo, logger: logger}
}

func (s *classroomService) Create(ctx context.Context, req *dto.CreateClassroomRequest, teacherID string) (*dto.ClassroomResponse, error) {
	classroom := &model.Classroom{
		Name:      strings.TrimSpace(req.Name),
		TeacherID: teacherID,
	}
	if err := s.repo.Classroom.Create(ctx, classroom); err != nil {
		s.logger.Error("创建班级失败", zap.Error(err))
		return nil, err
	}
	return toClassroomResponse(classroom), nil
}

func (s *classroomService) GetByID(ctx context.Context, id, teacherID string) (*dto.ClassroomResponse, error) {
	classroom, err := s.getOwned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}
	return toClassroomResponse(classroom), nil
}

func (s *classroomService) List(ctx context.Context, teacherID string) ([]dto.ClassroomResponse, error) {
	classrooms, err := s.repo.Classroom.ListByTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Error("列出班级失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.ClassroomResponse, 0, len(classrooms))
	for i := range classrooms {
		result = append(result, *toClassroomResponse(&classrooms[i]))
	}
	return result, nil
}

func (s *classroomService) Rename(ctx context.Context, id string, req *dto.UpdateClassroomRequest, teacherID string) (*dto.ClassroomResponse, error) {
	classroom, err := s.getOwned(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	classroom.Name = strings.TrimSpace(req.Name)
	if err := s.repo.Classroom.Update(ctx, classroom); err != nil {
		s.logger.Error("更新班级失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toClassroomResponse(classroom), nil
}

func (s *classroomService) Delete(ctx context.Context, id, teacherID string) error {
	if _, err := s.getOwned(ctx, id, teacherID); err != nil {
		return err
	}
	if err := s.repo.Classroom.Delete(ctx, id); err != nil {
		s.logger.Error("删除班级失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Info("班级已删除", zap.String("id", id), zap.String("teacher_id", teacherID))
	return nil
}

// getOwned 查询班级并校验归属
func (s *classroomService) getOwned(ctx context.Context, id, teacherID string) (*model.Classroom, error) {
	classroom, err := s.repo.Classroom.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassroomNotFound
		}
		s.logger.Error("查询班级失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrNotClassroomOwner
	}
	return classroom, nil
}

func toClassroomResponse(c *model.Classroom) *dto.ClassroomResponse {
	return &dto.ClassroomResponse{
		ID:        c.ClassroomID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt.Format(dto.TimeLayout),
		UpdatedAt: c.UpdatedAt.Format(dto.TimeLayout),
	}
}
