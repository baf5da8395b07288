package model

import "time"

// Participant 参赛者表 — 对应 participants
// (contest_id, nickname) 与 session_id 均有唯一约束
type Participant struct {
	ParticipantID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"         json:"participant_id"`
	Nickname        string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_participants_contest_nickname,priority:2" json:"nickname"`
	ContestID       string    `gorm:"type:uuid;not null;uniqueIndex:uq_participants_contest_nickname,priority:1"        json:"contest_id"`
	SessionID       string    `gorm:"type:varchar(64);not null;uniqueIndex"                  json:"-"`
	IsTeacherUpload bool      `gorm:"not null;default:false"                                 json:"is_teacher_upload"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                     json:"created_at"`
}

// TableName 指定表名
func (Participant) TableName() string { return "participants" }

// TeacherUploadNicknamePrefix 教师上传图片对时生成的占位参赛者昵称前缀
const TeacherUploadNicknamePrefix = "Teacher Upload"
