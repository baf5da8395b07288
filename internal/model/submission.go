package model

import "time"

// Submission 作品表 — 对应 submissions，participant_id 唯一
type Submission struct {
	SubmissionID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"submission_id"`
	AIImageURL    string    `gorm:"column:ai_image_url;type:text;not null"         json:"ai_image_url"`
	RealImageURL  string    `gorm:"column:real_image_url;type:text;not null"       json:"real_image_url"`
	ParticipantID string    `gorm:"type:uuid;not null;uniqueIndex"                 json:"participant_id"`
	ContestID     string    `gorm:"type:uuid;not null;index"                       json:"contest_id"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Participant *Participant `gorm:"foreignKey:ParticipantID;references:ParticipantID" json:"participant,omitempty"`
}

// TableName 指定表名
func (Submission) TableName() string { return "submissions" }
