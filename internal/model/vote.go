package model

import "time"

// Vote 投票表 — 对应 votes，participant_id 唯一
type Vote struct {
	VoteID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"vote_id"`
	ParticipantID string    `gorm:"type:uuid;not null;uniqueIndex"                 json:"participant_id"`
	SubmissionID  string    `gorm:"type:uuid;not null;index"                       json:"submission_id"`
	ContestID     string    `gorm:"type:uuid;not null;index"                       json:"contest_id"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Vote) TableName() string { return "votes" }

// VoteCount 按作品聚合的票数
type VoteCount struct {
	SubmissionID string
	Votes        int64
}
