package model

// ContestStatus 比赛阶段
type ContestStatus string

const (
	ContestStatusSubmission ContestStatus = "SUBMISSION"
	ContestStatusVoting     ContestStatus = "VOTING"
	ContestStatusResults    ContestStatus = "RESULTS"
	ContestStatusEnded      ContestStatus = "ENDED"
)

// ContestType 比赛类型
type ContestType string

const (
	// ContestTypeStudentUpload 学生各自上传图片对
	ContestTypeStudentUpload ContestType = "STUDENT_UPLOAD"
	// ContestTypeTeacherUpload 教师上传全部图片对，学生只投票
	ContestTypeTeacherUpload ContestType = "TEACHER_UPLOAD"
)

// contestTransitions 允许的阶段跳转
var contestTransitions = map[ContestStatus][]ContestStatus{
	ContestStatusSubmission: {ContestStatusVoting},
	ContestStatusVoting:     {ContestStatusResults},
	ContestStatusResults:    {ContestStatusSubmission, ContestStatusEnded},
	ContestStatusEnded:      {ContestStatusResults},
}

// Valid 是否为已知阶段
func (s ContestStatus) Valid() bool {
	_, ok := contestTransitions[s]
	return ok
}

// CanTransitionTo 判断 s → target 是否为合法跳转
func (s ContestStatus) CanTransitionTo(target ContestStatus) bool {
	for _, next := range contestTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// AcceptsParticipants 参赛者只能在投稿和投票阶段加入
func (s ContestStatus) AcceptsParticipants() bool {
	return s == ContestStatusSubmission || s == ContestStatusVoting
}

// ResultsVisible 结果对参赛者可见的阶段
func (s ContestStatus) ResultsVisible() bool {
	return s == ContestStatusResults || s == ContestStatusEnded
}

// Valid 是否为已知比赛类型
func (t ContestType) Valid() bool {
	return t == ContestTypeStudentUpload || t == ContestTypeTeacherUpload
}

// Contest 比赛表 — 对应 contests
type Contest struct {
	ContestID   string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"contest_id"`
	Title       string        `gorm:"type:varchar(200);not null"                     json:"title"`
	JoinCode    string        `gorm:"type:varchar(12);not null;uniqueIndex"          json:"join_code"`
	Status      ContestStatus `gorm:"type:varchar(20);not null;default:'SUBMISSION'" json:"status"`
	ContestType ContestType   `gorm:"type:varchar(20);not null"                      json:"contest_type"`
	ClassroomID string        `gorm:"type:uuid;not null;index"                       json:"classroom_id"`
	TeacherID   string        `gorm:"type:uuid;not null;index"                       json:"teacher_id"`
	BaseModel

	// 关联
	Classroom *Classroom `gorm:"foreignKey:ClassroomID;references:ClassroomID" json:"classroom,omitempty"`
}

// TableName 指定表名
func (Contest) TableName() string { return "contests" }

// OwnedBy 是否由指定教师创建
func (c *Contest) OwnedBy(teacherID string) bool {
	return teacherID != "" && c.TeacherID == teacherID
}
