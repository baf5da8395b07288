package dto

// ── 比赛模块 DTO（教师端） ──

// CreateContestRequest 创建比赛请求
type CreateContestRequest struct {
	Title       string `json:"title"        binding:"required,min=1,max=200"`
	ClassroomID string `json:"classroom_id" binding:"required"`
	ContestType string `json:"contest_type" binding:"required,oneof=STUDENT_UPLOAD TEACHER_UPLOAD"`
}

// AdvanceStatusRequest 推进 / 回退比赛阶段请求
// ResetMode 仅在 RESULTS → SUBMISSION 时有意义：keep（默认）| votes | all
type AdvanceStatusRequest struct {
	Status    string `json:"status"     binding:"required,oneof=SUBMISSION VOTING RESULTS ENDED"`
	ResetMode string `json:"reset_mode" binding:"omitempty,oneof=keep votes all"`
}

// 重置模式
const (
	ResetModeKeep  = "keep"
	ResetModeVotes = "votes"
	ResetModeAll   = "all"
)

// ContestResponse 比赛基本信息
type ContestResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	JoinCode      string `json:"join_code"`
	Status        string `json:"status"`
	ContestType   string `json:"contest_type"`
	ClassroomID   string `json:"classroom_id"`
	ClassroomName string `json:"classroom_name,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ContestDetailResponse 教师查看的比赛详情
type ContestDetailResponse struct {
	ContestResponse
	ParticipantCount int64                      `json:"participant_count"`
	SubmissionCount  int64                      `json:"submission_count"`
	VoteCount        int64                      `json:"vote_count"`
	Participants     []ParticipantResponse      `json:"participants"`
	Submissions      []SubmissionDetailResponse `json:"submissions"`
}

// ParticipantResponse 参赛者信息（教师端）
type ParticipantResponse struct {
	ID              string `json:"id"`
	Nickname        string `json:"nickname"`
	IsTeacherUpload bool   `json:"is_teacher_upload"`
	HasSubmitted    bool   `json:"has_submitted"`
	HasVoted        bool   `json:"has_voted"`
	JoinedAt        string `json:"joined_at"`
}

// SubmissionDetailResponse 作品详情（教师端，含作者与票数）
type SubmissionDetailResponse struct {
	ID                  string `json:"id"`
	ParticipantID       string `json:"participant_id"`
	ParticipantNickname string `json:"participant_nickname"`
	AIImageURL          string `json:"ai_image_url"`
	RealImageURL        string `json:"real_image_url"`
	VoteCount           int64  `json:"vote_count"`
	CreatedAt           string `json:"created_at"`
}

// ── 结果 ──

// ResultEntry 排名中的一项
type ResultEntry struct {
	Rank                int    `json:"rank"`
	SubmissionID        string `json:"submission_id"`
	ParticipantNickname string `json:"participant_nickname"`
	VoteCount           int64  `json:"vote_count"`
	AIImageURL          string `json:"ai_image_url"`
	RealImageURL        string `json:"real_image_url"`
	IsTeacherUpload     bool   `json:"is_teacher_upload"`
}

// ContestResultsResponse 比赛结果
type ContestResultsResponse struct {
	ContestID  string        `json:"contest_id"`
	Title      string        `json:"title"`
	Status     string        `json:"status"`
	TotalVotes int64         `json:"total_votes"`
	Results    []ResultEntry `json:"results"`
}
