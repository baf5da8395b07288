package dto

// ── 参赛端 DTO ──

// ParticipantSession 参赛者会话凭证（来自 X-Participant-ID / X-Session-ID 请求头）
type ParticipantSession struct {
	ParticipantID string
	SessionID     string
}

// Empty 是否未携带会话
func (s ParticipantSession) Empty() bool {
	return s.ParticipantID == "" && s.SessionID == ""
}

// JoinContestRequest 加入比赛请求
type JoinContestRequest struct {
	JoinCode string `json:"join_code" binding:"required,min=4,max=12"`
	Nickname string `json:"nickname"  binding:"required,min=1,max=30"`
}

// JoinContestResponse 加入比赛响应，SessionID 需在后续请求中携带
type JoinContestResponse struct {
	ParticipantID string         `json:"participant_id"`
	SessionID     string         `json:"session_id"`
	Nickname      string         `json:"nickname"`
	Contest       ContestSummary `json:"contest"`
}

// SubmitImagesRequest 提交图片对请求（学生提交与教师上传共用）
type SubmitImagesRequest struct {
	AIImageURL   string `json:"ai_image_url"   binding:"required,url,max=2048"`
	RealImageURL string `json:"real_image_url" binding:"required,url,max=2048"`
}

// SubmissionResponse 提交成功响应
type SubmissionResponse struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	ContestID     string `json:"contest_id"`
	AIImageURL    string `json:"ai_image_url"`
	RealImageURL  string `json:"real_image_url"`
	CreatedAt     string `json:"created_at"`
}

// CastVoteRequest 投票请求
type CastVoteRequest struct {
	SubmissionID string `json:"submission_id" binding:"required"`
}

// VoteResponse 投票成功响应
type VoteResponse struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	CreatedAt    string `json:"created_at"`
}

// ContestSummary 比赛概况（可缓存，不含个人信息）
type ContestSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	JoinCode         string `json:"join_code"`
	Status           string `json:"status"`
	ContestType      string `json:"contest_type"`
	ParticipantCount int64  `json:"participant_count"`
	SubmissionCount  int64  `json:"submission_count"`
	VoteCount        int64  `json:"vote_count"`
}

// MyParticipation 当前参赛者的状态
type MyParticipation struct {
	ParticipantID     string  `json:"participant_id"`
	Nickname          string  `json:"nickname"`
	HasSubmitted      bool    `json:"has_submitted"`
	SubmissionID      *string `json:"submission_id,omitempty"`
	HasVoted          bool    `json:"has_voted"`
	VotedSubmissionID *string `json:"voted_submission_id,omitempty"`
}

// VotingEntry 投票阶段展示的作品（匿名）
type VotingEntry struct {
	SubmissionID string `json:"submission_id"`
	AIImageURL   string `json:"ai_image_url"`
	RealImageURL string `json:"real_image_url"`
	IsOwn        bool   `json:"is_own"`
}

// ContestStateResponse 轮询用比赛状态快照
type ContestStateResponse struct {
	Contest     ContestSummary   `json:"contest"`
	Me          *MyParticipation `json:"me,omitempty"`
	Submissions []VotingEntry    `json:"submissions,omitempty"`
	Results     []ResultEntry    `json:"results,omitempty"`
}
