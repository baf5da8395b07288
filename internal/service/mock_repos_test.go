package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"imagesvoter/backend/internal/model"
	"imagesvoter/backend/internal/repository"
	pkgerrors "imagesvoter/backend/pkg/errors"
)

// ── 内存数据库 ──
//
// 所有 mock Repository 共享同一个 memStore，并与迁移脚本保持相同的约束：
// 唯一索引冲突返回 gorm.ErrDuplicatedKey，外键 ON DELETE CASCADE 同样级联删除。

type memStore struct {
	mu    sync.Mutex
	clock time.Time

	users        map[string]*model.User
	classrooms   map[string]*model.Classroom
	contests     map[string]*model.Contest
	participants map[string]*model.Participant
	submissions  map[string]*model.Submission
	votes        map[string]*model.Vote
}

func newMemStore() *memStore {
	return &memStore{
		clock:        time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
		users:        make(map[string]*model.User),
		classrooms:   make(map[string]*model.Classroom),
		contests:     make(map[string]*model.Contest),
		participants: make(map[string]*model.Participant),
		submissions:  make(map[string]*model.Submission),
		votes:        make(map[string]*model.Vote),
	}
}

// now 单调递增的时钟，保证创建顺序可比较
func (s *memStore) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// repository 组装使用该 store 的 Repository（未绑定数据库，事务退化为直接执行）
func (s *memStore) repository() *repository.Repository {
	return &repository.Repository{
		User:        &mockUserRepo{s},
		Classroom:   &mockClassroomRepo{s},
		Contest:     &mockContestRepo{s},
		Participant: &mockParticipantRepo{s},
		Submission:  &mockSubmissionRepo{s},
		Vote:        &mockVoteRepo{s},
	}
}

// ── 级联删除（调用方持有锁） ──

func (s *memStore) deleteClassroomLocked(id string) {
	delete(s.classrooms, id)
	for cid, c := range s.contests {
		if c.ClassroomID == id {
			s.deleteContestLocked(cid)
		}
	}
}

func (s *memStore) deleteContestLocked(id string) {
	delete(s.contests, id)
	for pid, p := range s.participants {
		if p.ContestID == id {
			s.deleteParticipantLocked(pid)
		}
	}
}

func (s *memStore) deleteParticipantLocked(id string) {
	delete(s.participants, id)
	for sid, sub := range s.submissions {
		if sub.ParticipantID == id {
			s.deleteSubmissionLocked(sid)
		}
	}
	for vid, v := range s.votes {
		if v.ParticipantID == id {
			delete(s.votes, vid)
		}
	}
}

func (s *memStore) deleteSubmissionLocked(id string) {
	delete(s.submissions, id)
	for vid, v := range s.votes {
		if v.SubmissionID == id {
			delete(s.votes, vid)
		}
	}
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	user.CreatedAt = m.s.now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.s.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ClassroomRepository ──

type mockClassroomRepo struct{ s *memStore }

func (m *mockClassroomRepo) Create(_ context.Context, classroom *model.Classroom) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if classroom.ClassroomID == "" {
		classroom.ClassroomID = uuid.NewString()
	}
	classroom.CreatedAt = m.s.now()
	classroom.UpdatedAt = classroom.CreatedAt
	cp := *classroom
	m.s.classrooms[classroom.ClassroomID] = &cp
	return nil
}

func (m *mockClassroomRepo) GetByID(_ context.Context, id string) (*model.Classroom, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.classrooms[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassroomRepo) ListByTeacher(_ context.Context, teacherID string) ([]model.Classroom, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Classroom
	for _, c := range m.s.classrooms {
		if c.TeacherID == teacherID {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockClassroomRepo) Update(_ context.Context, classroom *model.Classroom) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	classroom.UpdatedAt = m.s.now()
	cp := *classroom
	m.s.classrooms[classroom.ClassroomID] = &cp
	return nil
}

func (m *mockClassroomRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.deleteClassroomLocked(id)
	return nil
}

// ── Mock ContestRepository ──

type mockContestRepo struct{ s *memStore }

func (m *mockContestRepo) Create(_ context.Context, contest *model.Contest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.contests {
		if c.JoinCode == contest.JoinCode {
			return gorm.ErrDuplicatedKey
		}
	}
	if contest.ContestID == "" {
		contest.ContestID = uuid.NewString()
	}
	if contest.Status == "" {
		contest.Status = model.ContestStatusSubmission
	}
	contest.CreatedAt = m.s.now()
	contest.UpdatedAt = contest.CreatedAt
	cp := *contest
	cp.Classroom = nil
	m.s.contests[contest.ContestID] = &cp
	return nil
}

func (m *mockContestRepo) get(id string, preload bool) (*model.Contest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.contests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	if preload {
		if cl, ok := m.s.classrooms[c.ClassroomID]; ok {
			clCopy := *cl
			cp.Classroom = &clCopy
		}
	}
	return &cp, nil
}

func (m *mockContestRepo) GetByID(_ context.Context, id string) (*model.Contest, error) {
	return m.get(id, true)
}

func (m *mockContestRepo) GetByIDForShare(_ context.Context, id string) (*model.Contest, error) {
	return m.get(id, false)
}

func (m *mockContestRepo) GetByIDForUpdate(_ context.Context, id string) (*model.Contest, error) {
	return m.get(id, false)
}

func (m *mockContestRepo) GetByJoinCode(_ context.Context, joinCode string) (*model.Contest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.contests {
		if c.JoinCode == joinCode {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockContestRepo) ListByTeacher(_ context.Context, teacherID, classroomID string) ([]model.Contest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Contest
	for _, c := range m.s.contests {
		if c.TeacherID != teacherID {
			continue
		}
		if classroomID != "" && c.ClassroomID != classroomID {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockContestRepo) UpdateStatus(_ context.Context, id string, from, to model.ContestStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.contests[id]
	if !ok || c.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	c.Status = to
	c.UpdatedAt = m.s.now()
	return nil
}

func (m *mockContestRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.deleteContestLocked(id)
	return nil
}

// ── Mock ParticipantRepository ──

type mockParticipantRepo struct{ s *memStore }

func (m *mockParticipantRepo) Create(_ context.Context, participant *model.Participant) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.participants {
		if p.ContestID == participant.ContestID && p.Nickname == participant.Nickname {
			return gorm.ErrDuplicatedKey
		}
		if p.SessionID == participant.SessionID {
			return gorm.ErrDuplicatedKey
		}
	}
	if participant.ParticipantID == "" {
		participant.ParticipantID = uuid.NewString()
	}
	participant.CreatedAt = m.s.now()
	cp := *participant
	m.s.participants[participant.ParticipantID] = &cp
	return nil
}

func (m *mockParticipantRepo) GetByID(_ context.Context, id string) (*model.Participant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.participants[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipantRepo) ListByContest(_ context.Context, contestID string) ([]model.Participant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Participant
	for _, p := range m.s.participants {
		if p.ContestID == contestID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockParticipantRepo) count(contestID string, teacherUpload bool) int64 {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, p := range m.s.participants {
		if p.ContestID == contestID && p.IsTeacherUpload == teacherUpload {
			n++
		}
	}
	return n
}

func (m *mockParticipantRepo) CountByContest(_ context.Context, contestID string) (int64, error) {
	return m.count(contestID, false), nil
}

func (m *mockParticipantRepo) CountTeacherUploads(_ context.Context, contestID string) (int64, error) {
	return m.count(contestID, true), nil
}

func (m *mockParticipantRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.deleteParticipantLocked(id)
	return nil
}

func (m *mockParticipantRepo) DeleteTeacherUploads(_ context.Context, contestID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, p := range m.s.participants {
		if p.ContestID == contestID && p.IsTeacherUpload {
			m.s.deleteParticipantLocked(id)
		}
	}
	return nil
}

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct{ s *memStore }

func (m *mockSubmissionRepo) Create(_ context.Context, submission *model.Submission) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sub := range m.s.submissions {
		if sub.ParticipantID == submission.ParticipantID {
			return gorm.ErrDuplicatedKey
		}
	}
	if submission.SubmissionID == "" {
		submission.SubmissionID = uuid.NewString()
	}
	submission.CreatedAt = m.s.now()
	cp := *submission
	cp.Participant = nil
	m.s.submissions[submission.SubmissionID] = &cp
	return nil
}

// withParticipant 模拟 Preload("Participant")，调用方持有锁
func (m *mockSubmissionRepo) withParticipant(sub *model.Submission) model.Submission {
	cp := *sub
	if p, ok := m.s.participants[sub.ParticipantID]; ok {
		pCopy := *p
		cp.Participant = &pCopy
	}
	return cp
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sub, ok := m.s.submissions[id]; ok {
		cp := m.withParticipant(sub)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) GetByParticipant(_ context.Context, participantID string) (*model.Submission, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sub := range m.s.submissions {
		if sub.ParticipantID == participantID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) ListByContest(_ context.Context, contestID string) ([]model.Submission, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Submission
	for _, sub := range m.s.submissions {
		if sub.ContestID == contestID {
			result = append(result, m.withParticipant(sub))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].SubmissionID < result[j].SubmissionID
	})
	return result, nil
}

func (m *mockSubmissionRepo) CountByContest(_ context.Context, contestID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, sub := range m.s.submissions {
		if sub.ContestID == contestID {
			n++
		}
	}
	return n, nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.deleteSubmissionLocked(id)
	return nil
}

func (m *mockSubmissionRepo) DeleteByParticipant(_ context.Context, participantID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, sub := range m.s.submissions {
		if sub.ParticipantID == participantID {
			m.s.deleteSubmissionLocked(id)
		}
	}
	return nil
}

func (m *mockSubmissionRepo) DeleteByContest(_ context.Context, contestID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, sub := range m.s.submissions {
		if sub.ContestID == contestID {
			m.s.deleteSubmissionLocked(id)
		}
	}
	return nil
}

// ── Mock VoteRepository ──

type mockVoteRepo struct{ s *memStore }

func (m *mockVoteRepo) Create(_ context.Context, vote *model.Vote) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, v := range m.s.votes {
		if v.ParticipantID == vote.ParticipantID {
			return gorm.ErrDuplicatedKey
		}
	}
	if vote.VoteID == "" {
		vote.VoteID = uuid.NewString()
	}
	vote.CreatedAt = m.s.now()
	cp := *vote
	m.s.votes[vote.VoteID] = &cp
	return nil
}

func (m *mockVoteRepo) GetByParticipant(_ context.Context, participantID string) (*model.Vote, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, v := range m.s.votes {
		if v.ParticipantID == participantID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVoteRepo) ListByContest(_ context.Context, contestID string) ([]model.Vote, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Vote
	for _, v := range m.s.votes {
		if v.ContestID == contestID {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockVoteRepo) CountBySubmission(_ context.Context, contestID string) ([]model.VoteCount, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	bySubmission := make(map[string]int64)
	for _, v := range m.s.votes {
		if v.ContestID == contestID {
			bySubmission[v.SubmissionID]++
		}
	}
	counts := make([]model.VoteCount, 0, len(bySubmission))
	for id, n := range bySubmission {
		counts = append(counts, model.VoteCount{SubmissionID: id, Votes: n})
	}
	return counts, nil
}

func (m *mockVoteRepo) CountByContest(_ context.Context, contestID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, v := range m.s.votes {
		if v.ContestID == contestID {
			n++
		}
	}
	return n, nil
}

func (m *mockVoteRepo) deleteWhere(match func(v *model.Vote) bool) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, v := range m.s.votes {
		if match(v) {
			delete(m.s.votes, id)
		}
	}
}

func (m *mockVoteRepo) DeleteBySubmission(_ context.Context, submissionID string) error {
	m.deleteWhere(func(v *model.Vote) bool { return v.SubmissionID == submissionID })
	return nil
}

func (m *mockVoteRepo) DeleteByParticipant(_ context.Context, participantID string) error {
	m.deleteWhere(func(v *model.Vote) bool { return v.ParticipantID == participantID })
	return nil
}

func (m *mockVoteRepo) DeleteByContest(_ context.Context, contestID string) error {
	m.deleteWhere(func(v *model.Vote) bool { return v.ContestID == contestID })
	return nil
}

// ── Mock 外部协作者 ──

type mockStateCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newMockStateCache() *mockStateCache {
	return &mockStateCache{data: make(map[string][]byte)}
}

func (c *mockStateCache) GetContestState(_ context.Context, contestID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[contestID], nil
}

func (c *mockStateCache) SetContestState(_ context.Context, contestID string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[contestID] = data
	return nil
}

func (c *mockStateCache) InvalidateContestState(_ context.Context, contestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, contestID)
	c.invalidated = append(c.invalidated, contestID)
	return nil
}

type publishedEvent struct {
	contestID string
	event     string
}

type mockNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *mockNotifier) Publish(contestID, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{contestID: contestID, event: event})
}

func (n *mockNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.event == event {
			return true
		}
	}
	return false
}

type mockBlacklist struct {
	mu   sync.Mutex
	jtis map[string]time.Duration
}

func (b *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jtis == nil {
		b.jtis = make(map[string]time.Duration)
	}
	b.jtis[jti] = ttl
	return nil
}
