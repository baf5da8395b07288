package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/realtime"
	"imagesvoter/backend/internal/service"
	pkgerrors "imagesvoter/backend/pkg/errors"
	"imagesvoter/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	registerResult   *dto.UserResponse
	registerErr      error
	loginResult      *dto.TokenResponse
	loginErr         error
	logoutErr        error
	logoutJTI        string
	getCurrentResult *dto.UserResponse
	getCurrentErr    error
}

func (m *mockAuthService) Register(_ context.Context, _ *dto.RegisterRequest) (*dto.UserResponse, error) {
	return m.registerResult, m.registerErr
}
func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Logout(_ context.Context, jti string, _ time.Time) error {
	m.logoutJTI = jti
	return m.logoutErr
}
func (m *mockAuthService) GetCurrentUser(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.getCurrentResult, m.getCurrentErr
}

// ── Mock ClassroomService ──

type mockClassroomService struct {
	result     *dto.ClassroomResponse
	listResult []dto.ClassroomResponse
	err        error
}

func (m *mockClassroomService) Create(_ context.Context, _ *dto.CreateClassroomRequest, _ string) (*dto.ClassroomResponse, error) {
	return m.result, m.err
}
func (m *mockClassroomService) GetByID(_ context.Context, _, _ string) (*dto.ClassroomResponse, error) {
	return m.result, m.err
}
func (m *mockClassroomService) List(_ context.Context, _ string) ([]dto.ClassroomResponse, error) {
	return m.listResult, m.err
}
func (m *mockClassroomService) Rename(_ context.Context, _ string, _ *dto.UpdateClassroomRequest, _ string) (*dto.ClassroomResponse, error) {
	return m.result, m.err
}
func (m *mockClassroomService) Delete(_ context.Context, _, _ string) error {
	return m.err
}

// ── Mock ContestService ──

type mockContestService struct {
	contestResult    *dto.ContestResponse
	detailResult     *dto.ContestDetailResponse
	listResult       []dto.ContestResponse
	submissionResult *dto.SubmissionResponse
	resultsResult    *dto.ContestResultsResponse
	err              error

	advanceReq   *dto.AdvanceStatusRequest
	kickedID     string
	deletedSubID string
}

func (m *mockContestService) Create(_ context.Context, _ *dto.CreateContestRequest, _ string) (*dto.ContestResponse, error) {
	return m.contestResult, m.err
}
func (m *mockContestService) GetByID(_ context.Context, _, _ string) (*dto.ContestDetailResponse, error) {
	return m.detailResult, m.err
}
func (m *mockContestService) List(_ context.Context, _, _ string) ([]dto.ContestResponse, error) {
	return m.listResult, m.err
}
func (m *mockContestService) Delete(_ context.Context, _, _ string) error {
	return m.err
}
func (m *mockContestService) AdvanceStatus(_ context.Context, _, _ string, req *dto.AdvanceStatusRequest) (*dto.ContestResponse, error) {
	m.advanceReq = req
	return m.contestResult, m.err
}
func (m *mockContestService) TeacherUploadImagePair(_ context.Context, _, _ string, _ *dto.SubmitImagesRequest) (*dto.SubmissionResponse, error) {
	return m.submissionResult, m.err
}
func (m *mockContestService) KickParticipant(_ context.Context, _, _, participantID string) error {
	m.kickedID = participantID
	return m.err
}
func (m *mockContestService) DeleteSubmission(_ context.Context, _, _, submissionID string) error {
	m.deletedSubID = submissionID
	return m.err
}
func (m *mockContestService) GetResults(_ context.Context, _, _ string) (*dto.ContestResultsResponse, error) {
	return m.resultsResult, m.err
}

// ── Mock PlayService ──

type mockPlayService struct {
	joinResult       *dto.JoinContestResponse
	stateResult      *dto.ContestStateResponse
	resultsResult    *dto.ContestResultsResponse
	submissionResult *dto.SubmissionResponse
	voteResult       *dto.VoteResponse
	contestID        string
	err              error

	gotSession dto.ParticipantSession
}

func (m *mockPlayService) JoinContest(_ context.Context, _ *dto.JoinContestRequest) (*dto.JoinContestResponse, error) {
	return m.joinResult, m.err
}
func (m *mockPlayService) GetState(_ context.Context, _ string, session dto.ParticipantSession) (*dto.ContestStateResponse, error) {
	m.gotSession = session
	return m.stateResult, m.err
}
func (m *mockPlayService) GetResults(_ context.Context, _ string) (*dto.ContestResultsResponse, error) {
	return m.resultsResult, m.err
}
func (m *mockPlayService) SubmitImages(_ context.Context, session dto.ParticipantSession, _ *dto.SubmitImagesRequest) (*dto.SubmissionResponse, error) {
	m.gotSession = session
	return m.submissionResult, m.err
}
func (m *mockPlayService) CastVote(_ context.Context, session dto.ParticipantSession, _ *dto.CastVoteRequest) (*dto.VoteResponse, error) {
	m.gotSession = session
	return m.voteResult, m.err
}
func (m *mockPlayService) ContestIDByCode(_ context.Context, _ string) (string, error) {
	return m.contestID, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportResults(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setupGin() (*gin.Engine, *gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)
	return r, c, w
}

func setAuth(c *gin.Context) {
	c.Set("user_id", "test-user-id")
	c.Set("token_jti", "test-jti")
	c.Set("token_exp", time.Now().Add(15*time.Minute))
}

func withAuth(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAuth(c)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func newPlayHandler(svc service.PlayService) *PlayHandler {
	return NewPlayHandler(svc, realtime.NewHub(zap.NewNop()), []string{"http://localhost:3000"}, zap.NewNop())
}

var validImages = dto.SubmitImagesRequest{
	AIImageURL:   "https://img.example.com/ai.png",
	RealImageURL: "https://img.example.com/real.png",
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Register_Success(t *testing.T) {
	mock := &mockAuthService{registerResult: &dto.UserResponse{ID: "u1", Email: "t@school.edu"}}
	h := NewAuthHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Email:    "t@school.edu",
		Password: "Passw0rd!",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestAuthHandler_Register_EmailTaken(t *testing.T) {
	mock := &mockAuthService{registerErr: service.ErrEmailTaken}
	h := NewAuthHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Email:    "t@school.edu",
		Password: "Passw0rd!",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 11002 {
		t.Errorf("expected error code 11002, got %d", resp.Code)
	}
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Email:    "t@school.edu",
		Password: "short",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{
		loginResult: &dto.TokenResponse{AccessToken: "test-access-token", ExpiresIn: 3600},
	}
	h := NewAuthHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/login", jsonBody(dto.LoginRequest{
		Email:    "t@school.edu",
		Password: "Passw0rd!",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	mock := &mockAuthService{loginErr: service.ErrInvalidCredentials}
	h := NewAuthHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/login", jsonBody(dto.LoginRequest{
		Email:    "t@school.edu",
		Password: "wrong",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 11001 {
		t.Errorf("expected error code 11001, got %d", resp.Code)
	}
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/logout", nil)

	r := gin.New()
	r.POST("/auth/logout", withAuth(h.Logout))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.logoutJTI != "test-jti" {
		t.Errorf("expected jti test-jti, got %q", mock.logoutJTI)
	}
}

func TestAuthHandler_Logout_NoToken(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/auth/logout", nil)

	r := gin.New()
	r.POST("/auth/logout", h.Logout)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthHandler_GetCurrentUser_Success(t *testing.T) {
	mock := &mockAuthService{getCurrentResult: &dto.UserResponse{ID: "test-user-id"}}
	h := NewAuthHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/auth/me", nil)

	r := gin.New()
	r.GET("/auth/me", withAuth(h.GetCurrentUser))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAuthHandler_GetCurrentUser_NoAuth(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/auth/me", nil)

	r := gin.New()
	r.GET("/auth/me", h.GetCurrentUser)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ClassroomHandler Tests
// ═══════════════════════════════════════════════════════════

func TestClassroomHandler_Create_Success(t *testing.T) {
	mock := &mockClassroomService{result: &dto.ClassroomResponse{ID: "c1", Name: "三年二班"}}
	h := NewClassroomHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/classrooms", jsonBody(dto.CreateClassroomRequest{Name: "三年二班"}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/classrooms", withAuth(h.CreateClassroom))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestClassroomHandler_List(t *testing.T) {
	mock := &mockClassroomService{listResult: []dto.ClassroomResponse{{ID: "c1"}, {ID: "c2"}}}
	h := NewClassroomHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/classrooms", nil)

	r := gin.New()
	r.GET("/classrooms", withAuth(h.ListClassrooms))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data struct {
			List []dto.ClassroomResponse `json:"list"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Data.List) != 2 {
		t.Errorf("expected 2 classrooms, got %d", len(body.Data.List))
	}
}

func TestClassroomHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"not found", service.ErrClassroomNotFound, http.StatusNotFound, 12001},
		{"not owner", service.ErrNotClassroomOwner, http.StatusForbidden, 12002},
		{"internal", errors.New("db down"), http.StatusInternalServerError, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewClassroomHandler(&mockClassroomService{err: tt.err})

			_, _, w := setupGin()
			req := httptest.NewRequest("GET", "/classrooms/c1", nil)

			r := gin.New()
			r.GET("/classrooms/:id", withAuth(h.GetClassroom))
			r.ServeHTTP(w, req)

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// ContestHandler Tests
// ═══════════════════════════════════════════════════════════

func TestContestHandler_Create_InvalidType(t *testing.T) {
	h := NewContestHandler(&mockContestService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/contests", jsonBody(dto.CreateContestRequest{
		Title:       "AI 还是真实？",
		ClassroomID: "c1",
		ContestType: "MIXED",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/contests", withAuth(h.CreateContest))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestContestHandler_AdvanceStatus_Success(t *testing.T) {
	mock := &mockContestService{contestResult: &dto.ContestResponse{ID: "ct1", Status: "SUBMISSION"}}
	h := NewContestHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("PUT", "/contests/ct1/status", jsonBody(dto.AdvanceStatusRequest{
		Status:    "SUBMISSION",
		ResetMode: dto.ResetModeVotes,
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.PUT("/contests/:id/status", withAuth(h.AdvanceStatus))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.advanceReq == nil || mock.advanceReq.ResetMode != dto.ResetModeVotes {
		t.Errorf("reset_mode 未传递到 service: %+v", mock.advanceReq)
	}
}

func TestContestHandler_AdvanceStatus_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"unknown status", map[string]string{"status": "PAUSED"}},
		{"unknown reset mode", map[string]string{"status": "SUBMISSION", "reset_mode": "everything"}},
		{"missing status", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewContestHandler(&mockContestService{})

			_, _, w := setupGin()
			req := httptest.NewRequest("PUT", "/contests/ct1/status", jsonBody(tt.body))
			req.Header.Set("Content-Type", "application/json")

			r := gin.New()
			r.PUT("/contests/:id/status", withAuth(h.AdvanceStatus))
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestContestHandler_AdvanceStatus_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"invalid transition", service.ErrStatusTransInvalid, http.StatusUnprocessableEntity, 13003},
		{"lost race", service.ErrStatusChanged, http.StatusConflict, 13004},
		{"no submissions", service.ErrNoSubmissions, http.StatusPreconditionFailed, 13005},
		{"reset mode", service.ErrResetModeInvalid, http.StatusPreconditionFailed, 13006},
		{"not owner", service.ErrNotContestOwner, http.StatusForbidden, 13002},
		{"not found", service.ErrContestNotFound, http.StatusNotFound, 13001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewContestHandler(&mockContestService{err: tt.err})

			_, _, w := setupGin()
			req := httptest.NewRequest("PUT", "/contests/ct1/status", jsonBody(dto.AdvanceStatusRequest{Status: "VOTING"}))
			req.Header.Set("Content-Type", "application/json")

			r := gin.New()
			r.PUT("/contests/:id/status", withAuth(h.AdvanceStatus))
			r.ServeHTTP(w, req)

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestContestHandler_UploadImagePair(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mock := &mockContestService{submissionResult: &dto.SubmissionResponse{ID: "s1"}}
		h := NewContestHandler(mock)

		_, _, w := setupGin()
		req := httptest.NewRequest("POST", "/contests/ct1/submissions", jsonBody(validImages))
		req.Header.Set("Content-Type", "application/json")

		r := gin.New()
		r.POST("/contests/:id/submissions", withAuth(h.UploadImagePair))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Errorf("expected 201, got %d", w.Code)
		}
	})

	t.Run("wrong contest type", func(t *testing.T) {
		h := NewContestHandler(&mockContestService{err: service.ErrNotTeacherUploadContest})

		_, _, w := setupGin()
		req := httptest.NewRequest("POST", "/contests/ct1/submissions", jsonBody(validImages))
		req.Header.Set("Content-Type", "application/json")

		r := gin.New()
		r.POST("/contests/:id/submissions", withAuth(h.UploadImagePair))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusPreconditionFailed {
			t.Errorf("expected 412, got %d", w.Code)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		h := NewContestHandler(&mockContestService{})

		_, _, w := setupGin()
		req := httptest.NewRequest("POST", "/contests/ct1/submissions", jsonBody(dto.SubmitImagesRequest{
			AIImageURL:   "not a url",
			RealImageURL: "https://img.example.com/real.png",
		}))
		req.Header.Set("Content-Type", "application/json")

		r := gin.New()
		r.POST("/contests/:id/submissions", withAuth(h.UploadImagePair))
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestContestHandler_KickParticipant(t *testing.T) {
	mock := &mockContestService{}
	h := NewContestHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("DELETE", "/contests/ct1/participants/p42", nil)

	r := gin.New()
	r.DELETE("/contests/:id/participants/:participant_id", withAuth(h.KickParticipant))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.kickedID != "p42" {
		t.Errorf("expected participant p42, got %q", mock.kickedID)
	}
}

func TestContestHandler_KickParticipant_NotFound(t *testing.T) {
	h := NewContestHandler(&mockContestService{err: service.ErrParticipantNotFound})

	_, _, w := setupGin()
	req := httptest.NewRequest("DELETE", "/contests/ct1/participants/p42", nil)

	r := gin.New()
	r.DELETE("/contests/:id/participants/:participant_id", withAuth(h.KickParticipant))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 13009 {
		t.Errorf("expected error code 13009, got %d", resp.Code)
	}
}

func TestContestHandler_DeleteSubmission(t *testing.T) {
	mock := &mockContestService{}
	h := NewContestHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("DELETE", "/contests/ct1/submissions/s7", nil)

	r := gin.New()
	r.DELETE("/contests/:id/submissions/:submission_id", withAuth(h.DeleteSubmission))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.deletedSubID != "s7" {
		t.Errorf("expected submission s7, got %q", mock.deletedSubID)
	}
}

func TestContestHandler_NoAuth(t *testing.T) {
	h := NewContestHandler(&mockContestService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/contests/ct1/results", nil)

	r := gin.New()
	r.GET("/contests/:id/results", h.GetResults)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportResults_Success(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("xlsx-bytes"),
		filename: "比赛结果_AI 还是真实_ABC234.xlsx",
	}
	h := NewExportHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/contests/ct1/export", nil)

	r := gin.New()
	r.GET("/contests/:id/export", withAuth(h.ExportResults))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment; filename*=UTF-8''") || strings.Contains(cd, " 还是") {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestExportHandler_ExportResults_NotOwner(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrNotContestOwner})

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/contests/ct1/export", nil)

	r := gin.New()
	r.GET("/contests/:id/export", withAuth(h.ExportResults))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// PlayHandler Tests
// ═══════════════════════════════════════════════════════════

func TestPlayHandler_Join(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"success", nil, http.StatusCreated, 0},
		{"unknown code", service.ErrJoinCodeNotFound, http.StatusNotFound, 15001},
		{"nickname taken", service.ErrNicknameTaken, http.StatusConflict, 15005},
		{"reserved nickname", service.ErrNicknameReserved, http.StatusBadRequest, 15003},
		{"closed", service.ErrContestNotJoinable, http.StatusPreconditionFailed, 15006},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPlayService{
				joinResult: &dto.JoinContestResponse{ParticipantID: "p1", SessionID: "s1"},
				err:        tt.err,
			}
			h := newPlayHandler(mock)

			_, _, w := setupGin()
			req := httptest.NewRequest("POST", "/play/join", jsonBody(dto.JoinContestRequest{
				JoinCode: "ABC234",
				Nickname: "Alice",
			}))
			req.Header.Set("Content-Type", "application/json")

			r := gin.New()
			r.POST("/play/join", h.Join)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestPlayHandler_GetState_PassesSession(t *testing.T) {
	mock := &mockPlayService{stateResult: &dto.ContestStateResponse{}}
	h := newPlayHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/play/ABC234/state", nil)
	req.Header.Set(HeaderParticipantID, "p1")
	req.Header.Set(HeaderSessionID, "s1")

	r := gin.New()
	r.GET("/play/:code/state", h.GetState)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.gotSession.ParticipantID != "p1" || mock.gotSession.SessionID != "s1" {
		t.Errorf("会话未传递: %+v", mock.gotSession)
	}
}

func TestPlayHandler_GetState_Anonymous(t *testing.T) {
	mock := &mockPlayService{stateResult: &dto.ContestStateResponse{}}
	h := newPlayHandler(mock)

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/play/ABC234/state", nil)

	r := gin.New()
	r.GET("/play/:code/state", h.GetState)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !mock.gotSession.Empty() {
		t.Errorf("expected empty session, got %+v", mock.gotSession)
	}
}

func TestPlayHandler_SubmitImages_RequiresSession(t *testing.T) {
	h := newPlayHandler(&mockPlayService{})

	_, _, w := setupGin()
	req := httptest.NewRequest("POST", "/play/submissions", jsonBody(validImages))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderParticipantID, "p1")

	r := gin.New()
	r.POST("/play/submissions", h.SubmitImages)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 15004 {
		t.Errorf("expected error code 15004, got %d", resp.Code)
	}
}

func TestPlayHandler_SubmitImages_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"success", nil, http.StatusCreated, 0},
		{"not submission phase", service.ErrNotSubmissionPhase, http.StatusPreconditionFailed, 15007},
		{"teacher upload contest", service.ErrNotStudentUploadContest, http.StatusPreconditionFailed, 15008},
		{"already submitted", service.ErrAlreadySubmitted, http.StatusConflict, 15009},
		{"kicked", service.ErrSessionInvalid, http.StatusUnauthorized, 15004},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPlayService{submissionResult: &dto.SubmissionResponse{ID: "s1"}, err: tt.err}
			h := newPlayHandler(mock)

			_, _, w := setupGin()
			req := httptest.NewRequest("POST", "/play/submissions", jsonBody(validImages))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(HeaderParticipantID, "p1")
			req.Header.Set(HeaderSessionID, "s1")

			r := gin.New()
			r.POST("/play/submissions", h.SubmitImages)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestPlayHandler_CastVote_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"success", nil, http.StatusCreated, 0},
		{"already voted", service.ErrAlreadyVoted, http.StatusConflict, 15011},
		{"self vote", service.ErrSelfVote, http.StatusPreconditionFailed, 15012},
		{"not voting phase", service.ErrNotVotingPhase, http.StatusPreconditionFailed, 15010},
		{"synthetic voter", service.ErrTeacherUploadCannotVote, http.StatusUnauthorized, 15013},
		{"unknown submission", service.ErrSubmissionNotFound, http.StatusNotFound, 15015},
		{"uncategorised conflict", pkgerrors.Wrap(pkgerrors.ErrConflict, "冲突"), http.StatusConflict, 15000},
		{"internal", errors.New("boom"), http.StatusInternalServerError, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPlayService{voteResult: &dto.VoteResponse{ID: "v1"}, err: tt.err}
			h := newPlayHandler(mock)

			_, _, w := setupGin()
			req := httptest.NewRequest("POST", "/play/votes", jsonBody(dto.CastVoteRequest{SubmissionID: "s1"}))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(HeaderParticipantID, "p1")
			req.Header.Set(HeaderSessionID, "s1")

			r := gin.New()
			r.POST("/play/votes", h.CastVote)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantHTTP {
				t.Errorf("expected %d, got %d", tt.wantHTTP, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestPlayHandler_GetResults_NotReady(t *testing.T) {
	h := newPlayHandler(&mockPlayService{err: service.ErrResultsNotReady})

	_, _, w := setupGin()
	req := httptest.NewRequest("GET", "/play/ABC234/results", nil)

	r := gin.New()
	r.GET("/play/:code/results", h.GetResults)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("expected 412, got %d", w.Code)
	}
}

func TestPlayHandler_Subscribe(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	defer hub.Close()
	h := NewPlayHandler(&mockPlayService{contestID: "ct1"}, hub, nil, zap.NewNop())

	r := gin.New()
	r.GET("/play/:code/ws", h.Subscribe)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/play/ABC234/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount("ct1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("连接未注册到 hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish("ct1", service.EventStatusChanged, map[string]string{"status": "VOTING"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtime.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != service.EventStatusChanged {
		t.Errorf("expected %s, got %s", service.EventStatusChanged, msg.Type)
	}
}

func TestPlayHandler_Subscribe_UnknownCode(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	h := NewPlayHandler(&mockPlayService{err: service.ErrJoinCodeNotFound}, hub, nil, zap.NewNop())

	r := gin.New()
	r.GET("/play/:code/ws", h.Subscribe)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/play/NOPE00/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 handshake response, got %+v", resp)
	}
}
