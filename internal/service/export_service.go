package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

const (
	rankingSheet = "排名"
	votesSheet   = "投票明细"
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
// 文件包含两个 Sheet："排名"（与 GetResults 相同的排序）和 "投票明细"（投票人 → 作品）。
// 任意阶段都可导出，投票阶段导出的是当前票数。
type ExportService interface {
	ExportResults(ctx context.Context, contestID, teacherID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ────────────────────── ExportResults ──────────────────────

func (s *exportService) ExportResults(ctx context.Context, contestID, teacherID string) (*bytes.Buffer, string, error) {
	// 1. 校验归属
	contest, err := getOwnedContest(ctx, s.repo, s.logger, contestID, teacherID)
	if err != nil {
		return nil, "", err
	}

	// 2. 排名
	results, err := loadResults(ctx, s.repo, contest)
	if err != nil {
		s.logger.Error("统计比赛结果失败", zap.String("contest_id", contestID), zap.Error(err))
		return nil, "", err
	}

	// 3. 投票明细所需的昵称索引
	participants, err := s.repo.Participant.ListByContest(ctx, contestID)
	if err != nil {
		s.logger.Error("查询参赛者失败", zap.String("contest_id", contestID), zap.Error(err))
		return nil, "", err
	}
	votes, err := s.repo.Vote.ListByContest(ctx, contestID)
	if err != nil {
		s.logger.Error("查询投票失败", zap.String("contest_id", contestID), zap.Error(err))
		return nil, "", err
	}

	nicknames := make(map[string]string, len(participants))
	for _, p := range participants {
		nicknames[p.ParticipantID] = p.Nickname
	}
	authors := make(map[string]dto.ResultEntry, len(results.Results))
	for _, r := range results.Results {
		authors[r.SubmissionID] = r
	}

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(rankingSheet)
	if err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	if _, err := f.NewSheet(votesSheet); err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── Sheet 排名 ──
	f.SetColWidth(rankingSheet, "A", "A", 8)
	f.SetColWidth(rankingSheet, "B", "B", 20)
	f.SetColWidth(rankingSheet, "C", "C", 10)
	f.SetColWidth(rankingSheet, "D", "E", 48)
	f.SetColWidth(rankingSheet, "F", "F", 12)

	writeRow(f, rankingSheet, 1, "名次", "昵称", "票数", "AI 图片", "真实图片", "教师上传")
	f.SetCellStyle(rankingSheet, "A1", "F1", headerStyle)
	for i, r := range results.Results {
		teacherUpload := "否"
		if r.IsTeacherUpload {
			teacherUpload = "是"
		}
		writeRow(f, rankingSheet, i+2, r.Rank, r.ParticipantNickname, r.VoteCount, r.AIImageURL, r.RealImageURL, teacherUpload)
	}

	// ── Sheet 投票明细 ──
	f.SetColWidth(votesSheet, "A", "A", 20)
	f.SetColWidth(votesSheet, "B", "B", 40)
	f.SetColWidth(votesSheet, "C", "C", 20)
	f.SetColWidth(votesSheet, "D", "D", 22)

	writeRow(f, votesSheet, 1, "投票人", "作品", "作者", "投票时间")
	f.SetCellStyle(votesSheet, "A1", "D1", headerStyle)
	for i, v := range votes {
		author := authors[v.SubmissionID]
		writeRow(f, votesSheet, i+2,
			nicknames[v.ParticipantID],
			v.SubmissionID,
			author.ParticipantNickname,
			v.CreatedAt.Format(dto.TimeLayout),
		)
	}

	// 5. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("比赛结果_%s_%s.xlsx", sanitizeFilename(contest.Title), contest.JoinCode)
	s.logger.Info("导出比赛结果",
		zap.String("contest_id", contestID),
		zap.Int("submissions", len(results.Results)),
		zap.Int("votes", len(votes)),
	)
	return buf, filename, nil
}

// ── 辅助函数 ──

// writeRow 从 A 列开始写入一行
func writeRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	start, _ := excelize.CoordinatesToCellName(1, row)
	f.SetSheetRow(sheet, start, &values)
}

// sanitizeFilename 去除文件名中不安全的字符
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	name = replacer.Replace(name)
	if name == "" {
		return "contest"
	}
	return name
}
