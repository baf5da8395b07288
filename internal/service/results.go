package service

import (
	"context"
	"sort"

	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/model"
	"imagesvoter/backend/internal/repository"
)

// rankResults 计算比赛排名
// 排序：票数降序 → 作品创建时间升序 → 作品 ID 升序，保证结果确定
// 没有得票的作品同样出现在排名中
func rankResults(submissions []model.Submission, counts []model.VoteCount) []dto.ResultEntry {
	votes := make(map[string]int64, len(counts))
	for _, c := range counts {
		votes[c.SubmissionID] = c.Votes
	}

	ordered := make([]model.Submission, len(submissions))
	copy(ordered, submissions)
	sort.SliceStable(ordered, func(i, j int) bool {
		vi, vj := votes[ordered[i].SubmissionID], votes[ordered[j].SubmissionID]
		if vi != vj {
			return vi > vj
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].SubmissionID < ordered[j].SubmissionID
	})

	results := make([]dto.ResultEntry, 0, len(ordered))
	for i, sub := range ordered {
		entry := dto.ResultEntry{
			Rank:         i + 1,
			SubmissionID: sub.SubmissionID,
			VoteCount:    votes[sub.SubmissionID],
			AIImageURL:   sub.AIImageURL,
			RealImageURL: sub.RealImageURL,
		}
		if sub.Participant != nil {
			entry.ParticipantNickname = sub.Participant.Nickname
			entry.IsTeacherUpload = sub.Participant.IsTeacherUpload
		}
		results = append(results, entry)
	}
	return results
}

// loadResults 读取比赛作品与票数并排名，不做权限与阶段校验
func loadResults(ctx context.Context, repo *repository.Repository, contest *model.Contest) (*dto.ContestResultsResponse, error) {
	submissions, err := repo.Submission.ListByContest(ctx, contest.ContestID)
	if err != nil {
		return nil, err
	}
	counts, err := repo.Vote.CountBySubmission(ctx, contest.ContestID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c.Votes
	}

	return &dto.ContestResultsResponse{
		ContestID:  contest.ContestID,
		Title:      contest.Title,
		Status:     string(contest.Status),
		TotalVotes: total,
		Results:    rankResults(submissions, counts),
	}, nil
}
