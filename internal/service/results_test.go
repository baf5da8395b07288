package service

import (
	"testing"
	"time"

	"imagesvoter/backend/internal/model"
)

func TestRankResults(t *testing.T) {
	base := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	sub := func(id, nickname string, offset time.Duration) model.Submission {
		return model.Submission{
			SubmissionID: id,
			CreatedAt:    base.Add(offset),
			Participant:  &model.Participant{Nickname: nickname},
		}
	}

	tests := []struct {
		name        string
		submissions []model.Submission
		counts      []model.VoteCount
		wantOrder   []string
	}{
		{
			name: "同票按创建时间",
			submissions: []model.Submission{
				sub("s2", "Bob", 2*time.Second),
				sub("s1", "Alice", time.Second),
			},
			counts:    []model.VoteCount{{SubmissionID: "s1", Votes: 2}, {SubmissionID: "s2", Votes: 2}},
			wantOrder: []string{"s1", "s2"},
		},
		{
			name: "票数优先于创建时间",
			submissions: []model.Submission{
				sub("s1", "Alice", time.Second),
				sub("s2", "Bob", 2*time.Second),
				sub("s3", "Carol", 3*time.Second),
			},
			counts: []model.VoteCount{
				{SubmissionID: "s1", Votes: 2},
				{SubmissionID: "s2", Votes: 2},
				{SubmissionID: "s3", Votes: 3},
			},
			wantOrder: []string{"s3", "s1", "s2"},
		},
		{
			name: "零票作品也参与排名",
			submissions: []model.Submission{
				sub("s1", "Alice", time.Second),
				sub("s2", "Bob", 2*time.Second),
			},
			counts:    []model.VoteCount{{SubmissionID: "s2", Votes: 1}},
			wantOrder: []string{"s2", "s1"},
		},
		{
			name: "同票同时间按 ID",
			submissions: []model.Submission{
				sub("b", "Bob", time.Second),
				sub("a", "Alice", time.Second),
			},
			wantOrder: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rankResults(tt.submissions, tt.counts)
			if len(got) != len(tt.wantOrder) {
				t.Fatalf("期望 %d 项，实际 %d", len(tt.wantOrder), len(got))
			}
			for i, id := range tt.wantOrder {
				if got[i].SubmissionID != id {
					t.Errorf("第 %d 名期望 %s，实际 %s", i+1, id, got[i].SubmissionID)
				}
				if got[i].Rank != i+1 {
					t.Errorf("Rank 期望 %d，实际 %d", i+1, got[i].Rank)
				}
			}
		})
	}
}

func TestRankResults_DoesNotReorderInput(t *testing.T) {
	subs := []model.Submission{
		{SubmissionID: "s1", CreatedAt: time.Unix(1, 0)},
		{SubmissionID: "s2", CreatedAt: time.Unix(2, 0)},
	}
	rankResults(subs, []model.VoteCount{{SubmissionID: "s2", Votes: 5}})
	if subs[0].SubmissionID != "s1" {
		t.Error("rankResults 不应修改入参顺序")
	}
}
