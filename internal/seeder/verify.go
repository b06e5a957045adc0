package seeder

import (
	"context"
	"fmt"
	"net/http"
)

type leaderboardEntry struct {
	Rank        int    `json:"rank"`
	Participant string `json:"participant"`
	Points      int    `json:"points"`
}

// verify checks the leaderboard ordering and that every generated
// participant's total matches the sum of its approved claims.
func (r *runner) verify(ctx context.Context) error {
	expected := make(map[string]int, len(r.names))
	for _, name := range r.names {
		expected[name] = 0
	}
	count := 0
	for _, name := range r.names {
		var approved []struct {
			Points int `json:"points"`
		}
		// Participants read their own claims.
		if err := r.client.do(ctx, http.MethodGet, "/claims?status=approved&limit=1000", name, nil, &approved); err != nil {
			return err
		}
		for _, c := range approved {
			expected[name] += c.Points
		}
		count += len(approved)
	}
	if count != r.stats.Approved {
		return fmt.Errorf("found %d approved claims, approved %d", count, r.stats.Approved)
	}

	var board []leaderboardEntry
	if err := r.client.do(ctx, http.MethodGet, "/leaderboard", "", nil, &board); err != nil {
		return err
	}
	r.stats.LeaderboardEntries = len(board)
	if err := checkRanking(board); err != nil {
		return err
	}
	for _, e := range board {
		want, ours := expected[e.Participant]
		if ours && e.Points != want {
			return fmt.Errorf("participant %s has %d points on the leaderboard, approved claims sum to %d",
				e.Participant, e.Points, want)
		}
	}
	return nil
}

// checkRanking verifies points never increase and that ties share a rank
// while the next distinct total takes its position.
func checkRanking(board []leaderboardEntry) error {
	for i, e := range board {
		want := i + 1
		if i > 0 {
			prev := board[i-1]
			if e.Points > prev.Points {
				return fmt.Errorf("entry %d (%s, %d) outranks %s (%d)", i, e.Participant, e.Points, prev.Participant, prev.Points)
			}
			if e.Points == prev.Points {
				want = prev.Rank
			}
		}
		if e.Rank != want {
			return fmt.Errorf("entry %s has rank %d, expected %d", e.Participant, e.Rank, want)
		}
	}
	return nil
}
