// Package types contains read models shared by the store and the API.
package types

// Entry is one leaderboard row ranked by approved points.
type Entry struct {
	Rank        int    `json:"rank"`
	Participant string `json:"participant"`
	Points      int    `json:"points"`
}

// Stats summarizes one participant's approved points.
type Stats struct {
	Participant string `json:"participant"`
	TotalPoints int    `json:"total_points"`
	MonthPoints int    `json:"month_points"`
	MonthClaims int    `json:"month_claims"`
	Rank        int    `json:"rank"`
	RankedTotal int    `json:"ranked_total"`
}

// ExportRow is one claim joined with its participant's role.
type ExportRow struct {
	Participant string
	Role        string
	Date        string
	Points      int
	EventType   string
	Notes       string
	Status      string
}
