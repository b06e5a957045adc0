package seeder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/acolyte/internal/adapters/http/api"
	"github.com/okian/acolyte/internal/adapters/repository"
	service "github.com/okian/acolyte/internal/app"
	"github.com/okian/acolyte/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithLevel("error")); err != nil {
		panic(err)
	}
}

func startAPI(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc := service.New(
		service.WithDatabase(repository.DialectSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		service.WithBootstrapAdmin("admin"),
		service.WithLocation(time.UTC),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	server := api.NewServer(svc, api.WithSubmitRate(0, 0))
	mux := http.NewServeMux()
	server.Register(ctx, mux)
	ts := httptest.NewServer(server.Handler(mux))
	t.Cleanup(func() {
		ts.Close()
		svc.Stop()
	})
	return ts
}

func TestRun(t *testing.T) {
	Convey("Given a running API", t, func() {
		ts := startAPI(t)
		cfg := DefaultConfig()
		cfg.BaseURL = ts.URL
		cfg.Participants = 6
		cfg.Days = 14
		cfg.Attendance = 0.6
		cfg.Workers = 3
		cfg.Seed = 42

		Convey("When seeding", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every claim is moderated and the leaderboard agrees", func() {
				So(err, ShouldBeNil)
				So(stats.ParticipantsCreated, ShouldEqual, 6)
				So(stats.EventsScheduled, ShouldBeGreaterThanOrEqualTo, 16)
				So(stats.ClaimsFailed, ShouldEqual, 0)
				So(stats.ClaimsThrottled, ShouldEqual, 0)
				So(stats.Approved+stats.Rejected, ShouldEqual, stats.ClaimsSubmitted)
				So(stats.LeaderboardEntries, ShouldEqual, 6)
			})
		})

		Convey("When the admin does not exist", func() {
			cfg.Admin = "nobody"
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given nothing listening", t, func() {
		cfg := DefaultConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		cfg.Timeout = time.Second

		Convey("Then the health check fails", func() {
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldStartWith, "health check failed")
		})
	})
}

func TestConfig(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)

		Convey("Then out of range values are rejected", func() {
			cfg.Attendance = 1.5
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			cfg = DefaultConfig()
			cfg.Participants = 0
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a, b := newGenerator(7), newGenerator(7)

		Convey("Then they produce the same names", func() {
			names := a.names(10)
			So(names, ShouldResemble, b.names(10))
			seen := map[string]bool{}
			for _, n := range names {
				So(seen[n], ShouldBeFalse)
				seen[n] = true
				So(slug(n[:1]), ShouldEqual, n[:1])
			}
		})

		Convey("Then Sundays get a second mass", func() {
			sunday := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
			entries := a.schedule(sunday, 7)
			So(entries, ShouldHaveLength, 8)
			So(entries[0].Date, ShouldEqual, "2025-03-03")
			So(entries[7].Time, ShouldEqual, secondMassTime)
		})

		Convey("Then attendance bounds the submissions", func() {
			So(a.submissions([]string{"x"}, []int64{1, 2, 3}, 0), ShouldBeEmpty)
			So(a.submissions([]string{"x", "y"}, []int64{1, 2, 3}, 1), ShouldHaveLength, 6)
		})
	})
}

func TestCheckRanking(t *testing.T) {
	Convey("Given leaderboards", t, func() {
		Convey("Then ties share a rank and the next total takes its position", func() {
			So(checkRanking([]leaderboardEntry{
				{Rank: 1, Participant: "a", Points: 7},
				{Rank: 2, Participant: "b", Points: 5},
				{Rank: 2, Participant: "c", Points: 5},
				{Rank: 4, Participant: "d", Points: 1},
			}), ShouldBeNil)
		})

		Convey("Then disorder is reported", func() {
			So(checkRanking([]leaderboardEntry{
				{Rank: 1, Participant: "a", Points: 1},
				{Rank: 2, Participant: "b", Points: 5},
			}), ShouldNotBeNil)
			So(checkRanking([]leaderboardEntry{
				{Rank: 1, Participant: "a", Points: 5},
				{Rank: 1, Participant: "b", Points: 4},
			}), ShouldNotBeNil)
		})
	})
}
