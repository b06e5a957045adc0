package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	service "github.com/okian/acolyte/internal/app"
	"github.com/okian/acolyte/internal/adapters/repository"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats(context.Background())["started"], ShouldEqual, false)
		})

		Convey("Then operations refuse to run", func() {
			_, err := svc.ComputeForSelf(context.Background(), "jan", "standard")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Health(context.Background()), service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service on an in-memory database", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(
			service.WithDatabase(repository.DialectSQLite, memoryDSN()),
			service.WithBootstrapAdmin("root"),
			service.WithLocation(time.UTC),
		)
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it starts and is healthy", func() {
				So(err, ShouldBeNil)
				So(svc.Health(ctx), ShouldBeNil)
				So(svc.GetStats(ctx)["started"], ShouldEqual, true)
			})

			Convey("Then the bootstrap administrator exists", func() {
				p, err := svc.Participant(ctx, "root")
				So(err, ShouldBeNil)
				So(p.Role, ShouldEqual, model.RoleAdministrator)
				So(p.Active, ShouldBeTrue)
			})

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping it", func() {
				svc.Stop()

				Convey("Then it reports stopped", func() {
					So(svc.GetStats(ctx)["started"], ShouldEqual, false)
				})
			})
		})
	})

	Convey("Given an unsupported driver", t, func() {
		svc := service.New(service.WithDatabase("oracle", "x"))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, repository.ErrUnsupportedDialect), ShouldBeTrue)
		})
	})
}
