package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/wcalive/internal/app"
	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func ao5(round, person string, values ...int) model.Entry {
	return model.Entry{
		RoundID:  round,
		PersonID: person,
		EventID:  "333",
		Attempts: attempt.FromInts(values),
		Format:   model.EventFormat{NumberOfAttempts: 5, SortBy: model.SortByAverage},
	}
}

func startService(opts ...service.Option) (*service.Service, func()) {
	svc := service.New(append([]service.Option{service.WithWorkerCount(2), service.WithQueueSize(100)}, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))

		Convey("When it has not been started", func() {
			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then submissions are refused", func() {
				_, err := svc.Submit(context.Background(), model.Submission{Entry: ao5("r1", "p1", 1000)})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})

			Convey("Then stopping is a no-op", func() {
				So(svc.Stop(context.Background()), ShouldBeNil)
			})
		})

		Convey("When it is started and stopped", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			started := svc.GetStats()

			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			So(svc.Stop(stopCtx), ShouldBeNil)

			Convey("Then stats follow the lifecycle", func() {
				So(started["started"], ShouldEqual, true)
				So(started["workerCount"], ShouldEqual, 2)
				So(started["results"], ShouldEqual, 0)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Preview(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("When previewing a clean average of 5", func() {
			ev, err := svc.Preview(ctx, ao5("r1", "p1", 900, 800, 700, 1000, 600))

			Convey("Then stats and display strings are computed", func() {
				So(err, ShouldBeNil)
				So(ev.Best, ShouldEqual, 600)
				So(ev.Average, ShouldEqual, 800)
				So(ev.MeetsCutoff, ShouldBeTrue)
				So(ev.Warning, ShouldBeEmpty)
				So(ev.Formatted.Attempts, ShouldResemble, []string{"9.00", "8.00", "7.00", "10.00", "6.00"})
				So(ev.Formatted.Best, ShouldEqual, "6.00")
				So(ev.Formatted.Average, ShouldEqual, "8.00")
			})
		})

		Convey("When the cutoff is missed", func() {
			e := ao5("r1", "p1", 1200, 1100, 900, 900, 900)
			e.Cutoff = &model.Cutoff{NumberOfAttempts: 2, AttemptResult: 1000}
			ev, err := svc.Preview(ctx, e)

			Convey("Then later attempts are cleared and there is no average", func() {
				So(err, ShouldBeNil)
				So(ev.MeetsCutoff, ShouldBeFalse)
				So(ev.Attempts, ShouldResemble, []int{1200, 1100})
				So(ev.Best, ShouldEqual, 1100)
				So(ev.Average, ShouldEqual, 0)
				So(ev.Warning, ShouldBeEmpty)
			})
		})

		Convey("When an attempt exceeds the time limit", func() {
			e := model.Entry{
				RoundID: "r1", PersonID: "p1", EventID: "333oh",
				Attempts:  attempt.FromInts([]int{900, 1100, 950}),
				Format:    model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByAverage},
				TimeLimit: &model.TimeLimit{Centiseconds: 1000},
			}
			ev, err := svc.Preview(ctx, e)

			Convey("Then it becomes DNF and the mean is DNF", func() {
				So(err, ShouldBeNil)
				So(ev.Attempts, ShouldResemble, []int{900, -1, 950})
				So(ev.Best, ShouldEqual, 900)
				So(ev.Average, ShouldEqual, -1)
				So(ev.Formatted.Average, ShouldEqual, "DNF")
			})
		})

		Convey("When the event is 333mbf with a time limit", func() {
			e := model.Entry{
				RoundID: "r1", PersonID: "p1", EventID: "333mbf",
				Attempts:  attempt.FromInts([]int{970180001}),
				Format:    model.EventFormat{NumberOfAttempts: 1, SortBy: model.SortByBest},
				TimeLimit: &model.TimeLimit{Centiseconds: 1000},
			}
			ev, err := svc.Preview(ctx, e)

			Convey("Then the limit does not apply to the packed value", func() {
				So(err, ShouldBeNil)
				So(ev.Best, ShouldEqual, 970180001)
				So(ev.Formatted.Best, ShouldEqual, "3/4 30:00")
				So(ev.Formatted.Average, ShouldBeEmpty)
			})
		})

		Convey("When an attempt is omitted", func() {
			e := ao5("r1", "p1", 1000, 0, 1100)
			ev, err := svc.Preview(ctx, e)

			Convey("Then the skipped gap is reported", func() {
				So(err, ShouldBeNil)
				So(ev.Warning, ShouldEqual, "You've omitted attempt 2. Make sure it's intentional.")
				So(ev.WarningKind, ShouldEqual, "skipped_gap")
				So(ev.Average, ShouldEqual, 0)
			})
		})

		Convey("When the event is 333fm", func() {
			e := model.Entry{
				RoundID: "r1", PersonID: "p1", EventID: "333fm",
				Attempts: attempt.FromInts([]int{25, 26, 27}),
				Format:   model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByAverage},
			}
			ev, err := svc.Preview(ctx, e)

			Convey("Then the mean is scaled and rendered with decimals", func() {
				So(err, ShouldBeNil)
				So(ev.Average, ShouldEqual, 2600)
				So(ev.Formatted.Average, ShouldEqual, "26.00")
				So(ev.Formatted.Best, ShouldEqual, "25")
			})
		})

		Convey("When the event is 333fm with a cumulative time limit", func() {
			e := model.Entry{
				RoundID: "r1", PersonID: "p1", EventID: "333fm",
				Attempts: attempt.FromInts([]int{30, 31, 32}),
				Format:   model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByAverage},
				TimeLimit: &model.TimeLimit{
					Centiseconds: 40, CumulativeRoundIDs: []string{"r1"}, ElapsedCentiseconds: 20,
				},
			}
			ev, err := svc.Preview(ctx, e)

			Convey("Then move counts are not measured against the limit", func() {
				So(err, ShouldBeNil)
				So(ev.Attempts, ShouldResemble, []int{30, 31, 32})
				So(ev.Average, ShouldEqual, 3100)
			})
		})

		Convey("When the entry is malformed", func() {
			Convey("Then a missing round is rejected", func() {
				_, err := svc.Preview(ctx, ao5("", "p1", 1000))
				So(errors.Is(err, service.ErrInvalidEntry), ShouldBeTrue)
			})

			Convey("Then too many attempts are rejected", func() {
				_, err := svc.Preview(ctx, ao5("r1", "p1", 1, 2, 3, 4, 5, 6))
				So(errors.Is(err, service.ErrInvalidEntry), ShouldBeTrue)
			})

			Convey("Then sorting a best-of-2 by average is rejected", func() {
				e := ao5("r1", "p1", 1000)
				e.Format = model.EventFormat{NumberOfAttempts: 2, SortBy: model.SortByAverage}
				_, err := svc.Preview(ctx, e)
				So(errors.Is(err, service.ErrInvalidEntry), ShouldBeTrue)
			})

			Convey("Then a cutoff covering every attempt is rejected", func() {
				e := ao5("r1", "p1", 1000)
				e.Cutoff = &model.Cutoff{NumberOfAttempts: 5, AttemptResult: 1000}
				_, err := svc.Preview(ctx, e)
				So(errors.Is(err, service.ErrInvalidEntry), ShouldBeTrue)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service requiring confirmation", t, func() {
		svc, stop := startService()
		defer stop()
		ctx := context.Background()

		Convey("When a submission has no id", func() {
			ev, err := svc.Submit(ctx, model.Submission{Entry: ao5("r1", "p1", 900, 800, 700, 1000, 600)})

			Convey("Then one is generated", func() {
				So(err, ShouldBeNil)
				_, perr := uuid.Parse(ev.SubmissionID)
				So(perr, ShouldBeNil)
			})
		})

		Convey("When the same id is submitted twice", func() {
			sub := model.Submission{SubmissionID: "s-1", Entry: ao5("r1", "p1", 900, 800, 700, 1000, 600)}
			_, first := svc.Submit(ctx, sub)
			ev, second := svc.Submit(ctx, sub)

			Convey("Then the replay is reported as a duplicate", func() {
				So(first, ShouldBeNil)
				So(errors.Is(second, service.ErrDuplicate), ShouldBeTrue)
				So(ev.Average, ShouldEqual, 800)
			})
		})

		Convey("When the attempts carry a warning", func() {
			sub := model.Submission{SubmissionID: "s-2", Entry: ao5("r1", "p2", 500, 3000, 700)}
			ev, err := svc.Submit(ctx, sub)

			Convey("Then confirmation is required", func() {
				So(errors.Is(err, service.ErrConfirmationRequired), ShouldBeTrue)
				So(ev.WarningKind, ShouldEqual, "inconsistent")
			})

			Convey("Then the confirmed resend is accepted", func() {
				sub.Confirmed = true
				_, err := svc.Submit(ctx, sub)
				So(err, ShouldBeNil)
			})
		})

		Convey("When a round already holds results in another format", func() {
			_, err := svc.Submit(ctx, model.Submission{Entry: ao5("r9", "a", 500, 900, 950, 1000, 1100)})
			So(err, ShouldBeNil)
			stored := false
			for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); time.Sleep(5 * time.Millisecond) {
				if _, rerr := svc.Rank(ctx, "r9", "a"); rerr == nil {
					stored = true
					break
				}
			}
			So(stored, ShouldBeTrue)

			bo5 := ao5("r9", "b", 600, 700, 700, 700, 800)
			bo5.Format.SortBy = model.SortByBest
			_, err = svc.Submit(ctx, model.Submission{Entry: bo5})

			Convey("Then the submission is rejected", func() {
				So(errors.Is(err, service.ErrFormatMismatch), ShouldBeTrue)
			})

			Convey("Then the same format is still accepted", func() {
				_, err := svc.Submit(ctx, model.Submission{Entry: ao5("r9", "c", 550, 800, 800, 800, 900)})
				So(err, ShouldBeNil)
			})
		})

		Convey("When the entry is invalid", func() {
			_, err := svc.Submit(ctx, model.Submission{Entry: ao5("r1", "", 1000)})

			Convey("Then it is rejected before queueing", func() {
				So(errors.Is(err, service.ErrInvalidEntry), ShouldBeTrue)
			})
		})
	})

	Convey("Given a started service not requiring confirmation", t, func() {
		svc, stop := startService(service.WithRequireConfirmation(false))
		defer stop()

		Convey("When the attempts carry a warning", func() {
			ev, err := svc.Submit(context.Background(), model.Submission{Entry: ao5("r1", "p2", 500, 3000, 700)})

			Convey("Then the submission is queued with the warning attached", func() {
				So(err, ShouldBeNil)
				So(ev.Warning, ShouldNotBeEmpty)
			})
		})
	})
}
