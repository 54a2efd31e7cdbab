// Package analytics summarizes a webinar: funnel counts, watch time and revenue.
package analytics

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/internal/payments"
	"github.com/aura-webinar/spotlight/internal/sessionlog"
	"github.com/aura-webinar/spotlight/internal/streams"
)

// Funnel counts attendances per stage.
type Funnel interface {
	CountByStage(ctx context.Context, webinarID uuid.UUID) (map[models.AttendedType]int, error)
}

// WatchTime aggregates join/leave logs.
type WatchTime interface {
	GetWatchTimeAggregates(ctx context.Context, webinarID uuid.UUID) (*sessionlog.WatchTimeAggregates, error)
}

// Streams aggregates go-live sessions.
type Streams interface {
	GetAggregatesByWebinar(ctx context.Context, webinarID uuid.UUID) (*streams.Aggregates, error)
}

// Revenue sums payments.
type Revenue interface {
	RevenueByWebinar(ctx context.Context, webinarID uuid.UUID) ([]payments.Revenue, error)
}

// Summary is the analytics payload of one webinar.
type Summary struct {
	Stages             map[models.AttendedType]int `json:"stages"`
	TotalRegistrations int                         `json:"total_registrations"`
	TotalAttended      int                         `json:"total_attended"`
	TotalNoShow        int                         `json:"total_no_show"`
	TotalConverted     int                         `json:"total_converted"`
	ConversionRate     *float64                    `json:"conversion_rate,omitempty"`
	Sessions           int                         `json:"sessions"`
	PeakLiveViewers    int                         `json:"peak_live_viewers"`
	DistinctViewers    int                         `json:"distinct_viewers"`
	TotalWatchSeconds  int64                       `json:"total_watch_seconds"`
	AvgWatchSeconds    int64                       `json:"avg_watch_seconds"`
	Revenue            []payments.Revenue          `json:"revenue"`
}

// Service builds summaries.
type Service struct {
	funnel    Funnel
	watchTime WatchTime
	streams   Streams
	revenue   Revenue
}

// NewService creates an analytics service.
func NewService(funnel Funnel, watchTime WatchTime, streams Streams, revenue Revenue) *Service {
	return &Service{funnel: funnel, watchTime: watchTime, streams: streams, revenue: revenue}
}

// Summarize loads every aggregate of webinarID concurrently.
func (s *Service) Summarize(ctx context.Context, webinarID uuid.UUID) (*Summary, error) {
	var (
		stages map[models.AttendedType]int
		watch  *sessionlog.WatchTimeAggregates
		agg    *streams.Aggregates
		rev    []payments.Revenue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stages, err = s.funnel.CountByStage(gctx, webinarID)
		return err
	})
	g.Go(func() (err error) {
		watch, err = s.watchTime.GetWatchTimeAggregates(gctx, webinarID)
		return err
	})
	g.Go(func() (err error) {
		agg, err = s.streams.GetAggregatesByWebinar(gctx, webinarID)
		return err
	})
	g.Go(func() (err error) {
		rev, err = s.revenue.RevenueByWebinar(gctx, webinarID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summarize(stages, watch, agg, rev), nil
}

func summarize(stages map[models.AttendedType]int, watch *sessionlog.WatchTimeAggregates, agg *streams.Aggregates, rev []payments.Revenue) *Summary {
	if stages == nil {
		stages = map[models.AttendedType]int{}
	}
	if rev == nil {
		rev = []payments.Revenue{}
	}
	out := &Summary{Stages: stages, Revenue: rev}
	for stage, n := range stages {
		out.TotalRegistrations += n
		if stage != models.AttendedTypeRegistered {
			out.TotalAttended += n
		}
	}
	out.TotalNoShow = stages[models.AttendedTypeRegistered]
	out.TotalConverted = stages[models.AttendedTypeConverted]
	if out.TotalAttended > 0 {
		rate := float64(out.TotalConverted) / float64(out.TotalAttended)
		out.ConversionRate = &rate
	}
	if agg != nil {
		out.Sessions = agg.Sessions
		out.PeakLiveViewers = agg.PeakViewers
	}
	if watch != nil {
		out.DistinctViewers = watch.DistinctViewers
		out.TotalWatchSeconds = watch.TotalWatchSeconds
		if watch.DistinctViewers > 0 {
			out.AvgWatchSeconds = watch.TotalWatchSeconds / int64(watch.DistinctViewers)
		}
	}
	return out
}
