package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/internal/payments"
	"github.com/aura-webinar/spotlight/internal/sessionlog"
	"github.com/aura-webinar/spotlight/internal/streams"
)

type fakeSource struct {
	stages   map[models.AttendedType]int
	watch    *sessionlog.WatchTimeAggregates
	agg      *streams.Aggregates
	revenue  []payments.Revenue
	stageErr error
}

func (f fakeSource) CountByStage(context.Context, uuid.UUID) (map[models.AttendedType]int, error) {
	return f.stages, f.stageErr
}

func (f fakeSource) GetWatchTimeAggregates(context.Context, uuid.UUID) (*sessionlog.WatchTimeAggregates, error) {
	return f.watch, nil
}

func (f fakeSource) GetAggregatesByWebinar(context.Context, uuid.UUID) (*streams.Aggregates, error) {
	return f.agg, nil
}

func (f fakeSource) RevenueByWebinar(context.Context, uuid.UUID) ([]payments.Revenue, error) {
	return f.revenue, nil
}

func newService(f fakeSource) *Service {
	return NewService(f, f, f, f)
}

func TestSummarize(t *testing.T) {
	s := newService(fakeSource{
		stages: map[models.AttendedType]int{
			models.AttendedTypeRegistered:  4,
			models.AttendedTypeAttended:    3,
			models.AttendedTypeAddedToCart: 2,
			models.AttendedTypeConverted:   1,
		},
		watch:   &sessionlog.WatchTimeAggregates{TotalWatchSeconds: 3600, DistinctViewers: 6},
		agg:     &streams.Aggregates{Sessions: 1, PeakViewers: 5},
		revenue: []payments.Revenue{{Currency: "usd", AmountCents: 9900, Payments: 1}},
	})

	got, err := s.Summarize(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 10, got.TotalRegistrations)
	assert.Equal(t, 6, got.TotalAttended)
	assert.Equal(t, 4, got.TotalNoShow)
	assert.Equal(t, 1, got.TotalConverted)
	require.NotNil(t, got.ConversionRate)
	assert.InDelta(t, 1.0/6.0, *got.ConversionRate, 1e-9)
	assert.Equal(t, 5, got.PeakLiveViewers)
	assert.Equal(t, int64(600), got.AvgWatchSeconds)
	assert.Equal(t, int64(9900), got.Revenue[0].AmountCents)
}

func TestSummarizeEmptyWebinar(t *testing.T) {
	got, err := newService(fakeSource{}).Summarize(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, got.TotalRegistrations)
	assert.Nil(t, got.ConversionRate)
	assert.NotNil(t, got.Stages)
	assert.NotNil(t, got.Revenue)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	serve := func(f fakeSource, id string) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/webinars/:id/analytics", NewHandler(newService(f), nil).GetByWebinar)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webinars/"+id+"/analytics", nil))
		return w
	}

	w := serve(fakeSource{stages: map[models.AttendedType]int{models.AttendedTypeConverted: 2}}, uuid.NewString())
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.TotalConverted)

	assert.Equal(t, http.StatusBadRequest, serve(fakeSource{}, "nope").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(fakeSource{stageErr: errors.New("db down")}, uuid.NewString()).Code)
}
