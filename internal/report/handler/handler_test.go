package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	allocation "quorum/internal/allocation/models"
	"quorum/internal/parity"
	"quorum/internal/report/models"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/testutil"
)

type stubService struct {
	overview *models.QuotaOverview
	state    *parity.StateReport
	national *models.NationalParity
	err      error
}

func (s stubService) QuotaOverview(context.Context, id.EventID, id.StateCode) (*models.QuotaOverview, error) {
	return s.overview, s.err
}

func (s stubService) StateParity(context.Context, id.EventID, id.StateCode) (*parity.StateReport, error) {
	return s.state, s.err
}

func (s stubService) NationalParity(context.Context, id.EventID) (*models.NationalParity, error) {
	return s.national, s.err
}

func newReportRouter(svc Service) (http.Handler, *bytes.Buffer) {
	logs := &bytes.Buffer{}
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(logs, nil))).Register(r)
	return r, logs
}

const eventPath = "/events/550e8400-e29b-41d4-a716-446655440000"

func TestReportRoutes(t *testing.T) {
	counts := allocation.GenderCounts{Women: 1, Men: 1}
	router, _ := newReportRouter(stubService{
		overview: &models.QuotaOverview{State: "CE", StateName: "Ceará", Totals: counts, Relinquished: 3},
		state:    &parity.StateReport{State: "CE", StateName: "Ceará", Snapshot: parity.Compute(counts)},
		national: &models.NationalParity{NationalReport: parity.Aggregate(nil)},
	})

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, eventPath+"/states/ce/quotas"))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "relinquished", float64(3))

	rec = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, eventPath+"/states/CE/parity"))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "state_name", "Ceará")

	rec = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, eventPath+"/parity"))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONHasKey(t, rec, "total")
}

func TestReportErrors(t *testing.T) {
	t.Run("bad state", func(t *testing.T) {
		router, _ := newReportRouter(stubService{})
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, eventPath+"/states/ZZ/quotas"))
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "invalid_input")
	})

	t.Run("coded service error", func(t *testing.T) {
		router, _ := newReportRouter(stubService{err: dErrors.New(dErrors.CodeNotFound, "event not found")})
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, eventPath+"/parity"))
		testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
	})

	t.Run("internal error is logged and hidden", func(t *testing.T) {
		router, logs := newReportRouter(stubService{err: dErrors.Wrap(errors.New("conn reset"), dErrors.CodeInternal, "failed")})
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, eventPath+"/states/CE/parity"))
		testutil.AssertStatusAndError(t, rec, http.StatusInternalServerError, "internal_error")
		if !bytes.Contains(logs.Bytes(), []byte("conn reset")) {
			t.Fatalf("expected internal error to be logged, got %q", logs.String())
		}
	})
}
