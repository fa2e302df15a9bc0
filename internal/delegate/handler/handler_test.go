package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"quorum/internal/allocation/store/ledger"
	assembly "quorum/internal/assembly/models"
	assemblyservice "quorum/internal/assembly/service"
	assemblystore "quorum/internal/assembly/store"
	"quorum/internal/delegate/models"
	"quorum/internal/delegate/service"
	delegatestore "quorum/internal/delegate/store/delegate"
	"quorum/internal/delegate/store/mirror"
	"quorum/internal/delegate/store/profile"
	"quorum/internal/quota"
	"quorum/pkg/platform/audit/publisher"
	auditmemory "quorum/pkg/platform/audit/store/memory"
	"quorum/pkg/testutil"
)

type fixture struct {
	router   http.Handler
	state    *assembly.Event
	national *assembly.Event
	audit    *auditmemory.InMemoryStore
}

func newDelegateRouter(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	auditStore := auditmemory.NewInMemoryStore()
	delegates := delegatestore.NewInMemory()
	events := assemblyservice.New(assemblystore.NewInMemory(), delegates)
	svc, err := service.New(service.Deps{
		Delegates: delegates,
		Profiles:  profile.NewInMemory(),
		Mirrors:   mirror.NewInMemory(),
		Ledger:    ledger.NewInMemory(quota.Default()),
		Events:    events,
	}, service.WithLogger(logger), service.WithAuditPublisher(publisher.NewPublisher(auditStore)))
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	ctx := context.Background()
	national, err := events.CreateEvent(ctx, &assembly.CreateEventRequest{
		Kind: assembly.KindNational, Name: "Nacional", TargetCount: 100,
	})
	if err != nil {
		t.Fatalf("failed to create national event: %v", err)
	}
	state, err := events.CreateEvent(ctx, &assembly.CreateEventRequest{
		Kind: assembly.KindState, State: "PE", Name: "Pernambuco", TargetCount: 20,
		NationalEventID: national.ID.String(),
	})
	if err != nil {
		t.Fatalf("failed to create state event: %v", err)
	}

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return fixture{router: r, state: state, national: national, audit: auditStore}
}

func (f fixture) register(t *testing.T, body map[string]any) *models.Delegate {
	t.Helper()
	rec := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/events/"+f.state.ID.String()+"/delegates", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering delegate, got %d: %s", rec.Code, rec.Body.String())
	}
	return testutil.UnmarshalResponse[models.Delegate](t, rec)
}

func TestDelegateLifecycleViaHandlers(t *testing.T) {
	f := newDelegateRouter(t)

	d := f.register(t, map[string]any{
		"person_id": "123.456.789-09", "full_name": "Maria da Silva", "gender": "woman", "category": "racial",
	})
	if d.PersonID != "12345678909" {
		t.Fatalf("expected normalized person id, got %q", d.PersonID)
	}

	rec := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/events/"+f.state.ID.String()+"/states/PE/delegates"))
	testutil.AssertStatusOK(t, rec)
	list := testutil.UnmarshalResponse[listResponse](t, rec)
	if len(list.Delegates) != 1 {
		t.Fatalf("expected 1 delegate in roster, got %d", len(list.Delegates))
	}

	rec = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPatch, "/delegates/"+d.ID.String(), map[string]any{
		"category": "youth",
	}))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "category", "youth")

	rec = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/delegates/"+d.ID.String()+"/registration", map[string]any{
		"email": "maria@example.org", "birth_date": "1985-02-11",
	}))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "status", "validated")

	rec = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/delegates/"+d.ID.String()+"/registration"))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "email", "maria@example.org")

	rec = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPost, "/delegates/"+d.ID.String()+"/promote"))
	testutil.AssertStatus(t, rec, http.StatusCreated)
	testutil.AssertJSONContains(t, rec, "national_event_id", f.national.ID.String())

	rec = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodDelete, "/delegates/"+d.ID.String()))
	testutil.AssertStatusOK(t, rec)
	report := testutil.UnmarshalResponse[models.DeletionReport](t, rec)
	if !report.SeatReleased || !report.ProfileRemoved || report.MirrorsRemoved != 1 {
		t.Fatalf("expected full cascade, got %+v", report)
	}

	rec = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/delegates/"+d.ID.String()))
	testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
}

func TestDuplicatePersonResponse(t *testing.T) {
	f := newDelegateRouter(t)
	existing := f.register(t, map[string]any{
		"person_id": "98765432100", "full_name": "João", "category": "open",
	})

	rec := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/events/"+f.national.ID.String()+"/delegates", map[string]any{
		"state": "SP", "person_id": "987.654.321-00", "full_name": "João", "category": "open",
	}))
	testutil.AssertStatusAndError(t, rec, http.StatusConflict, "duplicate_person")
	testutil.AssertJSONContains(t, rec, "existing_id", existing.ID.String())
	testutil.AssertJSONContains(t, rec, "existing_kind", "elected")
	testutil.AssertJSONContains(t, rec, "existing_state", "PE")
}

func TestDelegateHandlerErrors(t *testing.T) {
	f := newDelegateRouter(t)
	elected := f.register(t, map[string]any{
		"person_id": "111", "full_name": "Eleita", "gender": "woman", "category": "indigenous",
	})
	registerPath := "/events/" + f.state.ID.String() + "/delegates"

	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
		code   string
	}{
		{
			name: "malformed delegate id",
			req: func(t *testing.T) *http.Request {
				return testutil.NewRequest(t, http.MethodGet, "/delegates/nope")
			},
			status: http.StatusBadRequest,
			code:   "invalid_input",
		},
		{
			name: "malformed state",
			req: func(t *testing.T) *http.Request {
				return testutil.NewRequest(t, http.MethodGet, "/events/"+f.state.ID.String()+"/states/XX/delegates")
			},
			status: http.StatusBadRequest,
			code:   "invalid_input",
		},
		{
			name: "alternate without reason",
			req: func(t *testing.T) *http.Request {
				return testutil.NewJSONRequest(t, http.MethodPost, registerPath, map[string]any{
					"person_id": "222", "full_name": "Suplente", "category": "open",
					"kind": "alternate", "replaces_id": elected.ID.String(),
				})
			},
			status: http.StatusBadRequest,
			code:   "missing_substitution_data",
		},
		{
			name: "born seat without group",
			req: func(t *testing.T) *http.Request {
				return testutil.NewJSONRequest(t, http.MethodPost, registerPath, map[string]any{
					"person_id": "333", "full_name": "Nata", "category": "open", "kind": "born_seat",
				})
			},
			status: http.StatusBadRequest,
			code:   "missing_born_seat_group",
		},
		{
			name: "unknown category",
			req: func(t *testing.T) *http.Request {
				return testutil.NewJSONRequest(t, http.MethodPost, registerPath, map[string]any{
					"person_id": "444", "full_name": "X", "category": "pilots",
				})
			},
			status: http.StatusBadRequest,
			code:   "unknown_category",
		},
		{
			name: "unknown field",
			req: func(t *testing.T) *http.Request {
				return testutil.NewRequestWithBody(t, http.MethodPost, registerPath, `{"person_id":"1","shoe_size":42}`)
			},
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name: "promote pending delegate",
			req: func(t *testing.T) *http.Request {
				return testutil.NewRequest(t, http.MethodPost, "/delegates/"+elected.ID.String()+"/promote")
			},
			status: http.StatusConflict,
			code:   "conflict",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.DoRequest(f.router, tt.req(t))
			testutil.AssertStatusAndError(t, rec, tt.status, tt.code)
		})
	}
}

func TestQuotaFullViaHandler(t *testing.T) {
	f := newDelegateRouter(t)
	// indigenous holds 2 seats in the default schema.
	for _, person := range []string{"501", "502"} {
		f.register(t, map[string]any{"person_id": person, "full_name": "P" + person, "category": "indigenous"})
	}
	rec := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/events/"+f.state.ID.String()+"/delegates", map[string]any{
		"person_id": "503", "full_name": "P503", "category": "indigenous",
	}))
	testutil.AssertStatusAndError(t, rec, http.StatusConflict, "quota_full")
}

func TestAuditCarriesOperatorAndRequestID(t *testing.T) {
	f := newDelegateRouter(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/events/"+f.state.ID.String()+"/delegates", map[string]any{
		"person_id": "600", "full_name": "Auditada", "category": "youth",
	})
	req = testutil.WithRequestID(testutil.WithOperator(req, "mesa-3"), "req-600")

	rec := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rec, http.StatusCreated)
	d := testutil.UnmarshalResponse[models.Delegate](t, rec)

	events, err := f.audit.ListBySubject(context.Background(), d.ID.String())
	if err != nil {
		t.Fatalf("failed to list audit events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Action != "delegate_registered" || events[0].ActorID != "mesa-3" || events[0].RequestID != "req-600" {
		t.Fatalf("unexpected audit event %+v", events[0])
	}
}
