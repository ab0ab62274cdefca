package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/opst/somigrate/cmd/somigrated/handlers"
	httptestutil "github.com/opst/somigrate/internal/testutils/http"
	apiplans "github.com/opst/somigrate/pkg/api/types/plans"
	"github.com/opst/somigrate/pkg/auth"
	"github.com/opst/somigrate/pkg/cmp"
	"github.com/opst/somigrate/pkg/conn/es"
	"github.com/opst/somigrate/pkg/migration"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/registry"
	"github.com/opst/somigrate/pkg/utils/pointer"
	"github.com/opst/somigrate/pkg/utils/try"
)

func exampleRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	return try.To(registry.New(
		".kibana",
		registry.TypeDef{Name: "dashboard", Index: ".kibana_analytics", ModelVersion: pointer.Ref(2)},
		registry.TypeDef{Name: "config", Migrations: []string{"8.7.0"}},
		registry.TypeDef{Name: "task", Index: ".kibana_task_manager", ModelVersion: pointer.Ref(3)},
	)).OrFatal(t)
}

func TestOfflinePlanHandler(t *testing.T) {
	type When struct {
		contentType string
		body        string
	}
	type Then struct {
		status int
		action migration.Action
		pickup []savedobjects.Type
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			e := echo.New()
			c, resp := httptestutil.Post(
				e, "/api/plans/", strings.NewReader(when.body), nil,
				httptestutil.ContentType(when.contentType),
			)

			err := handlers.OfflinePlanHandler(migration.NewPlanner(exampleRegistry(t)))(c)
			if then.status != http.StatusOK {
				if got := statusOf(err); got != then.status {
					t.Errorf("status: got %d (%v), want %d", got, err, then.status)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			got := apiplans.Detail{}
			if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Action != then.action {
				t.Errorf("action\n- got: %s\n- want: %s", got.Action, then.action)
			}
			if !cmp.SliceEq(got.Pickup, then.pickup) {
				t.Errorf("pickup\n- got: %v\n- want: %v", got.Pickup, then.pickup)
			}
		}
	}

	t.Run("missing index is planned to be created", theory(
		When{contentType: "application/json", body: `{"index": ".kibana_task_manager"}`},
		Then{status: http.StatusOK, action: migration.ActionCreate, pickup: []savedobjects.Type{}},
	))

	t.Run("outdated index is planned to be updated", theory(
		When{
			contentType: "application/json; charset=utf-8",
			body: `{
				"index": ".kibana_task_manager", "exists": true,
				"meta": {"mappingVersions": {"task": "10.2.0"}}
			}`,
		},
		Then{status: http.StatusOK, action: migration.ActionUpdateMappings, pickup: []savedobjects.Type{"task"}},
	))

	t.Run("legacy hashes in the main index", theory(
		When{
			contentType: "application/json",
			body: `{
				"index": ".kibana_analytics", "exists": true,
				"meta": {"migrationMappingPropertyHashes": {"dashboard": "b8aa800aa5e0d975c5e8dc57f03d41f8"}}
			}`,
		},
		Then{status: http.StatusOK, action: migration.ActionReindex, pickup: []savedobjects.Type{"dashboard"}},
	))

	t.Run("missing index whose types live in another index is planned to be reindexed", theory(
		When{
			contentType: "application/json",
			body: `{
				"index": ".kibana_analytics",
				"live": {".kibana": {"mappingVersions": {"config": "8.7.0", "dashboard": "10.2.0"}}}
			}`,
		},
		Then{status: http.StatusOK, action: migration.ActionReindex, pickup: []savedobjects.Type{"dashboard"}},
	))

	t.Run("newer index is conflict", theory(
		When{
			contentType: "application/json",
			body: `{
				"index": ".kibana_task_manager", "exists": true,
				"meta": {"mappingVersions": {"task": "10.9.0"}}
			}`,
		},
		Then{status: http.StatusConflict},
	))

	t.Run("non json request is bad request", theory(
		When{contentType: "text/plain", body: `{"index": ".kibana"}`},
		Then{status: http.StatusBadRequest},
	))

	t.Run("broken json is bad request", theory(
		When{contentType: "application/json", body: `{"index": `},
		Then{status: http.StatusBadRequest},
	))

	t.Run("request without index is bad request", theory(
		When{contentType: "application/json", body: `{"exists": true}`},
		Then{status: http.StatusBadRequest},
	))
}

type fakeCoordinator struct {
	plan migration.Plan
	err  error

	called []string
}

func (f *fakeCoordinator) Plan(ctx context.Context, index string) (migration.Plan, error) {
	f.called = append(f.called, "plan:"+index)
	return f.plan, f.err
}

func (f *fakeCoordinator) Apply(ctx context.Context, index string) (migration.Plan, error) {
	f.called = append(f.called, "apply:"+index)
	return f.plan, f.err
}

func TestIndexPlanHandler(t *testing.T) {
	theory := func(err error, wantStatus int) func(*testing.T) {
		return func(t *testing.T) {
			coord := &fakeCoordinator{
				plan: migration.Plan{Index: ".kibana", Action: migration.ActionNone},
				err:  err,
			}
			e := echo.New()
			c, resp := httptestutil.Get(e, "/api/indices/.kibana/plan/", httptestutil.Params{"index", ".kibana"})

			herr := handlers.IndexPlanHandler(coord, "index")(c)
			if !cmp.SliceEq(coord.called, []string{"plan:.kibana"}) {
				t.Errorf("called: %v", coord.called)
			}
			if wantStatus != http.StatusOK {
				if got := statusOf(herr); got != wantStatus {
					t.Errorf("status: got %d (%v), want %d", got, herr, wantStatus)
				}
				return
			}
			if herr != nil {
				t.Fatal(herr)
			}
			got := apiplans.Detail{}
			if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Index != ".kibana" || got.Action != migration.ActionNone {
				t.Errorf("unexpected: %+v", got)
			}
		}
	}

	t.Run("plan is responded", theory(nil, http.StatusOK))
	t.Run("newer index is conflict", theory(
		fmt.Errorf("%w: .kibana", migration.ErrIndexNewer), http.StatusConflict,
	))
	t.Run("ambiguous index is bad request", theory(
		fmt.Errorf("%w: .kibana", es.ErrAmbiguousIndex), http.StatusBadRequest,
	))
	t.Run("error response from elasticsearch is service unavailable", theory(
		&es.ResponseError{Status: http.StatusServiceUnavailable}, http.StatusServiceUnavailable,
	))
	t.Run("other errors are internal server error", theory(
		errors.New("fake error"), http.StatusInternalServerError,
	))
}

func TestApplyHandler(t *testing.T) {
	key := []byte("test-signing-key")

	theory := func(err error, wantStatus int) func(*testing.T) {
		return func(t *testing.T) {
			coord := &fakeCoordinator{
				plan: migration.Plan{Index: ".kibana", Action: migration.ActionUpdateMappings},
				err:  err,
			}
			token := try.To(auth.NewToken(key, "operator", time.Hour)).OrFatal(t)

			e := echo.New()
			c, resp := httptestutil.Post(
				e, "/api/indices/.kibana/apply/", nil, httptestutil.Params{"index", ".kibana"},
				httptestutil.Bearer(token),
			)

			herr := auth.Middleware(key)(handlers.ApplyHandler(coord, "index"))(c)
			if !cmp.SliceEq(coord.called, []string{"apply:.kibana"}) {
				t.Errorf("called: %v", coord.called)
			}
			if wantStatus != http.StatusOK {
				if got := statusOf(herr); got != wantStatus {
					t.Errorf("status: got %d (%v), want %d", got, herr, wantStatus)
				}
				return
			}
			if herr != nil {
				t.Fatal(herr)
			}
			got := apiplans.Applied{}
			if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.AppliedBy != "operator" || got.Action != migration.ActionUpdateMappings {
				t.Errorf("unexpected: %+v", got)
			}
		}
	}

	t.Run("applied plan is responded", theory(nil, http.StatusOK))
	t.Run("newer index is conflict", theory(
		fmt.Errorf("%w: .kibana", migration.ErrIndexNewer), http.StatusConflict,
	))
	t.Run("reindex is conflict", theory(
		fmt.Errorf("%w: .kibana", migration.ErrReindexRequired), http.StatusConflict,
	))

	t.Run("without token, it is not applied", func(t *testing.T) {
		coord := &fakeCoordinator{}
		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/indices/.kibana/apply/", nil, httptestutil.Params{"index", ".kibana"},
		)
		herr := auth.Middleware(key)(handlers.ApplyHandler(coord, "index"))(c)
		if got := statusOf(herr); got != http.StatusUnauthorized {
			t.Errorf("status: got %d (%v)", got, herr)
		}
		if len(coord.called) != 0 {
			t.Errorf("called: %v", coord.called)
		}
	})
}
