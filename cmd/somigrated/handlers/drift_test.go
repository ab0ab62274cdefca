package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/opst/somigrate/cmd/somigrated/handlers"
	httptestutil "github.com/opst/somigrate/internal/testutils/http"
	apiplans "github.com/opst/somigrate/pkg/api/types/plans"
	"github.com/opst/somigrate/pkg/cmp"
	"github.com/opst/somigrate/pkg/migration"
)

type fixedDrift struct {
	drift migration.Drift
	ok    bool
}

func (f fixedDrift) Latest() (migration.Drift, bool) {
	return f.drift, f.ok
}

func TestDriftHandler(t *testing.T) {
	t.Run("before the first check, it is unavailable", func(t *testing.T) {
		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/drift/", nil)

		err := handlers.DriftHandler(fixedDrift{})(c)
		if got := statusOf(err); got != http.StatusServiceUnavailable {
			t.Errorf("status: got %d (%v)", got, err)
		}
	})

	t.Run("the latest check is responded", func(t *testing.T) {
		checkedAt := time.Date(2026, 10, 17, 12, 34, 56, 0, time.UTC)
		source := fixedDrift{
			ok: true,
			drift: migration.Drift{
				CheckedAt: checkedAt,
				Plans: []migration.Plan{
					{Index: ".kibana", Action: migration.ActionNone},
					{Index: ".kibana_task_manager", Action: migration.ActionUpdateMappings},
				},
				Err: errors.New("fake error"),
			},
		}

		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/drift/", nil)
		if err := handlers.DriftHandler(source)(c); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusOK {
			t.Fatalf("status: %d", resp.Code)
		}

		got := apiplans.Report{}
		if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if !got.CheckedAt.Equal(checkedAt) {
			t.Errorf("checkedAt: %s", got.CheckedAt)
		}
		if !cmp.SliceEq(got.Pending, []string{".kibana_task_manager"}) {
			t.Errorf("pending: %v", got.Pending)
		}
		if len(got.Plans) != 2 || got.Error != "fake error" {
			t.Errorf("unexpected: %+v", got)
		}
	})
}
