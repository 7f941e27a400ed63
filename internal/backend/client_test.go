package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/casedeck/internal/apperr"
	"github.com/starford/casedeck/internal/models"
	"github.com/starford/casedeck/internal/testutil"
)

func draft(title string) models.Draft {
	return models.Draft{
		FeatureName:    "Auth",
		Title:          title,
		Steps:          "steps",
		ExpectedResult: "result",
		Priority:       models.PriorityHigh,
		Status:         models.StatusDraft,
	}
}

func TestCreateAndList(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := New(fb.URL())
	ctx := context.Background()

	created, err := c.Create(ctx, draft("Login"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 || created.CreatedAt.IsZero() {
		t.Errorf("server fields not populated: %+v", created)
	}

	list, err := c.List(ctx, models.Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Login" {
		t.Errorf("list = %+v", list)
	}
}

func TestListForwardsOnlyNonEmptyFilters(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := New(fb.URL())
	ctx := context.Background()

	if _, err := c.List(ctx, models.Filters{}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.List(ctx, models.Filters{Search: "log in", Status: models.StatusReady}); err != nil {
		t.Fatal(err)
	}

	reqs := fb.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %v", reqs)
	}
	if reqs[0] != "GET /api/testcases" {
		t.Errorf("unfiltered request = %q", reqs[0])
	}
	if !strings.Contains(reqs[1], "search=log+in") || !strings.Contains(reqs[1], "status=Ready") {
		t.Errorf("filtered request = %q", reqs[1])
	}
	if strings.Contains(reqs[1], "priority") {
		t.Errorf("empty priority should not be sent: %q", reqs[1])
	}
}

func TestListEmptyIsNonNil(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	list, err := New(fb.URL()).List(context.Background(), models.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("list = %#v, want empty slice", list)
	}
}

func TestUpdateReplacesAllFields(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := New(fb.URL())
	ctx := context.Background()

	rec, err := c.Create(ctx, draft("Old"))
	if err != nil {
		t.Fatal(err)
	}
	d := draft("New")
	d.Status = models.StatusAutomated
	d.Priority = models.PriorityLow
	updated, err := c.Update(ctx, rec.ID, d)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "New" || updated.Status != models.StatusAutomated || updated.Priority != models.PriorityLow {
		t.Errorf("updated = %+v", updated)
	}
}

func TestDelete(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := New(fb.URL())
	ctx := context.Background()

	rec, _ := c.Create(ctx, draft("Bye"))
	if err := c.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if fb.Len() != 0 {
		t.Errorf("record still stored")
	}

	err := c.Delete(ctx, rec.ID)
	if !errors.Is(err, apperr.ErrDelete) || !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestGet(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	seeded := fb.Seed(models.Record{Title: "Seeded", FeatureName: "F", Priority: models.PriorityLow, Status: models.StatusReady})
	c := New(fb.URL())

	rec, err := c.Get(context.Background(), seeded[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Title != "Seeded" {
		t.Errorf("title = %q", rec.Title)
	}

	_, err = c.Get(context.Background(), 999)
	if !errors.Is(err, apperr.ErrFetch) || !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing get err = %v", err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := New(fb.URL())
	ctx := context.Background()
	rec, _ := c.Create(ctx, draft("x"))

	fb.Fail(http.MethodGet, http.StatusInternalServerError)
	fb.Fail(http.MethodPost, http.StatusBadGateway)
	fb.Fail(http.MethodPut, http.StatusServiceUnavailable)
	fb.Fail(http.MethodDelete, http.StatusForbidden)

	if _, err := c.List(ctx, models.Filters{}); !errors.Is(err, apperr.ErrFetch) {
		t.Errorf("list err = %v, want ErrFetch", err)
	}
	if _, err := c.Create(ctx, draft("y")); !errors.Is(err, apperr.ErrCreate) {
		t.Errorf("create err = %v, want ErrCreate", err)
	}
	if _, err := c.Update(ctx, rec.ID, draft("z")); !errors.Is(err, apperr.ErrUpdate) {
		t.Errorf("update err = %v, want ErrUpdate", err)
	}
	err := c.Delete(ctx, rec.ID)
	if !errors.Is(err, apperr.ErrDelete) {
		t.Errorf("delete err = %v, want ErrDelete", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Errorf("delete status error = %v", err)
	}
}

func TestTransportFailureIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).List(context.Background(), models.Filters{})
	if !errors.Is(err, apperr.ErrFetch) {
		t.Errorf("err = %v, want ErrFetch", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).List(context.Background(), models.Filters{})
	if !errors.Is(err, apperr.ErrFetch) {
		t.Errorf("err = %v, want ErrFetch", err)
	}
}

func TestWithTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeout(20*time.Millisecond))
	if _, err := c.List(context.Background(), models.Filters{}); !errors.Is(err, apperr.ErrFetch) {
		t.Errorf("err = %v, want timeout wrapped in ErrFetch", err)
	}
}

func TestHealth(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	if err := New(fb.URL() + "/").Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}
