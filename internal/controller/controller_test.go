package controller

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/casedeck/internal/backend"
	"github.com/starford/casedeck/internal/models"
	"github.com/starford/casedeck/internal/testutil"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) Render(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

// gatedAPI holds Create and Update until gate is closed.
type gatedAPI struct {
	API
	gate  chan struct{}
	saves atomic.Int32
}

func (g *gatedAPI) Create(ctx context.Context, d models.Draft) (*models.Record, error) {
	g.saves.Add(1)
	<-g.gate
	return g.API.Create(ctx, d)
}

func (g *gatedAPI) Update(ctx context.Context, id int64, d models.Draft) (*models.Record, error) {
	g.saves.Add(1)
	<-g.gate
	return g.API.Update(ctx, id, d)
}

func start(t *testing.T, api API, opts Options) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := New(api, rec, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, rec
}

func waitFor(t *testing.T, fn func() bool, msg string) {
	t.Helper()
	testutil.Eventually(t, 2*time.Second, 5*time.Millisecond, fn, msg)
	if t.Failed() {
		t.FailNow()
	}
}

func waitLoaded(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	waitFor(t, func() bool {
		s := c.Snapshot()
		return s.Loaded && !s.Loading
	}, "initial list never applied")
	return c.Snapshot()
}

func sample(title string, p models.Priority, s models.Status) models.Record {
	return models.Record{
		FeatureName:    "Auth",
		Title:          title,
		Steps:          "open page",
		ExpectedResult: "page opens",
		Priority:       p,
		Status:         s,
	}
}

func validDraft(title string) models.Draft {
	return models.Draft{
		FeatureName:    "Checkout",
		Title:          title,
		Steps:          "1. add item\n2. pay",
		ExpectedResult: "order placed",
		Priority:       models.PriorityLow,
		Status:         models.StatusReady,
	}
}

func TestInitialLoadSingleRecord(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Seed(sample("Login", models.PriorityHigh, models.StatusDraft))
	c, _ := start(t, backend.New(fb.URL()), Options{})

	s := waitLoaded(t, c)
	if len(s.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(s.Records))
	}
	if s.Records[0].Priority != models.PriorityHigh || s.Records[0].Status != models.StatusDraft {
		t.Errorf("record = %+v", s.Records[0])
	}
	want := models.Stats{Total: 1, Draft: 1}
	if s.Stats != want {
		t.Errorf("stats = %+v, want %+v", s.Stats, want)
	}
}

func TestLoadFailureRaisesNotice(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Fail("GET", 500)
	c, _ := start(t, backend.New(fb.URL()), Options{})

	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "no notice after failed load")
	s := c.Snapshot()
	if s.Notice.Kind != NoticeError || s.Notice.Message != msgLoadFailed {
		t.Errorf("notice = %+v", s.Notice)
	}
	if s.Loaded || len(s.Records) != 0 {
		t.Errorf("cache changed on failure: %+v", s)
	}
}

func TestOpenCreateAfterEditResetsForm(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	seeded := fb.Seed(sample("Login", models.PriorityHigh, models.StatusReady))
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.OpenEdit(seeded[0].ID)
	waitFor(t, func() bool { return c.Snapshot().Modal.Mode == ModalEdit }, "edit modal not opened")

	s := c.Snapshot()
	if s.Modal.Form != seeded[0].Draft() {
		t.Errorf("edit form = %+v, want %+v", s.Modal.Form, seeded[0].Draft())
	}
	if s.Modal.EditID != seeded[0].ID {
		t.Errorf("edit id = %d", s.Modal.EditID)
	}
	if s.Modal.Title() != "Edit Test Case" || s.Modal.SubmitLabel() != "Update Test Case" {
		t.Errorf("labels = %q / %q", s.Modal.Title(), s.Modal.SubmitLabel())
	}

	c.OpenCreate()
	waitFor(t, func() bool { return c.Snapshot().Modal.Mode == ModalCreate }, "create modal not opened")
	s = c.Snapshot()
	if s.Modal.Form != models.NewDraft() {
		t.Errorf("create form = %+v, want defaults", s.Modal.Form)
	}
	if s.Modal.EditID != 0 {
		t.Errorf("edit target survived: %d", s.Modal.EditID)
	}
}

func TestOpenEditUnknownIDStaysClosed(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.OpenEdit(42)
	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "no notice for unknown id")
	if c.Snapshot().Modal.Open() {
		t.Error("modal opened for unknown id")
	}
}

func TestSubmitInvalidIssuesNoRequest(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.OpenCreate()
	d := validDraft("")
	d.Title = "   "
	c.Submit(d)

	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "no validation notice")
	s := c.Snapshot()
	if s.Notice.Kind != NoticeError || !strings.HasPrefix(s.Notice.Message, msgInvalidForm) {
		t.Errorf("notice = %+v", s.Notice)
	}
	if !strings.Contains(s.Notice.Message, "title") {
		t.Errorf("notice does not name the field: %q", s.Notice.Message)
	}
	if s.Modal.Mode != ModalCreate || s.Modal.Submitting {
		t.Errorf("modal = %+v", s.Modal)
	}
	if n := fb.Calls("POST"); n != 0 {
		t.Errorf("POST calls = %d, want 0", n)
	}
}

func TestEditWithUnknownStatusNeedsAKnownValue(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	rec := validDraft("Legacy")
	recs := fb.Seed(models.Record{
		FeatureName: rec.FeatureName, Title: rec.Title, Steps: rec.Steps,
		ExpectedResult: rec.ExpectedResult, Priority: rec.Priority, Status: "Blocked",
	})
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.OpenEdit(recs[0].ID)
	waitFor(t, func() bool { return c.Snapshot().Modal.Mode == ModalEdit }, "edit modal not opened")
	form := c.Snapshot().Modal.Form
	if form.Status != "Blocked" {
		t.Fatalf("form status = %q, want the cached value", form.Status)
	}

	c.Submit(form)
	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "no validation notice")
	if s := c.Snapshot(); s.Notice.Kind != NoticeError || s.Modal.Mode != ModalEdit {
		t.Errorf("notice = %+v, modal = %+v", s.Notice, s.Modal)
	}
	if n := fb.Calls("PUT"); n != 0 {
		t.Errorf("PUT calls = %d, want 0", n)
	}
}

func TestSubmitCreateClosesAndReloads(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.OpenCreate()
	d := validDraft("  Pay with card  ")
	c.Submit(d)

	waitFor(t, func() bool {
		s := c.Snapshot()
		return len(s.Records) == 1 && !s.Modal.Open()
	}, "created record never listed")

	s := c.Snapshot()
	if s.Records[0].Title != "Pay with card" {
		t.Errorf("title not trimmed: %q", s.Records[0].Title)
	}
	if s.Notice == nil || s.Notice.Message != msgCreated {
		t.Errorf("notice = %+v", s.Notice)
	}
	if s.Modal.Form != (models.Draft{}) {
		t.Errorf("form not reset: %+v", s.Modal.Form)
	}
}

func TestSubmitUpdateUsesEditTarget(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	seeded := fb.Seed(sample("Login", models.PriorityHigh, models.StatusDraft))
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.OpenEdit(seeded[0].ID)
	waitFor(t, func() bool { return c.Snapshot().Modal.Mode == ModalEdit }, "edit modal not opened")

	form := c.Snapshot().Modal.Form
	form.Status = models.StatusAutomated
	c.Submit(form)

	waitFor(t, func() bool {
		s := c.Snapshot()
		return !s.Modal.Open() && len(s.Records) == 1 && s.Records[0].Status == models.StatusAutomated
	}, "update never applied")

	if s := c.Snapshot(); s.Notice == nil || s.Notice.Message != msgUpdated {
		t.Errorf("notice = %+v", s.Notice)
	}
	if fb.Calls("PUT") != 1 || fb.Calls("POST") != 0 {
		t.Errorf("PUT = %d, POST = %d", fb.Calls("PUT"), fb.Calls("POST"))
	}
}

func TestSubmitFailureKeepsModalOpen(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Fail("POST", 500)
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.OpenCreate()
	c.Submit(validDraft("Refund"))

	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "no failure notice")
	s := c.Snapshot()
	if s.Notice.Message != msgSaveFailed {
		t.Errorf("notice = %+v", s.Notice)
	}
	if s.Modal.Mode != ModalCreate || s.Modal.Submitting {
		t.Errorf("modal = %+v", s.Modal)
	}
	if s.Modal.SubmitLabel() != "Create Test Case" {
		t.Errorf("label = %q", s.Modal.SubmitLabel())
	}
	if s.Modal.Form.Title != "Refund" {
		t.Errorf("form lost input: %+v", s.Modal.Form)
	}
}

func TestSubmitWhileInFlightIgnored(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	api := &gatedAPI{API: backend.New(fb.URL()), gate: make(chan struct{})}
	c, _ := start(t, api, Options{})
	waitLoaded(t, c)

	c.OpenCreate()
	c.Submit(validDraft("First"))
	waitFor(t, func() bool { return c.Snapshot().Modal.Submitting }, "submit never started")

	if got := c.Snapshot().Modal.SubmitLabel(); got != "Creating..." {
		t.Errorf("label = %q", got)
	}
	c.Submit(validDraft("Second"))
	c.OpenCreate()
	c.Reload()

	waitFor(t, func() bool { return !c.Snapshot().Loading }, "reload did not settle")
	if n := api.saves.Load(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}
	if f := c.Snapshot().Modal.Form; f.Title != "First" {
		t.Errorf("in-flight form replaced: %+v", f)
	}

	close(api.gate)
	waitFor(t, func() bool { return len(c.Snapshot().Records) == 1 }, "record never listed")
	if fb.Calls("POST") != 1 {
		t.Errorf("POST = %d", fb.Calls("POST"))
	}
}

func TestLateSubmitResultLeavesNewModalAlone(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	seeded := fb.Seed(sample("Login", models.PriorityHigh, models.StatusDraft))
	api := &gatedAPI{API: backend.New(fb.URL()), gate: make(chan struct{})}
	c, _ := start(t, api, Options{})
	waitLoaded(t, c)

	c.OpenCreate()
	c.Submit(validDraft("First"))
	waitFor(t, func() bool { return c.Snapshot().Modal.Submitting }, "submit never started")

	c.CloseModal()
	waitFor(t, func() bool { return !c.Snapshot().Modal.Open() }, "modal not closed")
	c.OpenEdit(seeded[0].ID)
	waitFor(t, func() bool { return c.Snapshot().Modal.Mode == ModalEdit }, "edit not opened")

	close(api.gate)
	waitFor(t, func() bool { return len(c.Snapshot().Records) == 2 }, "create never listed")

	s := c.Snapshot()
	if s.Modal.Mode != ModalEdit || s.Modal.EditID != seeded[0].ID {
		t.Errorf("late result touched the edit modal: %+v", s.Modal)
	}
}

func TestDeleteDeclinedIssuesNoRequest(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	seeded := fb.Seed(sample("Login", models.PriorityHigh, models.StatusDraft))
	c, _ := start(t, backend.New(fb.URL()), Options{})
	before := waitLoaded(t, c)

	c.RequestDelete(seeded[0].ID)
	waitFor(t, func() bool { return c.Snapshot().ConfirmDelete != nil }, "no confirmation prompt")
	if got := c.Snapshot().ConfirmDelete.ID; got != seeded[0].ID {
		t.Errorf("confirm id = %d", got)
	}

	c.ResolveDelete(false)
	waitFor(t, func() bool { return c.Snapshot().ConfirmDelete == nil }, "prompt not dismissed")

	if n := fb.Calls("DELETE"); n != 0 {
		t.Errorf("DELETE calls = %d, want 0", n)
	}
	if n := fb.Calls("GET"); n != 1 {
		t.Errorf("GET calls = %d, want 1", n)
	}
	if after := c.Snapshot(); len(after.Records) != len(before.Records) {
		t.Errorf("cache changed: %d -> %d", len(before.Records), len(after.Records))
	}
}

func TestDeleteConfirmedReloads(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	seeded := fb.Seed(
		sample("Login", models.PriorityHigh, models.StatusDraft),
		sample("Logout", models.PriorityLow, models.StatusReady),
	)
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.RequestDelete(seeded[0].ID)
	c.ResolveDelete(true)

	waitFor(t, func() bool { return len(c.Snapshot().Records) == 1 }, "deleted record still listed")
	s := c.Snapshot()
	if s.Records[0].ID != seeded[1].ID {
		t.Errorf("wrong record left: %+v", s.Records[0])
	}
	if s.Notice == nil || s.Notice.Message != msgDeleted {
		t.Errorf("notice = %+v", s.Notice)
	}
}

func TestDeleteFailureKeepsCache(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	seeded := fb.Seed(sample("Login", models.PriorityHigh, models.StatusDraft))
	fb.Fail("DELETE", 500)
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.RequestDelete(seeded[0].ID)
	c.ResolveDelete(true)

	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "no failure notice")
	s := c.Snapshot()
	if s.Notice.Message != msgDeleteFailed {
		t.Errorf("notice = %+v", s.Notice)
	}
	if len(s.Records) != 1 {
		t.Errorf("cache changed: %+v", s.Records)
	}
}

func TestSearchIsDebounced(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c, _ := start(t, backend.New(fb.URL()), Options{SearchDebounce: 40 * time.Millisecond})
	waitLoaded(t, c)

	c.SetSearch("l")
	c.SetSearch("lo")
	c.SetSearch("log")

	waitFor(t, func() bool { return fb.Calls("GET") == 2 }, "debounced reload never issued")
	time.Sleep(100 * time.Millisecond)

	reqs := fb.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %v", reqs)
	}
	if reqs[1] != "GET /api/testcases?search=log" {
		t.Errorf("request = %q", reqs[1])
	}
}

func TestEnumFilterSubsumesPendingSearch(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c, _ := start(t, backend.New(fb.URL()), Options{SearchDebounce: 150 * time.Millisecond})
	waitLoaded(t, c)

	c.SetSearch("log")
	c.SetPriority(models.PriorityHigh)

	waitFor(t, func() bool { return fb.Calls("GET") == 2 }, "priority reload never issued")
	time.Sleep(250 * time.Millisecond)

	reqs := fb.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %v", reqs)
	}
	if reqs[1] != "GET /api/testcases?priority=High&search=log" {
		t.Errorf("request = %q", reqs[1])
	}
}

func TestUnchangedEnumFilterDoesNotReload(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c, _ := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	c.SetPriority(models.PriorityHigh)
	c.SetPriority(models.PriorityHigh)
	c.SetStatus("")
	waitFor(t, func() bool { return fb.Calls("GET") == 2 && !c.Snapshot().Loading }, "priority reload never issued")
	time.Sleep(60 * time.Millisecond)

	if n := fb.Calls("GET"); n != 2 {
		t.Errorf("GET calls = %d, want 2", n)
	}
}

func TestClearFiltersReloadsOnce(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Seed(
		sample("Login", models.PriorityHigh, models.StatusDraft),
		sample("Logout", models.PriorityLow, models.StatusReady),
	)
	c, _ := start(t, backend.New(fb.URL()), Options{SearchDebounce: 20 * time.Millisecond})
	unfiltered := waitLoaded(t, c)

	c.SetPriority(models.PriorityHigh)
	c.SetStatus(models.StatusDraft)
	waitFor(t, func() bool {
		s := c.Snapshot()
		return fb.Calls("GET") == 3 && !s.Loading
	}, "filter reloads did not settle")
	if n := len(c.Snapshot().Records); n != 1 {
		t.Fatalf("filtered records = %d", n)
	}

	c.SetSearch("zzz")
	c.ClearFilters()
	waitFor(t, func() bool { return fb.Calls("GET") == 4 && !c.Snapshot().Loading }, "clear never reloaded")
	time.Sleep(60 * time.Millisecond)

	if n := fb.Calls("GET"); n != 4 {
		t.Errorf("GET calls = %d, want 4", n)
	}
	reqs := fb.Requests()
	if last := reqs[len(reqs)-1]; last != "GET /api/testcases" {
		t.Errorf("last request = %q", last)
	}
	s := c.Snapshot()
	if !s.Filters.IsZero() {
		t.Errorf("filters = %+v", s.Filters)
	}
	if len(s.Records) != len(unfiltered.Records) {
		t.Errorf("records = %d, want %d", len(s.Records), len(unfiltered.Records))
	}
}

func TestStaleListResponseDropped(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Seed(
		sample("Login", models.PriorityHigh, models.StatusDraft),
		sample("Logout", models.PriorityLow, models.StatusDraft),
	)
	fb.OnList(func(q url.Values) {
		if q.Get("priority") == "" {
			time.Sleep(200 * time.Millisecond)
		}
	})
	c, _ := start(t, backend.New(fb.URL()), Options{})

	waitFor(t, func() bool { return fb.Calls("GET") == 1 }, "initial list not issued")
	c.SetPriority(models.PriorityHigh)

	waitFor(t, func() bool {
		s := c.Snapshot()
		return s.Loaded && !s.Loading
	}, "lists did not settle")

	s := c.Snapshot()
	if len(s.Records) != 1 || s.Records[0].Priority != models.PriorityHigh {
		t.Errorf("stale response applied: %+v", s.Records)
	}
}

func TestNoticeExpiresAndDismisses(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Fail("GET", 500)
	c, _ := start(t, backend.New(fb.URL()), Options{NoticeTTL: 50 * time.Millisecond})

	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "no notice")
	waitFor(t, func() bool { return c.Snapshot().Notice == nil }, "notice never expired")

	c2, _ := start(t, backend.New(fb.URL()), Options{NoticeTTL: time.Hour})
	waitFor(t, func() bool { return c2.Snapshot().Notice != nil }, "no notice")
	c2.DismissNotice()
	waitFor(t, func() bool { return c2.Snapshot().Notice == nil }, "notice not dismissed")
}

func TestSnapshotsAreIsolated(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Seed(sample("Login", models.PriorityHigh, models.StatusDraft))
	c, rec := start(t, backend.New(fb.URL()), Options{})
	waitLoaded(t, c)

	s := c.Snapshot()
	s.Records[0].Title = "mutated"
	if c.Snapshot().Records[0].Title != "Login" {
		t.Error("snapshot shares the cache")
	}

	var prev uint64
	for _, snap := range rec.all() {
		if snap.Version <= prev {
			t.Fatalf("versions not increasing: %d after %d", snap.Version, prev)
		}
		prev = snap.Version
	}
}
