package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/skinroutine/internal/llm"
	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/review"
	"github.com/dshills/skinroutine/internal/routine"
	"github.com/dshills/skinroutine/internal/rules"
	"github.com/dshills/skinroutine/internal/store"
)

type requesterFunc func(ctx context.Context, p *profile.Profile) (*llm.Periods, error)

func (f requesterFunc) RequestRoutine(ctx context.Context, p *profile.Profile) (*llm.Periods, error) {
	return f(ctx, p)
}

func failing(err error) requesterFunc {
	return func(context.Context, *profile.Profile) (*llm.Periods, error) { return nil, err }
}

func replying(periods *llm.Periods) requesterFunc {
	return func(context.Context, *profile.Profile) (*llm.Periods, error) { return periods, nil }
}

type fakePersister struct {
	mu       sync.Mutex
	profiles []*profile.Profile
	routines []routine.Routine
	failOn   string        // "profile" or "routine"
	gate     chan struct{} // holds SaveGenerated until closed
}

func (f *fakePersister) SaveProfile(_ context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "profile" {
		return &store.PersistenceError{Op: "save_profile", Err: errors.New("disk full")}
	}
	f.profiles = append(f.profiles, p)
	return nil
}

func (f *fakePersister) SaveGenerated(ctx context.Context, r routine.Routine) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "routine" {
		return &store.PersistenceError{Op: "save_generated", Err: errors.New("disk full")}
	}
	f.routines = append(f.routines, r)
	return nil
}

func (f *fakePersister) saved(label string) ([]routine.Step, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.routines) == 0 {
		return nil, false
	}
	last := f.routines[len(f.routines)-1]
	if label == store.LabelMorning {
		return last.Morning, true
	}
	return last.Evening, true
}

// scenarioProfile is Dry skin with a Dryness concern and SPF.
func scenarioProfile() *profile.Profile {
	return &profile.Profile{
		SkinType:       profile.SkinDry,
		PrimaryConcern: profile.ConcernDryness,
		UsesSPF:        true,
	}
}

func newTestOrchestrator(client Requester, opts Options) *Orchestrator {
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	return New(client, rules.New(routine.NewCounterIDs("rule")), opts)
}

func modelPeriods() *llm.Periods {
	ids := routine.NewCounterIDs("llm")
	return &llm.Periods{
		Morning: []routine.Step{
			routine.NewStep(ids, "Cleanse", "Gel Cleanser", routine.Describe("Cleanse", "Gel Cleanser"), routine.Morning),
			routine.NewStep(ids, "Moisturize", "Light Lotion", routine.Describe("Moisturize", "Light Lotion"), routine.Morning),
		},
		Evening: []routine.Step{
			routine.NewStep(ids, "Cleanse", "Cleansing Balm", routine.Describe("Cleanse", "Cleansing Balm"), routine.Evening),
		},
		Model: "gpt-4o-mini",
	}
}

func assertSteps(t *testing.T, period string, got []routine.Step, names ...string) {
	t.Helper()
	if len(got) != len(names) {
		t.Fatalf("%s: got %d steps %v, want %v", period, len(got), got, names)
	}
	for i, n := range names {
		if got[i].Name() != n {
			t.Errorf("%s[%d] = %q, want %q", period, i, got[i].Name(), n)
		}
	}
}

func TestGenerate_SucceededReturnsModelRoutineUnmodified(t *testing.T) {
	want := modelPeriods()
	o := newTestOrchestrator(replying(want), Options{})
	res, err := o.Generate(context.Background(), scenarioProfile(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Status != StatusSucceeded || res.Cause != nil || res.CauseKind() != "" {
		t.Fatalf("status = %s, cause = %v", res.Status, res.Cause)
	}
	if res.Routine.Source != routine.SourceLLM || res.Routine.Model != "gpt-4o-mini" || res.Routine.Version != routine.SchemaVersion {
		t.Errorf("routine metadata = %+v", res.Routine)
	}
	for i := range want.Morning {
		if !res.Routine.Morning[i].Equal(want.Morning[i]) {
			t.Errorf("morning[%d] changed identity", i)
		}
	}
	if len(res.Routine.Evening) != 1 || !res.Routine.Evening[0].Equal(want.Evening[0]) {
		t.Errorf("evening = %v", res.Routine.Evening)
	}
	if res.Persisted != nil {
		t.Error("Persisted should be nil without a persister")
	}

	// The profile wants SPF and the model left it out; that is reported,
	// not corrected.
	var missingSPF bool
	for _, f := range res.Findings {
		if f.Code == review.CodeMissingSPF {
			missingSPF = true
		}
	}
	if !missingSPF {
		t.Errorf("expected %s finding, got %+v", review.CodeMissingSPF, res.Findings)
	}
	if len(res.Routine.Morning) != 2 {
		t.Errorf("routine was modified: %v", res.Routine.Morning)
	}
}

func TestGenerate_FallsBackOnEveryFailure(t *testing.T) {
	empty := func(m, e bool) requesterFunc {
		p := modelPeriods()
		if m {
			p.Morning = []routine.Step{}
		}
		if e {
			p.Evening = nil
		}
		return replying(p)
	}
	cases := []struct {
		name   string
		client Requester
		kind   string
	}{
		{"network", failing(&llm.GenerationError{Kind: llm.KindNetwork, Err: errors.New("connection refused")}), "network"},
		{"api", failing(&llm.GenerationError{Kind: llm.KindAPI, Status: 500, Err: errors.New("boom")}), "api"},
		{"malformed", failing(&llm.GenerationError{Kind: llm.KindMalformedResponse, Err: errors.New("no json")}), "malformed_response"},
		{"schema", failing(&llm.GenerationError{Kind: llm.KindSchemaViolation, Err: errors.New("missing key")}), "schema_violation"},
		{"timeout", failing(&llm.GenerationError{Kind: llm.KindTimeout, Err: context.DeadlineExceeded}), "timeout"},
		{"empty morning", empty(true, false), CauseEmptyPeriod},
		{"empty evening", empty(false, true), CauseEmptyPeriod},
		{"both empty", empty(true, true), CauseEmptyPeriod},
		{"nil periods", replying(nil), CauseEmptyPeriod},
		{"disabled", nil, CauseDisabled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := scenarioProfile()
			o := newTestOrchestrator(tc.client, Options{})
			res, err := o.Generate(context.Background(), p, nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if res.Status != StatusFallenBack {
				t.Fatalf("status = %s, want %s", res.Status, StatusFallenBack)
			}
			if got := res.CauseKind(); got != tc.kind {
				t.Errorf("CauseKind = %q, want %q", got, tc.kind)
			}
			if res.Routine.Source != routine.SourceRules || res.Findings != nil {
				t.Errorf("source = %s, findings = %v", res.Routine.Source, res.Findings)
			}

			expected := rules.New(routine.NewCounterIDs("rule")).Generate(p)
			wantMorning, wantEvening := routine.Split(expected)
			compare := func(period string, got, want []routine.Step) {
				if len(got) != len(want) {
					t.Fatalf("%s: got %d steps, want %d", period, len(got), len(want))
				}
				for i := range want {
					if got[i].ID() != want[i].ID() || got[i].Name() != want[i].Name() || got[i].Product() != want[i].Product() {
						t.Errorf("%s[%d] = %v, want %v", period, i, got[i], want[i])
					}
				}
			}
			compare("morning", res.Routine.Morning, wantMorning)
			compare("evening", res.Routine.Evening, wantEvening)
		})
	}
}

func TestGenerate_HTTP500ScenarioSplitsAtTwo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()
	prev := llm.OpenAIAPIURL()
	llm.SetOpenAIAPIURL(srv.URL)
	defer llm.SetOpenAIAPIURL(prev)
	t.Setenv("OPENAI_API_KEY", "test-key")

	provider, err := llm.NewProvider("openai:gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	o := newTestOrchestrator(llm.NewRoutineClient(provider, routine.NewCounterIDs("llm")), Options{})
	res, err := o.Generate(context.Background(), scenarioProfile(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Status != StatusFallenBack || res.CauseKind() != "api" {
		t.Fatalf("status = %s, cause = %v", res.Status, res.Cause)
	}
	var ge *llm.GenerationError
	if !errors.As(res.Cause, &ge) || ge.Status != http.StatusInternalServerError {
		t.Errorf("cause = %#v", res.Cause)
	}
	assertSteps(t, "morning", res.Routine.Morning, "Cleanse", "Treat")
	assertSteps(t, "evening", res.Routine.Evening, "Moisturize", "Protect")
	if res.Routine.Morning[1].Product() != "Hyaluronic Acid Serum" || res.Routine.Evening[1].Product() != "SPF 50 Sunscreen" {
		t.Errorf("unexpected products: %v / %v", res.Routine.Morning, res.Routine.Evening)
	}
}

func TestGenerate_RejectsConcurrentRequestForSameProfile(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var calls atomic.Int32
	client := requesterFunc(func(ctx context.Context, _ *profile.Profile) (*llm.Periods, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-unblock
		}
		return modelPeriods(), nil
	})
	o := newTestOrchestrator(client, Options{})
	p := scenarioProfile()

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := o.Generate(context.Background(), p, nil)
		first <- outcome{res, err}
	}()
	<-started

	if _, err := o.Generate(context.Background(), p, nil); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("second request for same profile: expected ErrGenerationInProgress, got %v", err)
	}
	if res, err := o.Generate(context.Background(), scenarioProfile(), nil); err != nil || res.Status != StatusSucceeded {
		t.Errorf("request for another profile: %v, %+v", err, res)
	}

	close(unblock)
	out := <-first
	if out.err != nil || out.res.Status != StatusSucceeded {
		t.Fatalf("first request: %v, %+v", out.err, out.res)
	}
	if _, err := o.Generate(context.Background(), p, nil); err != nil {
		t.Errorf("profile should be free after completion: %v", err)
	}
}

func TestGenerateFor_RejectsConcurrentRequestForSameOwner(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var calls atomic.Int32
	client := requesterFunc(func(ctx context.Context, _ *profile.Profile) (*llm.Periods, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-unblock
		}
		return modelPeriods(), nil
	})
	o := newTestOrchestrator(client, Options{})

	first := make(chan error, 1)
	go func() {
		_, err := o.GenerateFor(context.Background(), "alice", scenarioProfile(), nil)
		first <- err
	}()
	<-started

	// A fresh profile value for the same user is still the same request.
	if _, err := o.GenerateFor(context.Background(), "alice", scenarioProfile(), nil); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("second request for alice: expected ErrGenerationInProgress, got %v", err)
	}
	if res, err := o.GenerateFor(context.Background(), "bob", scenarioProfile(), nil); err != nil || res.Status != StatusSucceeded {
		t.Errorf("request for bob: %v, %+v", err, res)
	}

	close(unblock)
	if err := <-first; err != nil {
		t.Fatalf("first request: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("model called %d times, want 2", calls.Load())
	}
	if _, err := o.GenerateFor(context.Background(), "alice", scenarioProfile(), nil); err != nil {
		t.Errorf("alice should be free after completion: %v", err)
	}
}

func TestGenerateFor_HoldsOwnerUntilSaved(t *testing.T) {
	o := newTestOrchestrator(replying(modelPeriods()), Options{Timeout: 5 * time.Second})
	save := &fakePersister{gate: make(chan struct{})}
	res, err := o.GenerateFor(context.Background(), "carol", scenarioProfile(), save)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.GenerateFor(context.Background(), "carol", scenarioProfile(), nil); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("request while saving: expected ErrGenerationInProgress, got %v", err)
	}

	close(save.gate)
	if err := <-res.Persisted; err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, err := o.GenerateFor(context.Background(), "carol", scenarioProfile(), nil); err != nil {
		t.Errorf("carol should be free after saving: %v", err)
	}
}

func TestGenerate_InvalidProfile(t *testing.T) {
	var called bool
	client := requesterFunc(func(context.Context, *profile.Profile) (*llm.Periods, error) {
		called = true
		return modelPeriods(), nil
	})
	o := newTestOrchestrator(client, Options{})
	if _, err := o.Generate(context.Background(), nil, nil); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("nil profile: got %v", err)
	}
	bad := &profile.Profile{SkinType: "Purple"}
	if _, err := o.Generate(context.Background(), bad, nil); !errors.Is(err, ErrInvalidProfile) || !errors.Is(err, profile.ErrInvalidOption) {
		t.Errorf("invalid skin type: got %v", err)
	}
	if called {
		t.Error("model must not be called for an invalid profile")
	}
}

func TestGenerate_PersistsSucceededRoutine(t *testing.T) {
	o := newTestOrchestrator(replying(modelPeriods()), Options{})
	save := &fakePersister{}
	res, err := o.Generate(context.Background(), scenarioProfile(), save)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-res.Persisted; err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, open := <-res.Persisted; open {
		t.Error("Persisted should be closed after one value")
	}
	if len(save.profiles) != 1 || save.profiles[0].SkinType != profile.SkinDry {
		t.Errorf("profiles saved = %v", save.profiles)
	}
	if len(save.routines) != 1 {
		t.Fatalf("routines saved = %d, want 1", len(save.routines))
	}
	if got := save.routines[0]; got.Source != routine.SourceLLM || got.Model != "gpt-4o-mini" || !got.GeneratedAt.Equal(res.Routine.GeneratedAt) {
		t.Errorf("routine header saved = %s/%s/%s", got.Source, got.Model, got.GeneratedAt)
	}
	morning, ok := save.saved(store.LabelMorning)
	if !ok || len(morning) != 2 || !morning[0].Equal(res.Routine.Morning[0]) {
		t.Errorf("morning saved = %v", morning)
	}
	if evening, ok := save.saved(store.LabelEvening); !ok || len(evening) != 1 {
		t.Errorf("evening saved = %v", evening)
	}
}

func TestGenerate_PersistsFallbackRoutine(t *testing.T) {
	o := newTestOrchestrator(failing(&llm.GenerationError{Kind: llm.KindNetwork, Err: errors.New("offline")}), Options{})
	save := &fakePersister{}
	res, err := o.Generate(context.Background(), scenarioProfile(), save)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-res.Persisted; err != nil {
		t.Fatalf("persist: %v", err)
	}
	evening, ok := save.saved(store.LabelEvening)
	if !ok || len(evening) != 2 || evening[1].Name() != rules.StepProtect {
		t.Errorf("evening saved = %v", evening)
	}
}

func TestGenerate_PersistenceFailureDoesNotDowngrade(t *testing.T) {
	var calls atomic.Int32
	client := requesterFunc(func(context.Context, *profile.Profile) (*llm.Periods, error) {
		calls.Add(1)
		return modelPeriods(), nil
	})
	o := newTestOrchestrator(client, Options{})
	save := &fakePersister{failOn: "routine"}
	res, err := o.Generate(context.Background(), scenarioProfile(), save)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSucceeded {
		t.Errorf("status = %s, want %s", res.Status, StatusSucceeded)
	}
	perr := <-res.Persisted
	var pe *store.PersistenceError
	if !errors.As(perr, &pe) || pe.Op != "save_generated" {
		t.Errorf("persisted = %v", perr)
	}
	if calls.Load() != 1 {
		t.Errorf("model called %d times, want 1", calls.Load())
	}
}

func TestGenerate_ProfileSaveFailureStillSavesRoutine(t *testing.T) {
	o := newTestOrchestrator(replying(modelPeriods()), Options{})
	save := &fakePersister{failOn: "profile"}
	res, err := o.Generate(context.Background(), scenarioProfile(), save)
	if err != nil {
		t.Fatal(err)
	}
	perr := <-res.Persisted
	var pe *store.PersistenceError
	if !errors.As(perr, &pe) || pe.Op != "save_profile" {
		t.Errorf("persisted = %v", perr)
	}
	morning, ok := save.saved(store.LabelMorning)
	if !ok || len(morning) != 2 {
		t.Errorf("morning saved = %v", morning)
	}
	if evening, ok := save.saved(store.LabelEvening); !ok || len(evening) != 1 {
		t.Errorf("evening saved = %v", evening)
	}
}

func TestGenerate_CanceledContextStillFallsBack(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)
	prev := llm.OpenAIAPIURL()
	llm.SetOpenAIAPIURL(srv.URL)
	defer llm.SetOpenAIAPIURL(prev)
	t.Setenv("OPENAI_API_KEY", "test-key")

	provider, err := llm.NewProvider("openai:gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	client := llm.NewRoutineClient(provider, routine.NewCounterIDs("llm"))
	o := newTestOrchestrator(client, Options{Timeout: 10 * time.Second, Retries: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(100*time.Millisecond, cancel)

	save := &fakePersister{}
	res, err := o.Generate(ctx, scenarioProfile(), save)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Cause, context.Canceled) {
		t.Errorf("cause = %v, want context.Canceled in chain", res.Cause)
	}
	if res.Attempts != 1 || hits.Load() != 1 {
		t.Errorf("attempts = %d, server hits = %d, want 1 each", res.Attempts, hits.Load())
	}
	if res.Status != StatusFallenBack || res.CauseKind() != CauseCanceled {
		t.Fatalf("status = %s, cause = %q", res.Status, res.CauseKind())
	}
	if len(res.Routine.Morning) == 0 || len(res.Routine.Evening) == 0 {
		t.Errorf("fallback routine is empty: %+v", res.Routine)
	}
	if err := <-res.Persisted; err != nil {
		t.Errorf("persistence should outlive the canceled request: %v", err)
	}
}

func TestGenerate_AttemptTimeout(t *testing.T) {
	client := requesterFunc(func(ctx context.Context, _ *profile.Profile) (*llm.Periods, error) {
		<-ctx.Done()
		return nil, &llm.GenerationError{Kind: llm.KindTimeout, Err: ctx.Err()}
	})
	o := newTestOrchestrator(client, Options{Timeout: 20 * time.Millisecond})
	start := time.Now()
	res, err := o.Generate(context.Background(), scenarioProfile(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFallenBack || res.CauseKind() != "timeout" {
		t.Errorf("status = %s, cause = %q", res.Status, res.CauseKind())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not enforced: %s", elapsed)
	}
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := requesterFunc(func(context.Context, *profile.Profile) (*llm.Periods, error) {
		if calls.Add(1) == 1 {
			return nil, &llm.GenerationError{Kind: llm.KindAPI, Status: http.StatusServiceUnavailable, Err: errors.New("busy")}
		}
		return modelPeriods(), nil
	})
	o := newTestOrchestrator(client, Options{Retries: 2})
	res, err := o.Generate(context.Background(), scenarioProfile(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSucceeded || res.Attempts != 2 {
		t.Errorf("status = %s, attempts = %d", res.Status, res.Attempts)
	}
}

func TestGenerate_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	client := requesterFunc(func(context.Context, *profile.Profile) (*llm.Periods, error) {
		calls.Add(1)
		return nil, &llm.GenerationError{Kind: llm.KindSchemaViolation, Err: errors.New("bad shape")}
	})
	o := newTestOrchestrator(client, Options{Retries: 3})
	res, err := o.Generate(context.Background(), scenarioProfile(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFallenBack || calls.Load() != 1 || res.Attempts != 1 {
		t.Errorf("status = %s, calls = %d, attempts = %d", res.Status, calls.Load(), res.Attempts)
	}
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := requesterFunc(func(context.Context, *profile.Profile) (*llm.Periods, error) {
		calls.Add(1)
		return nil, &llm.GenerationError{Kind: llm.KindNetwork, Err: errors.New("reset")}
	})
	o := newTestOrchestrator(client, Options{Retries: 2})
	res, err := o.Generate(context.Background(), scenarioProfile(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFallenBack || calls.Load() != 3 {
		t.Errorf("status = %s, calls = %d", res.Status, calls.Load())
	}
}

func TestGenerate_EmptyProfileFallback(t *testing.T) {
	o := newTestOrchestrator(nil, Options{})
	res, err := o.Generate(context.Background(), &profile.Profile{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertSteps(t, "morning", res.Routine.Morning, "Cleanse")
	assertSteps(t, "evening", res.Routine.Evening, "Moisturize")
}

func TestGenerate_FixedClock(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	o := newTestOrchestrator(replying(modelPeriods()), Options{Now: func() time.Time { return at }})
	res, err := o.Generate(context.Background(), scenarioProfile(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Routine.GeneratedAt.Equal(at) {
		t.Errorf("GeneratedAt = %s", res.Routine.GeneratedAt)
	}
}
