package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/domain"
	"github.com/gezhip02/chat-english/internal/metrics"
)

type fakeAdapter struct {
	id         string
	configured bool
	probeOK    atomic.Bool
	err        error
	calls      atomic.Int32
	block      bool
	// gate, when set, holds Generate until closed; started is closed on entry.
	gate    chan struct{}
	started chan struct{}
}

func newFake(id string) *fakeAdapter {
	f := &fakeAdapter{id: id, configured: true}
	f.probeOK.Store(true)
	return f
}

func (f *fakeAdapter) ID() string       { return f.id }
func (f *fakeAdapter) Configured() bool { return f.configured }
func (f *fakeAdapter) Info() domain.ProviderDescriptor {
	return domain.ProviderDescriptor{ID: f.id, DisplayName: f.id, IsAvailable: f.configured}
}
func (f *fakeAdapter) Probe(ctx context.Context) bool { return f.probeOK.Load() }
func (f *fakeAdapter) Generate(ctx context.Context, messages []domain.Message) (*domain.ProviderResponse, error) {
	f.calls.Add(1)
	if f.gate != nil {
		close(f.started)
		<-f.gate
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProviderResponse{Content: "from " + f.id, Model: f.id + "-model", ProviderID: f.id}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestOrchestrator(opts ...Option) *Orchestrator {
	opts = append([]Option{WithMock(llm.NewMock(0).WithSleeper(noSleep))}, opts...)
	return New(opts...)
}

var userTurn = []domain.Message{
	{Role: domain.RoleSystem, Content: "sys"},
	{Role: domain.RoleUser, Content: "I want a coffee"},
}

func TestNewHasOnlyMock(t *testing.T) {
	o := newTestOrchestrator()
	assert.Equal(t, config.ProviderMock, o.Active().ID)
	require.Len(t, o.ListAvailable(), 1)
	assert.True(t, o.ListAvailable()[0].IsFree)
}

func TestInstallPicksDefaultThenCanonicalOrder(t *testing.T) {
	o := newTestOrchestrator()
	openai, deepseek := newFake("openai"), newFake("deepseek")
	unconfigured := newFake("anthropic")
	unconfigured.configured = false

	o.Install("deepseek", []llm.Adapter{openai, unconfigured, deepseek})
	assert.Equal(t, "deepseek", o.Active().ID)

	ids := []string{}
	for _, d := range o.List() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"openai", "deepseek", "mock"}, ids)

	o.Install("huggingface", []llm.Adapter{openai, deepseek})
	assert.Equal(t, "openai", o.Active().ID)
}

func TestGenerateUsesActiveProvider(t *testing.T) {
	o := newTestOrchestrator()
	openai := newFake("openai")
	o.Install("openai", []llm.Adapter{openai})

	resp, err := o.Generate(context.Background(), userTurn)
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.ProviderID)
	assert.False(t, o.Degraded())
}

func TestGenerateDegradesToMockOnce(t *testing.T) {
	var events []Event
	var mu sync.Mutex
	o := newTestOrchestrator(
		WithMetrics(metrics.New()),
		WithObserver(func(ctx context.Context, ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}),
	)
	openai := newFake("openai")
	openai.err = &domain.ProviderError{ProviderID: "openai", Status: 500, Detail: "boom"}
	o.Install("openai", []llm.Adapter{openai})

	ctx := llm.WithScenario(context.Background(), "Coffee Shop Chat")
	resp, err := o.Generate(ctx, userTurn)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderMock, resp.ProviderID)
	assert.Equal(t, llm.MockModel, resp.Model)
	assert.Contains(t, resp.Content, "special blend")
	assert.Equal(t, int32(1), openai.calls.Load())

	assert.Equal(t, config.ProviderMock, o.Active().ID)
	assert.True(t, o.Degraded())
	for _, d := range o.ListAvailable() {
		assert.NotEqual(t, "openai", d.ID)
	}

	// Subsequent turns go straight to mock.
	_, err = o.Generate(ctx, userTurn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), openai.calls.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeProviderFallback, events[0].Type)
	assert.Equal(t, "openai", events[0].From)
}

func TestStaleFailureAfterInstallKeepsNewProvider(t *testing.T) {
	var events []Event
	var mu sync.Mutex
	o := newTestOrchestrator(WithObserver(func(ctx context.Context, ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	stale := newFake("openai")
	stale.err = &domain.ProviderError{ProviderID: "openai", Status: 401, Detail: "bad key"}
	stale.gate = make(chan struct{})
	stale.started = make(chan struct{})
	o.Install("openai", []llm.Adapter{stale})

	type result struct {
		resp *domain.ProviderResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := o.Generate(context.Background(), userTurn)
		done <- result{resp, err}
	}()
	<-stale.started

	fresh := newFake("openai")
	o.Install("openai", []llm.Adapter{fresh})
	close(stale.gate)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, config.ProviderMock, res.resp.ProviderID)

	assert.Equal(t, "openai", o.Active().ID)
	assert.False(t, o.Degraded())
	assert.Len(t, o.ListAvailable(), 2)

	resp, err := o.Generate(context.Background(), userTurn)
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.ProviderID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeProviderFallback, events[0].Type)
}

func TestGenerateUnavailableCredentialsDegrades(t *testing.T) {
	o := newTestOrchestrator()
	openai := newFake("openai")
	openai.err = domain.ErrProviderUnavailable
	o.Install("openai", []llm.Adapter{openai})

	resp, err := o.Generate(context.Background(), userTurn)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderMock, resp.ProviderID)
}

func TestGenerateCancellationReachesCaller(t *testing.T) {
	o := newTestOrchestrator()
	openai := newFake("openai")
	openai.block = true
	o.Install("openai", []llm.Adapter{openai})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Generate(ctx, userTurn)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "openai", o.Active().ID)
	assert.False(t, o.Degraded())
}

func TestGenerateEmptyInput(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.Generate(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSetActive(t *testing.T) {
	o := newTestOrchestrator()
	openai, deepseek := newFake("openai"), newFake("deepseek")
	o.Install("openai", []llm.Adapter{openai, deepseek})

	assert.False(t, o.SetActive("baidu"))
	assert.Equal(t, "openai", o.Active().ID)

	assert.True(t, o.SetActive("deepseek"))
	assert.Equal(t, "deepseek", o.Active().ID)

	o.degrade(context.Background(), o.byID["openai"], "test")
	assert.False(t, o.SetActive("openai"))
	assert.Equal(t, "deepseek", o.Active().ID)
}

func TestProbeMarksAndRestores(t *testing.T) {
	o := newTestOrchestrator()
	openai := newFake("openai")
	openai.err = errors.New("connection reset")
	o.Install("openai", []llm.Adapter{openai})

	_, err := o.Generate(context.Background(), userTurn)
	require.NoError(t, err)
	require.Equal(t, config.ProviderMock, o.Active().ID)

	openai.probeOK.Store(false)
	assert.False(t, o.Probe(context.Background(), "openai"))
	assert.Equal(t, config.ProviderMock, o.Active().ID)

	openai.err = nil
	openai.probeOK.Store(true)
	assert.True(t, o.Probe(context.Background(), "openai"))
	assert.Equal(t, "openai", o.Active().ID)
	assert.False(t, o.Degraded())
}

func TestProbeFailureOfActiveDegrades(t *testing.T) {
	o := newTestOrchestrator()
	openai := newFake("openai")
	o.Install("openai", []llm.Adapter{openai})

	openai.probeOK.Store(false)
	results := o.ProbeAll(context.Background())
	assert.Equal(t, map[string]bool{"openai": false, "mock": true}, results)
	assert.Equal(t, config.ProviderMock, o.Active().ID)
	assert.False(t, o.Probe(context.Background(), "unknown"))
}

func TestHealthMonitorRecovers(t *testing.T) {
	o := newTestOrchestrator()
	openai := newFake("openai")
	openai.probeOK.Store(false)
	o.Install("openai", []llm.Adapter{openai})
	o.Probe(context.Background(), "openai")
	require.True(t, o.Degraded())

	openai.probeOK.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.RunHealthMonitor(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return o.Active().ID == "openai" }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestConcurrentGenerateAndSetActive(t *testing.T) {
	o := newTestOrchestrator()
	openai, deepseek := newFake("openai"), newFake("deepseek")
	o.Install("openai", []llm.Adapter{openai, deepseek})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := o.Generate(context.Background(), userTurn)
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				o.SetActive("deepseek")
			} else {
				o.SetActive("openai")
			}
		}(i)
	}
	wg.Wait()
}
