package providers

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Failover is an LLMProvider that walks the manager's providers in preferred
// order. A provider that fails is benched for a while depending on the error
// class; when every provider is benched the one that recovers first is tried
// anyway.
type Failover struct {
	providers []NamedLLMProvider
	order     []int
	cooldown  time.Duration
	now       func() time.Time

	mu            sync.Mutex
	disabledUntil map[int]time.Time
}

func (m *Manager) Failover(cooldown time.Duration) *Failover {
	providers := m.llmProviders
	if len(providers) == 0 {
		providers = []NamedLLMProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()}}
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	order := preferredOrder(len(providers), func(i int) string { return strings.ToLower(providers[i].Ref.Name) })
	return &Failover{
		providers:     providers,
		order:         order,
		cooldown:      cooldown,
		now:           time.Now,
		disabledUntil: map[int]time.Time{},
	}
}

func (f *Failover) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var lastErr error
	var lastInfo ProviderInfo
	for _, idx := range f.candidates() {
		np := f.providers[idx]
		resp, info, err := np.Provider.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		lastErr, lastInfo = err, info
		if ctx.Err() != nil {
			return GenerateResponse{}, info, err
		}
		errType := ClassifyError(err)
		slog.Warn("llm provider failed", "provider", np.Ref.Raw, "error_type", errType, "error", err)
		switch errType {
		case ErrorQuota:
			f.disable(idx, f.cooldown)
		case ErrorRate:
			f.disable(idx, 2*time.Minute)
		case ErrorTransient:
		case ErrorContext, ErrorCanceled:
			// Another backend would reject the same input.
			return GenerateResponse{}, info, err
		default:
			f.disable(idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = ErrProvidersExhausted
	}
	return GenerateResponse{}, lastInfo, lastErr
}

// candidates returns the enabled providers in preferred order, or the single
// provider whose bench time ends first when none is enabled.
func (f *Failover) candidates() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	out := make([]int, 0, len(f.order))
	for _, idx := range f.order {
		if until, ok := f.disabledUntil[idx]; ok && now.Before(until) {
			continue
		}
		out = append(out, idx)
	}
	if len(out) > 0 {
		return out
	}
	benched := append([]int(nil), f.order...)
	sort.SliceStable(benched, func(a, b int) bool {
		return f.disabledUntil[benched[a]].Before(f.disabledUntil[benched[b]])
	})
	return benched[:1]
}

func (f *Failover) disable(idx int, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabledUntil[idx] = f.now().Add(d)
}
