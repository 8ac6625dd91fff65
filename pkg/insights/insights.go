// Package insights supplies the short demographic notes shown in the sidebar.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sudorandom/birth-stream/pkg/logging"
	"github.com/sudorandom/birth-stream/pkg/utils"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity maps unknown values to low.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	}
	return SeverityLow
}

type Insight struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Severity Severity `json:"severity"`
}

// Provider resolves once with a possibly empty list.
type Provider interface {
	Insights(ctx context.Context) ([]Insight, error)
}

// Static returns a fixed list.
type Static []Insight

func (s Static) Insights(context.Context) ([]Insight, error) {
	return append([]Insight(nil), s...), nil
}

// Canned is shown when no insight endpoint is configured.
var Canned = Static{
	{
		Title:    "Sub-Saharan Surge",
		Content:  "Africa accounts for a rising share of global births; the DRC and Nigeria lead with the highest crude birth rates.",
		Severity: SeverityHigh,
	},
	{
		Title:    "East Asian Decline",
		Content:  "China, Japan and South Korea record historically low fertility, with births well below replacement level.",
		Severity: SeverityMedium,
	},
	{
		Title:    "South Asia Volume",
		Content:  "India remains the largest source of births by absolute count, above 23 million per year.",
		Severity: SeverityLow,
	},
}

// HTTP fetches a JSON array of insights from URL.
type HTTP struct {
	URL    string
	Client *http.Client
}

func (h HTTP) Insights(ctx context.Context) ([]Insight, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	data, err := utils.Fetch(ctx, client, h.URL)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Severity string `json:"severity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}
	out := make([]Insight, 0, len(raw))
	for _, r := range raw {
		if r.Title == "" && r.Content == "" {
			continue
		}
		out = append(out, Insight{Title: r.Title, Content: r.Content, Severity: ParseSeverity(r.Severity)})
	}
	return out, nil
}

// Fetch calls p and treats any failure as "no insights". onError, when set,
// sees the failure.
func Fetch(ctx context.Context, p Provider, onError func(error)) []Insight {
	list, err := p.Insights(ctx)
	if err != nil {
		log := logging.Component("insights")
		log.Warn().Err(err).Msg("insights unavailable")
		if onError != nil {
			onError(err)
		}
		return nil
	}
	return list
}

// Loader fetches insights once in the background for the sidebar.
type Loader struct {
	provider Provider
	log      zerolog.Logger
	onError  func(error)

	once    sync.Once
	mu      sync.RWMutex
	loading bool
	list    []Insight
	done    chan struct{}
}

func NewLoader(p Provider) *Loader {
	return &Loader{provider: p, log: logging.Component("insights"), loading: true, done: make(chan struct{})}
}

// OnError registers a callback for provider failures, e.g. a metric.
func (l *Loader) OnError(fn func(error)) {
	l.onError = fn
}

// Start begins the fetch. Later calls do nothing.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		go func() {
			defer close(l.done)
			list := Fetch(ctx, l.provider, l.onError)
			l.mu.Lock()
			l.list, l.loading = list, false
			l.mu.Unlock()
			l.log.Debug().Int("count", len(list)).Msg("insights loaded")
		}()
	})
}

// Result returns the insights and whether the fetch is still running.
func (l *Loader) Result() ([]Insight, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.list, l.loading
}

func (l *Loader) Done() <-chan struct{} {
	return l.done
}
