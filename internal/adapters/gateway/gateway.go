// Package gateway fetches per-category datasets and event settings from the
// upstream analysis services. Categories originate from independent
// analyses that may be unavailable per event, so every fetch degrades
// independently: a failing or malformed response yields an empty dataset
// and the category's hard-coded default settings, never an error for the
// whole event.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/rules"
	"github.com/tovren/raidledger/pkg/logger"
	"github.com/tovren/raidledger/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 8
)

// Fetcher retrieves everything the scoring pipeline needs for one event.
type Fetcher interface {
	FetchEvent(ctx context.Context, eventID string) (*model.EventData, error)
}

// Client implements Fetcher over HTTP.
type Client struct {
	base        string
	hc          *http.Client
	timeout     time.Duration
	concurrency int
	defaultRL   int
	logger      logger.Logger
}

// New creates a gateway client for the given upstream base URL.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:        base,
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
		defaultRL:   4,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = logger.Named("gateway")
	}
	return c
}

// envelope is the upstream success wrapper for dataset endpoints.
type envelope struct {
	Success  bool                   `json:"success"`
	Data     []model.Row            `json:"data"`
	Settings map[string]interface{} `json:"settings"`
}

type rolesEnvelope struct {
	Success bool              `json:"success"`
	Data    map[string]string `json:"data"`
}

type goldPotEnvelope struct {
	Success   bool  `json:"success"`
	TotalGold int64 `json:"total_gold"`
}

type raidleaderEnvelope struct {
	Success bool `json:"success"`
	Pct     int  `json:"pct"`
}

// FetchEvent fans out one request per catalog category plus the roster,
// role, gold pot and raidleader-cut endpoints, with bounded concurrency.
// Individual failures degrade; the call itself only fails on a nil context
// or a fully cancelled one.
func (c *Client) FetchEvent(ctx context.Context, eventID string) (*model.EventData, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", eventID, err)
	}

	data := &model.EventData{
		EventID:    eventID,
		Categories: make(map[string]model.Dataset, len(rules.Keys())),
	}

	// Bounded fan-out: a fixed set of workers drains the category key
	// channel, results merge under one mutex.
	keys := rules.Keys()
	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := c.concurrency
	if workers > len(keys) {
		workers = len(keys)
	}
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				ds := c.fetchCategory(ctx, eventID, key)
				mu.Lock()
				data.Categories[key] = ds
				mu.Unlock()
			}
		}()
	}
	for _, key := range keys {
		jobs <- key
	}
	close(jobs)

	// The non-category inputs ride alongside the fan-out.
	wg.Add(1)
	go func() {
		defer wg.Done()
		data.Roster = c.fetchRoster(ctx, eventID)
		roles := c.fetchRoles(ctx, eventID)
		gold, pct := c.fetchGold(ctx, eventID)
		mu.Lock()
		data.Roles = roles
		data.TotalGold = gold
		data.RaidleaderPct = pct
		mu.Unlock()
	}()

	wg.Wait()
	return data, nil
}

// fetchCategory degrades to an empty dataset on any failure. An empty
// dataset and an absent category are deliberately indistinguishable: both
// mean no contribution from this category.
func (c *Client) fetchCategory(ctx context.Context, eventID, key string) model.Dataset {
	var env envelope
	url := fmt.Sprintf("%s/events/%s/categories/%s", c.base, eventID, key)
	if err := c.getJSON(ctx, url, &env); err != nil || !env.Success {
		if err != nil {
			c.logger.Warn(ctx, "category fetch degraded",
				logger.String("category", key),
				logger.String("event", eventID),
				logger.Error(err),
			)
		}
		metrics.RecordCategoryFetchError(key)
		return model.Dataset{Category: key, Degraded: true}
	}
	return model.Dataset{
		Category: key,
		Rows:     env.Data,
		Settings: parseSettings(env.Settings),
	}
}

func (c *Client) fetchRoster(ctx context.Context, eventID string) model.Dataset {
	var env envelope
	url := fmt.Sprintf("%s/events/%s/roster", c.base, eventID)
	if err := c.getJSON(ctx, url, &env); err != nil || !env.Success {
		if err != nil {
			c.logger.Warn(ctx, "roster fetch degraded", logger.String("event", eventID), logger.Error(err))
		}
		metrics.RecordCategoryFetchError("roster")
		return model.Dataset{Category: "roster", Degraded: true}
	}
	return model.Dataset{Category: "roster", Rows: env.Data}
}

// fetchRoles returns nil when the endpoint is unavailable; nil means "no
// primary-role mapping", which gates some categories entirely.
func (c *Client) fetchRoles(ctx context.Context, eventID string) map[string]model.Role {
	var env rolesEnvelope
	url := fmt.Sprintf("%s/events/%s/primary-roles", c.base, eventID)
	if err := c.getJSON(ctx, url, &env); err != nil || !env.Success || env.Data == nil {
		return nil
	}
	roles := make(map[string]model.Role, len(env.Data))
	for name, role := range env.Data {
		roles[model.Key(name)] = model.ParseRole(role)
	}
	return roles
}

func (c *Client) fetchGold(ctx context.Context, eventID string) (int64, int) {
	total := int64(0)
	var potEnv goldPotEnvelope
	if err := c.getJSON(ctx, fmt.Sprintf("%s/events/%s/goldpot", c.base, eventID), &potEnv); err == nil && potEnv.Success {
		total = potEnv.TotalGold
	}

	pct := c.defaultRL
	var rlEnv raidleaderEnvelope
	if err := c.getJSON(ctx, fmt.Sprintf("%s/events/%s/raidleader-cut", c.base, eventID), &rlEnv); err == nil && rlEnv.Success {
		pct = rlEnv.Pct
	}
	return total, pct
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	metrics.RecordUpstreamDuration(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d from %s", ErrUpstreamUnavailable, resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// parseSettings converts the free-form upstream settings blob into typed
// settings: numbers stay numbers, arrays become point tables, the nested
// weights object becomes per-subtype weights.
func parseSettings(raw map[string]interface{}) model.Settings {
	s := model.Settings{}
	for key, val := range raw {
		switch v := val.(type) {
		case float64:
			if s.Numbers == nil {
				s.Numbers = make(map[string]float64)
			}
			s.Numbers[key] = v
		case []interface{}:
			table := make([]int, 0, len(v))
			for _, item := range v {
				if n, ok := item.(float64); ok {
					table = append(table, int(n))
				}
			}
			if len(table) > 0 {
				if s.Tables == nil {
					s.Tables = make(map[string][]int)
				}
				s.Tables[key] = table
			}
		case map[string]interface{}:
			for sub, item := range v {
				if n, ok := item.(float64); ok {
					if s.Weights == nil {
						s.Weights = make(map[string]int)
					}
					s.Weights[sub] = int(n)
				}
			}
		}
	}
	return s
}
