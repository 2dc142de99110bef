// Package app provides the core business service that implements the
// dependencies required by the HTTP API: the scoring pipeline and the
// snapshot/lock manager.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tovren/raidledger/internal/adapters/gateway"
	"github.com/tovren/raidledger/internal/adapters/notify"
	"github.com/tovren/raidledger/internal/adapters/repository"
	"github.com/tovren/raidledger/internal/domain/aggregate"
	"github.com/tovren/raidledger/internal/domain/gold"
	"github.com/tovren/raidledger/internal/domain/model"
	"github.com/tovren/raidledger/internal/domain/roster"
	"github.com/tovren/raidledger/internal/domain/rules"
	"github.com/tovren/raidledger/internal/domain/types"
	"github.com/tovren/raidledger/pkg/logger"
	"github.com/tovren/raidledger/pkg/metrics"
)

// Service orchestrates the scoring pipeline and snapshot lifecycle. All
// inputs are fetched fresh per request; nothing is cached as ambient state.
type Service struct {
	fetcher   gateway.Fetcher
	snapshots repository.SnapshotStore
	rewards   repository.ManualRewardStore
	notifier  notify.Publisher

	baseAward int
	locks     *eventLocks
	logger    logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBaseAward overrides the flat award for confirmed players.
func WithBaseAward(points int) Option {
	return func(s *Service) {
		if points >= 0 {
			s.baseAward = points
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service from its collaborators.
func New(fetcher gateway.Fetcher, snapshots repository.SnapshotStore, rewards repository.ManualRewardStore, notifier notify.Publisher, opts ...Option) *Service {
	s := &Service{
		fetcher:   fetcher,
		snapshots: snapshots,
		rewards:   rewards,
		notifier:  notifier,
		baseAward: aggregate.DefaultBaseAward,
		locks:     newEventLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("app")
	}
	return s
}

// Scoreboard returns the effective scored view of an event: freshly
// computed in Computed mode, snapshot-driven in Manual mode.
func (s *Service) Scoreboard(ctx context.Context, eventID string) (*types.Report, error) {
	start := time.Now()
	defer func() { metrics.RecordComputation(time.Since(start).Seconds()) }()

	state, err := s.snapshots.Status(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("snapshot status: %w", err)
	}
	if !state.Locked {
		report, _, _, err := s.computeLive(ctx, eventID)
		return report, err
	}

	entries, err := s.snapshots.Entries(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("snapshot entries: %w", err)
	}
	return s.manualReport(ctx, eventID, entries)
}

// SnapshotStatus returns the event's lock state view.
func (s *Service) SnapshotStatus(ctx context.Context, eventID string) (types.SnapshotStatus, error) {
	state, err := s.snapshots.Status(ctx, eventID)
	if err != nil {
		return types.SnapshotStatus{}, fmt.Errorf("snapshot status: %w", err)
	}
	view := types.SnapshotStatus{Locked: state.Locked, LockedByName: state.LockedByName}
	if state.Locked {
		at := state.LockedAt
		view.LockedAt = &at
	}
	return view, nil
}

// SnapshotEntries returns all snapshot rows for an event.
func (s *Service) SnapshotEntries(ctx context.Context, eventID string) ([]repository.SnapshotEntry, error) {
	return s.snapshots.Entries(ctx, eventID)
}

// computeLive runs the full pipeline against fresh upstream data. It also
// returns the roster and event data so callers in the same request can
// reuse them without a second fetch.
func (s *Service) computeLive(ctx context.Context, eventID string) (*types.Report, *roster.Roster, *model.EventData, error) {
	data, err := s.fetcher.FetchEvent(ctx, eventID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch event data: %w", err)
	}

	ros := roster.Build(data.Roster.Rows, data.Roles, data.Category(rules.KeyHealing).Rows)
	contribs := rules.ScoreAll(data, ros)

	manualPoints, goldGrants, err := s.splitRewards(ctx, eventID, ros)
	if err != nil {
		return nil, nil, nil, err
	}

	totals := aggregate.Compute(ros, contribs, manualPoints, s.baseAward)
	split := gold.SplitPot(data.TotalGold, data.RaidleaderPct)
	dist := gold.Distribute(split, totals, ros, goldGrants)

	report := &types.Report{
		EventID:            eventID,
		Mode:               types.ModeComputed,
		Panels:             buildPanels(contribs, ros),
		Totals:             totalViews(totals, dist),
		RaidTotal:          totals.RaidTotal,
		LegacyRaidTotal:    totals.LegacyRaidTotal,
		Gold:               goldSummary(dist),
		DegradedCategories: degraded(data),
	}
	return report, ros, data, nil
}

// manualReport derives the effective view from snapshot entries. Source
// datasets no longer drive panel display, but event metadata (roster for
// matching, gold pot) is still read live.
func (s *Service) manualReport(ctx context.Context, eventID string, entries []repository.SnapshotEntry) (*types.Report, error) {
	data, err := s.fetcher.FetchEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("fetch event data: %w", err)
	}
	ros := roster.Build(data.Roster.Rows, data.Roles, data.Category(rules.KeyHealing).Rows)

	// Effective contributions: edited ?? original, matched back to the
	// live roster by discord id first, then character name.
	contribs := make([]model.Contribution, 0, len(entries))
	for _, e := range entries {
		key := model.Key(e.CharacterName)
		if p, ok := ros.Resolve(e.CharacterName, e.DiscordUserID); ok {
			key = model.Key(p.Name)
		}
		contribs = append(contribs, model.Contribution{
			Category: e.PanelKey,
			Player:   key,
			Points:   e.EffectivePoints(),
			Detail:   e.EffectiveDetails(),
			ItemKey:  e.AuxKey,
		})
	}

	manualPoints, goldGrants, err := s.splitRewards(ctx, eventID, ros)
	if err != nil {
		return nil, err
	}

	totals := aggregate.Compute(ros, contribs, manualPoints, s.baseAward)
	split := gold.SplitPot(data.TotalGold, data.RaidleaderPct)
	dist := gold.Distribute(split, totals, ros, goldGrants)

	return &types.Report{
		EventID:         eventID,
		Mode:            types.ModeManual,
		Panels:          panelsFromEntries(entries),
		Totals:          totalViews(totals, dist),
		RaidTotal:       totals.RaidTotal,
		LegacyRaidTotal: totals.LegacyRaidTotal,
		Gold:            goldSummary(dist),
	}, nil
}

// splitRewards partitions manual rewards into point grants (joined into
// totals before flooring) and direct gold grants (bypassing the points
// distribution entirely).
func (s *Service) splitRewards(ctx context.Context, eventID string, ros *roster.Roster) (map[string]int, []gold.DirectGrant, error) {
	list, err := s.rewards.ListRewards(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("list manual rewards: %w", err)
	}

	points := make(map[string]int)
	var grants []gold.DirectGrant
	for _, r := range list {
		if r.IsGold {
			grants = append(grants, gold.DirectGrant{
				CharacterName: r.CharacterName,
				DiscordID:     r.DiscordUserID,
				Amount:        r.Amount,
			})
			continue
		}
		if p, ok := ros.Resolve(r.CharacterName, r.DiscordUserID); ok {
			points[model.Key(p.Name)] += int(r.Amount)
		}
	}
	return points, grants, nil
}

// ListRewards returns all manual rewards for an event.
func (s *Service) ListRewards(ctx context.Context, eventID string) ([]repository.ManualReward, error) {
	return s.rewards.ListRewards(ctx, eventID)
}

// CreateReward stores a new manual reward.
func (s *Service) CreateReward(ctx context.Context, actor types.Actor, r repository.ManualReward) (repository.ManualReward, error) {
	if !actor.Manager {
		return repository.ManualReward{}, ErrPermissionDenied
	}
	if r.CharacterName == "" && r.DiscordUserID == "" {
		return repository.ManualReward{}, fmt.Errorf("%w: reward needs a character name or discord id", ErrInvalidEdit)
	}
	r.ID = uuid.NewString()
	r.CreatedBy = actor.UserID
	r.CreatedAt = time.Now().UTC()
	if err := s.rewards.CreateReward(ctx, r); err != nil {
		return repository.ManualReward{}, err
	}
	s.publish(ctx, notify.TypeRewardChanged, r.EventID, actor)
	return r, nil
}

// UpdateReward replaces the mutable fields of a manual reward.
func (s *Service) UpdateReward(ctx context.Context, actor types.Actor, r repository.ManualReward) error {
	if !actor.Manager {
		return ErrPermissionDenied
	}
	if err := s.rewards.UpdateReward(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, notify.TypeRewardChanged, r.EventID, actor)
	return nil
}

// DeleteReward removes a manual reward.
func (s *Service) DeleteReward(ctx context.Context, actor types.Actor, eventID, id string) error {
	if !actor.Manager {
		return ErrPermissionDenied
	}
	if err := s.rewards.DeleteReward(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, notify.TypeRewardChanged, eventID, actor)
	return nil
}

// publish tells the notifier that an event changed, attributed to the
// acting user. Fire and forget: delivery is advisory.
func (s *Service) publish(ctx context.Context, changeType, eventID string, actor types.Actor) {
	s.notifier.Publish(ctx, notify.Event{
		Type:       changeType,
		EventID:    eventID,
		ByUserID:   actor.UserID,
		ByUserName: actor.UserName,
	})
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() map[string]interface{} {
	return map[string]interface{}{
		"base_award": s.baseAward,
		"categories": len(rules.Keys()),
	}
}

// buildPanels groups live contributions into displayed category panels in
// catalog order, rows ordered by points descending.
func buildPanels(contribs []model.Contribution, ros *roster.Roster) []types.Panel {
	byCategory := make(map[string][]model.Contribution)
	for _, c := range contribs {
		byCategory[c.Category] = append(byCategory[c.Category], c)
	}

	panels := make([]types.Panel, 0, len(byCategory))
	for _, cat := range rules.Catalog() {
		list, ok := byCategory[cat.Key]
		if !ok {
			continue
		}
		rows := make([]types.PanelRow, 0, len(list))
		for _, c := range list {
			row := types.PanelRow{
				CharacterName: c.Player,
				Points:        c.Points,
				Detail:        c.Detail,
				AuxKey:        c.ItemKey,
				Primary:       c.Raw["value"],
			}
			if p, ok := ros.Lookup(c.Player); ok {
				row.CharacterName = p.Name
				row.DiscordUserID = p.DiscordID
				row.CharacterClass = p.Class
			}
			rows = append(rows, row)
		}
		sortPanelRows(rows)
		for i := range rows {
			rows[i].Rank = i + 1
		}
		panels = append(panels, types.Panel{Key: cat.Key, Title: cat.Title, Rows: rows})
	}
	return panels
}

// panelsFromEntries rebuilds the panel view from snapshot rows.
func panelsFromEntries(entries []repository.SnapshotEntry) []types.Panel {
	byPanel := make(map[string][]types.PanelRow)
	var order []string
	for _, e := range entries {
		if _, seen := byPanel[e.PanelKey]; !seen {
			order = append(order, e.PanelKey)
		}
		byPanel[e.PanelKey] = append(byPanel[e.PanelKey], types.PanelRow{
			CharacterName:  e.CharacterName,
			DiscordUserID:  e.DiscordUserID,
			CharacterClass: e.CharacterClass,
			Rank:           e.RankingNumber,
			Points:         e.EffectivePoints(),
			Primary:        e.PrimaryNumeric,
			Detail:         e.EffectiveDetails(),
			AuxKey:         e.AuxKey,
			Edited:         e.Edited(),
		})
	}

	panels := make([]types.Panel, 0, len(order))
	for _, key := range order {
		panels = append(panels, types.Panel{Key: key, Title: rules.Title(key), Rows: byPanel[key]})
	}
	return panels
}

func sortPanelRows(rows []types.PanelRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return model.Key(rows[i].CharacterName) < model.Key(rows[j].CharacterName)
	})
}

// captureEntries freezes every currently-displayed row across all category
// panels into snapshot entries.
func captureEntries(eventID string, report *types.Report) []repository.SnapshotEntry {
	var entries []repository.SnapshotEntry
	for _, panel := range report.Panels {
		for _, row := range panel.Rows {
			entries = append(entries, repository.SnapshotEntry{
				EventID:         eventID,
				PanelKey:        panel.Key,
				CharacterName:   row.CharacterName,
				AuxKey:          row.AuxKey,
				PointsOriginal:  row.Points,
				DetailsOriginal: row.Detail,
				RankingNumber:   row.Rank,
				DiscordUserID:   row.DiscordUserID,
				CharacterClass:  row.CharacterClass,
				PrimaryNumeric:  row.Primary,
				AuxJSON:         auxJSON(row.AuxKey),
			})
		}
	}
	return entries
}

func auxJSON(itemKey string) string {
	if itemKey == "" {
		return ""
	}
	body, err := json.Marshal(map[string]string{"item_key": itemKey})
	if err != nil {
		return ""
	}
	return string(body)
}

func totalViews(totals aggregate.Totals, dist gold.Distribution) []types.PlayerTotal {
	out := make([]types.PlayerTotal, 0, len(totals.Players))
	for _, pt := range totals.Players {
		out = append(out, types.PlayerTotal{
			CharacterName:  pt.Player.Name,
			DiscordUserID:  pt.Player.DiscordID,
			CharacterClass: pt.Player.Class,
			Role:           string(pt.Player.Role),
			Points:         pt.Points,
			Displayed:      pt.Displayed,
			Gold:           dist.PlayerGold[model.Key(pt.Player.Name)],
		})
	}
	return out
}

func goldSummary(dist gold.Distribution) types.GoldSummary {
	return types.GoldSummary{
		TotalGold:      dist.Split.TotalGold,
		SharedPool:     dist.Split.Shared,
		SharedAdjusted: dist.SharedAdjusted,
		ManagementPool: dist.Split.Management,
		Organizer:      dist.Split.Organizer,
		Raidleader:     dist.Split.Raidleader,
		Helper:         dist.Split.Helper,
		Founder:        dist.Split.Founder,
		Guildbank:      dist.Split.Guildbank,
		GoldPerPoint:   dist.GoldPerPoint,
	}
}

func degraded(data *model.EventData) []string {
	var out []string
	for _, key := range rules.Keys() {
		if ds, ok := data.Categories[key]; ok && ds.Degraded {
			out = append(out, key)
		}
	}
	if data.Roster.Degraded {
		out = append(out, "roster")
	}
	return out
}
