package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
)

var _ interfaces.EventSource = (*PollSource)(nil)

// PollSource fetches new posts from every monitored direct-message channel at
// a fixed interval and dispatches them oldest first
type PollSource struct {
	transport    interfaces.ChatTransport
	dedup        *Deduplicator
	interval     time.Duration
	errorBackoff time.Duration
	refreshSpec  string
	logger       arbor.ILogger
	now          func() time.Time

	mu       sync.Mutex
	botID    string
	teams    []models.Team
	channels []models.Channel
	since    int64            // start mark for channels not fetched yet
	marks    map[string]int64 // newest post seen per channel
}

// NewPollSource creates a poller from the chat settings
func NewPollSource(transport interfaces.ChatTransport, cfg *common.ChatConfig, logger arbor.ILogger) (*PollSource, error) {
	dedup, err := NewDeduplicator(cfg.DedupSize)
	if err != nil {
		return nil, err
	}

	refresh := cfg.ChannelRefresh
	if refresh == "" {
		refresh = "@every 30s"
	}

	return &PollSource{
		transport:    transport,
		dedup:        dedup,
		interval:     common.ParseDurationOr(cfg.PollInterval, 2*time.Second),
		errorBackoff: common.ParseDurationOr(cfg.ErrorBackoff, 5*time.Second),
		refreshSpec:  refresh,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Run polls until ctx is cancelled. Only posts created after Run started are
// delivered. A failed cycle is logged and retried after the error backoff.
func (p *PollSource) Run(ctx context.Context, handler interfaces.PostHandler) error {
	me, err := p.transport.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify bot account: %w", err)
	}

	teams, err := p.transport.GetTeamsForUser(ctx, me.ID)
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}

	p.mu.Lock()
	p.botID = me.ID
	p.teams = teams
	p.since = p.now().UnixMilli()
	p.marks = make(map[string]int64)
	p.mu.Unlock()

	p.refreshChannels(ctx)
	if len(p.monitored()) == 0 {
		p.logger.Warn().Msg("No direct-message channels to monitor yet")
	}

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc(p.refreshSpec, func() { p.refreshChannels(ctx) }); err != nil {
		return fmt.Errorf("invalid channel refresh schedule %q: %w", p.refreshSpec, err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	p.logger.Info().
		Str("bot_id", me.ID).
		Int("channels", len(p.monitored())).
		Dur("interval", p.interval).
		Msg("Polling for new posts")

	for {
		wait := p.interval
		if err := p.Cycle(ctx, handler); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			p.logger.Error().Err(err).Dur("backoff", p.errorBackoff).Msg("Poll cycle failed")
			wait = p.errorBackoff
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poll loop stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// Cycle performs one fetch-merge-dispatch round. Channels that fail are
// reported in the returned error after the others were dispatched. A failed
// channel keeps its mark, so its posts are fetched again next cycle.
func (p *PollSource) Cycle(ctx context.Context, handler interfaces.PostHandler) (err error) {
	defer common.CatchPanic(p.logger, "pollCycle", &err)

	var fresh []models.Post
	var errs []error
	advanced := make(map[string]int64)
	for _, ch := range p.monitored() {
		since := p.markFor(ch.ID)
		posts, fetchErr := p.transport.GetPostsSince(ctx, ch.ID, since)
		if fetchErr != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.ID, fetchErr))
			continue
		}

		highWater := since
		for _, post := range posts {
			if post.CreateAt <= since {
				continue
			}
			if post.CreateAt > highWater {
				highWater = post.CreateAt
			}
			if post.UserID == p.botUserID() {
				continue
			}
			if post.ChannelID == "" {
				post.ChannelID = ch.ID
			}
			fresh = append(fresh, post)
		}
		if highWater > since {
			advanced[ch.ID] = highWater
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].CreateAt < fresh[j].CreateAt })

	for _, post := range fresh {
		if p.dedup.Seen(post.ID) {
			p.logger.Debug().Str("post_id", post.ID).Msg("Duplicate post skipped")
			continue
		}
		handler(ctx, post)
	}

	p.mu.Lock()
	if p.marks == nil {
		p.marks = make(map[string]int64)
	}
	for channelID, mark := range advanced {
		if mark > p.marks[channelID] {
			p.marks[channelID] = mark
		}
	}
	p.mu.Unlock()

	return errors.Join(errs...)
}

// markFor returns the creation time of the newest post already seen in the
// channel, or the start mark for a channel not fetched yet
func (p *PollSource) markFor(channelID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mark, ok := p.marks[channelID]; ok && mark > p.since {
		return mark
	}
	return p.since
}

func (p *PollSource) botUserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.botID
}

// refreshChannels re-lists the channels of every team and starts monitoring
// direct-message channels not seen before
func (p *PollSource) refreshChannels(ctx context.Context) {
	p.mu.Lock()
	botID, teams := p.botID, p.teams
	known := make(map[string]bool, len(p.channels))
	for _, ch := range p.channels {
		known[ch.ID] = true
	}
	p.mu.Unlock()

	var added []models.Channel
	for _, team := range teams {
		channels, err := p.transport.GetChannelsForTeamForUser(ctx, botID, team.ID)
		if err != nil {
			p.logger.Warn().Err(err).Str("team", team.Name).Msg("Failed to list channels")
			continue
		}
		for _, ch := range channels {
			if ch.Type != models.ChannelTypeDirect || known[ch.ID] {
				continue
			}
			known[ch.ID] = true
			added = append(added, ch)
		}
	}

	if len(added) == 0 {
		return
	}

	p.mu.Lock()
	p.channels = append(p.channels, added...)
	total := len(p.channels)
	p.mu.Unlock()

	for _, ch := range added {
		p.logger.Info().Str("channel_id", ch.ID).Str("name", ch.Name).Msg("Monitoring direct-message channel")
	}
	p.logger.Debug().Int("added", len(added)).Int("total", total).Msg("Channel list refreshed")
}

func (p *PollSource) monitored() []models.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Channel(nil), p.channels...)
}
