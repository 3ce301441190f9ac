package service

import (
	"context"
	"time"

	"app/internal/provider"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// CampaignGuard halts further provider-side spend once an account's funds are
// exhausted. Stopping a campaign is a cost-control measure, not a correctness
// requirement: the wallet has already been debited, so every strategy is
// best-effort and no failure ever propagates to the ingestion path.
type CampaignGuard interface {
	// HaltSpend runs each stop strategy in order. Strategy failures are
	// logged and swallowed; the method never returns an error.
	HaltSpend(ctx context.Context, accountID, number string)
}

// GuardConfig bounds the guard's lookback windows and per-call timeout.
type GuardConfig struct {
	CallTimeout    time.Duration // per provider call (default: 5s)
	CampaignWindow time.Duration // recent-campaign lookback (default: 24h)
	SessionWindow  time.Duration // active-session lookback (default: 30m)
}

// guardStrategy is one independent way of stopping spend. Each strategy runs
// inside its own failure boundary so that one failing tier never prevents the
// next from being attempted.
type guardStrategy struct {
	name string
	run  func(ctx context.Context, accountID, number string) error
}

type campaignGuard struct {
	campaigns repository.CampaignRepository
	provider  provider.Client
	cfg       GuardConfig
	logger    zerolog.Logger

	strategies []guardStrategy
}

// NewCampaignGuard creates a CampaignGuard with the two-tier stop strategy:
// direct list termination first, then an active-session sweep.
func NewCampaignGuard(campaigns repository.CampaignRepository, providerClient provider.Client, cfg GuardConfig, logger zerolog.Logger) CampaignGuard {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	if cfg.CampaignWindow == 0 {
		cfg.CampaignWindow = 24 * time.Hour
	}
	if cfg.SessionWindow == 0 {
		cfg.SessionWindow = 30 * time.Minute
	}
	g := &campaignGuard{
		campaigns: campaigns,
		provider:  providerClient,
		cfg:       cfg,
		logger:    logger.With().Str("service", "CampaignGuard").Logger(),
	}
	g.strategies = []guardStrategy{
		{name: "stop_recent_campaign", run: g.stopRecentCampaign},
		{name: "sweep_active_sessions", run: g.sweepActiveSessions},
	}
	return g
}

func (g *campaignGuard) HaltSpend(ctx context.Context, accountID, number string) {
	for _, st := range g.strategies {
		if err := st.run(ctx, accountID, number); err != nil {
			g.logger.Warn().Err(err).
				Str("strategy", st.name).
				Str("account_id", accountID).
				Str("number", number).
				Msg("Guard strategy failed; continuing")
		}
	}
}

// stopRecentCampaign looks up the newest active outbound list for the
// account and number and asks the provider to stop processing it. When the
// local registry has no active campaign it asks the provider directly, since
// the registry can lag behind lists created on the provider side.
func (g *campaignGuard) stopRecentCampaign(ctx context.Context, accountID, number string) error {
	since := time.Now().Add(-g.cfg.CampaignWindow)

	lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	campaign, err := g.campaigns.GetRecentActive(lookupCtx, accountID, number, since)
	if err != nil {
		return err
	}

	var listID, campaignID string
	if campaign != nil {
		listID = campaign.ProviderListID
		campaignID = campaign.ID
	} else {
		findCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		lists, err := g.provider.FindActiveCampaigns(findCtx, number, since)
		cancel()
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			g.logger.Debug().
				Str("account_id", accountID).
				Str("number", number).
				Msg("No recent active campaign to stop")
			return nil
		}
		newest := lists[0]
		for _, l := range lists[1:] {
			if l.Created.After(newest.Created) {
				newest = l
			}
		}
		listID = newest.ListID
	}

	stopCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	if err := g.provider.StopCampaign(stopCtx, listID); err != nil {
		return err
	}
	if campaignID != "" {
		if err := g.campaigns.MarkStopped(ctx, campaignID); err != nil {
			// The provider already stopped the list; the stale local status is
			// log-worthy but not worth failing the strategy over.
			g.logger.Warn().Err(err).Str("campaign_id", campaignID).Msg("Failed to mark campaign stopped locally")
		}
	}
	g.logger.Info().
		Str("account_id", accountID).
		Str("campaign_id", campaignID).
		Str("provider_list_id", listID).
		Msg("Stopped outbound campaign after funds exhaustion")
	return nil
}

// sweepActiveSessions terminates every unfinished provider call session
// involving the number within the session window.
func (g *campaignGuard) sweepActiveSessions(ctx context.Context, accountID, number string) error {
	findCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	sessions, err := g.provider.FindActiveSessions(findCtx, number, time.Now().Add(-g.cfg.SessionWindow))
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		if sess.Finished != nil {
			continue
		}
		termCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		err := g.provider.TerminateSession(termCtx, sess.ID)
		cancel()
		if err != nil {
			// Keep sweeping the rest.
			g.logger.Warn().Err(err).
				Str("session_id", sess.ID).
				Str("number", number).
				Msg("Failed to terminate active session")
			continue
		}
		g.logger.Info().
			Str("account_id", accountID).
			Str("session_id", sess.ID).
			Msg("Terminated active session after funds exhaustion")
	}
	return nil
}
