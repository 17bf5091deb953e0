package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ever-flow/ETF/internal/marketdata"
	"github.com/ever-flow/ETF/internal/universe"
)

// refreshTimeout bounds one snapshot refresh across the whole universe.
const refreshTimeout = 30 * time.Minute

// defaultRefreshLookback is the widest window any profile can request, so the
// pre-warmed snapshot serves every horizon.
const defaultRefreshLookback = 10

// SnapshotRefreshJob pre-warms the price snapshot so interactive requests hit
// a fresh cache instead of the network.
type SnapshotRefreshJob struct {
	gateway *marketdata.Gateway
	log     zerolog.Logger
}

// NewSnapshotRefreshJob creates the refresh job.
func NewSnapshotRefreshJob(gateway *marketdata.Gateway, log zerolog.Logger) *SnapshotRefreshJob {
	return &SnapshotRefreshJob{
		gateway: gateway,
		log:     log.With().Str("component", "snapshot_refresh").Logger(),
	}
}

// Name implements Job.
func (j *SnapshotRefreshJob) Name() string {
	return "snapshot-refresh"
}

// Run fetches the full universe and persists the resulting snapshot.
func (j *SnapshotRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	started := time.Now()
	_, ok, failed, err := j.gateway.Fetch(ctx, universe.AllTickers(), defaultRefreshLookback)
	if err != nil {
		return err
	}

	j.log.Info().
		Int("ok", len(ok)).
		Int("failed", len(failed)).
		Dur("elapsed", time.Since(started)).
		Msg("Snapshot refreshed")
	return nil
}
