package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/slip-engine/store/sqlite"
)

// purgeJob hard-deletes slip tombstones past the retention window.
// Scheduled by main; see PURGE_SCHEDULE / PURGE_RETENTION_DAYS.
type purgeJob struct {
	store     *sqlite.Store
	retention time.Duration
	log       zerolog.Logger
}

func newPurgeJob(store *sqlite.Store, retention time.Duration, log zerolog.Logger) *purgeJob {
	return &purgeJob{
		store:     store,
		retention: retention,
		log:       log.With().Str("component", "purge").Logger(),
	}
}

func (j *purgeJob) Name() string { return "tombstone_purge" }

func (j *purgeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-j.retention)
	n, err := j.store.PurgeDeleted(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("purged slip tombstones")
	}
	return nil
}
