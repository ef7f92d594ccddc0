// -----------------------------------------------------------------------
// Stale Sweep - Fails active documents abandoned by crashed workers
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/Anmol33/jusfinn-sub000/internal/interfaces"
	"github.com/Anmol33/jusfinn-sub000/internal/models"
)

// StaleSweeper periodically fails active-state documents that have not been
// touched within the stale window. These are leftovers from crashed workers
// or lost queue messages; failing them keeps the record visible to the
// operator instead of stuck at a dead progress value.
type StaleSweeper struct {
	storage    interfaces.StorageManager
	processor  *Processor
	events     interfaces.EventService
	staleAfter time.Duration
	schedule   string
	cron       *cron.Cron
	logger     arbor.ILogger
}

// NewStaleSweeper creates the sweep job
func NewStaleSweeper(
	storage interfaces.StorageManager,
	processor *Processor,
	events interfaces.EventService,
	staleAfter time.Duration,
	schedule string,
	logger arbor.ILogger,
) *StaleSweeper {
	return &StaleSweeper{
		storage:    storage,
		processor:  processor,
		events:     events,
		staleAfter: staleAfter,
		schedule:   schedule,
		cron:       cron.New(),
		logger:     logger,
	}
}

// Start schedules the sweep
func (s *StaleSweeper) Start() error {
	if s.schedule == "" {
		s.schedule = "*/5 * * * *" // Default: every 5 minutes
	}

	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule stale sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Str("stale_after", s.staleAfter.String()).
		Msg("Stale document sweep scheduled")
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish
func (s *StaleSweeper) Stop() error {
	ctx := s.cron.Stop()
	<-ctx.Done()
	return nil
}

// Sweep fails every active document whose last update is older than the
// stale window. Documents with a live in-flight attempt are skipped - they
// are slow, not abandoned.
func (s *StaleSweeper) Sweep() {
	ctx := context.Background()
	cutoff := time.Now().Add(-s.staleAfter).UnixMilli()

	docs, err := s.storage.DocumentStorage().ListActiveOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale sweep query failed")
		return
	}

	swept := 0
	for _, doc := range docs {
		if s.processor != nil && s.processor.inflight.Active(doc.ID) {
			continue
		}

		var oldStatus models.DocumentStatus
		updated, err := s.storage.DocumentStorage().Update(ctx, doc.ID, func(d *models.Document) error {
			if !d.Status.IsActive() {
				return fmt.Errorf("no longer active")
			}
			oldStatus = d.Status
			return d.MarkFailed(models.ProcessingTimeout,
				fmt.Sprintf("no progress for %s, attempt abandoned", s.staleAfter))
		})
		if err != nil {
			continue // Moved on or deleted since the query
		}
		swept++

		s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventDocumentStatusChanged,
			Payload: interfaces.StatusChangedPayload{
				DocumentID: updated.ID,
				OldStatus:  string(oldStatus),
				NewStatus:  string(updated.Status),
				Progress:   updated.Progress,
				Attempt:    updated.Attempt,
			},
		})
		s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventDocumentFailed,
			Payload: updated,
		})

		s.logger.Warn().
			Str("document_id", updated.ID).
			Str("was", string(oldStatus)).
			Msg("Stale document failed by sweep")
	}

	if swept > 0 {
		s.logger.Info().Int("count", swept).Msg("Stale sweep completed")
	}
}
