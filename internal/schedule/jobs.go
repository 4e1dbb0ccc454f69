package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smadden/go-inbox-assistant/internal/services"
)

// ScanJob polls the mailbox for new messages. Runs immediately so a restart
// catches up without waiting a full interval.
func ScanJob(scan *services.ScanService, interval time.Duration) Job {
	return Job{
		Name:      "mail_scan",
		Interval:  interval,
		Immediate: true,
		Run:       scan.Scan,
	}
}

// ExpireJob sweeps pending drafts past their review TTL.
func ExpireJob(drafts *services.DraftService, interval time.Duration) Job {
	return Job{
		Name:     "draft_expiry",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := drafts.ExpireStale(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info().Int("expired", n).Msg("expired stale drafts")
			}
			return nil
		},
	}
}

// VoiceRebuildJob refreshes the voice profile from recent sent mail. An
// empty sent folder is not an error worth alarming on.
func VoiceRebuildJob(voice *services.VoiceService, interval time.Duration, sampleLimit int64) Job {
	return Job{
		Name:     "voice_rebuild",
		Interval: interval,
		Run: func(ctx context.Context) error {
			err := voice.Rebuild(ctx, sampleLimit)
			if errors.Is(err, services.ErrNoVoiceSamples) {
				log.Warn().Msg("no sent mail available for voice rebuild")
				return nil
			}
			return err
		},
	}
}
