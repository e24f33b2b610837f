package services

import (
	"context"
	"log/slog"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// SettingsService applies owner settings changes and the invalidation
// that follows them.
type SettingsService struct {
	settings  SettingsRepo
	schedules ScheduleRepo
	owners    OwnerRepo
	notifier  Notifier
	clock     Clock
	logger    *slog.Logger
}

func NewSettingsService(
	settings SettingsRepo,
	schedules ScheduleRepo,
	owners OwnerRepo,
	notifier Notifier,
	clk Clock,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		settings:  settings,
		schedules: schedules,
		owners:    owners,
		notifier:  notifier,
		clock:     clk,
		logger:    logger,
	}
}

// IsFollowingCollective reports whether the subject is locked to a
// collective owner's schedule.
func (s *SettingsService) IsFollowingCollective(ctx context.Context, subjectID string) (int64, bool, error) {
	ownerID, err := s.owners.FollowedOwner(ctx, subjectID)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ownerID, true, nil
}

// Update validates and applies a settings change.
//
// While the subject follows a collective owner, prayer-related fields are
// locked: such changes are rejected with Conflict. Display-only changes
// (time format, hijri offset) pass through without touching the schedule.
// A prayer-affecting change clears the owner's current-month schedule so
// the next read regenerates it, and notifies followers of a collective
// owner.
func (s *SettingsService) Update(ctx context.Context, subjectID string, next *models.OwnerSettings) error {
	if err := next.Validate(); err != nil {
		return errs.Wrap(errs.Permanent, err, "invalid settings")
	}

	current, err := s.settings.Get(ctx, next.OwnerID)
	if err != nil && errs.KindOf(err) != errs.NotFound {
		return err
	}

	prayerChanged := current == nil || models.PrayerRuleFieldsChanged(current, next)

	if prayerChanged && subjectID != "" {
		if followed, following, err := s.IsFollowingCollective(ctx, subjectID); err != nil {
			return err
		} else if following && followed != next.OwnerID {
			return errs.New(errs.Conflict,
				"prayer settings are locked while following a masjid; unfollow first")
		}
	}

	next.UpdatedAt = s.clock.Now().UTC()
	if err := s.settings.Put(ctx, next); err != nil {
		return err
	}

	if !prayerChanged {
		return nil
	}

	// Invalidate the owner's current-month script; the next read
	// regenerates it under the new rules.
	now := s.clock.Now()
	if err := s.schedules.Delete(ctx, next.OwnerID, now.Year(), int(now.Month())); err != nil {
		// The stale script remains readable; mark loudly and let the
		// monthly wave replace it.
		s.logger.Error("schedule invalidation failed", "owner", next.OwnerID, "err", err)
		return err
	}

	collective, err := s.owners.IsCollective(ctx, next.OwnerID)
	if err != nil && errs.KindOf(err) != errs.NotFound {
		return err
	}
	if collective {
		if err := s.notifier.NotifyFollowers(ctx, next.OwnerID, "prayer times were updated"); err != nil {
			s.logger.Warn("follower notification failed", "owner", next.OwnerID, "err", err)
		}
	}

	s.logger.Info("owner settings updated", "owner", next.OwnerID, "prayer_changed", prayerChanged)
	return nil
}
