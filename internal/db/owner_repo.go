package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// OwnerRepo persists owner identities, follow relations and
// announcements.
type OwnerRepo struct {
	pool *pgxpool.Pool
}

func NewOwnerRepo(pool *pgxpool.Pool) *OwnerRepo {
	return &OwnerRepo{pool: pool}
}

// Info loads an owner's public identity.
func (r *OwnerRepo) Info(ctx context.Context, ownerID int64) (*models.OwnerInfo, error) {
	const q = `SELECT id, name, city FROM owners WHERE id = $1`

	var info models.OwnerInfo
	err := r.pool.QueryRow(ctx, q, ownerID).Scan(&info.ID, &info.Name, &info.City)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.NotFound, "owner %d not found", ownerID)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "load owner")
	}
	return &info, nil
}

// IsCollective reports whether the owner is a followable collective
// (masjid) as opposed to an individual profile.
func (r *OwnerRepo) IsCollective(ctx context.Context, ownerID int64) (bool, error) {
	var collective bool
	err := r.pool.QueryRow(ctx, `SELECT collective FROM owners WHERE id = $1`, ownerID).Scan(&collective)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, errs.Newf(errs.NotFound, "owner %d not found", ownerID)
	}
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "load owner")
	}
	return collective, nil
}

// Follow points a subject at a collective owner, replacing any previous
// follow.
func (r *OwnerRepo) Follow(ctx context.Context, subjectID string, ownerID int64) error {
	const q = `
		INSERT INTO follows (subject_id, owner_id) VALUES ($1, $2)
		ON CONFLICT (subject_id) DO UPDATE SET owner_id = EXCLUDED.owner_id, created_at = now()`
	if _, err := r.pool.Exec(ctx, q, subjectID, ownerID); err != nil {
		return errs.Wrap(errs.Internal, err, "store follow")
	}
	return nil
}

// FollowedOwner returns the owner a subject follows, NotFound when the
// subject follows nobody.
func (r *OwnerRepo) FollowedOwner(ctx context.Context, subjectID string) (int64, error) {
	var ownerID int64
	err := r.pool.QueryRow(ctx, `SELECT owner_id FROM follows WHERE subject_id = $1`, subjectID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.Newf(errs.NotFound, "subject %s follows no owner", subjectID)
	}
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "load follow")
	}
	return ownerID, nil
}

// Unfollow removes a subject's follow if present.
func (r *OwnerRepo) Unfollow(ctx context.Context, subjectID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM follows WHERE subject_id = $1`, subjectID); err != nil {
		return errs.Wrap(errs.Internal, err, "remove follow")
	}
	return nil
}

// Announcements returns an owner's latest notices, newest first.
func (r *OwnerRepo) Announcements(ctx context.Context, ownerID int64, limit int) ([]models.Announcement, error) {
	const q = `
		SELECT id, owner_id, title, content, created_at
		FROM announcements WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, q, ownerID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list announcements")
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Title, &a.Content, &a.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "scan announcement")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
