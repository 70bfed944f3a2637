package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"candidate-notifier/internal/common/contact"
	apperrors "candidate-notifier/internal/common/errors"
	"candidate-notifier/internal/models"

	"github.com/lib/pq"
)

// PostgresStore reads the joined tracking view and writes marks with
// row-level conditional updates.
type PostgresStore struct {
	db           *sql.DB
	scoreScale   string
	queryTimeout time.Duration

	findQuery     string
	markEmailStmt string
	markSMSStmt   string
}

func NewPostgresStore(db *sql.DB, tables Tables, scoreScale string, queryTimeout time.Duration) *PostgresStore {
	tracking := pq.QuoteIdentifier(tables.Tracking)
	candidates := pq.QuoteIdentifier(tables.Candidates)
	requirements := pq.QuoteIdentifier(tables.Requirements)

	return &PostgresStore{
		db:           db,
		scoreScale:   scoreScale,
		queryTimeout: queryTimeout,
		findQuery: fmt.Sprintf(`
		SELECT
			t.application_id::text,
			c.cand_id::text,
			COALESCE(c.name, ''),
			COALESCE(c.email, ''),
			COALESCE(c.mobile_phone, ''),
			COALESCE(c.work_phone, ''),
			COALESCE(c.home_phone, ''),
			COALESCE(c.overall_experience, 0),
			r.requirement_id::text,
			COALESCE(r.title, ''),
			COALESCE(r.client_name, ''),
			COALESCE(r.location, ''),
			COALESCE(r.description, ''),
			COALESCE(r.duration, ''),
			COALESCE(r.pay_rate, ''),
			COALESCE(r.open_date::text, ''),
			COALESCE(t.match_score, 0),
			COALESCE(t.email_sent, FALSE),
			COALESCE(t.sms_sent, FALSE)
		FROM %s t
		JOIN %s c ON c.cand_id = t.cand_id
		JOIN %s r ON r.requirement_id = t.requirement_id
		WHERE t.cand_id::text = $1
		  AND t.requirement_id::text = $2
		  AND NOT (COALESCE(t.email_sent, FALSE) AND COALESCE(t.sms_sent, FALSE))
		ORDER BY t.application_id
		LIMIT 1`, tracking, candidates, requirements),
		markEmailStmt: fmt.Sprintf(`
		UPDATE %s SET email_sent = TRUE, email_sent_at = $2
		WHERE application_id::text = $1 AND email_sent IS NOT TRUE`, tracking),
		markSMSStmt: fmt.Sprintf(`
		UPDATE %s SET sms_sent = TRUE, sms_sent_at = $2
		WHERE application_id::text = $1 AND sms_sent IS NOT TRUE`, tracking),
	}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *PostgresStore) FindNotifiableApplication(ctx context.Context, candidateID, requirementID string) (*models.ApplicationView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		v     models.ApplicationView
		score float64
	)
	err := s.db.QueryRowContext(ctx, s.findQuery, candidateID, requirementID).Scan(
		&v.ApplicationID,
		&v.Candidate.ID,
		&v.Candidate.Name,
		&v.Candidate.Email,
		&v.Candidate.MobilePhone,
		&v.Candidate.WorkPhone,
		&v.Candidate.HomePhone,
		&v.Candidate.ExperienceYears,
		&v.Requirement.ID,
		&v.Requirement.Title,
		&v.Requirement.Client,
		&v.Requirement.Location,
		&v.Requirement.Description,
		&v.Requirement.Duration,
		&v.Requirement.PayRate,
		&v.Requirement.OpenDate,
		&score,
		&v.EmailSent,
		&v.SMSSent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreQueryFailedError(err)
	}

	v.Candidate.FirstName = contact.FirstName(v.Candidate.Name)
	v.Requirement.MatchScore = NormalizeScore(score, s.scoreScale)
	return &v, nil
}

func (s *PostgresStore) MarkEmailSent(ctx context.Context, applicationID string) error {
	return s.mark(ctx, s.markEmailStmt, "email_sent", applicationID)
}

func (s *PostgresStore) MarkSMSSent(ctx context.Context, applicationID string) error {
	return s.mark(ctx, s.markSMSStmt, "sms_sent", applicationID)
}

// mark affects zero rows when the flag is already set, which is success.
func (s *PostgresStore) mark(ctx context.Context, stmt, column, applicationID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, stmt, applicationID, time.Now().UTC()); err != nil {
		return apperrors.NewStoreUpdateFailedError(column, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}
