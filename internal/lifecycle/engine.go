package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/metrics"
	"github.com/shrimpsizemoose/mentorloop/internal/models"
	"github.com/shrimpsizemoose/mentorloop/internal/scoring"
	"github.com/shrimpsizemoose/mentorloop/internal/store"
)

// Engine owns the submission lifecycle: submitted -> approved, or
// submitted -> rejected -> (new attempt) submitted. Each attempt is its own
// row; at most one submitted-or-approved row exists per challenge and user.
type Engine struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		now:   time.Now,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Submit(ctx context.Context, p models.Principal, challengeID string, in models.SubmissionInput) (*models.Submission, error) {
	const op = "submit"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if err := in.Validate(); err != nil {
		return nil, e.fail(op, invalidArgument(op, err))
	}

	now := e.now()
	var created *models.Submission
	err := e.store.InTx(ctx, func(repo store.Repository) error {
		challenge, err := repo.FindChallenge(ctx, challengeID)
		if err != nil {
			return storageError(op, err)
		}
		if challenge == nil {
			return newError(KindNotFound, op, "challenge %s not found", challengeID)
		}
		if challenge.ExpiredAt(now) {
			return newError(KindExpired, op, "challenge %s was due at %s",
				challengeID, time.Unix(challenge.DueAt, 0).UTC().Format(time.RFC3339))
		}

		active, err := repo.FindActiveSubmission(ctx, challengeID, p.ID)
		if err != nil {
			return storageError(op, err)
		}
		if active != nil {
			return newError(KindConflict, op, "submission %s for challenge %s is already %s",
				active.ID, challengeID, active.Status)
		}

		if err := repo.EnsureUser(ctx, p.ID, now.Unix()); err != nil {
			return storageError(op, err)
		}

		submission := &models.Submission{
			ID:          e.newID(),
			ChallengeID: challengeID,
			UserID:      p.ID,
			Content:     in.Content,
			Attachments: attachments(in.Attachments),
			Status:      models.StatusSubmitted,
			SubmittedAt: now.Unix(),
		}
		if err := repo.InsertSubmission(ctx, submission); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return newError(KindConflict, op, "challenge %s already has an active submission", challengeID)
			}
			return storageError(op, err)
		}
		created = submission
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err)
	}

	metrics.SubmissionsTotal.WithLabelValues(string(created.Status)).Inc()
	logger.Info.Printf("Submission %s created for challenge %s by %s", created.ID, challengeID, p.ID)
	return created, nil
}

func (e *Engine) EditSubmission(ctx context.Context, p models.Principal, submissionID string, in models.SubmissionInput) (*models.Submission, error) {
	const op = "edit submission"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if err := in.Validate(); err != nil {
		return nil, e.fail(op, invalidArgument(op, err))
	}

	now := e.now()
	var edited *models.Submission
	err := e.store.InTx(ctx, func(repo store.Repository) error {
		submission, err := repo.FindSubmission(ctx, submissionID)
		if err != nil {
			return storageError(op, err)
		}
		if submission == nil {
			return newError(KindNotFound, op, "submission %s not found", submissionID)
		}
		if submission.UserID != p.ID {
			return newError(KindForbidden, op, "submission %s belongs to another user", submissionID)
		}
		if submission.Status != models.StatusSubmitted {
			return newError(KindInvalidState, op, "submission %s is already %s", submissionID, submission.Status)
		}

		submission.Content = in.Content
		submission.Attachments = attachments(in.Attachments)
		submission.SubmittedAt = now.Unix()
		if err := repo.UpdateSubmission(ctx, submission); err != nil {
			return storageError(op, err)
		}
		edited = submission
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err)
	}

	logger.Debug.Printf("Submission %s edited by %s", edited.ID, p.ID)
	return edited, nil
}

// Review records a mentor decision. The input is checked only after the
// submission is known to be awaiting review, so a re-review is always
// InvalidState. Approval pays the challenge reward once per (user,
// challenge): the reward ledger insert is the guard, so neither a second
// approval nor a concurrent one can grant twice.
func (e *Engine) Review(ctx context.Context, p models.Principal, submissionID string, in models.ReviewInput) (*models.Submission, error) {
	const op = "review"
	if err := requireReviewer(op, p); err != nil {
		return nil, e.fail(op, err)
	}

	now := e.now().Unix()
	var (
		reviewed *models.Submission
		reward   int64
	)
	err := e.store.InTx(ctx, func(repo store.Repository) error {
		submission, err := repo.FindSubmission(ctx, submissionID)
		if err != nil {
			return storageError(op, err)
		}
		if submission == nil {
			return newError(KindNotFound, op, "submission %s not found", submissionID)
		}
		if submission.Status != models.StatusSubmitted {
			return newError(KindInvalidState, op, "submission %s is already %s", submissionID, submission.Status)
		}
		if err := in.Validate(); err != nil {
			return invalidArgument(op, err)
		}

		reviewer := p.ID
		submission.Status = in.Decision
		submission.Feedback = optionalString(in.Feedback)
		submission.Grade = in.Grade
		submission.ReviewedAt = &now
		submission.ReviewedBy = &reviewer
		if err := repo.UpdateSubmission(ctx, submission); err != nil {
			return storageError(op, err)
		}
		reviewed = submission

		if submission.Status != models.StatusApproved {
			return nil
		}

		granted, err := e.grantReward(ctx, repo, submission, now)
		if err != nil {
			return err
		}
		reward = granted
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err)
	}

	metrics.ReviewsTotal.WithLabelValues(string(reviewed.Status)).Inc()
	if reviewed.Grade != nil {
		metrics.GradeHistogram.Observe(float64(*reviewed.Grade))
	}
	if reward > 0 {
		metrics.XPGrantedTotal.Add(float64(reward))
	}
	logger.Info.Printf("Submission %s %s by %s (reward %d XP)", reviewed.ID, reviewed.Status, p.ID, reward)
	return reviewed, nil
}

// grantReward returns the amount granted, zero when the ledger already
// holds a grant for this user and challenge.
func (e *Engine) grantReward(ctx context.Context, repo store.Repository, submission *models.Submission, now int64) (int64, error) {
	const op = "review"

	challenge, err := repo.FindChallenge(ctx, submission.ChallengeID)
	if err != nil {
		return 0, storageError(op, err)
	}
	if challenge == nil {
		return 0, newError(KindNotFound, op, "challenge %s not found", submission.ChallengeID)
	}

	granted, err := repo.GrantReward(ctx, models.RewardGrant{
		UserID:       submission.UserID,
		ChallengeID:  challenge.ID,
		SubmissionID: submission.ID,
		Amount:       challenge.XPReward,
		GrantedAt:    now,
	})
	if err != nil {
		return 0, storageError(op, err)
	}
	if !granted {
		logger.Debug.Printf("Reward for %s/%s already granted", submission.UserID, challenge.ID)
		return 0, nil
	}

	if err := repo.EnsureUser(ctx, submission.UserID, now); err != nil {
		return 0, storageError(op, err)
	}
	progress, err := repo.GetUserProgress(ctx, submission.UserID)
	if err != nil {
		return 0, storageError(op, err)
	}
	if progress == nil {
		return 0, newError(KindStorageUnavailable, op, "user %s vanished while granting reward", submission.UserID)
	}

	xp, level := scoring.Grant(progress.XP, challenge.XPReward)
	if err := repo.SetUserXP(ctx, submission.UserID, xp, level, now); err != nil {
		return 0, storageError(op, err)
	}
	return challenge.XPReward, nil
}

// VisibleSubmissions is what a learner sees on a challenge page: their own
// latest attempt and everybody else's approved work.
type VisibleSubmissions struct {
	Mine           *models.Submission  `json:"mine"`
	ApprovedOthers []models.Submission `json:"approved_others"`
}

func (e *Engine) ListVisibleSubmissions(ctx context.Context, p models.Principal, challengeID string) (*VisibleSubmissions, error) {
	const op = "list visible submissions"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if _, err := e.findChallenge(ctx, op, challengeID); err != nil {
		return nil, e.fail(op, err)
	}

	submissions, err := e.store.ListSubmissions(ctx, challengeID, "")
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}

	visible := &VisibleSubmissions{ApprovedOthers: []models.Submission{}}
	for i := range submissions {
		s := submissions[i]
		switch {
		case s.UserID == p.ID:
			// oldest first, so the last one seen is the latest attempt
			visible.Mine = &s
		case s.Status == models.StatusApproved:
			visible.ApprovedOthers = append(visible.ApprovedOthers, s)
		}
	}
	return visible, nil
}

func (e *Engine) ListPendingReviews(ctx context.Context, p models.Principal, challengeID string) ([]models.Submission, error) {
	const op = "list pending reviews"
	if err := requireReviewer(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if _, err := e.findChallenge(ctx, op, challengeID); err != nil {
		return nil, e.fail(op, err)
	}

	pending, err := e.store.ListSubmissions(ctx, challengeID, models.StatusSubmitted)
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}
	return pending, nil
}

func (e *Engine) Progress(ctx context.Context, userID string) (*models.UserProgress, error) {
	const op = "progress"
	if userID == "" {
		return nil, e.fail(op, newError(KindInvalidArgument, op, "user id is required"))
	}

	stored, err := e.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}

	var xp int64
	var name string
	if stored != nil {
		xp = stored.XP
		name = stored.Name
	}
	progress := scoring.Progress(userID, xp)
	progress.Name = name
	return &progress, nil
}

// RewardHistory lists the ledger of a user. Learners only see their own.
func (e *Engine) RewardHistory(ctx context.Context, p models.Principal, userID string) ([]models.RewardGrant, error) {
	const op = "reward history"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if userID != p.ID && !p.IsReviewer() {
		return nil, e.fail(op, newError(KindForbidden, op, "reward history of %s is private", userID))
	}

	grants, err := e.store.ListRewardGrants(ctx, userID)
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}
	return grants, nil
}

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]models.UserProgress, error) {
	const op = "leaderboard"
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	users, err := e.store.ListTopUsers(ctx, limit)
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}
	for i := range users {
		users[i].Level = scoring.Level(users[i].XP)
		users[i].XPToNextLevel = scoring.XPToNextLevel(users[i].XP)
	}
	return users, nil
}

func (e *Engine) findChallenge(ctx context.Context, op, challengeID string) (*models.Challenge, error) {
	challenge, err := e.store.FindChallenge(ctx, challengeID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if challenge == nil {
		return nil, newError(KindNotFound, op, "challenge %s not found", challengeID)
	}
	return challenge, nil
}

// fail makes sure every error leaving the engine carries a kind and
// counts it.
func (e *Engine) fail(op string, err error) error {
	var engineErr *Error
	if !errors.As(err, &engineErr) {
		engineErr = storageError(op, err)
		err = engineErr
	}

	metrics.EngineErrorsTotal.WithLabelValues(op, string(engineErr.Kind)).Inc()
	if engineErr.Kind == KindStorageUnavailable {
		logger.Error.Printf("%v", err)
	} else {
		logger.Debug.Printf("%v", err)
	}
	return err
}

func requirePrincipal(op string, p models.Principal) error {
	if p.ID == "" {
		return newError(KindForbidden, op, "no authenticated principal")
	}
	return nil
}

func requireReviewer(op string, p models.Principal) error {
	if err := requirePrincipal(op, p); err != nil {
		return err
	}
	if !p.IsReviewer() {
		return newError(KindForbidden, op, "role %q cannot review submissions", p.Role)
	}
	return nil
}

func invalidArgument(op string, err error) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Msg: "invalid argument", Err: err}
}

func attachments(in []string) models.StringList {
	if in == nil {
		return models.StringList{}
	}
	return models.StringList(in)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
