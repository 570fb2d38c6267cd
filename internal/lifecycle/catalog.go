package lifecycle

import (
	"context"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/sync/errgroup"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

// Bucket groups challenges on the board the way learners see them.
type Bucket string

const (
	BucketActive    Bucket = "active"
	BucketSubmitted Bucket = "submitted"
	BucketCompleted Bucket = "completed"
	BucketExpired   Bucket = "expired"
)

func (b Bucket) Valid() bool {
	switch b {
	case BucketActive, BucketSubmitted, BucketCompleted, BucketExpired:
		return true
	}
	return false
}

type ChallengeFilter struct {
	CourseID string
	// Bucket keeps only challenges in that bucket; empty keeps all.
	Bucket Bucket
}

type ChallengeOverview struct {
	models.Challenge
	Bucket           Bucket             `json:"bucket"`
	MySubmission     *models.Submission `json:"my_submission,omitempty"`
	TotalSubmissions int64              `json:"total_submissions"`
}

// bucketFor mirrors the board: any attempt that is not approved counts as
// submitted, approved is completed, and untouched challenges are active
// until their due date.
func bucketFor(c *models.Challenge, mine *models.Submission, now int64) Bucket {
	switch {
	case mine != nil && mine.Status == models.StatusApproved:
		return BucketCompleted
	case mine != nil:
		return BucketSubmitted
	case c.DueAt <= now:
		return BucketExpired
	default:
		return BucketActive
	}
}

func (e *Engine) ListChallenges(ctx context.Context, p models.Principal, filter ChallengeFilter) ([]ChallengeOverview, error) {
	const op = "list challenges"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if filter.Bucket != "" && !filter.Bucket.Valid() {
		return nil, e.fail(op, newError(KindInvalidArgument, op, "unknown bucket %q", filter.Bucket))
	}

	var (
		challenges  []models.Challenge
		counts      map[string]int64
		submissions []models.Submission
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		challenges, err = e.store.ListChallenges(gctx, filter.CourseID)
		return err
	})
	g.Go(func() (err error) {
		counts, err = e.store.CountSubmissionsByChallenge(gctx)
		return err
	})
	g.Go(func() (err error) {
		submissions, err = e.store.ListUserSubmissions(gctx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, e.fail(op, storageError(op, err))
	}

	latest := make(map[string]*models.Submission, len(submissions))
	for i := range submissions {
		latest[submissions[i].ChallengeID] = &submissions[i]
	}

	now := e.now().Unix()
	overviews := []ChallengeOverview{}
	for i := range challenges {
		c := challenges[i]
		mine := latest[c.ID]
		bucket := bucketFor(&c, mine, now)
		if filter.Bucket != "" && bucket != filter.Bucket {
			continue
		}
		overviews = append(overviews, ChallengeOverview{
			Challenge:        c,
			Bucket:           bucket,
			MySubmission:     mine,
			TotalSubmissions: counts[c.ID],
		})
	}
	return overviews, nil
}

func (e *Engine) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	const op = "get challenge"
	challenge, err := e.findChallenge(ctx, op, id)
	if err != nil {
		return nil, e.fail(op, err)
	}
	return challenge, nil
}

// PublishChallenge creates a challenge. Challenges are read-only to the
// lifecycle once published.
func (e *Engine) PublishChallenge(ctx context.Context, p models.Principal, in models.NewChallenge) (*models.Challenge, error) {
	const op = "publish challenge"
	if err := requireReviewer(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if err := in.Validate(); err != nil {
		return nil, e.fail(op, invalidArgument(op, err))
	}

	challenge := &models.Challenge{
		ID:           e.newID(),
		CourseID:     in.CourseID,
		Title:        in.Title,
		Description:  in.Description,
		Requirements: attachments(in.Requirements),
		XPReward:     in.XPReward,
		DueAt:        in.DueAt,
		Rubric:       in.Rubric,
		CreatedAt:    e.now().Unix(),
	}
	if err := e.store.UpsertChallenge(ctx, challenge); err != nil {
		return nil, e.fail(op, storageError(op, err))
	}

	logger.Info.Printf("Challenge %s (%s) published by %s for course %s", challenge.ID, challenge.Title, p.ID, challenge.CourseID)
	return challenge, nil
}
