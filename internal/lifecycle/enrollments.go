package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/metrics"
	"github.com/shrimpsizemoose/mentorloop/internal/models"
	"github.com/shrimpsizemoose/mentorloop/internal/store"
)

// Enroll signs the principal up for a course. A course exists once at
// least one challenge has been published for it.
func (e *Engine) Enroll(ctx context.Context, p models.Principal, courseID string) (*models.Enrollment, error) {
	const op = "enroll"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, e.fail(op, newError(KindInvalidArgument, op, "course id is required"))
	}

	challenges, err := e.store.ListChallenges(ctx, courseID)
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}
	if len(challenges) == 0 {
		return nil, e.fail(op, newError(KindNotFound, op, "course %s not found", courseID))
	}

	now := e.now().Unix()
	enrollment := &models.Enrollment{UserID: p.ID, CourseID: courseID, EnrolledAt: now}
	err = e.store.InTx(ctx, func(repo store.Repository) error {
		existing, err := repo.FindEnrollment(ctx, p.ID, courseID)
		if err != nil {
			return storageError(op, err)
		}
		if existing != nil {
			return newError(KindConflict, op, "%s is already enrolled in course %s", p.ID, courseID)
		}

		if err := repo.EnsureUser(ctx, p.ID, now); err != nil {
			return storageError(op, err)
		}
		if err := repo.InsertEnrollment(ctx, enrollment); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return newError(KindConflict, op, "%s is already enrolled in course %s", p.ID, courseID)
			}
			return storageError(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err)
	}

	metrics.EnrollmentsTotal.WithLabelValues("enrolled").Inc()
	logger.Info.Printf("%s enrolled in course %s", p.ID, courseID)
	return enrollment, nil
}

// CompleteEnrollment marks a learner's course as finished. Only reviewers
// close courses.
func (e *Engine) CompleteEnrollment(ctx context.Context, p models.Principal, userID, courseID string) (*models.Enrollment, error) {
	const op = "complete enrollment"
	if err := requireReviewer(op, p); err != nil {
		return nil, e.fail(op, err)
	}

	var completed *models.Enrollment
	err := e.store.InTx(ctx, func(repo store.Repository) error {
		enrollment, err := repo.FindEnrollment(ctx, userID, courseID)
		if err != nil {
			return storageError(op, err)
		}
		if enrollment == nil {
			return newError(KindNotFound, op, "%s is not enrolled in course %s", userID, courseID)
		}
		if enrollment.Completed {
			return newError(KindInvalidState, op, "course %s is already completed by %s", courseID, userID)
		}

		if err := repo.CompleteEnrollment(ctx, userID, courseID); err != nil {
			return storageError(op, err)
		}
		enrollment.Completed = true
		completed = enrollment
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err)
	}

	metrics.EnrollmentsTotal.WithLabelValues("completed").Inc()
	logger.Info.Printf("Course %s completed by %s (closed by %s)", courseID, userID, p.ID)
	return completed, nil
}

// ListEnrollments follows the reward history rule: learners see their own.
func (e *Engine) ListEnrollments(ctx context.Context, p models.Principal, userID string) ([]models.Enrollment, error) {
	const op = "list enrollments"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if userID != p.ID && !p.IsReviewer() {
		return nil, e.fail(op, newError(KindForbidden, op, "enrollments of %s are private", userID))
	}

	enrollments, err := e.store.ListUserEnrollments(ctx, userID)
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}
	return enrollments, nil
}
