package lifecycle

import (
	"context"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

// AddComment appends to the discussion of a submission. The owner and
// reviewers may comment at any status.
func (e *Engine) AddComment(ctx context.Context, p models.Principal, submissionID string, in models.CommentInput) (*models.Comment, error) {
	const op = "add comment"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if err := in.Validate(); err != nil {
		return nil, e.fail(op, invalidArgument(op, err))
	}

	submission, err := e.findSubmission(ctx, op, submissionID)
	if err != nil {
		return nil, e.fail(op, err)
	}
	if submission.UserID != p.ID && !p.IsReviewer() {
		return nil, e.fail(op, newError(KindForbidden, op, "only the author or a reviewer may comment on %s", submissionID))
	}

	comment := &models.Comment{
		ID:           e.newID(),
		SubmissionID: submission.ID,
		AuthorID:     p.ID,
		Body:         in.Body,
		CreatedAt:    e.now().Unix(),
	}
	if err := e.store.InsertComment(ctx, comment); err != nil {
		return nil, e.fail(op, storageError(op, err))
	}

	logger.Debug.Printf("Comment %s added to submission %s by %s", comment.ID, submissionID, p.ID)
	return comment, nil
}

// ListComments follows submission visibility: approved work is public,
// anything else is limited to its author and reviewers.
func (e *Engine) ListComments(ctx context.Context, p models.Principal, submissionID string) ([]models.Comment, error) {
	const op = "list comments"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}

	submission, err := e.findSubmission(ctx, op, submissionID)
	if err != nil {
		return nil, e.fail(op, err)
	}
	if submission.UserID != p.ID && !p.IsReviewer() && submission.Status != models.StatusApproved {
		return nil, e.fail(op, newError(KindForbidden, op, "submission %s is not visible", submissionID))
	}

	comments, err := e.store.ListComments(ctx, submissionID)
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}
	return comments, nil
}

func (e *Engine) findSubmission(ctx context.Context, op, submissionID string) (*models.Submission, error) {
	submission, err := e.store.FindSubmission(ctx, submissionID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if submission == nil {
		return nil, newError(KindNotFound, op, "submission %s not found", submissionID)
	}
	return submission, nil
}
