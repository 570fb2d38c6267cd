package models

import (
	"errors"
	"strings"
)

var ErrGradeRequired = errors.New("grade is required when approving")

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

type Submission struct {
	ID          string     `db:"id" json:"id"`
	ChallengeID string     `db:"challenge_id" json:"challenge_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Content     string     `db:"content" json:"content"`
	Attachments StringList `db:"attachments" json:"attachments"`
	Status      Status     `db:"status" json:"status"`
	Feedback    *string    `db:"feedback" json:"feedback,omitempty"`
	Grade       *int       `db:"grade" json:"grade,omitempty"`
	SubmittedAt int64      `db:"submitted_at" json:"submitted_at"`
	ReviewedAt  *int64     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
}

type SubmissionInput struct {
	Content     string   `json:"content" validate:"required"`
	Attachments []string `json:"attachments" validate:"omitempty,dive,required"`
}

func (in *SubmissionInput) Validate() error {
	in.Content = cleanString(in.Content)
	for i := range in.Attachments {
		in.Attachments[i] = cleanString(in.Attachments[i])
	}
	return validate.Struct(in)
}

type ReviewInput struct {
	Decision Status `json:"decision" validate:"required,oneof=approved rejected"`
	Feedback string `json:"feedback"`
	Grade    *int   `json:"grade" validate:"omitempty,min=0,max=100"`
}

func (in *ReviewInput) Validate() error {
	in.Decision = Status(strings.ToLower(cleanString(string(in.Decision))))
	in.Feedback = cleanString(in.Feedback)
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.Decision == StatusApproved && in.Grade == nil {
		return ErrGradeRequired
	}
	return nil
}

// Comment is one entry of the discussion attached to a submission.
type Comment struct {
	ID           string `db:"id" json:"id"`
	SubmissionID string `db:"submission_id" json:"submission_id"`
	AuthorID     string `db:"author_id" json:"author_id"`
	Body         string `db:"body" json:"body"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

type CommentInput struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func (in *CommentInput) Validate() error {
	in.Body = cleanString(in.Body)
	return validate.Struct(in)
}
