package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grade(v int) *int { return &v }

func TestReviewInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      ReviewInput
		wantErr bool
	}{
		{"approve with grade", ReviewInput{Decision: StatusApproved, Grade: grade(90)}, false},
		{"approve mixed case", ReviewInput{Decision: " APPROVED ", Grade: grade(0)}, false},
		{"reject without grade", ReviewInput{Decision: StatusRejected, Feedback: "redo"}, false},
		{"approve without grade", ReviewInput{Decision: StatusApproved}, true},
		{"grade above range", ReviewInput{Decision: StatusApproved, Grade: grade(101)}, true},
		{"grade below range", ReviewInput{Decision: StatusRejected, Grade: grade(-1)}, true},
		{"submitted is not a decision", ReviewInput{Decision: StatusSubmitted}, true},
		{"empty decision", ReviewInput{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("missing grade sentinel", func(t *testing.T) {
		in := ReviewInput{Decision: StatusApproved}
		assert.ErrorIs(t, in.Validate(), ErrGradeRequired)
	})
}

func TestSubmissionInputValidate(t *testing.T) {
	in := SubmissionInput{Content: "  code  ", Attachments: []string{" a.zip "}}
	require.NoError(t, in.Validate())
	assert.Equal(t, "code", in.Content)
	assert.Equal(t, []string{"a.zip"}, in.Attachments)

	assert.Error(t, (&SubmissionInput{Content: "\n\t"}).Validate())
	assert.Error(t, (&SubmissionInput{Content: "x", Attachments: []string{" "}}).Validate())
}

func TestNewChallengeValidate(t *testing.T) {
	ok := NewChallenge{CourseID: "cs101", Title: "Lists", XPReward: 100, DueAt: 1700000000}
	require.NoError(t, ok.Validate())

	negative := ok
	negative.XPReward = -1
	assert.Error(t, negative.Validate())

	badRubric := ok
	badRubric.Rubric = Rubric{"style": -5}
	assert.Error(t, badRubric.Validate())

	noDue := ok
	noDue.DueAt = 0
	assert.Error(t, noDue.Validate())
}

func TestRubricTotal(t *testing.T) {
	assert.Equal(t, 0, Rubric(nil).Total())
	assert.Equal(t, 110, Rubric{"a": 60, "b": 50}.Total())
}

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringList{"a", "b"}, l)

	require.NoError(t, l.Scan(""))
	assert.Equal(t, StringList{}, l)

	assert.Error(t, l.Scan(42))
}
