package models

type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller of an engine operation, as
// supplied by the identity provider.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsReviewer reports whether the principal may approve or reject submissions.
func (p Principal) IsReviewer() bool {
	return p.Role == RoleMentor || p.Role == RoleAdmin
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type UserProgress struct {
	UserID        string `db:"id" json:"user_id"`
	Name          string `db:"name" json:"name,omitempty"`
	XP            int64  `db:"xp" json:"xp"`
	Level         int64  `db:"level" json:"level"`
	XPToNextLevel int64  `db:"-" json:"xp_to_next_level"`
}

// RewardGrant is the ledger entry written when an approval pays out XP.
type RewardGrant struct {
	UserID       string `db:"user_id" json:"user_id"`
	ChallengeID  string `db:"challenge_id" json:"challenge_id"`
	SubmissionID string `db:"submission_id" json:"submission_id"`
	Amount       int64  `db:"amount" json:"amount"`
	GrantedAt    int64  `db:"granted_at" json:"granted_at"`
}

// Enrollment ties a user to a course. Completed feeds the completion rate.
type Enrollment struct {
	UserID     string `db:"user_id" json:"user_id"`
	CourseID   string `db:"course_id" json:"course_id"`
	Completed  bool   `db:"completed" json:"completed"`
	EnrolledAt int64  `db:"enrolled_at" json:"enrolled_at"`
}

// PlatformCounts are the raw counters behind the admin dashboard.
type PlatformCounts struct {
	TotalUsers           int64 `db:"total_users"`
	TotalCourses         int64 `db:"total_courses"`
	TotalEnrollments     int64 `db:"total_enrollments"`
	CompletedEnrollments int64 `db:"completed_enrollments"`
	TotalSubmissions     int64 `db:"total_submissions"`
	ActiveUsers          int64 `db:"active_users"`
	UsersLastMonth       int64 `db:"users_last_month"`
	UsersPreviousMonth   int64 `db:"users_previous_month"`
}
