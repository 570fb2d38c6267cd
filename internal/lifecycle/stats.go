package lifecycle

import (
	"context"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
	"github.com/shrimpsizemoose/mentorloop/internal/scoring"
)

type AdminStats struct {
	TotalUsers       int64 `json:"total_users"`
	TotalCourses     int64 `json:"total_courses"`
	TotalEnrollments int64 `json:"total_enrollments"`
	TotalSubmissions int64 `json:"total_submissions"`
	ActiveUsers      int64 `json:"active_users"`
	CompletionRate   int64 `json:"completion_rate"`
	MonthlyGrowth    int64 `json:"monthly_growth"`
}

func (e *Engine) AdminStats(ctx context.Context, p models.Principal) (*AdminStats, error) {
	const op = "admin stats"
	if err := requirePrincipal(op, p); err != nil {
		return nil, e.fail(op, err)
	}
	if !p.IsAdmin() {
		return nil, e.fail(op, newError(KindForbidden, op, "admin role required"))
	}

	counts, err := e.store.CountPlatform(ctx, e.now().Unix())
	if err != nil {
		return nil, e.fail(op, storageError(op, err))
	}

	return &AdminStats{
		TotalUsers:       counts.TotalUsers,
		TotalCourses:     counts.TotalCourses,
		TotalEnrollments: counts.TotalEnrollments,
		TotalSubmissions: counts.TotalSubmissions,
		ActiveUsers:      counts.ActiveUsers,
		CompletionRate:   scoring.CompletionRate(counts.TotalEnrollments, counts.CompletedEnrollments),
		MonthlyGrowth:    scoring.MonthlyGrowth(counts.UsersLastMonth, counts.UsersPreviousMonth),
	}, nil
}
