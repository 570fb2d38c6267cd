package scoring

// CompletionRate is the share of completed enrollments as a whole percent.
func CompletionRate(totalEnrollments, completedEnrollments int64) int64 {
	if totalEnrollments <= 0 {
		return 0
	}
	return roundRatio(100*completedEnrollments, totalEnrollments)
}

// MonthlyGrowth compares sign-ups of the last 30 days with the 30 days before.
// With no sign-ups in the previous window any new sign-up counts as 100%.
func MonthlyGrowth(usersLastMonth, usersPreviousMonth int64) int64 {
	if usersPreviousMonth > 0 {
		return roundRatio(100*(usersLastMonth-usersPreviousMonth), usersPreviousMonth)
	}
	if usersLastMonth > 0 {
		return 100
	}
	return 0
}

// roundRatio computes floor(num/den + 1/2) exactly for den > 0, so halves
// round up the way dashboard figures always have.
func roundRatio(num, den int64) int64 {
	return floorDiv(2*num+den, 2*den)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
