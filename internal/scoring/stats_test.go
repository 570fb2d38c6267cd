package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionRate(t *testing.T) {
	testCases := []struct {
		name      string
		total     int64
		completed int64
		expected  int64
	}{
		{name: "no enrollments", total: 0, completed: 0, expected: 0},
		{name: "dashboard sample", total: 200, completed: 136, expected: 68},
		{name: "everything completed", total: 7, completed: 7, expected: 100},
		{name: "rounds half up", total: 8, completed: 1, expected: 13},
		{name: "rounds down below half", total: 3, completed: 1, expected: 33},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CompletionRate(tc.total, tc.completed))
		})
	}
}

func TestMonthlyGrowth(t *testing.T) {
	testCases := []struct {
		name     string
		last     int64
		previous int64
		expected int64
	}{
		{name: "first month with sign-ups", last: 50, previous: 0, expected: 100},
		{name: "no sign-ups at all", last: 0, previous: 0, expected: 0},
		{name: "growth", last: 60, previous: 40, expected: 50},
		{name: "flat", last: 40, previous: 40, expected: 0},
		{name: "decline", last: 1, previous: 3, expected: -67},
		{name: "decline on a half rounds up", last: 99, previous: 200, expected: -50},
		{name: "total churn", last: 0, previous: 10, expected: -100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MonthlyGrowth(tc.last, tc.previous))
		})
	}
}
