package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Challenge struct {
	ID           string     `db:"id" json:"id"`
	CourseID     string     `db:"course_id" json:"course_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Requirements StringList `db:"requirements" json:"requirements"`
	XPReward     int64      `db:"xp_reward" json:"xp_reward"`
	DueAt        int64      `db:"due_at" json:"due_at"`
	Rubric       Rubric     `db:"rubric" json:"rubric,omitempty"`
	CreatedAt    int64      `db:"created_at" json:"created_at"`
}

// ExpiredAt reports whether the challenge no longer accepts submissions at t.
func (c *Challenge) ExpiredAt(t time.Time) bool {
	return c.DueAt <= t.Unix()
}

type NewChallenge struct {
	CourseID     string   `json:"course_id" validate:"required"`
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements" validate:"omitempty,dive,required"`
	XPReward     int64    `json:"xp_reward" validate:"gte=0"`
	DueAt        int64    `json:"due_at" validate:"required"`
	Rubric       Rubric   `json:"rubric,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
}

func (nc *NewChallenge) Validate() error {
	nc.CourseID = cleanString(nc.CourseID)
	nc.Title = cleanString(nc.Title)
	nc.Description = cleanString(nc.Description)
	return validate.Struct(nc)
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(src interface{}) error {
	data, err := textBytes(src)
	if err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = out
	return nil
}

// Rubric maps a grading criterion to its weight. Weights are expected to
// add up to 100 but nothing enforces it.
type Rubric map[string]int

func (r Rubric) Total() int {
	var total int
	for _, w := range r {
		total += w
	}
	return total
}

func (r Rubric) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]int(r))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *Rubric) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	data, err := textBytes(src)
	if err != nil {
		return fmt.Errorf("rubric: %w", err)
	}
	if len(data) == 0 {
		*r = nil
		return nil
	}
	out := make(map[string]int)
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("rubric: %w", err)
	}
	*r = out
	return nil
}

func textBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
