package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func cleanString(s string) string {
	return strings.TrimSpace(s)
}
