package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cinelog/pkg/domain"
)

const (
	defaultPageLimit    = 20
	maxPageLimit        = 100
	maxUserReviewsLimit = 50
	defaultSimilarLimit = 10
	maxSimilarLimit     = 50
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// check validates in and reports the first failing field as a validation
// error with a readable message.
func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalid("invalid input")
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid("%s is required", field)
	case "email":
		return invalid("%s must be a valid email", field)
	case "oneof":
		return invalid("%s must be one of: %s", field, fe.Param())
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return invalid("%s must be %s %s characters", field, bound, fe.Param())
		}
		return invalid("%s must be %s %s", field, bound, fe.Param())
	default:
		return invalid("%s is invalid", field)
	}
}

// pageOf clamps raw paging input into a usable window.
func pageOf(number, limit, maxLimit int) domain.Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return domain.Page{Number: number, Limit: limit}
}

// Pagination describes one page of a list response. The server renames
// Total to total<Kind>.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	Total       int64
	HasNext     bool
	HasPrev     bool
}

func newPagination(page domain.Page, total int64) Pagination {
	pages := page.TotalPages(total)
	return Pagination{
		CurrentPage: page.Number,
		TotalPages:  pages,
		Total:       total,
		HasNext:     page.Number < pages,
		HasPrev:     page.Number > 1,
	}
}
