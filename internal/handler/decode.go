package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/paging"
)

const maxBodySize = 1 << 20

// labels are the display names of request fields in validation messages.
var labels = map[string]string{
	"code":                    "Coupon Code",
	"discountType":            "Discount Type",
	"discountValue":           "Discount Value",
	"maxDiscount":             "Maximum Discount",
	"minPurchase":             "Minimum Purchase",
	"installmentEnabled":      "Installment Enabled",
	"installmentCount":        "Installment Count",
	"installmentIntervalDays": "Installment Interval",
	"startDate":               "Start Date",
	"endDate":                 "End Date",
	"usageLimit":              "Usage Limit",
	"usagePerUser":            "Per User Limit",
	"applicableTo":            "Applicable To",
	"isActive":                "Active Status",
}

func label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(v reflect.Value) any {
		d, ok := v.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})
	return v
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.Validation(typeErr.Field, fmt.Sprintf("%s has an invalid type", label(typeErr.Field)))
		}
		return apperr.Validation("", "Invalid request body")
	}
	return h.check(dst)
}

// check runs struct validation and converts failures to a ValidationError
// keyed by JSON field paths.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}
	out := &apperr.ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, apperr.FieldError{
			Path:    fieldPath(fe),
			Message: validationMessage(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	l := label(fe.Field())
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64:
		numeric = true
	}
	switch fe.Tag() {
	case "required":
		return l + " is required"
	case "min", "gte":
		if numeric {
			return fmt.Sprintf("%s must be at least %s", l, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", l, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", l, fe.Param())
	case "max", "lte":
		if numeric {
			return fmt.Sprintf("%s cannot exceed %s", l, fe.Param())
		}
		return fmt.Sprintf("%s cannot exceed %s characters", l, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", l, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", l, strings.Join(strings.Fields(fe.Param()), ", "))
	case "alphanum":
		return l + " must contain only letters and numbers"
	case "url":
		return l + " must be a valid URL"
	default:
		return l + " is invalid"
	}
}

// pageParams reads page and limit query parameters. Invalid values fall
// back to the defaults.
func pageParams(r *http.Request) paging.Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return paging.Params{Page: page, Limit: limit}.Normalize()
}

// boolQuery parses an optional boolean query parameter.
func boolQuery(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation(name, name+" must be true or false")
	}
	return &v, nil
}

// intPath parses a numeric path value.
func intPath(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil || v < 1 {
		return 0, apperr.Validation(name, name+" must be a positive number")
	}
	return v, nil
}
