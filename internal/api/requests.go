package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/SyfSchydea/osrs-flip/internal/flipper"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// configRequest is the POST /api/config body. Absent fields are unchanged.
type configRequest struct {
	Cash        *string `json:"cash" validate:"omitempty,max=32"`
	Period      *string `json:"period" validate:"omitempty,max=32"`
	PricePeriod *string `json:"price_period" validate:"omitempty,oneof=latest 5m 10m 30m 1h 6h 24h"`
	AutoRefresh *bool   `json:"auto_refresh"`
	Visible     *bool   `json:"visible"`
}

func (r configRequest) validate() error {
	return firstFieldError(validate.Struct(r))
}

func (r configRequest) patch() flipper.Patch {
	return flipper.Patch{
		Cash:        r.Cash,
		Period:      r.Period,
		PricePeriod: r.PricePeriod,
		AutoRefresh: r.AutoRefresh,
		Visible:     r.Visible,
	}
}

type historyQuery struct {
	Limit int `json:"limit" default:"50" validate:"gte=1,lte=500"`
}

func parseHistoryQuery(r *http.Request) (historyQuery, error) {
	var q historyQuery
	if err := defaults.Set(&q); err != nil {
		return q, err
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("limit: %w", err)
		}
		q.Limit = n
	}
	return q, firstFieldError(validate.Struct(q))
}

func firstFieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%s: must satisfy %s", fe.Field(), fe.Tag())
	}
	return err
}
