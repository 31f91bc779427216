package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"skin-casino/internal/game/coinflip"
	"skin-casino/internal/game/crash"
	"skin-casino/internal/game/roulette"
	"skin-casino/internal/service"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type createUserRequest struct {
	UserID   string `json:"userId" validate:"required,max=64"`
	Username string `json:"username" validate:"required,max=255"`
}

type adjustmentRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason" validate:"required,max=255"`
}

type betRequest struct {
	UserID     string           `json:"userId" validate:"required,max=64"`
	BetAmount  decimal.Decimal  `json:"betAmount"`
	Choice     string           `json:"choice,omitempty" validate:"max=16"`
	BetType    string           `json:"betType,omitempty" validate:"max=16"`
	CashOutAt  *decimal.Decimal `json:"cashOutAt,omitempty"`
	ClientSeed string           `json:"clientSeed,omitempty" validate:"max=128"`
}

// params collects the game specific fields that were sent.
func (b *betRequest) params() map[string]any {
	params := make(map[string]any)
	if b.Choice != "" {
		params[coinflip.ParamChoice] = b.Choice
	}
	if b.BetType != "" {
		params[roulette.ParamBetType] = b.BetType
	}
	if b.CashOutAt != nil {
		params[crash.ParamCashOutAt] = *b.CashOutAt
	}
	return params
}

type crashBetRequest struct {
	UserID     string          `json:"userId" validate:"required,max=64"`
	BetAmount  decimal.Decimal `json:"betAmount"`
	ClientSeed string          `json:"clientSeed,omitempty" validate:"max=128"`
}

type cashOutRequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

// decode reads a JSON body into dst and validates it. Failures wrap
// service.ErrInvalidInput so they map to 400.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", service.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON: %v", service.ErrInvalidInput, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", service.ErrInvalidInput, describe(err))
	}
	return nil
}

func describe(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f.Tag() {
		case "required":
			msgs = append(msgs, f.Field()+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", f.Field(), f.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", f.Field(), f.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// queryLimit parses ?limit=N. A missing value yields 0, which the ranking
// service replaces with its default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", service.ErrInvalidInput)
	}
	return n, nil
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}
