package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON payload into dst and applies its validation tags.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("unable to parse body")
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := jsonName(e)
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// jsonName converts the Go field name to the snake_case key clients send.
func jsonName(e validator.FieldError) string {
	var b strings.Builder
	for i, r := range e.Field() {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LoginRequest is the payload for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TrackRequest is the payload for POST /v1/activities.
type TrackRequest struct {
	ActivityType string  `json:"activity_type" validate:"required,max=100"`
	Emoji        string  `json:"emoji" validate:"max=16"`
	Value        *string `json:"value" validate:"omitempty,max=500"`
}

// DefinitionRequest is the payload for POST /v1/definitions.
type DefinitionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Emoji       string `json:"emoji" validate:"required,max=16"`
	Description string `json:"description" validate:"max=500"`
	ValueKind   string `json:"value_kind" validate:"required,oneof=click number text duration"`
}

// ChatRequest is the payload for POST /v1/chats.
type ChatRequest struct {
	Message        string `json:"message" validate:"required"`
	IncludeContext bool   `json:"include_context"`
}

// APIKeyRequest is the payload for PUT /v1/assistant/key.
type APIKeyRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

// NoteRequest is the payload for note create and update.
type NoteRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content"`
}
