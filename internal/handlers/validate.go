package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"branddos/internal/models"
)

// Validation limits for request fields.
const (
	maxEmailLen       = 254
	minPasswordLen    = 8
	maxPasswordLen    = 72 // bcrypt ignores anything longer
	maxDisplayNameLen = 100
	maxBrandNameLen   = 100
	maxDescriptionLen = 2_000
	maxKeywords       = 20
	maxKeywordLen     = 50
	maxIdeaLen        = 4_000
	maxChatMessages   = 100
	maxChatContentLen = 8_000
	maxHeadlineLen    = 120
	maxSubtextLen     = 240
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("tone", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseTone(fl.Field().String())
		return ok
	})
	v.RegisterValidation("chatrole", func(fl validator.FieldLevel) bool {
		return models.ChatRole(fl.Field().String()).Valid()
	})
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateStruct validates s and returns a message for the first failing
// field, or "" when s is valid.
func validateStruct(s any) string {
	err := validate.Struct(s)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		slog.Error("validation setup failed", "error", err)
		return "Invalid request body."
	}
	return validationMessage(verrs[0])
}

// validationMessage turns a validator failure into a short sentence.
func validationMessage(fe validator.FieldError) string {
	field, indexed := fieldLabel(fe.Field())
	param := fe.Param()

	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required."
	case "email":
		return field + " must be a valid email address."
	case "url", "http_url":
		return field + " must be a valid URL."
	case "uuid", "uuid4":
		return field + " is not a valid id."
	case "len":
		return fmt.Sprintf("%s must be %s characters.", field, param)
	case "numeric":
		return field + " must contain only digits."
	case "tone":
		return field + " must be one of: " + toneList() + "."
	case "chatrole":
		return field + " must be user, assistant or system."
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters.", field, param)
		case reflect.Slice:
			if param == "1" {
				return field + " must not be empty."
			}
			return fmt.Sprintf("%s must contain at least %s items.", field, param)
		}
		return fmt.Sprintf("%s must be at least %s.", field, param)
	case "max":
		switch fe.Kind() {
		case reflect.String:
			if indexed {
				return fmt.Sprintf("Each %s entry is too long (max %s characters).", strings.ToLower(field), param)
			}
			return fmt.Sprintf("%s is too long (max %s characters).", field, param)
		case reflect.Slice:
			return fmt.Sprintf("%s has too many items (max %s).", field, param)
		}
		return fmt.Sprintf("%s must be at most %s.", field, param)
	}
	return field + " is invalid."
}

// fieldLabel converts a JSON field name such as "brand_name", "userPrompt"
// or "keywords[3]" into "Brand name", "User prompt" or "Keywords".
func fieldLabel(name string) (string, bool) {
	base, _, indexed := strings.Cut(name, "[")

	var b strings.Builder
	for i, r := range base {
		switch {
		case r == '_':
			b.WriteRune(' ')
		case i > 0 && unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	label := b.String()
	if label == "" {
		return "Field", indexed
	}
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes), indexed
}

func toneList() string {
	names := make([]string, len(models.Tones))
	for i, t := range models.Tones {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
