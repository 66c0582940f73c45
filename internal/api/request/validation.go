package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Provider IDs are lowercase slugs, same shape the registry uses.
var providerIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

func init() {
	validate.RegisterValidation("provider_id", func(fl validator.FieldLevel) bool {
		return providerIDRegex.MatchString(fl.Field().String())
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}

// RequireProvider validates a provider path segment.
func RequireProvider(s string) (string, error) {
	if !providerIDRegex.MatchString(s) {
		return "", fmt.Errorf("invalid provider ID")
	}
	return s, nil
}
