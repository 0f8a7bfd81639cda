package sentiment

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate  = validator.New()
	lengthTag = "max=" + strconv.Itoa(MaxTextLength)
)

var (
	errTextRequired = &DispatchError{Kind: KindValidationFailed, Detail: "Text is required"}
	errTextTooLong  = &DispatchError{Kind: KindValidationFailed, Detail: "Text must be less than 500 characters"}
)

// Validate checks raw input and returns it trimmed. Emptiness is judged
// after trimming; length is judged on the untrimmed input, in characters.
func Validate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if err := validate.Var(trimmed, "required"); err != nil {
		return "", errTextRequired
	}
	if err := validate.Var(raw, lengthTag); err != nil {
		return "", errTextTooLong
	}
	return trimmed, nil
}
