package flags

import (
	"errors"
	"fmt"
	"strings"
)

const (
	choicePlaceholderTemplate = "`<%s>`"
	choiceUsageTemplate       = "%s %s"
	choiceSeparator           = "|"
	choiceListSeparator       = ", "
	unsupportedChoiceTemplate = "%w %q (expected one of: %s)"
	unsupportedChoiceMessage  = "unsupported value"
	choiceValueTypeName       = "string"
)

// ErrUnsupportedChoice is returned by ChoiceValue.Set for a value outside the allowed set.
var ErrUnsupportedChoice = errors.New(unsupportedChoiceMessage)

// ChoiceValue is a pflag.Value restricted to a fixed, case-insensitive set of choices.
// Values are stored lower-cased.
type ChoiceValue struct {
	value   string
	choices []string
}

// NewChoiceValue constructs a ChoiceValue holding defaultChoice. Blank and duplicate choices are dropped.
func NewChoiceValue(defaultChoice string, choices []string) *ChoiceValue {
	return &ChoiceValue{
		value:   normalizeChoice(defaultChoice),
		choices: distinctChoices(choices),
	}
}

// String returns the current value.
func (choiceValue *ChoiceValue) String() string {
	if choiceValue == nil {
		return ""
	}
	return choiceValue.value
}

// Set accepts raw when it names one of the choices.
func (choiceValue *ChoiceValue) Set(raw string) error {
	normalized := normalizeChoice(raw)
	for _, choice := range choiceValue.choices {
		if choice == normalized {
			choiceValue.value = normalized
			return nil
		}
	}
	return fmt.Errorf(unsupportedChoiceTemplate, ErrUnsupportedChoice, raw, strings.Join(choiceValue.choices, choiceListSeparator))
}

// Type names the value kind shown in help output.
func (choiceValue *ChoiceValue) Type() string {
	return choiceValueTypeName
}

// Usage renders description prefixed by the choices with the current value capitalized.
func (choiceValue *ChoiceValue) Usage(description string) string {
	return FormatChoiceUsage(choiceValue.value, choiceValue.choices, description)
}

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
// pflag shows the back-quoted placeholder as the flag's argument name.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := normalizeChoice(defaultChoice)
	displayed := make([]string, 0, len(choices))
	for _, choice := range distinctChoices(choices) {
		if choice == normalizedDefault {
			choice = strings.ToUpper(choice)
		}
		displayed = append(displayed, choice)
	}

	placeholder := fmt.Sprintf(choicePlaceholderTemplate, strings.Join(displayed, choiceSeparator))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return placeholder
	}
	return fmt.Sprintf(choiceUsageTemplate, placeholder, trimmedDescription)
}

func distinctChoices(choices []string) []string {
	distinct := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		normalized := normalizeChoice(choice)
		if len(normalized) == 0 {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		distinct = append(distinct, normalized)
	}
	return distinct
}

func normalizeChoice(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
