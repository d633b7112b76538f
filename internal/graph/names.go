package graph

import (
	"regexp"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier checks a label, type, property or graph name before it
// is spliced into a statement. Values always travel as parameters; names
// cannot, so they are restricted to a safe alphabet.
func ValidateIdentifier(what, name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.ValidationErrorf("invalid %s name %q: must match %s", what, name, identifierPattern.String())
	}
	return nil
}

// ValidateProperties checks every key of a property map
func ValidateProperties(props map[string]any) error {
	for k := range props {
		if err := ValidateIdentifier("property", k); err != nil {
			return err
		}
	}
	return nil
}

// CheckLanguage rejects a language tag the backend does not speak. It runs
// before any connection is touched.
func CheckLanguage(kind model.BackendKind, tag model.QueryLanguage) error {
	if model.ParseQueryLanguage(string(tag)) != kind.QueryLanguage() {
		return errors.QueryLanguageNotSupported(string(kind), string(tag))
	}
	return nil
}
