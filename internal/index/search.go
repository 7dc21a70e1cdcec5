package index

import (
	"fmt"
	"strings"

	"github.com/starford/lore/internal/apperr"
)

// MaxSearchResults caps the number of hits returned by a search.
const MaxSearchResults = 50

const (
	highlightOpen  = "<mark>"
	highlightClose = "</mark>"
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxSearchResults {
		return MaxSearchResults
	}
	return limit
}

// syntaxMarkers are fragments of the error messages SQLite reports when a
// MATCH expression cannot be parsed.
var syntaxMarkers = []string{
	"fts5: syntax error",
	"unterminated string",
	"fts5: parser stack overflow",
	"unknown special query",
	"no such column",
}

// matchError classifies an error raised while evaluating a MATCH query.
func matchError(err error) error {
	msg := err.Error()
	for _, m := range syntaxMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %s", apperr.ErrSearchSyntax, msg)
		}
	}
	return fmt.Errorf("index: search: %w", err)
}
