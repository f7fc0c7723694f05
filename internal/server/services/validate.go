package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/filevault/filevault/internal/common"
	"github.com/google/uuid"
)

const maxNameLength = 100

// validateBatchIDs rejects malformed batches before any transaction starts:
// the id list must be non-empty and every id must parse as a UUID.
func validateBatchIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: empty id list", common.ErrorValidation)
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w: malformed id %q", common.ErrorValidation, id)
		}
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed id %q", common.ErrorValidation, id)
	}
	return nil
}

// validateBaseName checks the rename target: 1-100 characters, no path
// separators. Collision rules are deferred to blob naming, which never uses
// the display name.
func validateBaseName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", common.ErrorValidation, maxNameLength)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: name must not contain path separators", common.ErrorValidation)
	}
	return nil
}
