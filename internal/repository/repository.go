// Package repository wraps crud stores behind typed, per-entity APIs.
package repository

import (
	"errors"
	"fmt"

	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
)

// Page bounds a list query. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// translate maps store errors onto the model error taxonomy, keeping the
// original error in the chain.
func translate(err error, entity string, key any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, crud.ErrNoRows):
		return model.NotFound(entity, key)
	case errors.Is(err, crud.ErrUniqueViolation):
		return fmt.Errorf("%s: %w: %w", entity, model.ErrConflict, err)
	}
	return err
}

// affected turns a zero row count from an update or delete into NotFound.
func affected(n int64, err error, entity string, key any) error {
	if err != nil {
		return translate(err, entity, key)
	}
	if n == 0 {
		return model.NotFound(entity, key)
	}
	return nil
}

func byID(id int64) crud.Conditions {
	return crud.Conditions{crud.Eq("id", id)}
}

// qualify renders "alias.col AS col" for each column so joined result sets
// keep the parent's unprefixed names.
func qualify(alias string, cols ...string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c + " AS " + c
	}
	return out
}
