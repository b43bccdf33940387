package chat

import (
	"errors"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/repository"
)

var (
	// ErrNotFound also covers non-participant access on appointment-keyed
	// lookups; see repository.ErrNotFound.
	ErrNotFound = repository.ErrNotFound

	ErrInvalidID         = errors.New("invalid id format")
	ErrForbidden         = errors.New("unauthorized")
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrEmptySearchTerm   = errors.New("search term is required")
	ErrInvalidPagination = errors.New("page and limit must be positive")
)
