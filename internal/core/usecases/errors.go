package usecases

import (
	"errors"

	"github.com/halalway/halalway/internal/core/domain"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
