package repository

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	internalerrors "github.com/customeros/bccstack/internal/errors"
)

var ErrInvalidInput = errors.New("invalid input parameters")

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func duplicateDelivery(key string) error {
	return errors.Wrapf(internalerrors.ErrDuplicateDelivery, "idempotency key %s", key)
}
