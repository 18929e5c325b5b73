package numbers

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("numbers: not found")
	ErrDuplicate     = errors.New("numbers: number already exists")
	ErrInvalidFormat = errors.New("numbers: number must be + followed by 10 to 15 digits")
	ErrInvalidStatus = errors.New("numbers: invalid status")
)

// Repository is the number store.
//
// ListActive returns active numbers in dispatch order (oldest first).
// Lookups that find nothing return ErrNotFound.
type Repository interface {
	Create(ctx context.Context, n PhoneNumber) (PhoneNumber, error)
	FindByID(ctx context.Context, id string) (PhoneNumber, error)
	FindByNumber(ctx context.Context, number string) (PhoneNumber, error)
	ListActive(ctx context.Context) ([]PhoneNumber, error)
	List(ctx context.Context, limit int) ([]PhoneNumber, error)
	UpdateStatus(ctx context.Context, id string, status Status) (PhoneNumber, error)
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (Counts, error)
}
