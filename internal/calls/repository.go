package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("calls: not found")
	ErrDuplicateCallID   = errors.New("calls: provider call id already recorded")
	ErrIllegalTransition = errors.New("calls: illegal status transition")
	// ErrStaleStatus means the record is no longer in the expected status.
	ErrStaleStatus = errors.New("calls: status changed concurrently")
)

// ListFilter narrows List. Zero value lists the latest 100 calls.
type ListFilter struct {
	Status CallStatus
	Limit  int
}

// Repository is the call store.
//
// UpdateStatus is a compare-and-set: the row is written only while it is still in
// status from, and only if from -> u.Status is a legal transition.
type Repository interface {
	Create(ctx context.Context, c Call) (Call, error)
	Get(ctx context.Context, id string) (Call, error)
	FindByProviderCallID(ctx context.Context, providerCallID string) (Call, error)
	UpdateStatus(ctx context.Context, id string, from CallStatus, u StatusUpdate) (Call, error)
	ListInProgress(ctx context.Context) ([]Call, error)
	List(ctx context.Context, f ListFilter) ([]Call, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

func checkTransition(from CallStatus, u StatusUpdate) error {
	if !CanTransition(from, u.Status) {
		return ErrIllegalTransition
	}
	return nil
}
