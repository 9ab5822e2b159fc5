package services

import (
	"context"
	"errors"

	"github.com/charlesng35/accountd/internal/store"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
)

// storeFailure converts a backend error into a StoreError.
func storeFailure(err error) error {
	return apperrors.ErrStore.WithInternal(err)
}

// lookupFailure maps a missing record to NotFound and everything else to StoreError.
func lookupFailure(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.ErrNotFound.WithInternal(err)
	}
	return storeFailure(err)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
