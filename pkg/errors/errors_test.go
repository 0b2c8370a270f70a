package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageIncludesInternal(t *testing.T) {
	base := stderrors.New("connection refused")
	err := ErrQueueUnavailable.WithInternal(base)

	require.Contains(t, err.Error(), "connection refused")
	require.ErrorIs(t, err, base)

	// The shared sentinel must stay untouched.
	require.Nil(t, ErrQueueUnavailable.Internal)
}

func TestFromErrorPassesThroughAppErrors(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrNotFound)
	require.Equal(t, ErrNotFound, appErr)

	wrapped := FromError(stderrors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, wrapped.Code)
	require.Equal(t, http.StatusInternalServerError, wrapped.StatusCode)
}

func TestWrapKeepsOriginalForLogging(t *testing.T) {
	base := stderrors.New("disk full")
	err := Wrap(base, "could not persist")

	require.Equal(t, "INTERNAL_ERROR", err.Code)
	require.ErrorIs(t, err, base)
	require.Contains(t, err.Error(), "could not persist")
}

func TestNewValidationUsesValidationTaxonomy(t *testing.T) {
	err := NewValidation("title is required")

	require.Equal(t, ErrValidation.Code, err.Code)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "title is required", err.Message)
}
