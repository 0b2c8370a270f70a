package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Title   string `json:"title" validate:"required,max=10"`
	Count   int    `json:"count" validate:"min=1"`
	Skipped string `json:"-"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&samplePayload{})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "title", failures[0].Field)
	require.Equal(t, "required", failures[0].Tag)
	require.Equal(t, "count", failures[1].Field)
	require.Equal(t, "min", failures[1].Tag)
	require.Equal(t, "1", failures[1].Param)
}

func TestValidateStructPassesValidPayload(t *testing.T) {
	require.NoError(t, ValidateStruct(&samplePayload{Title: "ok", Count: 2}))
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "title", Tag: "required"},
		{Field: "count", Tag: "min", Param: "1"},
	}
	msg := errs.Error()
	require.Contains(t, msg, "title failed on required")
	require.Contains(t, msg, "count failed on min=1")

	require.Equal(t, "validation failed", ValidationErrors{}.Error())
}
