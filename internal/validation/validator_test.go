package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testReading struct {
	N    *float64 `json:"N" validate:"required,gte=0"`
	Crop string   `json:"crop" validate:"required,notblank,max=10"`
}

func ptr(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		input      testReading
		wantFields []string
		wantMsg    string
	}{
		{name: "valid", input: testReading{N: ptr(12), Crop: "Wheat"}},
		{name: "zero is present", input: testReading{N: ptr(0), Crop: "Wheat"}},
		{name: "missing N", input: testReading{Crop: "Wheat"}, wantFields: []string{"N"}, wantMsg: "N is required"},
		{name: "negative N", input: testReading{N: ptr(-1), Crop: "Wheat"}, wantFields: []string{"N"}, wantMsg: "N must be greater than or equal to 0"},
		{name: "blank crop", input: testReading{N: ptr(1), Crop: "   "}, wantFields: []string{"crop"}, wantMsg: "crop must not be blank"},
		{name: "long crop", input: testReading{N: ptr(1), Crop: strings.Repeat("x", 11)}, wantFields: []string{"crop"}, wantMsg: "crop must be at most 10 characters"},
		{name: "everything missing", input: testReading{}, wantFields: []string{"N", "crop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.input)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)

			var verr *Error
			require.True(t, errors.As(err, &verr))

			fields := make([]string, len(verr.Fields))
			for i, f := range verr.Fields {
				fields[i] = f.Field
			}
			require.Equal(t, tt.wantFields, fields)

			if tt.wantMsg != "" {
				require.Equal(t, tt.wantMsg, verr.Error())
			}
		})
	}
}

func TestNewError(t *testing.T) {
	err := NewError("K", "type", "K must be a number")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "K must be a number", err.Error())
}
