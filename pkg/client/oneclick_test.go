package client

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSymbol(t *testing.T) {
	symbols := []string{"wNEAR", "USDC.e", "USDC", "DOT"}

	i, ok := matchSymbol(symbols, "usdc")
	require.True(t, ok)
	assert.Equal(t, 2, i)

	i, ok = matchSymbol(symbols, "near")
	require.True(t, ok)
	assert.Equal(t, 0, i)

	_, ok = matchSymbol(symbols, "KSM")
	assert.False(t, ok)
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"4.985", 6, "4985000"},
		{"0.0000001", 6, "0"},
		{"12.3456789", 6, "12345678"},
		{"1", 18, "1000000000000000000"},
		{"250", 0, "250"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := toBaseUnits(tt.in, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}

	_, err := toBaseUnits("abc", 6)
	assert.Error(t, err)
	_, err = toBaseUnits("-1", 6)
	assert.Error(t, err)
	_, err = toBaseUnits("1", 80)
	assert.Error(t, err)
}

func TestAPIError(t *testing.T) {
	cause := errors.New("400 Bad Request")
	respond := func(body string) *http.Response {
		return &http.Response{StatusCode: 400, Body: io.NopCloser(strings.NewReader(body))}
	}

	assert.EqualError(t, apiError(respond(`{"message":"amount too low"}`), cause), "API error (status 400): amount too low")
	assert.EqualError(t, apiError(respond(`plain failure`), cause), "API error (status 400): plain failure")
	assert.Contains(t, apiError(respond(``), cause).Error(), "status: 400")
	assert.Contains(t, apiError(nil, cause).Error(), "400 Bad Request")
}
