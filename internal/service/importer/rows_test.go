package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateHeader(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "valid header",
			content: "name;price;expiration\nWidget;$1.00;2025-01-01\n",
		},
		{
			name:    "valid header no trailing rows",
			content: "name;price;expiration",
		},
		{
			name:    "header with BOM",
			content: "\ufeffname;price;expiration\n",
		},
		{
			name:    "header with carriage return",
			content: "name;price;expiration\r\nWidget;$1.00;2025-01-01\r\n",
		},
		{
			name:    "empty file",
			content: "",
			wantErr: "invalid header or empty file",
		},
		{
			name:    "whitespace only",
			content: "   \n",
			wantErr: "invalid header or empty file",
		},
		{
			name:    "wrong column order",
			content: "price;name;expiration\n",
			wantErr: `invalid header: expected "name;price;expiration", got "price;name;expiration"`,
		},
		{
			name:    "missing column",
			content: "name;price\n",
			wantErr: `invalid header: expected "name;price;expiration", got "name;price"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHeader(writeTempFile(t, tt.content))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestParseRowValid(t *testing.T) {
	cand, err := parseRow([]string{"Wireless Mouse", "$19.99", "2025-06-30"}, "$")
	require.NoError(t, err)

	assert.Equal(t, "Wireless Mouse", cand.Name)
	assert.Equal(t, "19.99", cand.BaseAmount.String())
	require.NotNil(t, cand.Expiration)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), *cand.Expiration)
}

func TestParseRowTrimsWhitespace(t *testing.T) {
	cand, err := parseRow([]string{"  Widget  ", " $5.50 ", " 2025-01-01 "}, "$")
	require.NoError(t, err)

	assert.Equal(t, "Widget", cand.Name)
	assert.Equal(t, "5.5", cand.BaseAmount.String())
}

func TestParseRowUnparseableExpirationIsNil(t *testing.T) {
	cand, err := parseRow([]string{"Widget", "$5.50", "not-a-date"}, "$")
	require.NoError(t, err)
	assert.Nil(t, cand.Expiration)
}

func TestParseRowErrors(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		wantErr string
	}{
		{
			name:    "too few fields",
			fields:  []string{"Widget", "$5.50"},
			wantErr: "corrupted data: missing mandatory fields (name, price, or expiration)",
		},
		{
			name:    "empty name",
			fields:  []string{"", "$5.50", "2025-01-01"},
			wantErr: "corrupted data: missing mandatory fields (name, price, or expiration)",
		},
		{
			name:    "empty price",
			fields:  []string{"Widget", "  ", "2025-01-01"},
			wantErr: "corrupted data: missing mandatory fields (name, price, or expiration)",
		},
		{
			name:    "empty expiration",
			fields:  []string{"Widget", "$5.50", ""},
			wantErr: "corrupted data: missing mandatory fields (name, price, or expiration)",
		},
		{
			name:    "bare number lacks symbol",
			fields:  []string{"Widget", "5.50", "2025-01-01"},
			wantErr: "corrupted data: missing currency symbol",
		},
		{
			name:    "foreign currency symbol",
			fields:  []string{"Widget", "€5.50", "2025-01-01"},
			wantErr: "currency not supported: '€'",
		},
		{
			name:    "pound symbol",
			fields:  []string{"Widget", "£5.50", "2025-01-01"},
			wantErr: "currency not supported: '£'",
		},
		{
			name:    "garbage after symbol",
			fields:  []string{"Widget", "$abc", "2025-01-01"},
			wantErr: `corrupted data: invalid price "$abc"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRow(tt.fields, "$")
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestParseRowExtraFieldsIgnored(t *testing.T) {
	cand, err := parseRow([]string{"Widget", "$5.50", "2025-01-01", "extra"}, "$")
	require.NoError(t, err)
	assert.Equal(t, "Widget", cand.Name)
}
