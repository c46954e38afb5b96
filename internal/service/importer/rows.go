package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/pricewise/catalog-ingest/internal/domain/model"
)

// ExpectedHeader is the exact schema line every source file must start with.
const ExpectedHeader = "name;price;expiration"

// headerPrefixLimit bounds how much of the file the header check reads.
const headerPrefixLimit = 4096

var (
	// ErrMissingFields is returned when a row lacks one of the three
	// mandatory fields.
	ErrMissingFields = errors.New("corrupted data: missing mandatory fields (name, price, or expiration)")
	// ErrMissingCurrencySymbol is returned when a price field starts with a
	// digit instead of a currency marker.
	ErrMissingCurrencySymbol = errors.New("corrupted data: missing currency symbol")
	// ErrEmptyFile is returned when the staged file has no header line.
	ErrEmptyFile = errors.New("invalid header or empty file")
)

// validateHeader confirms the file's first line matches the expected schema.
// Only a bounded prefix is read; a byte-order mark is tolerated.
func validateHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, headerPrefixLimit)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read header: %w", err)
	}
	if n == 0 {
		return ErrEmptyFile
	}

	prefix := string(buf[:n])
	line := prefix
	if idx := strings.IndexByte(prefix, '\n'); idx >= 0 {
		line = prefix[:idx]
	}

	line = strings.TrimPrefix(strings.TrimSpace(line), "\ufeff")
	if line == "" {
		return ErrEmptyFile
	}
	if line != ExpectedHeader {
		return fmt.Errorf("invalid header: expected %q, got %q", ExpectedHeader, line)
	}
	return nil
}

// expirationLayouts are tried in order when parsing the expiration field.
// An unparseable date is treated as absent rather than corrupt.
var expirationLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

func parseExpiration(s string) *time.Time {
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseRow turns one delimited row into a candidate record or a classified
// error. Any error here is fatal for the whole run: the file is treated as
// corrupt, not the row as skippable.
func parseRow(fields []string, currencySymbol string) (model.ProductCandidate, error) {
	var cand model.ProductCandidate

	if len(fields) < 3 {
		return cand, ErrMissingFields
	}
	name := strings.TrimSpace(fields[0])
	price := strings.TrimSpace(fields[1])
	expiration := strings.TrimSpace(fields[2])
	if name == "" || price == "" || expiration == "" {
		return cand, ErrMissingFields
	}

	if !strings.HasPrefix(price, currencySymbol) {
		first := []rune(price)[0]
		if unicode.IsDigit(first) {
			return cand, ErrMissingCurrencySymbol
		}
		return cand, fmt.Errorf("currency not supported: '%c'", first)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(price, currencySymbol)))
	if err != nil {
		return cand, fmt.Errorf("corrupted data: invalid price %q", price)
	}

	cand.Name = name
	cand.BaseAmount = amount
	cand.Expiration = parseExpiration(expiration)
	return cand, nil
}
