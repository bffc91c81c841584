package billing

import (
	"errors"
	"fmt"

	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
)

// PriceNotFoundError reports a missing price list entry for a resource.
// It aborts the enclosing invoice transaction unless the caller asked
// for fallback pricing.
type PriceNotFoundError struct {
	Kind ResourceKind
	Key  string
}

func (e *PriceNotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no price configured for %s", e.Kind)
	}
	return fmt.Sprintf("no price configured for %s %q", e.Kind, e.Key)
}

// IsPriceNotFound reports whether err is (or wraps) a PriceNotFoundError
func IsPriceNotFound(err error) bool {
	var target *PriceNotFoundError
	return errors.As(err, &target)
}

// CurrencyMismatchError reports components priced in different currencies
// within one invoice. This is fatal for the invoice close.
type CurrencyMismatchError struct {
	Want valueobject.Currency
	Got  valueobject.Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch within invoice: %s vs %s", e.Want, e.Got)
}
