package domain

import "errors"

var (
	ErrQuantityCeilingExceeded = errors.New("quantity ceiling exceeded")
	ErrItemNotInCart           = errors.New("item not in cart")
	ErrProductNotFound         = errors.New("product not found")
	ErrOutOfStock              = errors.New("product out of stock")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrEmptyCartAtCommit       = errors.New("cart became empty before commit")
	ErrCheckoutInProgress      = errors.New("checkout already in progress")
	ErrNoActiveCheckout        = errors.New("no active checkout")
	ErrOnlinePaymentDisabled   = errors.New("online payment is disabled")
	ErrBusy                    = errors.New("previous action still in progress")
	ErrOrderNotFound           = errors.New("order not found")
	ErrDuplicateCheckout       = errors.New("order for checkout already exists")

	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrCatalogUnavailable    = errors.New("catalog unavailable")
	ErrInternalInconsistency = errors.New("internal inconsistency")
)

// ValidationError rejects user input for the current step.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindDomainConstraint
	KindStoreUnavailable
	KindCatalogUnavailable
	KindInternalInconsistency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDomainConstraint:
		return "domain_constraint"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindCatalogUnavailable:
		return "catalog_unavailable"
	case KindInternalInconsistency:
		return "internal_inconsistency"
	}
	return "unknown"
}

var constraintErrors = []error{
	ErrQuantityCeilingExceeded,
	ErrItemNotInCart,
	ErrProductNotFound,
	ErrOutOfStock,
	ErrEmptyCart,
	ErrEmptyCartAtCommit,
	ErrCheckoutInProgress,
	ErrNoActiveCheckout,
	ErrOnlinePaymentDisabled,
	ErrBusy,
	ErrOrderNotFound,
	ErrDuplicateCheckout,
}

// KindOf classifies an error chain. Infrastructure kinds take precedence
// because they are wrapped around lower-level causes.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, ErrInternalInconsistency):
		return KindInternalInconsistency
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrCatalogUnavailable):
		return KindCatalogUnavailable
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}

	for _, target := range constraintErrors {
		if errors.Is(err, target) {
			return KindDomainConstraint
		}
	}
	return KindUnknown
}
