package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart maps barcode to requested quantity. A missing cart is an empty map.
type Cart map[string]int

type CartLine struct {
	Product  Product
	Quantity int
	Subtotal decimal.Decimal
}

type PruneReason string

const (
	PruneNotFound          PruneReason = "not_found"
	PruneInsufficientStock PruneReason = "insufficient_stock"
)

type PrunedLine struct {
	Key       string
	Quantity  int
	Available int
	Reason    PruneReason
}

// ReconciledCart is the valid view of a cart after cross-checking the catalog.
type ReconciledCart struct {
	UserID int64
	Lines  []CartLine
	Pruned []PrunedLine
	Total  decimal.Decimal
	Stale  bool
}

func (c *ReconciledCart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Quantities returns the line items as a key to quantity snapshot.
func (c *ReconciledCart) Quantities() map[string]int {
	out := make(map[string]int, len(c.Lines))
	for _, l := range c.Lines {
		out[l.Product.Barcode] = l.Quantity
	}
	return out
}

type CartOp string

const (
	CartOpAdd    CartOp = "add"
	CartOpSet    CartOp = "set"
	CartOpRemove CartOp = "remove"
	CartOpClear  CartOp = "clear"
	CartOpPrune  CartOp = "prune"
)

// CartChanged is emitted after every successful cart mutation.
type CartChanged struct {
	UserID   int64     `json:"user_id"`
	Key      string    `json:"key,omitempty"`
	Quantity int       `json:"quantity"`
	Op       CartOp    `json:"op"`
	At       time.Time `json:"at"`
}
