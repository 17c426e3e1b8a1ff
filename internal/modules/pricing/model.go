package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord tracks one variant's price for one shop. Exactly one record
// exists per (shop, variant) pair; this module is its only writer.
type PriceRecord struct {
	ShopID       string
	VariantID    int64
	ProductID    int64
	ProductTitle string
	CurrentPrice decimal.Decimal
	PriceHistory PriceHistory
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PriceHistory is the variant's undo stack: the prices it held before the
// current one, oldest first. Adjustments append the pre-adjustment price and
// undo truncates from the tail; there is no redo. Prices edited directly in
// the merchant's store are overwritten at sync time without an append, so
// only changes made through this tool are undoable.
type PriceHistory []decimal.Decimal

// Last returns the most recent prior price, if any.
func (h PriceHistory) Last() (decimal.Decimal, bool) {
	if len(h) == 0 {
		return decimal.Decimal{}, false
	}
	return h[len(h)-1], true
}

// UndoPlan resolves a requested step count against the stack: the number of
// entries that will actually be popped (clamped to the stack depth) and the
// price that was current that many steps ago. stepsToUndo is zero when the
// stack is empty.
func (h PriceHistory) UndoPlan(steps int) (target decimal.Decimal, stepsToUndo int) {
	stepsToUndo = steps
	if len(h) < stepsToUndo {
		stepsToUndo = len(h)
	}
	if stepsToUndo == 0 {
		return decimal.Decimal{}, 0
	}
	return h[len(h)-stepsToUndo], stepsToUndo
}

// DropLast pops the last n entries. The popped entries are discarded permanently.
func (h PriceHistory) DropLast(n int) PriceHistory {
	if n >= len(h) {
		return PriceHistory{}
	}
	return h[:len(h)-n]
}

// Strings renders the stack for API responses, oldest first.
func (h PriceHistory) Strings() []string {
	out := make([]string, len(h))
	for i, p := range h {
		out[i] = p.String()
	}
	return out
}

// Value stores the history as a JSON array of decimal strings (JSONB column).
func (h PriceHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// Scan loads the history from its JSONB representation.
func (h *PriceHistory) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*h = PriceHistory{}
		return nil
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("cannot scan %T into PriceHistory", src)
	}
}
