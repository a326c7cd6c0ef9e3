// Package erp reads catalogue and stock data out of a store's ERP.
package erp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Item is one sellable unit as the ERP reports it. Quantity and StoreCode
// are only set on stock rows.
type Item struct {
	ProductCode  string           `db:"product_code" json:"product_code"`
	ProductName  string           `db:"product_name" json:"product_name"`
	CategoryCode string           `db:"category_code" json:"category_code"`
	Sku          string           `db:"sku" json:"sku"`
	Barcode      string           `db:"barcode" json:"barcode"`
	Upc          string           `db:"upc" json:"upc"`
	Price        *decimal.Decimal `db:"price" json:"price"`
	ComparePrice *decimal.Decimal `db:"compare_price" json:"compare_price"`
	Quantity     int              `db:"quantity" json:"quantity"`
	StoreCode    string           `db:"store_code" json:"store_code"`
}

// Identifiers lists the lookup keys in resolution order.
func (i Item) Identifiers() []string {
	var out []string
	for _, v := range []string{i.Sku, i.Barcode, i.Upc} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

type Category struct {
	Code       string `db:"code" json:"code"`
	Name       string `db:"name" json:"name"`
	ParentCode string `db:"parent_code" json:"parent_code"`
}

type Source interface {
	Ping(ctx context.Context) error
	Categories(ctx context.Context) ([]Category, error)
	Items(ctx context.Context) ([]Item, error)
	// Stock returns per-SKU quantities held at one ERP store.
	Stock(ctx context.Context, storeCode string) ([]Item, error)
	Close() error
}

// Error wraps a failed ERP call. Any Error aborts the running job.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("erp %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("erp %s: %v", e.Op, e.Err)
	}
	return "erp " + e.Op + " failed"
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports failures worth retrying.
func (e *Error) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.StatusCode == 0 && e.Err != nil && !errors.Is(e.Err, context.Canceled)
}

func IsTemporary(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Temporary()
}
