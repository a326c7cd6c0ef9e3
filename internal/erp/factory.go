package erp

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/secret"
)

// Factory builds a Source for an ErpConnection, unsealing its credentials
// only for the lifetime of the source.
type Factory struct {
	cipher     *secret.Cipher
	httpClient *http.Client
}

func NewFactory(cipher *secret.Cipher, timeout time.Duration) *Factory {
	return &Factory{cipher: cipher, httpClient: &http.Client{Timeout: timeout}}
}

func (f *Factory) Open(conn *model.ErpConnection) (Source, error) {
	switch {
	case conn.UsesAPI():
		return f.openAPI(conn)
	case conn.UsesDatabase():
		return f.openSQL(conn)
	}
	return nil, fmt.Errorf("erp connection %d has no usable driver", conn.ID)
}

func (f *Factory) openAPI(conn *model.ErpConnection) (Source, error) {
	key, err := f.cipher.Open(conn.APIKey)
	if err != nil {
		return nil, fmt.Errorf("open erp api key: %w", err)
	}
	sec, err := f.cipher.Open(conn.APISecret)
	if err != nil {
		return nil, fmt.Errorf("open erp api secret: %w", err)
	}
	base := ""
	if conn.APIURL != nil {
		base = *conn.APIURL
	}
	return NewAPISource(APIConfig{
		BaseURL:          base,
		APIKey:           key,
		APISecret:        sec,
		PriceList:        conn.Setting("price_list", "Standard Selling"),
		ComparePriceList: conn.Setting("compare_price_list", ""),
		BarcodeField:     conn.Setting("barcode_field", "barcode"),
		UpcField:         conn.Setting("upc_field", "upc"),
	}, f.httpClient)
}

// openSQL serves db2 connections through the reporting replica named in the
// connection settings.
func (f *Factory) openSQL(conn *model.ErpConnection) (Source, error) {
	password, err := f.cipher.Open(conn.DBPassword)
	if err != nil {
		return nil, fmt.Errorf("open erp db password: %w", err)
	}
	return OpenSQLSource(SQLConfig{
		Dialect:         conn.Setting("sql_dialect", DialectMySQL),
		Host:            deref(conn.DBHost),
		Port:            deref(conn.DBPort),
		Database:        deref(conn.DBDatabase),
		Username:        deref(conn.DBUsername),
		Password:        password,
		ItemsTable:      conn.Setting("items_table", ""),
		StockTable:      conn.Setting("stock_table", ""),
		CategoriesTable: conn.Setting("categories_table", ""),
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
