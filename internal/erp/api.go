package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// APIConfig describes an ERPNext-style REST endpoint.
type APIConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string

	PriceList        string
	ComparePriceList string
	BarcodeField     string
	UpcField         string
	PageSize         int
}

// APISource reads the ERPNext resource API.
type APISource struct {
	cfg        APIConfig
	httpClient *http.Client
}

func NewAPISource(cfg APIConfig, httpClient *http.Client) (*APISource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("erp api source: base url is required")
	}
	if cfg.PriceList == "" {
		cfg.PriceList = "Standard Selling"
	}
	if cfg.BarcodeField == "" {
		cfg.BarcodeField = "barcode"
	}
	if cfg.UpcField == "" {
		cfg.UpcField = "upc"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &APISource{cfg: cfg, httpClient: httpClient}, nil
}

type resourceResponse struct {
	Data []map[string]interface{} `json:"data"`
}

// list pages through /api/resource/{doctype} until a short page comes back.
func (s *APISource) list(ctx context.Context, doctype string, fields []string, filters [][]interface{}) ([]map[string]interface{}, error) {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var filtersJSON []byte
	if len(filters) > 0 {
		if filtersJSON, err = json.Marshal(filters); err != nil {
			return nil, err
		}
	}

	var out []map[string]interface{}
	for start := 0; ; start += s.cfg.PageSize {
		q := url.Values{}
		q.Set("fields", string(fieldsJSON))
		if filtersJSON != nil {
			q.Set("filters", string(filtersJSON))
		}
		q.Set("limit_start", fmt.Sprint(start))
		q.Set("limit_page_length", fmt.Sprint(s.cfg.PageSize))

		var page resourceResponse
		if err := s.get(ctx, "/api/resource/"+url.PathEscape(doctype)+"?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if len(page.Data) < s.cfg.PageSize {
			return out, nil
		}
	}
}

func (s *APISource) get(ctx context.Context, path string, dst interface{}) error {
	op := "GET " + strings.SplitN(path, "?", 2)[0]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path, nil)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "token "+s.cfg.APIKey+":"+s.cfg.APISecret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (s *APISource) Ping(ctx context.Context) error {
	var out map[string]interface{}
	return s.get(ctx, "/api/method/frappe.auth.get_logged_user", &out)
}

func (s *APISource) Categories(ctx context.Context) ([]Category, error) {
	rows, err := s.list(ctx, "Item Group", []string{"name", "item_group_name", "parent_item_group"}, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, Category{
			Code:       str(r, "name"),
			Name:       firstNonEmpty(str(r, "item_group_name"), str(r, "name")),
			ParentCode: str(r, "parent_item_group"),
		})
	}
	return out, nil
}

func (s *APISource) prices(ctx context.Context, priceList string) (map[string]decimal.Decimal, error) {
	if priceList == "" {
		return nil, nil
	}
	rows, err := s.list(ctx, "Item Price", []string{"item_code", "price_list_rate"},
		[][]interface{}{{"price_list", "=", priceList}})
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		if d, ok := dec(r, "price_list_rate"); ok {
			out[str(r, "item_code")] = d
		}
	}
	return out, nil
}

func (s *APISource) Items(ctx context.Context) ([]Item, error) {
	fields := []string{"item_code", "item_name", "item_group", "variant_of", s.cfg.BarcodeField, s.cfg.UpcField}
	rows, err := s.list(ctx, "Item", fields, [][]interface{}{{"disabled", "=", 0}, {"has_variants", "=", 0}})
	if err != nil {
		return nil, err
	}
	prices, err := s.prices(ctx, s.cfg.PriceList)
	if err != nil {
		return nil, err
	}
	compare, err := s.prices(ctx, s.cfg.ComparePriceList)
	if err != nil {
		return nil, err
	}

	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		code := str(r, "item_code")
		item := Item{
			ProductCode:  firstNonEmpty(str(r, "variant_of"), code),
			ProductName:  str(r, "item_name"),
			CategoryCode: str(r, "item_group"),
			Sku:          code,
			Barcode:      str(r, s.cfg.BarcodeField),
			Upc:          str(r, s.cfg.UpcField),
		}
		if p, ok := prices[code]; ok {
			item.Price = &p
		}
		if p, ok := compare[code]; ok {
			item.ComparePrice = &p
		}
		out = append(out, item)
	}
	return out, nil
}

// Stock reads Bin rows. ERPNext keeps one bin per (item, warehouse) and the
// warehouse name is the ERP store code.
func (s *APISource) Stock(ctx context.Context, storeCode string) ([]Item, error) {
	rows, err := s.list(ctx, "Bin", []string{"item_code", "actual_qty"},
		[][]interface{}{{"warehouse", "=", storeCode}})
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		actual, _ := dec(r, "actual_qty")
		out = append(out, Item{
			Sku:       str(r, "item_code"),
			Quantity:  int(actual.Floor().IntPart()),
			StoreCode: storeCode,
		})
	}
	return out, nil
}

func (s *APISource) Close() error { return nil }

func str(r map[string]interface{}, key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return decimal.NewFromFloat(v).String()
	}
	return ""
}

func dec(r map[string]interface{}, key string) (decimal.Decimal, bool) {
	switch v := r[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	}
	return decimal.Zero, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
