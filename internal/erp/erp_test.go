package erp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fekuna/omnipos-erp-sync/internal/model"
	"github.com/fekuna/omnipos-erp-sync/pkg/secret"
)

type fakeERPNext struct {
	items   []map[string]interface{}
	bins    map[string][]map[string]interface{}
	prices  map[string][]map[string]interface{}
	groups  []map[string]interface{}
	auth    []string
	status  int
	queries int
}

func (f *fakeERPNext) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.queries++
	if f.status != 0 {
		w.WriteHeader(f.status)
		w.Write([]byte(`{"exc":"server busy"}`))
		return
	}

	var rows []map[string]interface{}
	var filters [][]interface{}
	if raw := r.URL.Query().Get("filters"); raw != "" {
		json.Unmarshal([]byte(raw), &filters)
	}
	filterValue := func(field string) string {
		for _, flt := range filters {
			if len(flt) == 3 && flt[0] == field {
				v, _ := flt[2].(string)
				return v
			}
		}
		return ""
	}

	switch r.URL.Path {
	case "/api/resource/Item":
		rows = f.items
	case "/api/resource/Bin":
		rows = f.bins[filterValue("warehouse")]
	case "/api/resource/Item Price":
		rows = f.prices[filterValue("price_list")]
	case "/api/resource/Item Group":
		rows = f.groups
	case "/api/method/frappe.auth.get_logged_user":
		w.Write([]byte(`{"message":"sync@example.com"}`))
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("limit_start"))
	size, _ := strconv.Atoi(r.URL.Query().Get("limit_page_length"))
	end := start + size
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": rows[start:end]})
}

func newAPISource(t *testing.T, srv *httptest.Server, pageSize int) *APISource {
	t.Helper()
	s, err := NewAPISource(APIConfig{
		BaseURL:          srv.URL + "/",
		APIKey:           "k",
		APISecret:        "s",
		ComparePriceList: "MSRP",
		PageSize:         pageSize,
	}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAPISourceItemsWithPrices(t *testing.T) {
	fake := &fakeERPNext{
		items: []map[string]interface{}{
			{"item_code": "SKU-1", "item_name": "Shirt S", "item_group": "Shirts", "variant_of": "SHIRT", "barcode": "0012345"},
			{"item_code": "SKU-2", "item_name": "Shirt M", "item_group": "Shirts", "variant_of": "SHIRT"},
			{"item_code": "MUG", "item_name": "Mug", "item_group": "Kitchen", "upc": "036000291452"},
		},
		prices: map[string][]map[string]interface{}{
			"Standard Selling": {{"item_code": "SKU-1", "price_list_rate": 19.99}, {"item_code": "MUG", "price_list_rate": "7.50"}},
			"MSRP":             {{"item_code": "SKU-1", "price_list_rate": 24.99}},
		},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	items, err := newAPISource(t, srv, 2).Items(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3 across pages", len(items))
	}

	first := items[0]
	if first.ProductCode != "SHIRT" || first.Sku != "SKU-1" || first.Barcode != "0012345" {
		t.Fatalf("first = %+v", first)
	}
	if first.Price.String() != "19.99" || first.ComparePrice.String() != "24.99" {
		t.Fatalf("prices = %v / %v", first.Price, first.ComparePrice)
	}
	if items[1].Price != nil {
		t.Fatalf("unpriced item got %v", items[1].Price)
	}
	mug := items[2]
	if mug.ProductCode != "MUG" || mug.Upc != "036000291452" || mug.Price.String() != "7.5" {
		t.Fatalf("mug = %+v", mug)
	}
	if got := mug.Identifiers(); len(got) != 2 || got[0] != "MUG" {
		t.Fatalf("identifiers = %v", got)
	}

	for _, a := range fake.auth {
		if a != "token k:s" {
			t.Fatalf("authorization = %q", a)
		}
	}
}

func TestAPISourceStockAndCategories(t *testing.T) {
	fake := &fakeERPNext{
		bins: map[string][]map[string]interface{}{
			"JKT-01": {{"item_code": "SKU-1", "actual_qty": 137.0}, {"item_code": "SKU-2", "actual_qty": 4.6}},
		},
		groups: []map[string]interface{}{
			{"name": "Apparel", "item_group_name": "Apparel"},
			{"name": "Shirts", "parent_item_group": "Apparel"},
		},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	src := newAPISource(t, srv, 100)
	ctx := context.Background()

	stock, err := src.Stock(ctx, "JKT-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(stock) != 2 || stock[0].Quantity != 137 || stock[1].Quantity != 4 || stock[0].StoreCode != "JKT-01" {
		t.Fatalf("stock = %+v", stock)
	}
	empty, err := src.Stock(ctx, "NOPE")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown warehouse = %v, %v", empty, err)
	}

	cats, err := src.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[1].ParentCode != "Apparel" || cats[1].Name != "Shirts" {
		t.Fatalf("categories = %+v", cats)
	}
	if err := src.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestAPISourceErrors(t *testing.T) {
	fake := &fakeERPNext{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newAPISource(t, srv, 10).Items(context.Background())
	var erpErr *Error
	if !errors.As(err, &erpErr) {
		t.Fatalf("err = %T %v", err, err)
	}
	if erpErr.StatusCode != http.StatusServiceUnavailable || !IsTemporary(err) {
		t.Fatalf("err = %+v", erpErr)
	}
	if !strings.Contains(err.Error(), "server busy") {
		t.Fatalf("body missing from %q", err.Error())
	}

	fake.status = http.StatusForbidden
	_, err = newAPISource(t, srv, 10).Categories(context.Background())
	if err == nil || IsTemporary(err) {
		t.Fatalf("403 should be permanent: %v", err)
	}

	if _, err := NewAPISource(APIConfig{}, http.DefaultClient); err == nil {
		t.Fatal("empty base url accepted")
	}
}

func TestSQLConfigRejectsUnsafeTables(t *testing.T) {
	cases := []struct {
		table string
		ok    bool
	}{
		{"erp_items", true},
		{"jda.item_master", true},
		{"items; DROP TABLE x", false},
		{"1items", false},
		{"a.b.c", false},
	}
	for _, tc := range cases {
		cfg := SQLConfig{Dialect: DialectMySQL, Host: "h", Database: "d", ItemsTable: tc.table, StockTable: "s", CategoriesTable: "c"}
		if err := cfg.validate(); (err == nil) != tc.ok {
			t.Errorf("%q: err = %v", tc.table, err)
		}
	}

	if _, err := OpenSQLSource(SQLConfig{Dialect: "db2", Host: "h", Database: "d"}); err == nil {
		t.Fatal("unsupported dialect accepted")
	}
}

func TestSQLConfigDSN(t *testing.T) {
	my := SQLConfig{Dialect: DialectMySQL, Host: "erp.local", Database: "jda", Username: "ro", Password: "p@ss"}
	dsn, err := my.dsn()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dsn, "tcp(erp.local:3306)/jda") || !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("mysql dsn = %s", dsn)
	}

	pg := SQLConfig{Dialect: DialectPostgres, Host: "erp.local", Port: "6543", Database: "jda", Username: "ro"}
	dsn, err = pg.dsn()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dsn, "port=6543") || !strings.Contains(dsn, "dbname=jda") {
		t.Fatalf("postgres dsn = %s", dsn)
	}
}

func TestTemporary(t *testing.T) {
	cases := []struct {
		err  *Error
		want bool
	}{
		{&Error{Op: "x", StatusCode: 429}, true},
		{&Error{Op: "x", StatusCode: 502}, true},
		{&Error{Op: "x", StatusCode: 404}, false},
		{&Error{Op: "x", Err: errors.New("connection reset")}, true},
		{&Error{Op: "x", Err: context.Canceled}, false},
	}
	for _, tc := range cases {
		if got := tc.err.Temporary(); got != tc.want {
			t.Errorf("%v: Temporary = %v", tc.err, got)
		}
	}
}

func TestFactoryUnsealsCredentials(t *testing.T) {
	key := make([]byte, 32)
	c, err := secret.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	apiKey, _ := c.Seal("live-key")
	apiSecret, _ := c.Seal("live-secret")

	fake := &fakeERPNext{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	url := srv.URL
	driver := model.ErpDriverAPI
	conn := &model.ErpConnection{
		BaseModel: model.BaseModel{ID: 3},
		Type:      model.ErpTypeERPNext,
		Driver:    &driver,
		APIURL:    &url,
		APIKey:    apiKey,
		APISecret: apiSecret,
	}

	src, err := NewFactory(c, 5*time.Second).Open(conn)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if err := src.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.auth[0] != "token live-key:live-secret" {
		t.Fatalf("authorization = %q", fake.auth[0])
	}

	if _, err := NewFactory(c, time.Second).Open(&model.ErpConnection{}); err == nil {
		t.Fatal("connection without driver accepted")
	}
}
