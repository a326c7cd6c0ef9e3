package erp

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// SQLConfig points at the ERP's reporting database. Table names come from
// connection settings, so they are checked against identifierPattern before
// being placed in a query.
type SQLConfig struct {
	Dialect         string
	Host            string
	Port            string
	Database        string
	Username        string
	Password        string
	ItemsTable      string
	StockTable      string
	CategoriesTable string
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type SQLSource struct {
	db  *sqlx.DB
	cfg SQLConfig
}

func (c *SQLConfig) dsn() (string, error) {
	switch c.Dialect {
	case DialectMySQL:
		port := c.Port
		if port == "" {
			port = "3306"
		}
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, port)
		mc.DBName = c.Database
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case DialectPostgres:
		port := c.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.Host, port, c.Username, c.Password, c.Database), nil
	}
	return "", fmt.Errorf("unsupported erp sql dialect %q", c.Dialect)
}

func (c *SQLConfig) validate() error {
	if c.Host == "" || c.Database == "" {
		return fmt.Errorf("erp sql source: host and database are required")
	}
	for _, t := range []string{c.ItemsTable, c.StockTable, c.CategoriesTable} {
		if !identifierPattern.MatchString(t) {
			return fmt.Errorf("erp sql source: invalid table name %q", t)
		}
	}
	return nil
}

// OpenSQLSource opens a small pool against the ERP database. The caller owns
// the returned source and must Close it.
func OpenSQLSource(cfg SQLConfig) (*SQLSource, error) {
	if cfg.ItemsTable == "" {
		cfg.ItemsTable = "erp_items"
	}
	if cfg.StockTable == "" {
		cfg.StockTable = "erp_stock"
	}
	if cfg.CategoriesTable == "" {
		cfg.CategoriesTable = "erp_categories"
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(cfg.Dialect, dsn)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)
	return NewSQLSource(db, cfg), nil
}

// NewSQLSource wraps an already open database.
func NewSQLSource(db *sqlx.DB, cfg SQLConfig) *SQLSource {
	return &SQLSource{db: db, cfg: cfg}
}

func (s *SQLSource) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &Error{Op: "ping", Err: err}
	}
	return nil
}

func (s *SQLSource) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	query := `SELECT code, name, COALESCE(parent_code, '') AS parent_code FROM ` + s.cfg.CategoriesTable + ` ORDER BY code`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, &Error{Op: "select categories", Err: err}
	}
	return out, nil
}

func (s *SQLSource) Items(ctx context.Context) ([]Item, error) {
	var out []Item
	query := `
        SELECT product_code, product_name, COALESCE(category_code, '') AS category_code,
               sku, COALESCE(barcode, '') AS barcode, COALESCE(upc, '') AS upc,
               price, compare_price
        FROM ` + s.cfg.ItemsTable + `
        ORDER BY product_code, sku`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, &Error{Op: "select items", Err: err}
	}
	return out, nil
}

func (s *SQLSource) Stock(ctx context.Context, storeCode string) ([]Item, error) {
	var out []Item
	query := s.db.Rebind(`SELECT sku, quantity, store_code FROM ` + s.cfg.StockTable + ` WHERE store_code = ? ORDER BY sku`)
	if err := s.db.SelectContext(ctx, &out, query, storeCode); err != nil {
		return nil, &Error{Op: "select stock", Err: err}
	}
	return out, nil
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}
