// Package store persists strategy data snapshots and bar history in
// PostgreSQL.
package store

import (
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"main/internal/errors"
	"main/internal/schema"
	"main/internal/strategy"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// Option defines the PostgreSQL connection options. ConnString, when set,
// overrides the individual fields.
type Option struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

// Store wraps a PostgreSQL connection pool and owns the runtime tables.
type Store struct {
	db *gorm.DB
}

// New opens the connection pool and migrates the runtime tables.
func New(option Option) (*Store, error) {
	connString, err := option.dsn()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&strategyDataRow{}, &barRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate runtime tables")
	}

	return &Store{db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveStrategyData upserts one strategy data snapshot keyed by name.
func (s *Store) SaveStrategyData(data strategy.Data) error {
	row, err := newStrategyDataRow(data)
	if err != nil {
		return err
	}
	err = s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return errors.Wrapf(err, "upsert strategy data: %s", data.Name)
	}
	return nil
}

// LoadStrategyData reads back one strategy data snapshot. False when the
// strategy was never synced.
func (s *Store) LoadStrategyData(name string) (strategy.Data, bool, error) {
	var row strategyDataRow
	err := s.db.Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return strategy.Data{}, false, nil
	}
	if err != nil {
		return strategy.Data{}, false, errors.Wrapf(err, "load strategy data: %s", name)
	}
	data, err := row.data()
	if err != nil {
		return strategy.Data{}, false, err
	}
	return data, true, nil
}

// SaveBars appends finished bars to the history table. Duplicate candles for
// the same instrument, interval and timestamp are ignored.
func (s *Store) SaveBars(bars []schema.BarData) error {
	if len(bars) == 0 {
		return nil
	}
	rows := make([]barRow, 0, len(bars))
	for _, bar := range bars {
		rows = append(rows, newBarRow(bar))
	}
	err := s.db.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return errors.Wrap(err, "insert bars")
	}
	return nil
}

// LoadBars reads the last days of bar history for the instruments, ordered by
// time ascending.
func (s *Store) LoadBars(vtSymbols []schema.VTSymbol, days int, interval schema.Interval) ([]schema.BarData, error) {
	since := time.Now().AddDate(0, 0, -days)

	query := s.db.
		Where("interval = ? AND datetime >= ?", interval.String(), since).
		Order("datetime asc, symbol asc, exchange asc")

	if len(vtSymbols) == 0 {
		return nil, nil
	}
	keys := s.db.Session(&gorm.Session{NewDB: true})
	for _, vt := range vtSymbols {
		symbol, exchange := vt.Split()
		keys = keys.Or("symbol = ? AND exchange = ?", symbol, string(exchange))
	}

	var rows []barRow
	if err := query.Where(keys).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load bars")
	}

	out := make([]schema.BarData, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.bar())
	}
	return out, nil
}

func (opt Option) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	if len(query) != 0 {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
