package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	// Registered database/sql drivers.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/okian/solara/internal/domain/table"
	"github.com/okian/solara/pkg/logger"
)

// Default table names for the SQL source.
const (
	DefaultGenerationTable = "generation"
	DefaultWeatherTable    = "weather"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads the two tables from a database.
type SQLSource struct {
	db              *sql.DB
	generationTable string
	weatherTable    string
}

var _ Source = (*SQLSource)(nil)

// SQLOption configures a SQLSource.
type SQLOption func(*SQLSource)

// WithGenerationTable overrides the generation table name.
func WithGenerationTable(name string) SQLOption {
	return func(s *SQLSource) {
		if name != "" {
			s.generationTable = name
		}
	}
}

// WithWeatherTable overrides the weather table name.
func WithWeatherTable(name string) SQLOption {
	return func(s *SQLSource) {
		if name != "" {
			s.weatherTable = name
		}
	}
}

// OpenSQL opens a database for the given driver: sqlite or postgres. Table
// names are checked before the database is opened.
func OpenSQL(driver, dsn string, opts ...SQLOption) (*SQLSource, error) {
	var name string
	switch strings.ToLower(driver) {
	case "sqlite":
		name = "sqlite"
		if strings.TrimSpace(dsn) == "" {
			dsn = "file:solara.db?_pragma=busy_timeout(5000)"
		}
	case "postgres", "postgresql":
		name = "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	s, err := newSQLSource(opts)
	if err != nil {
		return nil, err
	}
	if s.db, err = sql.Open(name, dsn); err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return s, nil
}

// NewSQLSource wraps an open database.
func NewSQLSource(db *sql.DB, opts ...SQLOption) (*SQLSource, error) {
	s, err := newSQLSource(opts)
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func newSQLSource(opts []SQLOption) (*SQLSource, error) {
	s := &SQLSource{generationTable: DefaultGenerationTable, weatherTable: DefaultWeatherTable}
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range []string{s.generationTable, s.weatherTable} {
		if !identifier.MatchString(t) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTable, t)
		}
	}
	return s, nil
}

// Close releases the database.
func (s *SQLSource) Close() error { return s.db.Close() }

// Generation loads the generation table.
func (s *SQLSource) Generation(ctx context.Context) (*table.Frame, error) {
	return s.loadTable(ctx, s.generationTable)
}

// Weather loads the weather table.
func (s *SQLSource) Weather(ctx context.Context) (*table.Frame, error) {
	return s.loadTable(ctx, s.weatherTable)
}

func (s *SQLSource) loadTable(ctx context.Context, name string) (*table.Frame, error) {
	logger.Get().Info(ctx, "loading table", logger.String("table", name))

	// name is validated against identifier in NewSQLSource.
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+name)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", name, err)
	}
	b := newFrameBuilder(columns)

	cells := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	record := make([]string, len(columns))
	for n := 1; rows.Next(); n++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", name, n, err)
		}
		for i, c := range cells {
			record[i] = cellString(c)
		}
		if err := b.add(record); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, n, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b.frame, nil
}

// cellString renders a driver value the way the CSV reader would see it.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}
