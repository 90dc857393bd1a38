package store

import "strconv"

// Dialect selects SQL placeholder syntax and driver-specific features.
type Dialect int

const (
	// SQLite uses "?" placeholders.
	SQLite Dialect = iota
	// Postgres uses "$n" placeholders.
	Postgres
)

// String returns the goose dialect name.
func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// args collects bound parameters and renders their placeholders.
type args struct {
	dialect Dialect
	vals    []any
}

func (d Dialect) args() *args {
	return &args{dialect: d}
}

// Arg binds v and returns its placeholder.
func (a *args) Arg(v any) string {
	a.vals = append(a.vals, v)
	if a.dialect == Postgres {
		return "$" + strconv.Itoa(len(a.vals))
	}
	return "?"
}

func (a *args) Values() []any { return a.vals }
