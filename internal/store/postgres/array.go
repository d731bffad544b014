package postgres

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// textArray maps a Go []string to/from a Postgres text[] column, used for
// hw_info and tags. gorm's postgres driver needs an explicit
// sql.Scanner/driver.Valuer pair to round-trip array literals; this
// mirrors the hand-rolled JSON map conversion used for the jsonb columns.
type textArray []string

func (a textArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	quoted := make([]string, len(a))
	for i, s := range a {
		quoted[i] = `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}", nil
}

func (a *textArray) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}

	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("textArray: unsupported scan type %T", src)
	}

	raw = strings.TrimSpace(raw)
	if raw == "{}" || raw == "" {
		*a = textArray{}
		return nil
	}
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")

	var out []string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	for _, r := range raw {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuotes:
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	out = append(out, cur.String())

	*a = textArray(out)
	return nil
}
