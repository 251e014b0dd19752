// Package commands holds the individual urfave/cli/v3 command builders for
// coretable's CLI collaborator: exit, flush, stats, compact, and arbitrary
// query text, one file per verb.
package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colin353/largetable/query"
)

// ParseQuery turns one line of query text into a query.Request. The
// grammar is intentionally small, since the core only cares that it
// receives a query.Request, not how the text was shaped:
//
//	select <row> <col1>[,<col2>...] [timestamp]
//	insert <row> <col1>=<value1> [<col2>=<value2> ...] [timestamp]
//	update <row> <col1>=<value1> [<col2>=<value2> ...] [timestamp]
//
// timestamp is a decimal u64; if omitted it defaults to the current time in
// nanoseconds.
func ParseQuery(line string) (query.Request, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 2 {
		return query.Request{}, fmt.Errorf("query must be at least: <kind> <row>")
	}

	kind := strings.ToLower(fields[0])
	row := fields[1]
	rest := fields[2:]

	switch kind {
	case "select":
		if len(rest) < 1 {
			return query.Request{}, fmt.Errorf("select requires a column list")
		}
		cols := strings.Split(rest[0], ",")
		ts, err := parseTimestamp(rest[1:])
		if err != nil {
			return query.Request{}, err
		}
		return query.Request{Kind: query.KindSelect, Row: row, Columns: cols, Timestamp: ts}, nil

	case "insert", "update":
		var updates []query.ColumnValue
		var tsFields []string
		for _, f := range rest {
			if col, val, ok := strings.Cut(f, "="); ok {
				updates = append(updates, query.ColumnValue{Column: col, Value: []byte(val)})
			} else {
				tsFields = append(tsFields, f)
			}
		}
		if len(updates) == 0 {
			return query.Request{}, fmt.Errorf("%s requires at least one col=value pair", kind)
		}
		ts, err := parseTimestamp(tsFields)
		if err != nil {
			return query.Request{}, err
		}
		k := query.KindInsert
		if kind == "update" {
			k = query.KindUpdate
		}
		return query.Request{Kind: k, Row: row, Updates: updates, Timestamp: ts}, nil

	default:
		return query.Request{}, fmt.Errorf("unrecognized query kind %q", kind)
	}
}

func parseTimestamp(fields []string) (uint64, error) {
	if len(fields) == 0 {
		return uint64(time.Now().UnixNano()), nil
	}
	t, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", fields[0], err)
	}
	return t, nil
}
