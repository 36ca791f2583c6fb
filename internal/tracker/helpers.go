package tracker

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raysh454/a11yscan/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// applySchema applies the SQLite schema to the database and sets appropriate pragmas.
func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-64000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA mmap_size=268435456",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Timestamps are stored as unix milliseconds.
func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullableTime(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := fromMillis(ns.Int64)
	return &t
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// encodeIssue produces the JSON columns for tags and nodes.
func encodeIssue(i model.Issue) (tags, nodes string, err error) {
	if i.Tags == nil {
		i.Tags = []string{}
	}
	if i.Nodes == nil {
		i.Nodes = []model.NodeDescriptor{}
	}
	tb, err := json.Marshal(i.Tags)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	nb, err := json.Marshal(i.Nodes)
	if err != nil {
		return "", "", fmt.Errorf("encode nodes: %w", err)
	}
	return string(tb), string(nb), nil
}

// decodeIssue fills Tags and Nodes; both are non-nil even on error.
func decodeIssue(i *model.Issue, tags, nodes string) (err error) {
	defer func() {
		if i.Tags == nil {
			i.Tags = []string{}
		}
		if i.Nodes == nil {
			i.Nodes = []model.NodeDescriptor{}
		}
	}()
	if err := json.Unmarshal([]byte(tags), &i.Tags); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(nodes), &i.Nodes); err != nil {
		return fmt.Errorf("decode nodes: %w", err)
	}
	return nil
}

// normalizedOrSelf keeps discovery output stable when a URL cannot be re-normalized.
func normalizedOrSelf(normalize func(string) (string, error), u string) string {
	if n, err := normalize(u); err == nil {
		return n
	}
	return u
}
