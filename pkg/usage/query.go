package usage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// QueryOpts specifies filter criteria for reading the usage log.
type QueryOpts struct {
	// Kind restricts results to one record kind; empty means all kinds.
	Kind Kind

	// Since filters out records older than this time (inclusive).
	Since time.Time

	// Limit restricts the number of results, newest first (0 = no limit).
	Limit int
}

// Query reads records from the usage directory matching opts. Unreadable
// files and unparseable lines are skipped: the log is best-effort by
// contract and a torn final line from a crashed writer must not poison
// reads.
func Query(dir string, opts QueryOpts) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read usage dir: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := kindOfFile(entry.Name())
		if !ok {
			continue
		}
		if opts.Kind != "" && kind != opts.Kind {
			continue
		}
		records = append(records, readFile(filepath.Join(dir, entry.Name()), opts.Since)...)
	}

	// Newest first, matching the event-log display convention.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return records, nil
}

// kindOfFile extracts the record kind from a rotated file name like
// "agent-2026-08.jsonl".
func kindOfFile(name string) (Kind, bool) {
	if filepath.Ext(name) != ".jsonl" {
		return "", false
	}
	for _, k := range Kinds {
		if len(name) > len(k) && name[:len(k)] == string(k) && name[len(k)] == '-' {
			return k, true
		}
	}
	return "", false
}

// readFile parses one JSONL file, dropping lines that fail to parse.
func readFile(path string, since time.Time) []Record {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		records = append(records, rec)
	}
	return records
}
