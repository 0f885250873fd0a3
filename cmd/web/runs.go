package main

import (
	"database/sql"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run records one normalization request handled by the server.
type Run struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Records   int       `json:"records"`
	Width     int       `json:"width"`
	Kept      int64     `json:"kept"`
	Dropped   int64     `json:"dropped"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatedDisplay formats the run timestamp for templates.
func (r Run) CreatedDisplay() string {
	return r.CreatedAt.Local().Format("2006-01-02 15:04:05")
}

// Run store configuration; main wires these from flags/config before serving.
var (
	runsStore = "json" // "json" or "sqlite"
	runsPath  = "runs.json"
	runsDB    *sql.DB
	runsMu    sync.Mutex
)

const runsSchema = `CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        filename TEXT,
        records INTEGER,
        width INTEGER,
        kept INTEGER,
        dropped INTEGER,
        status TEXT,
        message TEXT,
        created_at TEXT
    )`

// openSQLite opens (or creates) the sqlite database at path.
func openSQLite(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

// initRunsStore prepares the configured store; for sqlite it opens the
// database and ensures the schema exists.
func initRunsStore() error {
	if runsStore != "sqlite" {
		return nil
	}
	db, err := openSQLite(runsPath)
	if err != nil {
		return err
	}
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return err
	}
	runsDB = db
	return nil
}

// saveRuns persists the full run list to the configured store.
func saveRuns(path string, runs []Run) error {
	if runsStore == "sqlite" && runsDB != nil {
		tx, err := runsDB.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM runs`); err != nil {
			tx.Rollback()
			return err
		}
		for _, r := range runs {
			if _, err := tx.Exec(`INSERT INTO runs (id, filename, records, width, kept, dropped, status, message, created_at)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.Filename, r.Records, r.Width, r.Kept, r.Dropped, r.Status, r.Message,
				r.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	}
	b, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// loadRuns reads all runs from the configured store in insertion order.
func loadRuns(path string) ([]Run, error) {
	if runsStore == "sqlite" && runsDB != nil {
		rows, err := runsDB.Query(`SELECT id, filename, records, width, kept, dropped, status, message, created_at
            FROM runs ORDER BY created_at ASC`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var runs []Run
		for rows.Next() {
			var r Run
			var created string
			if err := rows.Scan(&r.ID, &r.Filename, &r.Records, &r.Width, &r.Kept, &r.Dropped, &r.Status, &r.Message, &created); err != nil {
				return nil, err
			}
			if ts, perr := time.Parse(time.RFC3339, created); perr == nil {
				r.CreatedAt = ts
			}
			runs = append(runs, r)
		}
		return runs, rows.Err()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// appendRun adds one run to the store; the read-modify-write is serialized.
func appendRun(run Run) error {
	runsMu.Lock()
	defer runsMu.Unlock()
	runs, err := loadRuns(runsPath)
	if err != nil {
		return err
	}
	runs = append(runs, run)
	return saveRuns(runsPath, runs)
}

// listRuns returns the stored runs, newest first.
func listRuns() ([]Run, error) {
	runsMu.Lock()
	defer runsMu.Unlock()
	runs, err := loadRuns(runsPath)
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}
