// Package recording stores directory events and run summaries in a SQLite
// database.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/histsim/timing/hist"
)

const (
	eventTable   = "hist_event"
	summaryTable = "hist_summary"
)

// EventRow is one directory event as stored in the database.
type EventRow struct {
	Cycle   int64
	Kind    string
	Home    int
	Node    int
	Addr    int64
	Tag     int64
	Outcome string
	Freed   bool
	Request string
}

// SummaryRow is one named run metric.
type SummaryRow struct {
	Name  string
	Value float64
}

// Recorder is a hook that buffers directory events and writes them in
// batches. It is safe to attach to a table driven from several goroutines.
type Recorder struct {
	*sql.DB

	lock      sync.Mutex
	dbName    string
	batchSize int
	events    []EventRow
	summaries []SummaryRow
	written   int
}

// New creates a recorder writing to <path>.sqlite3. An empty path picks a
// unique name. The file must not exist yet.
func New(path string) (*Recorder, error) {
	r := &Recorder{
		dbName:    path,
		batchSize: 100000,
	}

	if err := r.init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

// WithBatchSize sets how many events are buffered before a write.
func (r *Recorder) WithBatchSize(n int) *Recorder {
	if n < 1 {
		n = 1
	}
	r.batchSize = n
	return r
}

// Path returns the database file name.
func (r *Recorder) Path() string {
	return r.dbName + ".sqlite3"
}

func (r *Recorder) init() error {
	if r.dbName == "" {
		r.dbName = "histsim_recording_" + xid.New().String()
	}

	filename := r.Path()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filename, err)
	}
	r.DB = db

	if err := r.createTable(eventTable, EventRow{}); err != nil {
		return err
	}
	if err := r.createTable(summaryTable, SummaryRow{}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	return nil
}

func (r *Recorder) createTable(name string, sample any) error {
	fields := strings.Join(structs.Names(sample), ", \n\t")

	query := `CREATE TABLE ` + name + ` (` + "\n\t" + fields + "\n" + `);`
	if _, err := r.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	return nil
}

// Func records a directory event.
func (r *Recorder) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Detail.(hist.Event)
	if !ok {
		return
	}

	row := EventRow{
		Cycle: int64(evt.Cycle),
		Kind:  ctx.Pos.Name,
		Home:  evt.Home,
		Node:  evt.Node,
		Addr:  int64(evt.Addr),
		Tag:   int64(evt.Tag),
		Freed: evt.Freed,
	}
	if ctx.Pos == hist.HookPosClassify {
		row.Outcome = evt.Outcome.String()
	}
	if req, ok := ctx.Item.(*hist.Request); ok {
		row.Request = req.ID
	}

	r.lock.Lock()
	r.events = append(r.events, row)
	full := len(r.events) >= r.batchSize
	r.lock.Unlock()

	if full {
		r.Flush()
	}
}

// RecordSummary stores a named metric of the run.
func (r *Recorder) RecordSummary(name string, value float64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.summaries = append(r.summaries, SummaryRow{Name: name, Value: value})
}

// Written returns the number of events written to the database so far.
func (r *Recorder) Written() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.written
}

// Flush writes every buffered row to the database.
func (r *Recorder) Flush() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if len(r.events) == 0 && len(r.summaries) == 0 {
		return
	}

	r.mustExecute("BEGIN TRANSACTION")
	defer r.mustExecute("COMMIT TRANSACTION")

	if len(r.events) > 0 {
		stmt := r.prepare(eventTable, EventRow{})
		for _, e := range r.events {
			r.mustInsert(stmt, structs.Values(e))
		}
		stmt.Close()

		r.written += len(r.events)
		r.events = nil
	}

	if len(r.summaries) > 0 {
		stmt := r.prepare(summaryTable, SummaryRow{})
		for _, s := range r.summaries {
			r.mustInsert(stmt, structs.Values(s))
		}
		stmt.Close()

		r.summaries = nil
	}
}

// Close flushes and closes the database.
func (r *Recorder) Close() error {
	r.Flush()
	return r.DB.Close()
}

func (r *Recorder) prepare(table string, sample any) *sql.Stmt {
	marks := structs.Names(sample)
	for i := range marks {
		marks[i] = "?"
	}

	query := "INSERT INTO " + table + " VALUES (" + strings.Join(marks, ", ") + ")"
	stmt, err := r.Prepare(query)
	if err != nil {
		panic(err)
	}

	return stmt
}

func (r *Recorder) mustInsert(stmt *sql.Stmt, values []any) {
	if _, err := stmt.Exec(values...); err != nil {
		panic(err)
	}
}

func (r *Recorder) mustExecute(query string) sql.Result {
	res, err := r.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
