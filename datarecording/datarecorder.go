// Package datarecording stores what a simulation did in a SQLite database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/sirupsen/logrus"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables created.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// ErrFileExists is returned when the database file of a new recording is
// already on disk.
var ErrFileExists = errors.New("recording file already exists")

// New creates a DataRecorder that writes to path + ".sqlite3". A name is
// generated if path is empty. It panics if the file exists.
func New(path string) DataRecorder {
	w, err := Open(path)
	if err != nil {
		panic(err)
	}

	return w
}

// Open is like New but returns an error instead of panicking.
func Open(path string) (DataRecorder, error) {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	if err := w.Init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { w.Flush() })

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

// A batch is the entries taken out of the tables by one flush.
type batch struct {
	tableNames []string
	entries    map[string][]any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	lock       sync.Mutex
	dbName     string
	tables     map[string]*table
	tableNames []string
	batchSize  int
	entryCount int
	closed     bool

	// lastWrite is closed when the latest scheduled batch is in the
	// database. Batches are written in the order they are taken.
	lastWrite chan struct{}
}

// Init establishes a connection to the database.
func (t *sqliteWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "cachesim_recording_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return err
	}

	// Transactions span several statements and must stay on one connection.
	db.SetMaxOpenConns(1)

	logrus.WithField("file", filename).Info("recording database created")

	t.DB = db

	return nil
}

func (t *sqliteWriter) isAllowedType(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func (t *sqliteWriter) checkStructFields(entry any) error {
	if !structs.IsStruct(entry) {
		return fmt.Errorf("entry of type %T is not a struct", entry)
	}

	for _, field := range structs.Fields(entry) {
		if !t.isAllowedType(field.Kind()) {
			return errors.New("field " + field.Name() +
				" cannot be stored as a column")
		}
	}

	return nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	err := t.checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, exists := t.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	n := structs.Names(sampleEntry)
	fields := strings.Join(n, ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	t.mustExecute(createTableSQL)

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
	t.tableNames = append(t.tableNames, tableName)
}

func (t *sqliteWriter) InsertData(tableName string, entry any) {
	t.lock.Lock()
	defer t.lock.Unlock()

	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("table %s stores %s, got %T",
			tableName, table.structType, entry))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		t.scheduleWrite(t.takeBatch())
	}
}

func (t *sqliteWriter) ListTables() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.tableNames...)
}

// Flush writes all the buffered entries and waits until every batch taken
// so far is in the database.
func (t *sqliteWriter) Flush() {
	t.lock.Lock()
	if t.closed {
		t.lock.Unlock()
		return
	}

	done := t.scheduleWrite(t.takeBatch())
	t.lock.Unlock()

	<-done
}

// takeBatch moves the buffered entries out of the tables. The lock must be
// held.
func (t *sqliteWriter) takeBatch() batch {
	b := batch{
		tableNames: append([]string(nil), t.tableNames...),
		entries:    make(map[string][]any, len(t.tables)),
	}

	for name, table := range t.tables {
		if len(table.entries) > 0 {
			b.entries[name] = table.entries
			table.entries = nil
		}
	}

	t.entryCount = 0

	return b
}

// scheduleWrite writes the batch in the background, after all the batches
// scheduled before it. The lock must be held.
func (t *sqliteWriter) scheduleWrite(b batch) <-chan struct{} {
	prev := t.lastWrite
	done := make(chan struct{})
	t.lastWrite = done

	go func() {
		defer close(done)

		if prev != nil {
			<-prev
		}

		t.write(b)
	}()

	return done
}

func (t *sqliteWriter) write(b batch) {
	if len(b.entries) == 0 {
		return
	}

	tx, err := t.Begin()
	if err != nil {
		panic(err)
	}

	for _, tableName := range b.tableNames {
		entries := b.entries[tableName]
		if len(entries) == 0 {
			continue
		}

		stmt := t.prepareStatement(tx, tableName, entries[0])

		for _, entry := range entries {
			_, err := stmt.Exec(structs.Values(entry)...)
			if err != nil {
				panic(err)
			}
		}

		stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}
}

func (t *sqliteWriter) Close() error {
	t.Flush()

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	return t.DB.Close()
}

func (t *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		logrus.WithField("query", query).Error("failed to execute")
		panic(err)
	}

	return res
}

func (t *sqliteWriter) prepareStatement(
	tx *sql.Tx,
	table string,
	entry any,
) *sql.Stmt {
	n := structs.Names(entry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	entryToFill := "(" + strings.Join(n, ", ") + ")"
	sqlStr := "INSERT INTO " + table + " VALUES " + entryToFill

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}
