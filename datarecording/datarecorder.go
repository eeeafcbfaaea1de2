// Package datarecording stores simulation records in an SQLite database.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the exported fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists. The entry
	// must have the same type as the table's sample entry.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close()
}

// New creates a DataRecorder that writes to path + ".sqlite3". An empty path
// selects a unique name. The recorder is flushed when the program exits
// through atexit.
func New(path string) DataRecorder {
	if path == "" {
		path = "cachesim_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	logrus.Infof("Database created for recording: %s", filename)

	return newWriter(db)
}

// NewWithDB creates a DataRecorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newWriter(db)
}

func newWriter(db *sql.DB) *sqliteWriter {
	w := &sqliteWriter{
		db:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	insertSQL  string
	entries    []any
}

// sqliteWriter buffers entries in memory and writes them in one transaction
// per flush.
type sqliteWriter struct {
	db *sql.DB

	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("entry of type %v is not a struct", t)
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !isAllowedKind(field.Type.Kind()) {
			return fmt.Errorf("field %s of kind %s cannot be recorded",
				field.Name, field.Type.Kind())
		}
	}

	return nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	columns := structs.Names(sampleEntry)
	w.mustExecute(fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(columns, ", \n\t")))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		insertSQL: fmt.Sprintf("INSERT INTO %s VALUES (%s)",
			tableName, placeholders),
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("table %s records %s, not %T",
			tableName, t.structType, entry))
	}

	t.entries = append(t.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.Flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (w *sqliteWriter) Flush() {
	if w.entryCount == 0 || w.closed {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, name := range w.ListTables() {
		t := w.tables[name]
		if len(t.entries) == 0 {
			continue
		}

		w.flushTable(tx, t)
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.entryCount = 0
}

func (w *sqliteWriter) flushTable(tx *sql.Tx, t *table) {
	stmt, err := tx.Prepare(t.insertSQL)
	if err != nil {
		panic(err)
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		v := reflect.ValueOf(entry)

		values := make([]any, v.NumField())
		for i := range values {
			values[i] = v.Field(i).Interface()
		}

		if _, err := stmt.Exec(values...); err != nil {
			panic(err)
		}
	}

	t.entries = nil
}

func (w *sqliteWriter) Close() {
	if w.closed {
		return
	}

	w.Flush()
	w.closed = true

	if err := w.db.Close(); err != nil {
		panic(err)
	}
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.db.Exec(query)
	if err != nil {
		panic(fmt.Errorf("executing %q: %w", query, err))
	}

	return res
}
