// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package rlog is the render pipeline's event logger: a fluent,
// subscribable feed in the same shape as the rest of the ambient
// stack's logger, adapted so callers tag events by timeline/node
// instead of by monitor.
package rlog

// API inspired by zerolog https://github.com/rs/zerolog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver.
)

// Level defines log level.
type Level uint8

// Logging constants, matching ffmpeg's, so render-pipeline logs stay
// comparable to the rest of the corpus at the same verbosity.
const (
	LevelError   Level = 16
	LevelWarning Level = 24
	LevelInfo    Level = 32
	LevelDebug   Level = 48
)

// UnixMillisecond is a millisecond-resolution Unix timestamp.
type UnixMillisecond uint64

// Event is a log event under construction.
type Event struct {
	level    Level
	time     UnixMillisecond
	src      string // Error kind/subsystem, e.g. "graphbuilder", "pluginhost".
	timeline string // Timeline document identifier, if any.
	node     string // Image-node name, if any.

	logger *Logger
}

// Log is a log entry.
type Log struct {
	Level    Level
	Time     UnixMillisecond
	Msg      string
	Src      string
	Timeline string
	Node     string
}

// Src sets the event's subsystem/error-kind source.
func (e *Event) Src(source string) *Event {
	e.src = source
	return e
}

// Timeline sets the event's timeline document id.
func (e *Event) Timeline(id string) *Event {
	e.timeline = id
	return e
}

// Node sets the event's image-node name.
func (e *Event) Node(name string) *Event {
	e.node = name
	return e
}

// Time overrides the event's timestamp.
func (e *Event) Time(t time.Time) *Event {
	e.time = UnixMillisecond(t.UnixNano() / int64(time.Millisecond))
	return e
}

// Msg sends the event with msg as the message field.
func (e *Event) Msg(msg string) {
	log := Log{
		Time:     e.time,
		Level:    e.level,
		Msg:      msg,
		Src:      e.src,
		Timeline: e.timeline,
		Node:     e.node,
	}
	e.logger.feed <- log
}

// Msgf sends the event with a formatted message.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Msg(fmt.Sprintf(format, v...))
}

// Feed is a feed of logs.
type Feed <-chan Log
type logFeed chan Log

// Logger fans out log events to subscribers.
type Logger struct {
	feed  logFeed
	sub   chan logFeed
	unsub chan logFeed

	wg     *sync.WaitGroup
	db     *sql.DB
	dbPath string
}

// NewLogger starts and returns a Logger backed by a sqlite log store at
// dbPath.
func NewLogger(dbPath string, wg *sync.WaitGroup) (*Logger, error) {
	if err := checkDB(dbPath); err != nil {
		return nil, err
	}

	return &Logger{
		feed:  make(logFeed),
		sub:   make(chan logFeed),
		unsub: make(chan logFeed),

		wg:     wg,
		dbPath: dbPath,
	}, nil
}

// NewMockLogger returns a Logger with no backing database, for tests.
func NewMockLogger() *Logger {
	return &Logger{
		feed:  make(logFeed),
		sub:   make(chan logFeed),
		unsub: make(chan logFeed),
		wg:    &sync.WaitGroup{},
	}
}

const dbAPIversion = -1 // testing

func checkDB(dbPath string) error {
	if !fileExist(dbPath) {
		return createDB(dbPath)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query("PRAGMA user_version;")
	if err != nil {
		return err
	}
	defer rows.Close()

	var version int
	rows.Next()
	if err = rows.Scan(&version); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if version != dbAPIversion {
		return fmt.Errorf("invalid database version: %v", dbPath)
	}
	return nil
}

func createDB(dbPath string) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("could not create database: %w", err)
	}
	defer db.Close()

	sqlStmt := "create table logs (" +
		"time INTEGER not null," +
		" level INTEGER not null," +
		" src TEXT not null," +
		" timeline TEXT," +
		" node TEXT," +
		" msg TEXT not null);"

	if _, err = db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("could not create table in database: %w", err)
	}

	_, err = db.Exec("PRAGMA user_version = " + strconv.Itoa(dbAPIversion))
	if err != nil {
		return fmt.Errorf("could not set database api version: %w", err)
	}
	return nil
}

// Start runs the fan-out loop until ctx is cancelled.
func (l *Logger) Start(ctx context.Context) error {
	db, err := sql.Open("sqlite3", l.dbPath)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	l.db = db

	l.wg.Add(1)
	go func() {
		subs := map[logFeed]struct{}{}
		for {
			select {
			case <-ctx.Done():
				db.Close()
				l.wg.Done()
				return

			case ch := <-l.sub:
				subs[ch] = struct{}{}

			case ch := <-l.unsub:
				close(ch)
				delete(subs, ch)

			case msg := <-l.feed:
				for ch := range subs {
					ch <- msg
				}
			}
		}
	}()
	return nil
}

// CancelFunc cancels a log feed subscription.
type CancelFunc func()

// Subscribe returns a new feed chan and a CancelFunc.
func (l *Logger) Subscribe() (<-chan Log, CancelFunc) {
	feed := make(logFeed)
	l.sub <- feed

	cancel := func() {
		l.unSubscribe(feed)
	}
	return feed, cancel
}

func (l *Logger) unSubscribe(feed logFeed) {
	for {
		select {
		case l.unsub <- feed:
			return
		case <-feed:
		}
	}
}

// LogToStdout prints the log feed to stdout until ctx is cancelled.
func (l *Logger) LogToStdout(ctx context.Context) {
	feed, cancel := l.Subscribe()
	defer cancel()
	for {
		select {
		case log := <-feed:
			printLog(log)
		case <-ctx.Done():
			return
		}
	}
}

func printLog(log Log) {
	var output string
	switch log.Level {
	case LevelError:
		output += "[ERROR] "
	case LevelWarning:
		output += "[WARNING] "
	case LevelInfo:
		output += "[INFO] "
	case LevelDebug:
		output += "[DEBUG] "
	}

	if log.Timeline != "" {
		output += log.Timeline + ": "
	}
	if log.Src != "" {
		output += strings.Title(log.Src) + ": "
	}
	if log.Node != "" {
		output += "(" + log.Node + ") "
	}

	output += log.Msg
	fmt.Println(output)
}

// LogToDB persists the log feed to the sqlite store until ctx is
// cancelled.
func (l *Logger) LogToDB(ctx context.Context) {
	feed, cancel := l.Subscribe()
	defer cancel()
	for {
		select {
		case log := <-feed:
			if err := saveLogToDB(log, l.db); err != nil {
				fmt.Fprintf(os.Stderr, "could not save log: %v %v", log.Msg, err)
				l.Error().Src("rlog").Msgf("could not save log: '%v' %v", log.Msg, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

const maxRows = "100000"

func saveLogToDB(log Log, db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertStmt, err := tx.Prepare(
		"insert into logs(time, level, src, timeline, node, msg) values(?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer insertStmt.Close()

	_, err = insertStmt.Exec(log.Time, log.Level, log.Src, log.Timeline, log.Node, log.Msg)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	sqlStmt := "DELETE FROM logs WHERE NOT rowid IN " +
		"(SELECT rowid FROM `logs` ORDER BY `time` DESC LIMIT " + maxRows + ");"
	if _, err = tx.Exec(sqlStmt); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Error starts a new error-level event. Call Msg/Msgf to send it.
func (l *Logger) Error() *Event {
	return &Event{level: LevelError, time: nowMs(), logger: l}
}

// Warn starts a new warning-level event. Call Msg/Msgf to send it.
func (l *Logger) Warn() *Event {
	return &Event{level: LevelWarning, time: nowMs(), logger: l}
}

// Info starts a new info-level event. Call Msg/Msgf to send it.
func (l *Logger) Info() *Event {
	return &Event{level: LevelInfo, time: nowMs(), logger: l}
}

// Debug starts a new debug-level event. Call Msg/Msgf to send it.
func (l *Logger) Debug() *Event {
	return &Event{level: LevelDebug, time: nowMs(), logger: l}
}

func nowMs() UnixMillisecond {
	return UnixMillisecond(time.Now().UnixNano() / int64(time.Millisecond))
}

func fileExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
