package library

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"library-catalog/library/migrations"
)

// goose keeps its dialect, filesystem and logger in package globals.
var gooseMu sync.Mutex

func migrate(db *sql.DB, log *zap.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{s: log.Named("migrate").Sugar()})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "goose dialect")
	}
	if err := goose.Up(db, "."); err != nil {
		return errors.Wrap(err, "goose up")
	}
	return nil
}

// gooseLogger routes goose output to zap. Fatal variants log instead of
// exiting: a failed migration is reported through the returned error.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Fatal(v ...interface{})                 { l.s.Error(v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Errorf(trimNL(format), v...) }
func (l gooseLogger) Print(v ...interface{})                 { l.s.Debug(v...) }
func (l gooseLogger) Println(v ...interface{})               { l.s.Debug(v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Debugf(trimNL(format), v...) }

func trimNL(s string) string { return strings.TrimRight(s, "\n") }
