package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/romanzh1/mnemosyne/internal/models"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// DB implements models.Repository over PostgreSQL or SQLite. A DB returned
// by Begin is bound to a transaction and routes every query through it.
type DB struct {
	db      *sqlx.DB
	tx      *sqlx.Tx
	dialect Dialect
	sb      squirrel.StatementBuilderType
}

var _ models.Repository = (*DB)(nil)

func NewPostgres(dsn string, maxIdle, maxOpen int) (*DB, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{
		db:      db,
		dialect: DialectPostgres,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// NewSQLite opens a SQLite database file. ":memory:" gives a private
// in-memory database that lives as long as the returned DB.
func NewSQLite(path string) (*DB, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite (path: %s): %w", path, err)
	}

	// Одно соединение: SQLite сериализует запись, а in-memory база живёт внутри соединения
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{
		db:      db,
		dialect: DialectSQLite,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func (r *DB) Dialect() Dialect {
	return r.dialect
}

func (r *DB) Close() error {
	return r.db.Close()
}

func (r *DB) provider() (*goose.Provider, error) {
	gooseDialect := goose.DialectPostgres
	if r.dialect == DialectSQLite {
		gooseDialect = goose.DialectSQLite3
	}

	dir, err := fs.Sub(migrationsFS, "migrations/"+string(r.dialect))
	if err != nil {
		return nil, fmt.Errorf("open migrations (dialect: %s): %w", r.dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, r.db.DB, dir)
	if err != nil {
		return nil, fmt.Errorf("create migration provider (dialect: %s): %w", r.dialect, err)
	}
	return provider, nil
}

// Up applies every pending migration and returns the resulting schema version.
func (r *DB) Up(ctx context.Context) (int64, error) {
	provider, err := r.provider()
	if err != nil {
		return 0, err
	}

	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("run migrations (dialect: %s): %w", r.dialect, err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get schema version (dialect: %s): %w", r.dialect, err)
	}
	return version, nil
}

// Reset rolls back every applied migration.
func (r *DB) Reset(ctx context.Context) error {
	provider, err := r.provider()
	if err != nil {
		return err
	}

	if _, err := provider.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("reset migrations (dialect: %s): %w", r.dialect, err)
	}
	return nil
}

func (r *DB) Begin(ctx context.Context) (*DB, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &DB{
		db:      r.db,
		tx:      tx,
		dialect: r.dialect,
		sb:      r.sb,
	}, nil
}

func (r *DB) Commit() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to commit")
	}
	return r.tx.Commit()
}

func (r *DB) Rollback() error {
	if r.tx == nil {
		return fmt.Errorf("no active transaction to rollback")
	}
	return r.tx.Rollback()
}

// RunInTx runs fn against a transaction-bound repository. Nested calls reuse
// the outer transaction.
func (r *DB) RunInTx(ctx context.Context, fn func(models.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	txRepo, err := r.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = txRepo.Rollback()
			panic(p)
		}
	}()

	if err = fn(txRepo); err != nil {
		_ = txRepo.Rollback()
		return err
	}

	if err = txRepo.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *DB) executor() sqlx.ExtContext {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.executor().ExecContext(ctx, query, args...)
}

func (r *DB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return r.executor().QueryRowxContext(ctx, query, args...)
}

func (r *DB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, r.executor(), dest, query, args...)
}

func (r *DB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.executor(), dest, query, args...)
}

// insertReturningID runs an INSERT ... RETURNING id built by the caller.
func (r *DB) insertReturningID(ctx context.Context, query squirrel.InsertBuilder) (int64, error) {
	sqlStr, args, err := query.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build SQL query: %w", err)
	}

	var id int64
	if err := r.QueryRowxContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
