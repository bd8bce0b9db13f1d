package db

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cilantra/cilantra/internal/credential/entity"
	"github.com/cilantra/cilantra/internal/pkg/goerror"
	"github.com/cilantra/cilantra/internal/pkg/instrument"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{
		conn: conn,
		ins:  ins,
	}
}

// EnsureSchema applies the embedded DDL. All statements are idempotent,
// so running it on every start (database.auto_migrate) is safe.
func (s *DB) EnsureSchema(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, schemaSQL)
	return err
}

type userRow struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toEntity() entity.User {
	return entity.User{
		ID:        r.ID,
		Username:  r.Username,
		CreatedAt: r.CreatedAt,
	}
}

type deviceRow struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Name      string    `db:"name"`
	Secret    string    `db:"secret"`
	Verified  bool      `db:"verified"`
	CreatedAt time.Time `db:"created_at"`
}

func (r deviceRow) toEntity() entity.Device {
	return entity.Device{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Secret:    r.Secret,
		Verified:  r.Verified,
		CreatedAt: r.CreatedAt,
	}
}

// - 23505 unique violation → goerror.ErrConflict
// - no rows → goerror.ErrNotFound
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("credential.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
