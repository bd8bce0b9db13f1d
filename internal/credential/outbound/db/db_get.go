package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/cilantra/cilantra/internal/credential/entity"
)

func (s *DB) GetUserByUsername(ctx context.Context, username string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByUsername")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT id, username, created_at FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, s.mapError(err)
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
	if err != nil {
		return nil, s.mapError(err)
	}

	user := row.toEntity()
	return &user, nil
}

func (s *DB) GetDevice(ctx context.Context, userID int64, name string) (_ *entity.Device, err error) {
	ctx, span := s.startSpan(ctx, "GetDevice")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, name, secret, verified, created_at
		 FROM totp_devices WHERE user_id = $1 AND name = $2`, userID, name)
	if err != nil {
		return nil, s.mapError(err)
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[deviceRow])
	if err != nil {
		return nil, s.mapError(err)
	}

	device := row.toEntity()
	return &device, nil
}

func (s *DB) GetVerifiedDevices(ctx context.Context, userID int64) (_ []entity.Device, err error) {
	ctx, span := s.startSpan(ctx, "GetVerifiedDevices")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, name, secret, verified, created_at
		 FROM totp_devices WHERE user_id = $1 AND verified ORDER BY created_at`, userID)
	if err != nil {
		return nil, s.mapError(err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToStructByName[deviceRow])
	if err != nil {
		return nil, s.mapError(err)
	}

	return lo.Map(result, func(r deviceRow, _ int) entity.Device {
		return r.toEntity()
	}), nil
}
