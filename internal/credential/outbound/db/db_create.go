package db

import (
	"context"

	"github.com/cilantra/cilantra/internal/credential/entity"
)

func (s *DB) CreateUser(ctx context.Context, in entity.User) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`INSERT INTO users (id, username, created_at) VALUES ($1, $2, $3)`,
		in.ID, in.Username, in.CreatedAt)
	err = s.mapError(err)
	return err
}

func (s *DB) CreateDevice(ctx context.Context, in entity.Device) (err error) {
	ctx, span := s.startSpan(ctx, "CreateDevice")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`INSERT INTO totp_devices (id, user_id, name, secret, verified, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		in.ID, in.UserID, in.Name, in.Secret, in.CreatedAt)
	err = s.mapError(err)
	return err
}
