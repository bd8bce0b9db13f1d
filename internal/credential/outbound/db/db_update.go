package db

import "context"

// MarkDeviceVerified flips a device to verified. The conditional WHERE
// makes repeat calls no-ops, so verified never reverts and the flip
// happens at most once.
func (s *DB) MarkDeviceVerified(ctx context.Context, deviceID int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkDeviceVerified")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`UPDATE totp_devices SET verified = TRUE WHERE id = $1 AND verified = FALSE`, deviceID)
	err = s.mapError(err)
	return err
}
