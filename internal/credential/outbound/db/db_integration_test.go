package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cilantra/cilantra/internal/credential/entity"
	"github.com/cilantra/cilantra/internal/pkg/goerror"
	"github.com/cilantra/cilantra/internal/pkg/instrument"
)

func setupDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("cilantra"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("skipping, cannot start postgres container: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	store := NewDB(pool, instrument.NewNoop())
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	return store
}

func TestDBUserLifecycle(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	if _, err := store.GetUserByUsername(ctx, "alice"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("GetUserByUsername(missing) error = %v, want ErrNotFound", err)
	}

	alice := entity.User{ID: 1, Username: "alice", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(ctx, alice); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	dup := entity.User{ID: 2, Username: "alice", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(ctx, dup); !errors.Is(err, goerror.ErrConflict) {
		t.Fatalf("CreateUser(duplicate) error = %v, want ErrConflict", err)
	}

	got, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != alice.ID || got.Username != alice.Username {
		t.Fatalf("GetUserByUsername() = %+v, want id=%d username=%q", got, alice.ID, alice.Username)
	}
}

func TestDBDeviceLifecycle(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	alice := entity.User{ID: 1, Username: "alice", CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(ctx, alice); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	phone := entity.Device{
		ID:        10,
		UserID:    alice.ID,
		Name:      "phone",
		Secret:    "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateDevice(ctx, phone); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	dup := phone
	dup.ID = 11
	if err := store.CreateDevice(ctx, dup); !errors.Is(err, goerror.ErrConflict) {
		t.Fatalf("CreateDevice(duplicate name) error = %v, want ErrConflict", err)
	}

	got, err := store.GetDevice(ctx, alice.ID, "phone")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Secret != phone.Secret {
		t.Fatalf("GetDevice() secret = %q, want %q", got.Secret, phone.Secret)
	}
	if got.Verified {
		t.Fatal("new device must start unverified")
	}

	if _, err := store.GetDevice(ctx, alice.ID, "watch"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("GetDevice(missing) error = %v, want ErrNotFound", err)
	}

	verified, err := store.GetVerifiedDevices(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetVerifiedDevices() error = %v", err)
	}
	if len(verified) != 0 {
		t.Fatalf("GetVerifiedDevices() before verify = %d devices, want 0", len(verified))
	}

	if err := store.MarkDeviceVerified(ctx, phone.ID); err != nil {
		t.Fatalf("MarkDeviceVerified() error = %v", err)
	}

	// Repeat flip is a no-op.
	if err := store.MarkDeviceVerified(ctx, phone.ID); err != nil {
		t.Fatalf("MarkDeviceVerified() repeat error = %v", err)
	}

	verified, err = store.GetVerifiedDevices(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetVerifiedDevices() error = %v", err)
	}
	if len(verified) != 1 || verified[0].ID != phone.ID || !verified[0].Verified {
		t.Fatalf("GetVerifiedDevices() after verify = %+v, want device %d verified", verified, phone.ID)
	}
}
