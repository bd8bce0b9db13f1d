package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cilantra/cilantra/internal/credential/entity"
	"github.com/cilantra/cilantra/internal/pkg/config"
	"github.com/cilantra/cilantra/internal/pkg/goerror"
	"github.com/cilantra/cilantra/internal/pkg/instrument"
	"github.com/cilantra/cilantra/internal/pkg/otp"
	"github.com/cilantra/cilantra/internal/pkg/secret"
	"github.com/cilantra/cilantra/internal/pkg/validator"
)

type fakeRepo struct {
	users   map[string]*entity.User
	devices []*entity.Device

	conflictCreateUser   int
	conflictCreateDevice int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*entity.User)}
}

func (f *fakeRepo) GetUserByUsername(_ context.Context, username string) (*entity.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetDevice(_ context.Context, userID int64, name string) (*entity.Device, error) {
	for _, d := range f.devices {
		if d.UserID == userID && d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeRepo) GetVerifiedDevices(_ context.Context, userID int64) ([]entity.Device, error) {
	var out []entity.Device
	for _, d := range f.devices {
		if d.UserID == userID && d.Verified {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateUser(_ context.Context, user entity.User) error {
	if f.conflictCreateUser > 0 {
		f.conflictCreateUser--
		f.users[user.Username] = &entity.User{ID: user.ID + 1000, Username: user.Username}
		return goerror.ErrConflict
	}
	if _, ok := f.users[user.Username]; ok {
		return goerror.ErrConflict
	}
	f.users[user.Username] = &user
	return nil
}

func (f *fakeRepo) CreateDevice(_ context.Context, device entity.Device) error {
	if f.conflictCreateDevice > 0 {
		f.conflictCreateDevice--
		d := device
		d.ID += 1000
		f.devices = append(f.devices, &d)
		return goerror.ErrConflict
	}
	for _, d := range f.devices {
		if d.UserID == device.UserID && d.Name == device.Name {
			return goerror.ErrConflict
		}
	}
	f.devices = append(f.devices, &device)
	return nil
}

func (f *fakeRepo) MarkDeviceVerified(_ context.Context, deviceID int64) error {
	for _, d := range f.devices {
		if d.ID == deviceID {
			d.Verified = true
			return nil
		}
	}
	return goerror.ErrNotFound
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type seqID struct{ n int64 }

func (s *seqID) Generate() int64 {
	s.n++
	return s.n
}

var testNow = time.Unix(1_700_000_010, 0)

func newTestUsecase(t *testing.T, repo *fakeRepo) (*Usecase, *otp.Engine) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("totp:\n  skew: 1\n  login_skew: 2\n"))
	if err != nil {
		t.Fatalf("NewViperFromBytes() error = %v", err)
	}
	t.Cleanup(func() { cfg.Close() })

	val, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}

	engine, err := otp.NewEngine("Cilantra", 0, 0)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	return New(Dependency{
		RepoDB:     repo,
		Validator:  val,
		Config:     cfg,
		UID:        &seqID{},
		Totp:       engine,
		Clock:      fixedClock{at: testNow},
		Instrument: instrument.NewNoop(),
	}), engine
}

func codeFor(t *testing.T, engine *otp.Engine, encoded string, at time.Time) string {
	t.Helper()

	key, err := secret.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode(%q) error = %v", encoded, err)
	}
	return engine.Code(key, at)
}

func assertCode(t *testing.T, err error, want goerror.Code) {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error = %v, want *goerror.Error", err)
	}
	if gerr.Code() != want {
		t.Fatalf("error code = %v, want %v", gerr.Code(), want)
	}
}

func TestDeviceKeyCreatesUserAndDevice(t *testing.T) {
	repo := newFakeRepo()
	uc, _ := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}

	if len(out.Secret) != 32 {
		t.Fatalf("secret length = %d, want 32", len(out.Secret))
	}
	if !strings.HasPrefix(out.URI, "otpauth://totp/") {
		t.Fatalf("uri = %q, want otpauth://totp/ prefix", out.URI)
	}
	if _, ok := repo.users["alice"]; !ok {
		t.Fatal("user was not created")
	}
	if len(repo.devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(repo.devices))
	}
	if repo.devices[0].Verified {
		t.Fatal("new device must start unverified")
	}
}

func TestDeviceKeyIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	uc, _ := newTestUsecase(t, repo)

	first, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() first call error = %v", err)
	}

	second, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() second call error = %v", err)
	}

	if first.Secret != second.Secret {
		t.Fatalf("secret changed between calls: %q vs %q", first.Secret, second.Secret)
	}
	if len(repo.devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(repo.devices))
	}
}

func TestDeviceKeySeparateSecretsPerDevice(t *testing.T) {
	repo := newFakeRepo()
	uc, _ := newTestUsecase(t, repo)

	phone, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey(phone) error = %v", err)
	}
	tablet, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "tablet"})
	if err != nil {
		t.Fatalf("DeviceKey(tablet) error = %v", err)
	}

	if phone.Secret == tablet.Secret {
		t.Fatal("devices must not share a secret")
	}
	if len(repo.users) != 1 {
		t.Fatalf("users = %d, want 1", len(repo.users))
	}
}

func TestDeviceKeyRecoversFromCreateRace(t *testing.T) {
	repo := newFakeRepo()
	repo.conflictCreateUser = 1
	repo.conflictCreateDevice = 1
	uc, _ := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}

	// The loser of the race must return the winner's secret.
	if out.Secret != repo.devices[0].Secret {
		t.Fatalf("secret = %q, want existing %q", out.Secret, repo.devices[0].Secret)
	}
}

func TestDeviceKeyRejectsBadInput(t *testing.T) {
	uc, _ := newTestUsecase(t, newFakeRepo())

	tests := []struct {
		name string
		in   DeviceKeyInput
	}{
		{name: "empty username", in: DeviceKeyInput{Username: "", DeviceName: "phone"}},
		{name: "empty device", in: DeviceKeyInput{Username: "alice", DeviceName: ""}},
		{name: "username with slash", in: DeviceKeyInput{Username: "a/b", DeviceName: "phone"}},
		{name: "device with space", in: DeviceKeyInput{Username: "alice", DeviceName: "my phone"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.DeviceKey(context.Background(), tc.in); err == nil {
				t.Fatal("DeviceKey() error = nil, want validation error")
			}
		})
	}
}

func TestVerifyUnknownUserOrDevice(t *testing.T) {
	repo := newFakeRepo()
	uc, _ := newTestUsecase(t, repo)

	err := uc.Verify(context.Background(), VerifyInput{Username: "ghost", DeviceName: "phone", Code: "123456"})
	assertCode(t, err, goerror.CodeNotFound)

	if _, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"}); err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}

	err = uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: "watch", Code: "123456"})
	assertCode(t, err, goerror.CodeNotFound)
}

func TestVerifyFlipsVerifiedExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	uc, engine := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}
	code := codeFor(t, engine, out.Secret, testNow)

	if err := uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: "phone", Code: code}); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !repo.devices[0].Verified {
		t.Fatal("device was not marked verified")
	}

	// A later verify is a state-neutral re-check.
	if err := uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: "phone", Code: code}); err != nil {
		t.Fatalf("Verify() re-check error = %v", err)
	}
	if !repo.devices[0].Verified {
		t.Fatal("device must stay verified")
	}
}

func TestVerifyWrongCodeLeavesStateUnchanged(t *testing.T) {
	repo := newFakeRepo()
	uc, engine := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}

	good := codeFor(t, engine, out.Secret, testNow)
	bad := "000000"
	if bad == good {
		bad = "000001"
	}

	err = uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: "phone", Code: bad})
	assertCode(t, err, goerror.CodeUnauthorized)

	if repo.devices[0].Verified {
		t.Fatal("failed verify must not flip verified")
	}
}

func TestVerifyAcceptsAdjacentStep(t *testing.T) {
	repo := newFakeRepo()
	uc, engine := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}

	// One step behind is inside the narrow window, two steps is not.
	behind := codeFor(t, engine, out.Secret, testNow.Add(-30*time.Second))
	if err := uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: "phone", Code: behind}); err != nil {
		t.Fatalf("Verify() one step behind error = %v", err)
	}

	repo2 := newFakeRepo()
	uc2, engine2 := newTestUsecase(t, repo2)
	out2, err := uc2.DeviceKey(context.Background(), DeviceKeyInput{Username: "bob", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}

	tooOld := codeFor(t, engine2, out2.Secret, testNow.Add(-60*time.Second))
	err = uc2.Verify(context.Background(), VerifyInput{Username: "bob", DeviceName: "phone", Code: tooOld})
	assertCode(t, err, goerror.CodeUnauthorized)
}

func TestLoginUnknownUserIsUnauthorized(t *testing.T) {
	uc, _ := newTestUsecase(t, newFakeRepo())

	err := uc.Login(context.Background(), LoginInput{Username: "ghost", Code: "123456"})
	assertCode(t, err, goerror.CodeUnauthorized)
}

func TestLoginIgnoresUnverifiedDevices(t *testing.T) {
	repo := newFakeRepo()
	uc, engine := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}

	code := codeFor(t, engine, out.Secret, testNow)
	err = uc.Login(context.Background(), LoginInput{Username: "alice", Code: code})
	assertCode(t, err, goerror.CodeUnauthorized)
}

func TestLoginMatchesAnyVerifiedDevice(t *testing.T) {
	repo := newFakeRepo()
	uc, engine := newTestUsecase(t, repo)

	for _, name := range []string{"phone", "tablet"} {
		out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: name})
		if err != nil {
			t.Fatalf("DeviceKey(%s) error = %v", name, err)
		}
		code := codeFor(t, engine, out.Secret, testNow)
		if err := uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: name, Code: code}); err != nil {
			t.Fatalf("Verify(%s) error = %v", name, err)
		}
	}

	tabletCode := codeFor(t, engine, repo.devices[1].Secret, testNow)
	if err := uc.Login(context.Background(), LoginInput{Username: "alice", Code: tabletCode}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestLoginUsesWideWindow(t *testing.T) {
	repo := newFakeRepo()
	uc, engine := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}
	now := codeFor(t, engine, out.Secret, testNow)
	if err := uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: "phone", Code: now}); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	// Two steps behind passes the login window but not the verify window.
	old := codeFor(t, engine, out.Secret, testNow.Add(-60*time.Second))
	if err := uc.Login(context.Background(), LoginInput{Username: "alice", Code: old}); err != nil {
		t.Fatalf("Login() two steps behind error = %v", err)
	}

	tooOld := codeFor(t, engine, out.Secret, testNow.Add(-90*time.Second))
	err = uc.Login(context.Background(), LoginInput{Username: "alice", Code: tooOld})
	assertCode(t, err, goerror.CodeUnauthorized)
}

func TestLoginRejectsMalformedCode(t *testing.T) {
	repo := newFakeRepo()
	uc, engine := newTestUsecase(t, repo)

	out, err := uc.DeviceKey(context.Background(), DeviceKeyInput{Username: "alice", DeviceName: "phone"})
	if err != nil {
		t.Fatalf("DeviceKey() error = %v", err)
	}
	code := codeFor(t, engine, out.Secret, testNow)
	if err := uc.Verify(context.Background(), VerifyInput{Username: "alice", DeviceName: "phone", Code: code}); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	err = uc.Login(context.Background(), LoginInput{Username: "alice", Code: "12a456"})
	assertCode(t, err, goerror.CodeUnauthorized)
}
