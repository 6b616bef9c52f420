package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/cmd/internal/value"
	"warden/cmd/security/password"
)

func testHasher() password.Config {
	return password.Config{
		Params: password.Argon2idParams{
			MemoryKiB:   8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: password.Policy{MinLength: 1, MaxLength: 256},
	}
}

func newTestService() *Service {
	return NewService(NewMemoryStore(), testHasher())
}

func TestCreate_HashesPasswordAndRoundTrips(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p, err := svc.Create(ctx, CreateInput{
		AuthID:   "password:test@example.com",
		Password: "password1",
		UserInfo: value.MustMap(map[string]any{"name": "Test"}),
		Now:      now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.PasswordHash == "" || p.PasswordHash == "password1" {
		t.Fatalf("expected an encoded hash, got %q", p.PasswordHash)
	}
	if !p.CreatedAt.Equal(now) || !p.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %v %v", p.CreatedAt, p.UpdatedAt)
	}

	got, ok, err := svc.Get(ctx, "password:test@example.com")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.PasswordHash != p.PasswordHash || !got.UserInfo.Equal(p.UserInfo) {
		t.Fatalf("stored profile differs: %+v vs %+v", got, p)
	}
}

func TestCreate_WithoutPassword(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	p, err := svc.Create(context.Background(), CreateInput{AuthID: "google:123"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.HasPassword() {
		t.Fatalf("expected no password hash")
	}
	if p.UserInfo == nil {
		t.Fatalf("expected an empty user info map")
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	svc := NewService(NewMemoryStore(), password.DefaultConfig())
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing auth id", CreateInput{AuthID: " ", Password: "password1"}},
		{"password below policy", CreateInput{AuthID: "own:a", Password: "short"}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestGet_Missing(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	_, ok, err := svc.Get(context.Background(), "nope")
	if err != nil || ok {
		t.Fatalf("expected absent profile, got ok=%v err=%v", ok, err)
	}
}

func TestSetPassword_ReplacesHashKeepsInfo(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	orig, err := svc.Create(ctx, CreateInput{
		AuthID:   "own:alice",
		Password: "first-password",
		UserInfo: value.MustMap(map[string]any{"locale": "en"}),
		Now:      t0,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := svc.SetPassword(ctx, "own:alice", "second-password", t1)
	if err != nil {
		t.Fatalf("set password: %v", err)
	}
	if p.PasswordHash == orig.PasswordHash {
		t.Fatalf("expected a new hash")
	}
	if !p.CreatedAt.Equal(t0) || !p.UpdatedAt.Equal(t1) {
		t.Fatalf("unexpected timestamps: %v %v", p.CreatedAt, p.UpdatedAt)
	}
	if !p.UserInfo.Equal(orig.UserInfo) {
		t.Fatalf("user info was not carried over")
	}

	if ok, _ := svc.CheckPassword(ctx, "own:alice", "first-password"); ok {
		t.Fatalf("old password must no longer match")
	}
	if ok, _ := svc.CheckPassword(ctx, "own:alice", "second-password"); !ok {
		t.Fatalf("new password must match")
	}
}

func TestCheckPassword(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{AuthID: "own:bob", Password: "hunter22"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{AuthID: "google:bob"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := []struct {
		name   string
		authID string
		raw    string
		want   bool
	}{
		{"match", "own:bob", "hunter22", true},
		{"mismatch", "own:bob", "hunter23", false},
		{"missing profile", "own:nobody", "hunter22", false},
		{"no password set", "google:bob", "hunter22", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := svc.CheckPassword(ctx, tc.authID, tc.raw)
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{AuthID: "own:carol", Password: "pw"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, "own:carol"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "own:carol"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, ok, _ := svc.Get(ctx, "own:carol"); ok {
		t.Fatalf("profile still present")
	}
}

func TestMemoryStore_IsolatesUserInfo(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()
	ctx := context.Background()
	info := value.MustMap(map[string]any{"k": "v"})

	if err := st.Put(ctx, Profile{AuthID: "a", UserInfo: info}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info.Set("k", value.String("changed"))

	p, _, _ := st.Get(ctx, "a")
	if v, _ := p.UserInfo.Get("k"); !v.Equal(value.String("v")) {
		t.Fatalf("stored map was aliased: %v", v)
	}
}

func TestRehash_UpgradesOutdatedParams(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	old := NewService(store, testHasher())
	orig, err := old.Create(ctx, CreateInput{
		AuthID:   "own:ivy",
		Password: "pass-ivy",
		UserInfo: value.MustMap(map[string]any{"name": "Ivy"}),
		Now:      now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if changed, err := old.Rehash(ctx, "own:ivy", "pass-ivy", now); err != nil || changed {
		t.Fatalf("current params must not rehash, changed=%v err=%v", changed, err)
	}

	stronger := testHasher()
	stronger.Params.Iterations = 2
	svc := NewService(store, stronger)

	changed, err := svc.Rehash(ctx, "own:ivy", "pass-ivy", now.Add(time.Minute))
	if err != nil || !changed {
		t.Fatalf("expected rehash, changed=%v err=%v", changed, err)
	}

	got, _, _ := svc.Get(ctx, "own:ivy")
	if got.PasswordHash == orig.PasswordHash || stronger.NeedsRehash(got.PasswordHash) {
		t.Fatalf("expected hash with current params, got %q", got.PasswordHash)
	}
	if !got.CreatedAt.Equal(now) || !got.UserInfo.Equal(orig.UserInfo) {
		t.Fatalf("rehash must keep created_at and user info, got %+v", got)
	}
	if ok, _ := svc.CheckPassword(ctx, "own:ivy", "pass-ivy"); !ok {
		t.Fatalf("password must still verify after rehash")
	}

	if changed, _ := svc.Rehash(ctx, "own:nobody", "x", now); changed {
		t.Fatalf("missing profile must not rehash")
	}
}
