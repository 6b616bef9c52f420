package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/cmd/internal/pgtest"
	"warden/cmd/internal/value"
)

func TestPostgresStore_SessionLifecycle(t *testing.T) {
	pool := pgtest.Open(t)
	schema := pgtest.Schema(t, pool)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	svc := NewService(st, testCodec(t), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	data := value.MustMap(map[any]any{"a": 1, 2: "bee", 3: map[any]any{4: true, 5: "false"}})
	s, err := svc.Create(ctx, "", data, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok, err := svc.GetBySID(ctx, s.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Data.Equal(data) || !got.Intact() || got.UserID != "" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := st.Insert(ctx, got); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate insert, got %v", err)
	}

	got.Data.Set("cart", value.ListOf(value.String("x")))
	if wrote, err := svc.Save(ctx, &got, now.Add(time.Minute)); err != nil || !wrote {
		t.Fatalf("save: wrote=%v err=%v", wrote, err)
	}

	blob, err := svc.Serialize(got)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	byBlob, ok, err := svc.GetByValue(ctx, blob, now)
	if err != nil || !ok || byBlob.Hash != got.Hash {
		t.Fatalf("get by value: %+v ok=%v err=%v", byBlob, ok, err)
	}

	up, err := svc.UpgradeToUserSession(ctx, s.ID, "user-1", now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if _, ok, _ := svc.GetBySID(ctx, s.ID); ok {
		t.Fatalf("anonymous session survived upgrade")
	}
	latest, ok, err := svc.GetByUserID(ctx, "user-1")
	if err != nil || !ok || latest.ID != "user-1" || !latest.Data.Equal(up.Data) {
		t.Fatalf("get by user: %+v ok=%v err=%v", latest, ok, err)
	}

	n, err := svc.RemoveInactive(ctx, 1, now.Add(49*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("remove inactive: n=%d err=%v", n, err)
	}
	if _, ok, _ := svc.GetByUserID(ctx, "user-1"); ok {
		t.Fatalf("expected session swept")
	}
}

func TestNewPostgresStore_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, WithSchema("bad schema")); err == nil {
		t.Fatalf("expected schema error")
	}
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatalf("expected nil pool error")
	}
}
