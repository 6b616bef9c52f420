package session

import (
	"errors"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()

	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	cfg.CookieTTL = time.Hour

	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCodec_EncodeAndDecode(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, ref := range []Ref{
		{SessionID: "s-1", UserID: "01HZZZZZZZZZZZZZZZZZZZZZZZ"},
		{SessionID: "s-2"},
	} {
		blob, err := c.Encode(ref, now)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := c.Decode(blob, now.Add(time.Minute))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != ref {
			t.Fatalf("ref mismatch: got %+v want %+v", got, ref)
		}
	}
}

func TestCodec_RejectsExpiredForeignAndTampered(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	other := testCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	blob, err := c.Encode(Ref{SessionID: "s-1", UserID: "u"}, now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	mid := len(blob) / 2
	flip := byte('A')
	if blob[mid] == 'A' {
		flip = 'B'
	}
	tampered := blob[:mid] + string(flip) + blob[mid+1:]

	cases := []struct {
		name string
		c    *Codec
		blob string
		at   time.Time
	}{
		{"expired", c, blob, now.Add(2 * time.Hour)},
		{"foreign key", other, blob, now},
		{"tampered", c, tampered, now},
		{"garbage", c, "v4.public.nope", now},
	}
	for _, tc := range cases {
		if _, err := tc.c.Decode(tc.blob, tc.at); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tc.name, err)
		}
	}
}

func TestCodec_RequiresSessionID(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	if _, err := c.Encode(Ref{UserID: "u"}, time.Now()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewCodec_BadKey(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = "zz"
	if _, err := NewCodec(cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestCodec_SkewOnlyAppliesToStart(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	cfg.CookieTTL = time.Hour
	cfg.ClockSkew = 30 * time.Second

	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	blob, err := c.Encode(Ref{SessionID: "s-1"}, issued)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	cases := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"verifier clock behind within skew", issued.Add(-20 * time.Second), true},
		{"verifier clock behind beyond skew", issued.Add(-40 * time.Second), false},
		{"inside skew before expiry", issued.Add(time.Hour - 10*time.Second), true},
		{"at expiry", issued.Add(time.Hour), true},
		{"just after expiry", issued.Add(time.Hour + time.Second), false},
	}
	for _, tc := range cases {
		_, err := c.Decode(blob, tc.at)
		if tc.valid && err != nil {
			t.Fatalf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tc.name, err)
		}
	}
}
