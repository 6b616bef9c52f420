package password

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify_OK(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !cfg.Verify("this is a strong password 123!", h) {
		t.Fatalf("expected match")
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("fresh hash must not need a rehash")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Check(h, "wrong password")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if ok || cfg.Verify("wrong password", h) {
		t.Fatalf("expected mismatch")
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("this password is definitely too long"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := DefaultConfig()

	ok, err := cfg.Check("not-a-hash", "whatever")
	if !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}

	malformed := []string{
		"",
		"$argon2id$v=19$m=65536,t=3,p=1$$",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1x$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=99999999,t=3,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaA",
	}
	for _, enc := range malformed {
		if cfg.Verify("whatever", enc) {
			t.Fatalf("malformed hash %q must not verify", enc)
		}
		if !cfg.NeedsRehash(enc) {
			t.Fatalf("malformed hash %q must need a rehash", enc)
		}
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	if err := cfg.Validate("password"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	for _, weak := range []string{"zzzzzzzzzz", "12345678901", "  LetMeIn  "} {
		if err := cfg.Validate(weak); !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("expected %q to be rejected as weak, got %v", weak, err)
		}
	}
	if err := cfg.Validate("123456789012"); err != nil {
		t.Fatalf("a 12-digit passphrase is allowed, got %v", err)
	}
}

func TestValidate_ErrorCarriesLengths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 10

	err := cfg.Validate("abc")
	if !errors.Is(err, ErrPasswordTooShort) || !strings.Contains(err.Error(), "(3 < 10)") {
		t.Fatalf("expected wrapped length error, got %v", err)
	}
}

func TestHash_SaltIsFreshPerCall(t *testing.T) {
	cfg := fastConfig()

	a, err := cfg.Hash("same secret value")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := cfg.Hash("same secret value")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("expected different encodings for the same input")
	}
	if !cfg.Verify("same secret value", a) || !cfg.Verify("same secret value", b) {
		t.Fatalf("both encodings must verify")
	}
}

func TestNeedsRehash_ParamsChanged(t *testing.T) {
	cfg := fastConfig()
	h, err := cfg.Hash("rotate me please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := cfg
	stronger.Params.Iterations++
	if !stronger.NeedsRehash(h) {
		t.Fatalf("expected rehash after iteration bump")
	}
	if !stronger.Verify("rotate me please", h) {
		t.Fatalf("old hash must still verify under stronger config")
	}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}
