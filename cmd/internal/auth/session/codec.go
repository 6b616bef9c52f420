package session

import (
	"errors"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// Ref names a session and its user. It is all a client ever holds.
type Ref struct {
	SessionID string
	UserID    string
}

// Codec signs and verifies session blobs as PASETO v4.public tokens.
type Codec struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewCodec builds a Codec from cfg.PasetoV4SecretKeyHex.
func NewCodec(cfg Config) (*Codec, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	ttl := cfg.CookieTTL
	if ttl <= 0 {
		ttl = DefaultConfig().CookieTTL
	}

	return &Codec{
		issuer:    cfg.Issuer,
		ttl:       ttl,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// Encode signs ref. The blob expires after the configured cookie TTL.
func (c *Codec) Encode(ref Ref, now time.Time) (string, error) {
	if ref.SessionID == "" {
		return "", ErrInvalidToken
	}

	tok := paseto.NewToken()
	tok.SetIssuer(c.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(c.ttl))

	if err := tok.Set("sid", ref.SessionID); err != nil {
		return "", err
	}
	if err := tok.Set("uid", ref.UserID); err != nil {
		return "", err
	}

	return tok.V4Sign(c.secret, nil), nil
}

// Decode verifies blob at now and returns its Ref. Any failure is
// ErrInvalidToken.
func (c *Codec) Decode(blob string, now time.Time) (Ref, error) {
	// A fresh parser per call; rules must not accumulate. The default
	// NotExpired rule reads the wall clock, so it is left out.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(c.issuer))
	p.AddRule(validWindow(now, c.clockSkew))

	parsed, err := p.ParseV4Public(c.public, blob, nil)
	if err != nil {
		return Ref{}, ErrInvalidToken
	}

	sid, err := parsed.GetString("sid")
	if err != nil || sid == "" {
		return Ref{}, ErrInvalidToken
	}
	// Anonymous sessions carry an empty uid.
	uid, err := parsed.GetString("uid")
	if err != nil {
		return Ref{}, ErrInvalidToken
	}

	return Ref{SessionID: sid, UserID: uid}, nil
}

// validWindow accepts "iat" and "nbf" up to skew in the future of now and
// rejects tokens whose "exp" is before now. Skew never extends or shortens
// the expiry.
func validWindow(now time.Time, skew time.Duration) paseto.Rule {
	return func(tok paseto.Token) error {
		early := now.Add(skew)

		iat, err := tok.GetIssuedAt()
		if err != nil {
			return err
		}
		if early.Before(iat) {
			return errors.New("token issued in the future")
		}

		nbf, err := tok.GetNotBefore()
		if err != nil {
			return err
		}
		if early.Before(nbf) {
			return errors.New("token not valid yet")
		}

		exp, err := tok.GetExpiration()
		if err != nil {
			return err
		}
		if now.After(exp) {
			return errors.New("token expired")
		}
		return nil
	}
}
