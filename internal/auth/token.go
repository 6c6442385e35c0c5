package auth

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	// ClaimUser identifies the authenticated user in a session token.
	ClaimUser = "usuario"
	// ClaimOrigin records where the user connected from.
	ClaimOrigin = "desde"

	claimExpiry = "exp"

	// ExpiryLayout is the human readable expiration format used in audit logs and responses.
	ExpiryLayout = "02/01/2006 15:04"

	DefaultAlgorithm = "HS256"
	DefaultTTL       = 60 * time.Minute
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Settings configures a Manager.
type Settings struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
}

// Manager issues, renews and validates HMAC signed session tokens.
// It holds no mutable state after construction and is safe for concurrent use.
type Manager struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Manager)

// WithClock overrides the time source, used for both issuing and validation.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the audit logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager validates the settings and returns a token manager.
func NewManager(settings Settings, opts ...Option) (*Manager, error) {
	if settings.Secret == "" {
		return nil, errors.New("token secret is required")
	}

	alg := settings.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q: only HS256, HS384 and HS512 are allowed", alg)
	}

	ttl := settings.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	m := &Manager{
		secret: []byte(settings.Secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// TTL returns the lifetime given to newly issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Session is a decoded, verified token.
type Session struct {
	// Claims holds the token payload. Numbers decode as json.Number so integer
	// claims keep their exact value; strings, bools, arrays and objects keep
	// their JSON types.
	Claims    map[string]any
	ExpiresAt time.Time
}

// ExpiresText formats the expiration in local time.
func (s *Session) ExpiresText() string {
	return s.ExpiresAt.Local().Format(ExpiryLayout)
}

// User returns the identity claim, or "" when absent.
func (s *Session) User() string {
	v, _ := s.Claims[ClaimUser].(string)
	return v
}

// Generate signs a copy of claims with a fresh expiration. Any exp present in claims is replaced.
func (m *Manager) Generate(claims map[string]any) (string, error) {
	token, exp, err := m.sign(claims)
	if err != nil {
		return "", err
	}

	m.log.Info().
		Str("usuario", claimString(claims, ClaimUser, "unknown")).
		Str("desde", claimString(claims, ClaimOrigin, "unknown origin")).
		Str("expira", exp.Local().Format(ExpiryLayout)).
		Msg("Token generated")

	return token, nil
}

func (m *Manager) sign(claims map[string]any) (string, time.Time, error) {
	exp := m.now().UTC().Add(m.ttl)

	mc := make(jwt.MapClaims, len(claims)+1)
	maps.Copy(mc, claims)
	mc[claimExpiry] = jwt.NewNumericDate(exp)

	token, err := jwt.NewWithClaims(m.method, mc).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, exp, nil
}

// Decode verifies the signature and expiration of token and returns its claims.
// Expired tokens return ErrTokenExpired, every other failure returns ErrTokenInvalid.
func (m *Manager) Decode(token string) (*Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithJSONNumber(),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiration", ErrTokenInvalid)
	}

	return &Session{Claims: claims, ExpiresAt: exp.Time}, nil
}

// IsValid reports whether token decodes successfully.
func (m *Manager) IsValid(token string) bool {
	_, err := m.Decode(token)
	return err == nil
}

// Refresh re-issues token with the same claims and a new expiration.
func (m *Manager) Refresh(token string) (string, error) {
	session, err := m.Decode(token)
	if err != nil {
		return "", err
	}

	claims := maps.Clone(session.Claims)
	delete(claims, claimExpiry)

	refreshed, exp, err := m.sign(claims)
	if err != nil {
		return "", err
	}

	m.log.Info().
		Str("usuario", claimString(claims, ClaimUser, "unknown")).
		Str("expiraba", session.ExpiresText()).
		Str("expira", exp.Local().Format(ExpiryLayout)).
		Msg("Token refreshed")

	return refreshed, nil
}

func claimString(claims map[string]any, key, def string) string {
	if v, ok := claims[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return def
}
