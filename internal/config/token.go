package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/civir-gex/sgextools/internal/auth"
	"github.com/rs/zerolog"
)

// Keys read from the env store.
const (
	KeySecret        = "SECRET_KEY"
	KeyAlgorithm     = "ALGORITHM"
	KeyExpireMinutes = "EXPIRE_MINUTES"
)

// InsecureDefaultSecret is the placeholder secret shipped in sample env files.
const InsecureDefaultSecret = "defaultsecret"

const minSecretLength = 32

var ErrInsecureSecret = errors.New("SECRET_KEY is unset or uses the insecure default")

// Getter reads a configuration value with a default.
type Getter interface {
	Get(key, def string) string
}

// TokenSettings resolves the token manager settings. An unset or placeholder
// secret fails with ErrInsecureSecret unless allowInsecure is set, in which case
// the placeholder is used and a warning is logged.
func TokenSettings(env Getter, allowInsecure bool, log zerolog.Logger) (auth.Settings, error) {
	secret := env.Get(KeySecret, "")
	if secret == "" || secret == InsecureDefaultSecret {
		if !allowInsecure {
			return auth.Settings{}, ErrInsecureSecret
		}
		log.Warn().Msg("SECRET_KEY is not set, signing tokens with the insecure default secret. Do not use in production")
		secret = InsecureDefaultSecret
	} else if len(secret) < minSecretLength {
		log.Warn().Int("length", len(secret)).Msgf("SECRET_KEY is shorter than %d bytes", minSecretLength)
	}

	minutes, err := strconv.Atoi(env.Get(KeyExpireMinutes, strconv.Itoa(int(auth.DefaultTTL/time.Minute))))
	if err != nil {
		return auth.Settings{}, fmt.Errorf("invalid %s: %w", KeyExpireMinutes, err)
	}
	if minutes <= 0 {
		return auth.Settings{}, fmt.Errorf("invalid %s: must be positive, got %d", KeyExpireMinutes, minutes)
	}

	return auth.Settings{
		Secret:    secret,
		Algorithm: env.Get(KeyAlgorithm, auth.DefaultAlgorithm),
		TTL:       time.Duration(minutes) * time.Minute,
	}, nil
}
