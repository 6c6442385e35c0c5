package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/civir-gex/sgextools/internal/auth"
	"github.com/civir-gex/sgextools/internal/config"
	"github.com/civir-gex/sgextools/internal/logger"
	"github.com/rs/zerolog"
)

type TokenCmd struct {
	Generate TokenGenerateCmd `cmd:"" help:"Issue a session token signed with the env file settings"`
	Decode   TokenDecodeCmd   `cmd:"" help:"Verify a session token and print its claims"`
}

// SettingsFlags locate the SECRET_KEY, ALGORITHM and EXPIRE_MINUTES values.
type SettingsFlags struct {
	EnvFile             string `help:"env file holding the token settings" default:".env" env:"SGEX_ENV_FILE"`
	AllowInsecureSecret bool   `help:"use the placeholder secret when SECRET_KEY is unset (development only)" env:"SGEX_ALLOW_INSECURE_SECRET"`
}

func (s SettingsFlags) manager(log zerolog.Logger) (*auth.Manager, error) {
	env, err := config.NewEnvStore(s.EnvFile, false, zerolog.Nop())
	if err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	settings, err := config.TokenSettings(env, s.AllowInsecureSecret, log)
	if err != nil {
		return nil, err
	}
	return auth.NewManager(settings)
}

// GeneratedToken is printed by token generate.
type GeneratedToken struct {
	Token   string `json:"token" yaml:"token"`
	Expires string `json:"expira" yaml:"expira"`
}

type TokenGenerateCmd struct {
	SettingsFlags
	OutputFlags
	User   string            `help:"value of the usuario claim" required:""`
	From   string            `help:"value of the desde claim" default:"cli"`
	Claims map[string]string `help:"additional claims as key=value" name:"claim"`
}

func (t *TokenGenerateCmd) Run(globals *Globals) error {
	tokens, err := t.manager(logger.Setup(globals.Debug))
	if err != nil {
		return err
	}

	claims := map[string]any{}
	for k, v := range t.Claims {
		claims[k] = v
	}
	claims[auth.ClaimUser] = t.User
	claims[auth.ClaimOrigin] = t.From

	token, err := tokens.Generate(claims)
	if err != nil {
		return err
	}

	session, err := tokens.Decode(token)
	if err != nil {
		return err
	}

	return t.print(globals.out(), GeneratedToken{Token: token, Expires: session.ExpiresText()})
}

// DecodedToken is printed by token decode.
type DecodedToken struct {
	User      string         `json:"usuario" yaml:"usuario"`
	Expires   string         `json:"expira" yaml:"expira"`
	Remaining string         `json:"restante" yaml:"restante"`
	Claims    map[string]any `json:"claims" yaml:"claims"`
}

type TokenDecodeCmd struct {
	SettingsFlags
	OutputFlags
	Token string `arg:"" help:"token to decode"`
}

func (t *TokenDecodeCmd) Run(globals *Globals) error {
	tokens, err := t.manager(logger.Setup(globals.Debug))
	if err != nil {
		return err
	}

	session, err := tokens.Decode(t.Token)
	if err != nil {
		return err
	}

	return t.print(globals.out(), DecodedToken{
		User:      session.User(),
		Expires:   session.ExpiresText(),
		Remaining: time.Until(session.ExpiresAt).Truncate(time.Second).String(),
		Claims:    plainClaims(session.Claims),
	})
}

// plainClaims converts top level json.Number claims to int64 or float64 so
// YAML prints them as numbers rather than quoted strings.
func plainClaims(claims map[string]any) map[string]any {
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		n, ok := v.(json.Number)
		if !ok {
			out[k] = v
			continue
		}
		if i, err := n.Int64(); err == nil {
			out[k] = i
		} else if f, err := n.Float64(); err == nil {
			out[k] = f
		} else {
			out[k] = v
		}
	}
	return out
}
