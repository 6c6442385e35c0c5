package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
)

var searchAttributes = []string{
	"givenName",
	"sn",
	"displayName",
	"mail",
	"telephoneNumber",
	"description",
	"memberOf",
}

// LDAPConfig configures the Active Directory connection.
type LDAPConfig struct {
	// Host is the directory server address; a bare host uses port 389.
	Host string
	// Domain is the NetBIOS domain used for the NTLM bind (DOMAIN\user).
	Domain string
	// BaseDN is the subtree searched for the user, e.g. DC=gex,DC=local.
	BaseDN string
	// Timeout bounds the dial and each request. Default: 10s
	Timeout time.Duration
}

func (c *LDAPConfig) Validate() error {
	if c.Host == "" {
		return errors.New("ldap host is required")
	}
	if c.Domain == "" {
		return errors.New("ldap domain is required")
	}
	if c.BaseDN == "" {
		return errors.New("ldap base DN is required")
	}
	return nil
}

func (c *LDAPConfig) url() string {
	host := c.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "389")
	}
	return "ldap://" + host
}

// LDAP authenticates users with an NTLM bind and reads their attributes.
type LDAP struct {
	cfg LDAPConfig
	log zerolog.Logger
}

func NewLDAP(cfg LDAPConfig, log zerolog.Logger) (*LDAP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &LDAP{cfg: cfg, log: log}, nil
}

// Authenticate binds as the user and searches for their account.
func (l *LDAP) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	dialer := &net.Dialer{Timeout: l.cfg.Timeout}
	conn, err := ldap.DialURL(l.cfg.url(), ldap.DialWithDialer(dialer))
	if err != nil {
		l.log.Error().Err(err).Str("host", l.cfg.Host).Msg("Failed to connect to directory")
		return nil, fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}
	defer conn.Close()
	conn.SetTimeout(l.cfg.Timeout)

	// release the connection if the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.NTLMBind(l.cfg.Domain, username, password); err != nil {
		l.log.Warn().Err(err).Str("usuario", username).Msg("Directory bind failed")
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrServerUnavailable, err)
	}

	req := ldap.NewSearchRequest(
		l.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1,
		int(l.cfg.Timeout/time.Second),
		false,
		fmt.Sprintf("(&(sAMAccountName=%s))", ldap.EscapeFilter(username)),
		searchAttributes,
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to search directory: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, ErrUserNotFound
	}

	identity := identityFromEntry(username, res.Entries[0])
	l.log.Info().Str("usuario", username).Str("nombre", identity.DisplayName).Msg("Directory authentication succeeded")

	return identity, nil
}

func identityFromEntry(username string, e *ldap.Entry) *Identity {
	return &Identity{
		Username:    username,
		GivenName:   e.GetAttributeValue("givenName"),
		Surname:     e.GetAttributeValue("sn"),
		DisplayName: e.GetAttributeValue("displayName"),
		Mail:        e.GetAttributeValue("mail"),
		Telephone:   e.GetAttributeValue("telephoneNumber"),
		Description: e.GetAttributeValue("description"),
		MemberOf:    e.GetAttributeValues("memberOf"),
	}
}
