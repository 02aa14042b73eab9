// Package directory talks to Active Directory over LDAP on behalf of the
// self-service flows: account lookup, credential checks, unlock and
// administrative password reset.
package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/encoding/unicode"
)

const (
	AuthMethodNTLM   = "ntlm"
	AuthMethodSimple = "simple"

	// UsernamePlaceholder is substituted in Config.SearchFilter with the
	// escaped account name.
	UsernamePlaceholder = "{username}"

	DefaultSearchFilter   = "(&(objectClass=user)(sAMAccountName=" + UsernamePlaceholder + "))"
	DefaultConnectTimeout = time.Second
	defaultOpTimeout      = 10 * time.Second
)

const (
	attrSAMAccountName     = "sAMAccountName"
	attrDistinguishedName  = "distinguishedName"
	attrUserAccountControl = "userAccountControl"
	attrLockoutTime        = "lockoutTime"
	attrMail               = "mail"
	attrPwdLastSet         = "pwdLastSet"
	attrUnicodePwd         = "unicodePwd"
)

type Config struct {
	Host               string
	Port               int
	UseTLS             bool
	InsecureSkipVerify bool

	// Domain is the NetBIOS domain used to qualify bind names. A dotted
	// name is cut to its first label: "corp.example.com" binds as "corp\user".
	Domain       string
	BindUser     string
	BindPassword string
	AuthMethod   string // ntlm (default) or simple

	BaseDN       string
	SearchFilter string

	ConnectTimeout time.Duration
}

// URL returns the ldap:// or ldaps:// address for the configured server.
func (c Config) URL() string {
	if strings.Contains(c.Host, "://") {
		return c.Host
	}
	scheme := "ldap"
	if c.UseTLS {
		scheme = "ldaps"
	}
	if c.Port == 0 {
		return fmt.Sprintf("%s://%s", scheme, c.Host)
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(c.Host, fmt.Sprint(c.Port)))
}

func (c Config) netbiosDomain() string {
	d, _, _ := strings.Cut(strings.TrimSpace(c.Domain), ".")
	return d
}

// Conn is the subset of *ldap.Conn used by the Client.
type Conn interface {
	Bind(username, password string) error
	NTLMBind(domain, username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Modify(req *ldap.ModifyRequest) error
	Close() error
}

// DialFunc opens an unauthenticated connection to the directory.
type DialFunc func(ctx context.Context) (Conn, error)

// Client performs directory operations. Every call opens its own
// connection, binds with the service account and closes it afterwards.
type Client struct {
	cfg    Config
	dial   DialFunc
	logger *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithDialer replaces the network dialer, mainly for tests.
func WithDialer(d DialFunc) Option {
	return func(c *Client) { c.dial = d }
}

// WithLogger sets the logger used for operation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.SearchFilter == "" {
		cfg.SearchFilter = DefaultSearchFilter
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = AuthMethodNTLM
	}

	c := &Client{cfg: cfg, logger: slog.Default()}
	c.dial = c.dialLDAP
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) dialLDAP(ctx context.Context) (Conn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	opts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}
	if c.cfg.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{
			ServerName:         c.cfg.Host,
			InsecureSkipVerify: c.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for lab domains with self-signed certs
			MinVersion:         tls.VersionTLS12,
		}))
	}

	conn, err := ldap.DialURL(c.cfg.URL(), opts...)
	if err != nil {
		return nil, err
	}

	timeout := defaultOpTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	conn.SetTimeout(timeout)
	return conn, nil
}

// bind authenticates conn as DOMAIN\user with the configured method.
func (c *Client) bind(conn Conn, username, password string) error {
	domain := c.cfg.netbiosDomain()
	if c.cfg.AuthMethod == AuthMethodSimple {
		name := username
		if domain != "" && !strings.ContainsAny(username, `\@`) {
			name = domain + `\` + username
		}
		return conn.Bind(name, password)
	}
	return conn.NTLMBind(domain, username, password)
}

// withConn runs fn on a connection bound as the service account.
func (c *Client) withConn(ctx context.Context, op string, fn func(conn Conn) error) error {
	if err := ctx.Err(); err != nil {
		return newError(op, CodeTransport, err)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.logger.Error("directory dial failed", "op", op, "url", c.cfg.URL(), "error", err)
		return newError(op, CodeTransport, err)
	}
	defer func() { _ = conn.Close() }()

	if err := c.bind(conn, c.cfg.BindUser, c.cfg.BindPassword); err != nil {
		c.logger.Error("directory service bind failed", "op", op, "bind_user", c.cfg.BindUser, "error", err)
		return classify(op, err)
	}

	if err := fn(conn); err != nil {
		return classify(op, err)
	}
	return nil
}

func (c *Client) accountFilter(username string) string {
	return strings.ReplaceAll(c.cfg.SearchFilter, UsernamePlaceholder, ldap.EscapeFilter(username))
}

// searchOne returns the first entry matching filter or nil when nothing
// matches.
func (c *Client) searchOne(conn Conn, filter string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attrs,
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return res.Entries[0], nil
}

func (c *Client) lookup(conn Conn, op, username string) (Account, error) {
	entry, err := c.searchOne(conn, c.accountFilter(username), []string{
		attrSAMAccountName,
		attrDistinguishedName,
		attrUserAccountControl,
		attrLockoutTime,
		attrMail,
	})
	if err != nil {
		return Account{}, err
	}
	if entry == nil {
		c.logger.Warn("account not found under search filter",
			"op", op,
			"base_dn", c.cfg.BaseDN,
			"filter", c.accountFilter(username),
		)
		return Account{}, newError(op, CodeNotFound, nil)
	}

	dn := entry.DN
	if v := entry.GetAttributeValue(attrDistinguishedName); v != "" {
		dn = v
	}
	name := entry.GetAttributeValue(attrSAMAccountName)
	if name == "" {
		name = username
	}

	return Account{
		Username:           name,
		DN:                 dn,
		Mail:               entry.GetAttributeValue(attrMail),
		UserAccountControl: parseUAC(entry.GetAttributeValue(attrUserAccountControl)),
		LockoutTime:        parseFileTime(entry.GetAttributeValue(attrLockoutTime)),
	}, nil
}

// FindAccount reports whether username exists under the configured search
// base and filter. A missing account is not an error.
func (c *Client) FindAccount(ctx context.Context, username string) (bool, error) {
	var found bool
	err := c.withConn(ctx, "find_account", func(conn Conn) error {
		entry, err := c.searchOne(conn, c.accountFilter(username), []string{attrSAMAccountName})
		if err != nil {
			return err
		}
		found = entry != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// AccountStatus returns the account with its control bits and lockout time.
func (c *Client) AccountStatus(ctx context.Context, username string) (Account, error) {
	var acct Account
	err := c.withConn(ctx, "account_status", func(conn Conn) error {
		var err error
		acct, err = c.lookup(conn, "account_status", username)
		return err
	})
	return acct, err
}

// Authenticate binds as username with password. When AD reports that the
// password must be changed at next logon, the flag is cleared with the
// service account and the bind is attempted exactly once more.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	err := c.userBind(ctx, username, password)
	if !IsCode(err, CodeMustChangePassword) {
		return err
	}

	c.logger.Info("clearing must-change-password flag before retrying bind", "username", username)
	if err := c.clearMustChangePassword(ctx, username); err != nil {
		return err
	}
	return c.userBind(ctx, username, password)
}

func (c *Client) userBind(ctx context.Context, username, password string) error {
	const op = "authenticate"
	if err := ctx.Err(); err != nil {
		return newError(op, CodeTransport, err)
	}
	if password == "" {
		// An empty password would be an unauthenticated bind and succeed.
		return newError(op, CodeInvalidCredentials, nil)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return newError(op, CodeTransport, err)
	}
	defer func() { _ = conn.Close() }()

	if err := c.bind(conn, username, password); err != nil {
		return classify(op, err)
	}
	return nil
}

func (c *Client) clearMustChangePassword(ctx context.Context, username string) error {
	const op = "clear_must_change_password"
	return c.withConn(ctx, op, func(conn Conn) error {
		acct, err := c.lookup(conn, op, username)
		if err != nil {
			return err
		}
		req := ldap.NewModifyRequest(acct.DN, nil)
		req.Replace(attrPwdLastSet, []string{"-1"})
		return conn.Modify(req)
	})
}

// UnlockAccount clears the lockout time of username.
func (c *Client) UnlockAccount(ctx context.Context, username string) error {
	const op = "unlock_account"
	return c.withConn(ctx, op, func(conn Conn) error {
		acct, err := c.lookup(conn, op, username)
		if err != nil {
			return err
		}
		req := ldap.NewModifyRequest(acct.DN, nil)
		req.Replace(attrLockoutTime, []string{"0"})
		return conn.Modify(req)
	})
}

// ResetPassword sets a new password administratively. AD only accepts
// unicodePwd writes over an encrypted connection.
func (c *Client) ResetPassword(ctx context.Context, username, newPassword string) error {
	const op = "reset_password"
	encoded, err := EncodePassword(newPassword)
	if err != nil {
		return newError(op, CodeUnexpected, err)
	}

	return c.withConn(ctx, op, func(conn Conn) error {
		acct, err := c.lookup(conn, op, username)
		if err != nil {
			return err
		}
		req := ldap.NewModifyRequest(acct.DN, nil)
		req.Replace(attrUnicodePwd, []string{encoded})
		return conn.Modify(req)
	})
}

// ResolveUsername maps a mail address to its sAMAccountName. Input without
// an "@" is returned unchanged.
func (c *Client) ResolveUsername(ctx context.Context, input string) (string, error) {
	const op = "resolve_username"
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "@") {
		return input, nil
	}

	var username string
	err := c.withConn(ctx, op, func(conn Conn) error {
		filter := fmt.Sprintf("(%s=%s)", attrMail, ldap.EscapeFilter(input))
		entry, err := c.searchOne(conn, filter, []string{attrSAMAccountName})
		if err != nil {
			return err
		}
		if entry == nil || entry.GetAttributeValue(attrSAMAccountName) == "" {
			c.logger.Warn("no account carries mail address", "mail", input)
			return newError(op, CodeNotFound, nil)
		}
		username = entry.GetAttributeValue(attrSAMAccountName)
		return nil
	})
	return username, err
}

// Ping verifies that the directory is reachable and the service account can
// bind.
func (c *Client) Ping(ctx context.Context) error {
	return c.withConn(ctx, "ping", func(Conn) error { return nil })
}

// EncodePassword renders a password the way AD expects unicodePwd values:
// surrounded by double quotes and encoded as UTF-16LE.
func EncodePassword(password string) (string, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	return enc.String(`"` + password + `"`)
}
