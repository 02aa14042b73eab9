// Package directorytest provides an in-memory stand-in for Active Directory
// that speaks the directory.Conn interface.
package directorytest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/encoding/unicode"

	"github.com/aussiebroadwan/pwdself/pkg/directory"
)

// User is a fake directory account.
type User struct {
	Username           string
	Password           string
	Mail               string
	UserAccountControl int
	LockoutTime        string // FILETIME, "0" when unlocked
	MustChangePassword bool

	// KeepMustChange makes the account ignore pwdLastSet=-1, so the flag
	// survives an administrative clear.
	KeepMustChange bool
}

// DN returns the distinguished name the fake assigns to u.
func (u User) DN() string {
	return fmt.Sprintf("CN=%s,OU=Staff,DC=corp,DC=example,DC=com", u.Username)
}

// Server is a fake directory shared by all connections it dials.
type Server struct {
	ServiceUser     string
	ServicePassword string

	mu          sync.Mutex
	users       map[string]*User
	binds       []string
	modifies    []*ldap.ModifyRequest
	Unreachable bool

	// RefusePasswordWrites answers unicodePwd changes the way AD does on a
	// connection without TLS.
	RefusePasswordWrites bool
}

func NewServer(serviceUser, servicePassword string) *Server {
	return &Server{
		ServiceUser:     serviceUser,
		ServicePassword: servicePassword,
		users:           make(map[string]*User),
	}
}

// AddUser registers or replaces an account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.LockoutTime == "" {
		u.LockoutTime = "0"
	}
	if u.UserAccountControl == 0 {
		u.UserAccountControl = directory.UACNormalAccount
	}
	s.users[strings.ToLower(u.Username)] = &u
}

// User returns a copy of the account.
func (s *Server) User(username string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Modifies returns every modify request received so far.
func (s *Server) Modifies() []*ldap.ModifyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ldap.ModifyRequest(nil), s.modifies...)
}

// Binds returns the bind names seen so far.
func (s *Server) Binds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.binds...)
}

// Dial satisfies directory.DialFunc.
func (s *Server) Dial(context.Context) (directory.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unreachable {
		return nil, ldap.NewError(ldap.ErrorNetwork, errors.New("dial tcp 10.0.0.1:636: i/o timeout"))
	}
	return &conn{srv: s}, nil
}

type conn struct {
	srv    *Server
	closed bool
}

func invalidCredentials(data string) error {
	return ldap.NewError(ldap.LDAPResultInvalidCredentials,
		fmt.Errorf("80090308: LdapErr: DSID-0C09044E, comment: AcceptSecurityContext error, data %s, v4563", data))
}

func (c *conn) Bind(username, password string) error {
	if _, name, ok := strings.Cut(username, `\`); ok {
		username = name
	}
	return c.NTLMBind("", username, password)
}

func (c *conn) NTLMBind(_, username, password string) error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binds = append(s.binds, username)

	if username == s.ServiceUser {
		if password != s.ServicePassword {
			return invalidCredentials("52e")
		}
		return nil
	}

	u, ok := s.users[strings.ToLower(username)]
	switch {
	case !ok:
		return invalidCredentials("525")
	case u.Password != password:
		return invalidCredentials("52e")
	case u.UserAccountControl&directory.UACAccountDisable != 0:
		return invalidCredentials("533")
	case u.LockoutTime != "0":
		return invalidCredentials("775")
	case u.MustChangePassword:
		return invalidCredentials("773")
	}
	return nil
}

var filterValue = regexp.MustCompile(`\((sAMAccountName|mail)=([^)]*)\)`)

func (c *conn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	m := filterValue.FindStringSubmatch(req.Filter)
	if m == nil {
		return nil, ldap.NewError(ldap.LDAPResultFilterError, fmt.Errorf("unsupported filter %q", req.Filter))
	}
	attr, value := m[1], unescape(m[2])

	res := &ldap.SearchResult{}
	for _, u := range s.users {
		var match bool
		switch attr {
		case "sAMAccountName":
			match = strings.EqualFold(u.Username, value)
		case "mail":
			match = u.Mail != "" && strings.EqualFold(u.Mail, value)
		}
		if !match {
			continue
		}
		res.Entries = append(res.Entries, ldap.NewEntry(u.DN(), map[string][]string{
			"sAMAccountName":     {u.Username},
			"distinguishedName":  {u.DN()},
			"mail":               {u.Mail},
			"userAccountControl": {strconv.Itoa(u.UserAccountControl)},
			"lockoutTime":        {u.LockoutTime},
		}))
	}
	return res, nil
}

func unescape(v string) string {
	r := strings.NewReplacer(`\2a`, "*", `\28`, "(", `\29`, ")", `\5c`, `\`, `\00`, "\x00")
	return r.Replace(v)
}

func (c *conn) Modify(req *ldap.ModifyRequest) error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modifies = append(s.modifies, req)

	var target *User
	for _, u := range s.users {
		if u.DN() == req.DN {
			target = u
			break
		}
	}
	if target == nil {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object %q", req.DN))
	}

	for _, ch := range req.Changes {
		if ch.Operation != ldap.ReplaceAttribute || len(ch.Modification.Vals) != 1 {
			return ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("only single-value replace is supported"))
		}
		val := ch.Modification.Vals[0]
		switch ch.Modification.Type {
		case "lockoutTime":
			target.LockoutTime = val
		case "pwdLastSet":
			if val == "-1" && !target.KeepMustChange {
				target.MustChangePassword = false
			}
		case "unicodePwd":
			if s.RefusePasswordWrites {
				return ldap.NewError(ldap.LDAPResultUnwillingToPerform,
					errors.New("0000001F: SvcErr: DSID-031A12D2, problem 5003 (WILL_NOT_PERFORM), data 0"))
			}
			pw, err := decodePassword(val)
			if err != nil {
				return ldap.NewError(ldap.LDAPResultConstraintViolation, err)
			}
			if len(pw) < 4 {
				return ldap.NewError(ldap.LDAPResultConstraintViolation,
					errors.New("0000052D: Constraint violation - check_password_restrictions: the password is too short"))
			}
			target.Password = pw
		default:
			return ldap.NewError(ldap.LDAPResultUnwillingToPerform, fmt.Errorf("attribute %s not supported", ch.Modification.Type))
		}
	}
	return nil
}

func decodePassword(v string) (string, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	s, err := dec.String(v)
	if err != nil {
		return "", err
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", errors.New("unicodePwd value must be quoted")
	}
	return s[1 : len(s)-1], nil
}

func (c *conn) Close() error {
	c.closed = true
	return nil
}
