package directory

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Code classifies a directory failure. Callers switch on it instead of
// inspecting ldap error strings.
type Code int

const (
	CodeUnexpected Code = iota
	CodeNotFound
	CodeInvalidCredentials
	CodeLocked
	CodeDisabled
	CodePasswordExpired
	CodeAccountExpired
	CodeMustChangePassword
	CodePolicyViolation
	CodeInsufficientAccess
	CodeTransport
	CodeUnwilling
)

var codeNames = map[Code]string{
	CodeUnexpected:         "unexpected",
	CodeNotFound:           "not_found",
	CodeInvalidCredentials: "invalid_credentials",
	CodeLocked:             "locked",
	CodeDisabled:           "disabled",
	CodePasswordExpired:    "password_expired",
	CodeAccountExpired:     "account_expired",
	CodeMustChangePassword: "must_change_password",
	CodePolicyViolation:    "policy_violation",
	CodeInsufficientAccess: "insufficient_access",
	CodeTransport:          "transport",
	CodeUnwilling:          "unwilling",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Message is the user-facing text for a code. It never contains server
// diagnostics.
func (c Code) Message() string {
	switch c {
	case CodeNotFound:
		return "The account does not exist in the directory."
	case CodeInvalidCredentials:
		return "The account or old password is incorrect."
	case CodeLocked:
		return "The account is locked. Scan the code to unlock it yourself."
	case CodeDisabled:
		return "The account is disabled."
	case CodePasswordExpired:
		return "The password has expired."
	case CodeAccountExpired:
		return "The account has expired."
	case CodeMustChangePassword:
		return "The password must be changed before the next logon."
	case CodePolicyViolation:
		return "The new password does not satisfy the domain password policy (length, complexity or history)."
	case CodeInsufficientAccess:
		return "The service account is not allowed to make this change. Please contact IT."
	case CodeTransport:
		return "The directory server could not be reached. Please try again later."
	case CodeUnwilling:
		return "The directory refused the change because it needs a secure connection. Please contact IT."
	default:
		return "An unexpected directory error occurred. Please contact IT."
	}
}

// Error is returned by every Client operation.
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("directory: %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("directory: %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the text shown to the end user.
func (e *Error) Message() string { return e.Code.Message() }

// IsCode reports whether err is a directory error with the given code.
func IsCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

func newError(op string, code Code, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// AD appends a hex sub-code to invalidCredentials diagnostics, e.g.
// "80090308: LdapErr: DSID-0C09044E, comment: AcceptSecurityContext error, data 52e, v4563".
var adDataPattern = regexp.MustCompile(`(?i)\bdata ([0-9a-f]{3,8})\b`)

// AD sub-codes carried by LDAP result 49.
var adDataCodes = map[string]Code{
	"525": CodeNotFound,
	"52e": CodeInvalidCredentials,
	"530": CodeInvalidCredentials, // not permitted to logon at this time
	"531": CodeInvalidCredentials, // not permitted to logon at this workstation
	"532": CodePasswordExpired,
	"533": CodeDisabled,
	"701": CodeAccountExpired,
	"773": CodeMustChangePassword,
	"775": CodeLocked,
}

func adDataCode(err error) string {
	var le *ldap.Error
	msg := err.Error()
	if errors.As(err, &le) && le.Err != nil {
		msg = le.Err.Error()
	}
	m := adDataPattern.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// classify maps an ldap error to a directory error for op.
func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return de
	}

	var le *ldap.Error
	if !errors.As(err, &le) {
		return newError(op, CodeUnexpected, err)
	}

	switch le.ResultCode {
	case ldap.LDAPResultInvalidCredentials:
		if code, ok := adDataCodes[adDataCode(err)]; ok {
			return newError(op, code, err)
		}
		return newError(op, CodeInvalidCredentials, err)
	case ldap.LDAPResultNoSuchObject:
		return newError(op, CodeNotFound, err)
	case ldap.LDAPResultConstraintViolation:
		return newError(op, CodePolicyViolation, err)
	case ldap.LDAPResultInsufficientAccessRights:
		return newError(op, CodeInsufficientAccess, err)
	case ldap.LDAPResultUnwillingToPerform:
		// AD answers 53 when unicodePwd is written without TLS.
		return newError(op, CodeUnwilling, err)
	case ldap.ErrorNetwork, ldap.LDAPResultServerDown, ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy, ldap.LDAPResultConnectError, ldap.LDAPResultTimeout:
		return newError(op, CodeTransport, err)
	default:
		return newError(op, CodeUnexpected, err)
	}
}
