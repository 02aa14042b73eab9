package directory

import (
	"strconv"
	"strings"
	"time"
)

// userAccountControl flags used by this service.
// https://learn.microsoft.com/troubleshoot/windows-server/active-directory/useraccountcontrol-manipulate-account-properties
const (
	UACAccountDisable  = 0x0002
	UACLockout         = 0x0010
	UACNormalAccount   = 0x0200
	UACPasswordExpired = 0x800000
)

// Account is the directory state of a single user.
type Account struct {
	Username           string
	DN                 string
	Mail               string
	UserAccountControl int
	LockoutTime        time.Time // zero when not locked
}

// Disabled reports whether the ACCOUNTDISABLE bit is set.
func (a Account) Disabled() bool { return a.UserAccountControl&UACAccountDisable != 0 }

// Locked reports whether AD holds a lockout timestamp for the account or
// reports the LOCKOUT bit.
func (a Account) Locked() bool {
	return !a.LockoutTime.IsZero() || a.UserAccountControl&UACLockout != 0
}

// PasswordExpired reports whether the PASSWORD_EXPIRED bit is set.
func (a Account) PasswordExpired() bool { return a.UserAccountControl&UACPasswordExpired != 0 }

// windowsEpochOffset is the number of 100ns intervals between 1601-01-01 and
// 1970-01-01.
const windowsEpochOffset = 116444736000000000

// parseFileTime converts an AD FILETIME attribute into a time. "0", empty
// and unparsable values are returned as the zero time, which AD uses for
// "never" (1601-01-01).
func parseFileTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	ft, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ft <= windowsEpochOffset {
		return time.Time{}
	}
	return time.Unix(0, (ft-windowsEpochOffset)*100).UTC()
}

func parseUAC(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return v
}
