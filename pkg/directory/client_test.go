package directory_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/pwdself/pkg/directory"
	"github.com/aussiebroadwan/pwdself/pkg/directory/directorytest"
)

const (
	serviceUser     = "svc-pwdself"
	servicePassword = "Svc-Passw0rd"
)

func newClient(t *testing.T) (*directory.Client, *directorytest.Server) {
	t.Helper()

	srv := directorytest.NewServer(serviceUser, servicePassword)
	client := directory.NewClient(directory.Config{
		Host:         "dc01.corp.example.com",
		Port:         636,
		UseTLS:       true,
		Domain:       "corp.example.com",
		BindUser:     serviceUser,
		BindPassword: servicePassword,
		BaseDN:       "DC=corp,DC=example,DC=com",
	}, directory.WithDialer(srv.Dial))

	return client, srv
}

func TestConfigURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ldaps://dc01:636", directory.Config{Host: "dc01", Port: 636, UseTLS: true}.URL())
	require.Equal(t, "ldap://dc01:389", directory.Config{Host: "dc01", Port: 389}.URL())
	require.Equal(t, "ldap://dc01", directory.Config{Host: "dc01"}.URL())
	require.Equal(t, "ldaps://x:1", directory.Config{Host: "ldaps://x:1", Port: 636}.URL())
}

func TestFindAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)
	srv.AddUser(directorytest.User{Username: "alice", Password: "Old-Passw0rd"})

	t.Run("existing account", func(t *testing.T) {
		found, err := client.FindAccount(ctx, "alice")
		require.NoError(t, err)
		require.True(t, found)
	})

	t.Run("missing account is a negative result", func(t *testing.T) {
		for _, name := range []string{"bob", "carol", "alice*", "a)(mail=*"} {
			found, err := client.FindAccount(ctx, name)
			require.NoError(t, err, name)
			require.False(t, found, name)
		}
		require.Empty(t, srv.Modifies())
	})

	t.Run("service bind uses the netbios domain", func(t *testing.T) {
		require.Contains(t, srv.Binds(), serviceUser)
	})
}

func TestAccountStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)

	// 2024-01-02T03:04:05Z as FILETIME.
	locked := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	filetime := locked.UnixNano()/100 + 116444736000000000

	srv.AddUser(directorytest.User{Username: "alice", UserAccountControl: 514, Mail: "alice@example.com"})
	srv.AddUser(directorytest.User{Username: "bob", LockoutTime: strconv.FormatInt(filetime, 10)})
	srv.AddUser(directorytest.User{Username: "carol", UserAccountControl: directory.UACNormalAccount | directory.UACLockout | directory.UACPasswordExpired})

	acct, err := client.AccountStatus(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 514, acct.UserAccountControl)
	require.True(t, acct.Disabled())
	require.False(t, acct.Locked())
	require.Equal(t, "alice@example.com", acct.Mail)
	require.Equal(t, "CN=alice,OU=Staff,DC=corp,DC=example,DC=com", acct.DN)

	acct, err = client.AccountStatus(ctx, "bob")
	require.NoError(t, err)
	require.False(t, acct.Disabled())
	require.True(t, acct.Locked())
	require.True(t, acct.LockoutTime.Equal(locked))

	acct, err = client.AccountStatus(ctx, "carol")
	require.NoError(t, err)
	require.True(t, acct.LockoutTime.IsZero())
	require.True(t, acct.Locked(), "LOCKOUT bit alone marks the account locked")
	require.True(t, acct.PasswordExpired())
	require.False(t, acct.Disabled())

	_, err = client.AccountStatus(ctx, "nobody")
	require.True(t, directory.IsCode(err, directory.CodeNotFound))
}

func TestAuthenticateMapsADSubCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)

	srv.AddUser(directorytest.User{Username: "alice", Password: "Passw0rd!"})
	srv.AddUser(directorytest.User{Username: "disabled", Password: "Passw0rd!", UserAccountControl: 514})
	srv.AddUser(directorytest.User{Username: "locked", Password: "Passw0rd!", LockoutTime: "133000000000000000"})

	tests := []struct {
		name     string
		username string
		password string
		want     directory.Code
	}{
		{"wrong password", "alice", "nope", directory.CodeInvalidCredentials},
		{"empty password", "alice", "", directory.CodeInvalidCredentials},
		{"missing account", "ghost", "Passw0rd!", directory.CodeNotFound},
		{"disabled account", "disabled", "Passw0rd!", directory.CodeDisabled},
		{"locked account", "locked", "Passw0rd!", directory.CodeLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Authenticate(ctx, tt.username, tt.password)
			require.Error(t, err)
			require.True(t, directory.IsCode(err, tt.want), "got %v", err)

			var de *directory.Error
			require.ErrorAs(t, err, &de)
			require.NotEmpty(t, de.Message())
			require.NotContains(t, de.Message(), "DSID")
		})
	}

	require.NoError(t, client.Authenticate(ctx, "alice", "Passw0rd!"))
}

func TestAuthenticateClearsMustChangePasswordOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)
	srv.AddUser(directorytest.User{Username: "alice", Password: "Passw0rd!", MustChangePassword: true})

	require.NoError(t, client.Authenticate(ctx, "alice", "Passw0rd!"))

	mods := srv.Modifies()
	require.Len(t, mods, 1)
	require.Equal(t, "pwdLastSet", mods[0].Changes[0].Modification.Type)
	require.Equal(t, []string{"-1"}, mods[0].Changes[0].Modification.Vals)

	userBinds := 0
	for _, name := range srv.Binds() {
		if name == "alice" {
			userBinds++
		}
	}
	require.Equal(t, 2, userBinds, "the user bind is retried exactly once")

	u, _ := srv.User("alice")
	require.False(t, u.MustChangePassword)
}

func TestAuthenticateReturnsRetryOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)

	// The flag survives the clear, so the single retry fails again and that
	// failure is what the caller sees.
	srv.AddUser(directorytest.User{Username: "alice", Password: "Passw0rd!", MustChangePassword: true, KeepMustChange: true})

	err := client.Authenticate(ctx, "alice", "Passw0rd!")
	require.True(t, directory.IsCode(err, directory.CodeMustChangePassword))

	userBinds := 0
	for _, name := range srv.Binds() {
		if name == "alice" {
			userBinds++
		}
	}
	require.Equal(t, 2, userBinds)
	require.Len(t, srv.Modifies(), 1)
}

func TestResetUnlockThenAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)
	srv.AddUser(directorytest.User{Username: "alice", Password: "Old-Passw0rd", LockoutTime: "133000000000000000"})

	require.NoError(t, client.ResetPassword(ctx, "alice", "New-Passw0rd!"))
	require.NoError(t, client.UnlockAccount(ctx, "alice"))
	require.NoError(t, client.Authenticate(ctx, "alice", "New-Passw0rd!"))

	err := client.Authenticate(ctx, "alice", "Old-Passw0rd")
	require.True(t, directory.IsCode(err, directory.CodeInvalidCredentials))
}

func TestResetPasswordPolicyViolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)
	srv.AddUser(directorytest.User{Username: "alice", Password: "Old-Passw0rd"})

	err := client.ResetPassword(ctx, "alice", "abc")
	require.True(t, directory.IsCode(err, directory.CodePolicyViolation))

	err = client.ResetPassword(ctx, "ghost", "New-Passw0rd!")
	require.True(t, directory.IsCode(err, directory.CodeNotFound))
}

func TestResetPasswordRefusedWithoutTLS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)
	srv.AddUser(directorytest.User{Username: "alice", Password: "Old-Passw0rd"})
	srv.RefusePasswordWrites = true

	err := client.ResetPassword(ctx, "alice", "New-Passw0rd!")
	require.True(t, directory.IsCode(err, directory.CodeUnwilling), "got %v", err)

	var de *directory.Error
	require.ErrorAs(t, err, &de)
	require.Contains(t, de.Message(), "secure connection")
	require.NotContains(t, de.Message(), "not allowed")
	require.NotContains(t, de.Message(), "WILL_NOT_PERFORM")

	require.NoError(t, client.Authenticate(ctx, "alice", "Old-Passw0rd"))
}

func TestUnreachableDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)
	srv.Unreachable = true

	_, err := client.FindAccount(ctx, "alice")
	require.True(t, directory.IsCode(err, directory.CodeTransport))
	require.Equal(t, directory.CodeTransport.Message(), err.(*directory.Error).Message())

	require.True(t, directory.IsCode(client.Ping(ctx), directory.CodeTransport))
}

func TestWrongServiceCredentials(t *testing.T) {
	t.Parallel()
	srv := directorytest.NewServer(serviceUser, servicePassword)
	client := directory.NewClient(directory.Config{
		Domain:       "corp",
		BindUser:     serviceUser,
		BindPassword: "wrong",
		BaseDN:       "DC=corp,DC=example,DC=com",
	}, directory.WithDialer(srv.Dial))

	err := client.Ping(context.Background())
	require.True(t, directory.IsCode(err, directory.CodeInvalidCredentials))
}

func TestResolveUsername(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client, srv := newClient(t)
	srv.AddUser(directorytest.User{Username: "chuanzhen.xing", Mail: "cz@example.com"})

	name, err := client.ResolveUsername(ctx, "cz@example.com")
	require.NoError(t, err)
	require.Equal(t, "chuanzhen.xing", name)

	name, err = client.ResolveUsername(ctx, " plainuser ")
	require.NoError(t, err)
	require.Equal(t, "plainuser", name)

	_, err = client.ResolveUsername(ctx, "nobody@example.com")
	require.True(t, directory.IsCode(err, directory.CodeNotFound))
}

func TestEncodePassword(t *testing.T) {
	t.Parallel()

	got, err := directory.EncodePassword("Ab1")
	require.NoError(t, err)
	require.Equal(t, []byte{'"', 0, 'A', 0, 'b', 0, '1', 0, '"', 0}, []byte(got))
}

func TestErrorCodes(t *testing.T) {
	t.Parallel()

	err := &directory.Error{Op: "x", Code: directory.CodeUnexpected, Err: errors.New("boom")}
	require.Contains(t, err.Error(), "boom")
	require.ErrorIs(t, err, err.Err)
	require.False(t, directory.IsCode(errors.New("plain"), directory.CodeUnexpected))
	require.Equal(t, "unwilling", directory.CodeUnwilling.String())
	require.Equal(t, "locked", directory.CodeLocked.String())
	require.Equal(t, "code(99)", directory.Code(99).String())
}
