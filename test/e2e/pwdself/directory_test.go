//go:build e2e

package pwdself_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/service"
	"github.com/aussiebroadwan/pwdself/pkg/directory"
)

func TestDirectoryAgainstSamba(t *testing.T) {
	dc := setupDomainController(t)
	ctx := context.Background()
	client := directory.NewClient(dc.cfg)

	require.NoError(t, client.Ping(ctx))

	mail := dc.createUser(t, "alice", "Old-Passw0rd!")

	t.Run("lookup", func(t *testing.T) {
		found, err := client.FindAccount(ctx, "alice")
		require.NoError(t, err)
		require.True(t, found)

		found, err = client.FindAccount(ctx, "nobody")
		require.NoError(t, err)
		require.False(t, found)

		name, err := client.ResolveUsername(ctx, mail)
		require.NoError(t, err)
		require.Equal(t, "alice", name)

		acct, err := client.AccountStatus(ctx, "alice")
		require.NoError(t, err)
		require.False(t, acct.Disabled())
	})

	t.Run("authenticate", func(t *testing.T) {
		require.NoError(t, client.Authenticate(ctx, "alice", "Old-Passw0rd!"))

		err := client.Authenticate(ctx, "alice", "wrong")
		require.True(t, directory.IsCode(err, directory.CodeInvalidCredentials), "got %v", err)
	})

	t.Run("reset then unlock", func(t *testing.T) {
		svc := &service.AccountService{Directory: client, DisabledCodes: service.DefaultDisabledCodes}

		require.NoError(t, svc.ResetPassword(ctx, "alice", "N3w-Secret!", service.RequestMeta{}))
		require.NoError(t, client.Authenticate(ctx, "alice", "N3w-Secret!"))
	})

	t.Run("disabled account is refused", func(t *testing.T) {
		dc.createUser(t, "dora", "Old-Passw0rd!")
		dc.samba(t, "user", "disable", "dora")

		svc := &service.AccountService{Directory: client, DisabledCodes: service.DefaultDisabledCodes}
		err := svc.ResetPassword(ctx, "dora", "N3w-Secret!", service.RequestMeta{})
		require.ErrorIs(t, err, service.ErrAccountDisabled)
	})

	t.Run("must change password is cleared once", func(t *testing.T) {
		dc.createUser(t, "mike", "Old-Passw0rd!")
		dc.samba(t, "user", "setpassword", "mike", "--newpassword=Old-Passw0rd!", "--must-change-at-next-login")

		require.NoError(t, client.Authenticate(ctx, "mike", "Old-Passw0rd!"))
	})
}
