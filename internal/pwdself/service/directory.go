package service

import (
	"context"

	"github.com/aussiebroadwan/pwdself/pkg/directory"
)

// Directory is the part of *directory.Client the services use.
type Directory interface {
	FindAccount(ctx context.Context, username string) (bool, error)
	AccountStatus(ctx context.Context, username string) (directory.Account, error)
	Authenticate(ctx context.Context, username, password string) error
	UnlockAccount(ctx context.Context, username string) error
	ResetPassword(ctx context.Context, username, newPassword string) error
	ResolveUsername(ctx context.Context, input string) (string, error)
}
