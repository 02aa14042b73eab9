//go:build e2e

package pwdself_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/pwdself/pkg/directory"
)

/*
 * End-to-end tests run the directory client against a Samba AD domain
 * controller in a container. Run with: go test -tags e2e ./test/e2e/...
 */

const (
	defaultSambaImage = "smblds/smblds:latest"

	realm      = "SAMDOM.EXAMPLE.COM"
	netbios    = "SAMDOM"
	baseDN     = "DC=samdom,DC=example,DC=com"
	adminUser  = "Administrator"
	adminPass  = "Adm1n-Passw0rd!"
	mailDomain = "samdom.example.com"
)

type domainController struct {
	container testcontainers.Container
	cfg       directory.Config
}

// setupDomainController starts a fresh Samba domain and returns a directory
// config pointing at its LDAPS port.
func setupDomainController(t *testing.T) *domainController {
	t.Helper()
	ctx := context.Background()

	image := os.Getenv("PWDSELF_E2E_SAMBA_IMAGE")
	if image == "" {
		image = defaultSambaImage
	}

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"636/tcp"},
		Env: map[string]string{
			"REALM":     realm,
			"DOMAIN":    netbios,
			"ADMINPASS": adminPass,
		},
		WaitingFor: wait.ForListeningPort("636/tcp").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "636/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return &domainController{
		container: container,
		cfg: directory.Config{
			Host:               host,
			Port:               port,
			UseTLS:             true,
			InsecureSkipVerify: true,
			Domain:             netbios,
			BindUser:           adminUser,
			BindPassword:       adminPass,
			AuthMethod:         directory.AuthMethodSimple,
			BaseDN:             baseDN,
			ConnectTimeout:     5 * time.Second,
		},
	}
}

// samba runs samba-tool inside the container.
func (dc *domainController) samba(t *testing.T, args ...string) string {
	t.Helper()

	code, out, err := dc.container.Exec(context.Background(), append([]string{"samba-tool"}, args...))
	require.NoError(t, err)

	var b strings.Builder
	if out != nil {
		_, _ = io.Copy(&b, out)
	}
	require.Equal(t, 0, code, "samba-tool %s: %s", strings.Join(args, " "), b.String())
	return b.String()
}

// createUser adds an enabled user with a mail address.
func (dc *domainController) createUser(t *testing.T, username, password string) string {
	t.Helper()

	mail := fmt.Sprintf("%s@%s", username, mailDomain)
	dc.samba(t, "user", "create", username, password, "--mail-address="+mail)
	return mail
}
