package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/store/drivers/sqlite"
	"github.com/aussiebroadwan/pwdself/pkg/directory"
	"github.com/aussiebroadwan/pwdself/pkg/directory/directorytest"
	"github.com/aussiebroadwan/pwdself/pkg/idp"
	"github.com/aussiebroadwan/pwdself/pkg/jwtx"
)

var testStateSecret = []byte("test-state-secret-0123456789abcdef")

type fakeProvider struct {
	name     string
	mu       sync.Mutex
	profiles map[string]idp.Profile
	calls    int
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, profiles: map[string]idp.Profile{}}
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (idp.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	prof, ok := p.profiles[code]
	if !ok {
		return idp.Profile{}, &idp.Error{Provider: p.name, Op: "getuserinfo", Code: 40029, Message: "invalid code"}
	}
	return prof, nil
}

func (p *fakeProvider) LoginParams(redirectURI, state string) idp.LoginParams {
	return idp.LoginParams{Provider: p.name, RedirectURI: redirectURI, State: state, AuthorizeURL: "https://idp.example.com/qr"}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDirectory(t *testing.T) (*directory.Client, *directorytest.Server) {
	t.Helper()

	srv := directorytest.NewServer("svc", "svc-pass")
	client := directory.NewClient(directory.Config{
		Domain:       "corp",
		BindUser:     "svc",
		BindPassword: "svc-pass",
		BaseDN:       "DC=corp,DC=example,DC=com",
	}, directory.WithDialer(srv.Dial))
	return client, srv
}

func newTestSigner(t *testing.T) *jwtx.StateSigner {
	t.Helper()

	s, err := jwtx.NewStateSigner(testStateSecret, "pwdself")
	require.NoError(t, err)
	return s
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}
