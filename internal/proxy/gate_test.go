package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_AllowsTrustedDomains(t *testing.T) {
	g := Gate{}
	for _, u := range []string{
		"https://uploads.mangadex.org/covers/abc/file.jpg",
		"https://uploads.example.mangadex.network/covers/abc/file.jpg",
		"https://mangadex.org/some/path",
		"https://abc.mangadex.network/data/deadbeefdeadbeefdeadbeefdeadbeef/x.jpg",
		"https://abc.mangadex.network/data-saver/deadbeefdeadbeefdeadbeefdeadbeef/x.jpg",
	} {
		assert.NoError(t, g.Check(u), u)
	}
}

func TestGate_DeniesPlaintextTransport(t *testing.T) {
	g := Gate{}
	err := g.Check("http://uploads.mangadex.org/covers/abc/file.jpg")
	require.ErrorIs(t, err, ErrSchemeNotAllowed)
}

func TestGate_DeniesUnknownDomains(t *testing.T) {
	g := Gate{}
	// a well-shaped content path is not a substitute for domain trust
	err := g.Check("https://evil.example.com/data/deadbeefdeadbeefdeadbeefdeadbeef/x.png")
	require.ErrorIs(t, err, ErrDomainNotAllowed)

	err = g.Check("https://evilmangadex.org/covers/a.jpg")
	require.ErrorIs(t, err, ErrDomainNotAllowed)
}

func TestGate_DeniesMalformedContentPaths(t *testing.T) {
	g := Gate{}
	// trusted host but a hash that doesn't fit the content-addressed layout
	err := g.Check("https://abc.mangadex.network/data/notahash/x.jpg")
	require.ErrorIs(t, err, ErrBadContentPath)

	err = g.Check("https://abc.mangadex.network/data/DEADBEEFDEADBEEFDEADBEEFDEADBEEF/x.jpg")
	require.ErrorIs(t, err, ErrBadContentPath)
}
