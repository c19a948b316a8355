package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Gate denial reasons.
var (
	ErrSchemeNotAllowed = errors.New("only https urls are allowed")
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrBadContentPath   = errors.New("content path does not match delivery layout")
)

// trustedSuffixes are the two known domain families: the main site and the
// delivery network. Delivery nodes are run by third-party volunteers but all
// live under the network's domain.
var trustedSuffixes = []string{".mangadex.org", ".mangadex.network"}

const primaryDomain = "mangadex.org"

// contentPathPattern is the delivery network's content-addressed layout:
// /data(-saver)?/<32-hex hash>/<filename>.
var contentPathPattern = regexp.MustCompile(`^/data(-saver)?/[0-9a-f]{32}/[^/]+$`)

// Gate decides whether an on-demand image fetch may be relayed. External
// content is untrusted; without this check the proxy is an open SSRF relay.
type Gate struct{}

// Check returns nil if the URL may be fetched. Policy: encrypted transport
// and a hostname inside the known domain families are both required; on top
// of that, /data and /data-saver paths must match the content-addressed
// layout. A well-shaped path on an unknown host is never enough.
func (Gate) Check(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	if u.Scheme != "https" {
		return ErrSchemeNotAllowed
	}

	if !trustedHost(u.Hostname()) {
		return ErrDomainNotAllowed
	}

	if isContentPath(u.Path) && !contentPathPattern.MatchString(u.Path) {
		return ErrBadContentPath
	}
	return nil
}

func trustedHost(host string) bool {
	host = strings.ToLower(host)
	if host == primaryDomain {
		return true
	}
	for _, suffix := range trustedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func isContentPath(path string) bool {
	return strings.HasPrefix(path, "/data/") || strings.HasPrefix(path, "/data-saver/")
}
