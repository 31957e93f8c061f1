// Package spaceurl validates the Backlog space a login targets.
package spaceurl

import (
	"net/url"
	"regexp"
	"strings"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
)

// Domains are the tracker domain suffixes a space may live under.
var Domains = []string{"backlog.com", "backlog.jp", "backlogtool.com"}

var spaceLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

const op = "spaceurl.Validate"

// Validate returns the normalized space URL ("https://<host>") or a
// validation error whose message can be shown to the user.
func Validate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.Validation(op, "space URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.Validation(op, "space URL is not a valid URL")
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return "", apperrors.Validation(op, "space URL must use https")
	}
	if u.User != nil {
		return "", apperrors.Validation(op, "space URL must not contain credentials")
	}
	if u.Port() != "" {
		return "", apperrors.Validation(op, "space URL must not contain a port")
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", apperrors.Validation(op, "space URL has no host")
	}

	for _, domain := range Domains {
		if host == domain {
			return "", apperrors.Validation(op, "space URL must point at a space, not "+domain)
		}
		space, ok := strings.CutSuffix(host, "."+domain)
		if !ok {
			continue
		}
		for _, label := range strings.Split(space, ".") {
			if !spaceLabel.MatchString(label) {
				return "", apperrors.Validation(op, "space URL has an invalid space name")
			}
		}
		return "https://" + host, nil
	}

	return "", apperrors.Validation(op, "space URL must be on "+strings.Join(Domains, ", "))
}
