package config

import (
	"net/url"
	"sort"
	"strings"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
)

const allowedOriginsEnvVar = "ALLOWED_ORIGINS"

type Cors struct {
	origins AllowedOrigins
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

// NewAllowedOrigins builds the allow-list. Entries are compared verbatim
// against the Origin header, minus any trailing slash.
func NewAllowedOrigins(origins ...string) AllowedOrigins {
	a := AllowedOrigins{}
	for _, o := range origins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o != "" {
			a[o] = nullValue{}
		}
	}
	return a
}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

func loadCors(lookup func(string, string) string) (Cors, error) {
	raw, err := required(lookup, allowedOriginsEnvVar)
	if err != nil {
		return Cors{}, err
	}
	origins := NewAllowedOrigins(strings.Split(raw, ",")...)
	if len(origins) == 0 {
		return Cors{}, apperrors.Config("config", allowedOriginsEnvVar+" must list at least one origin")
	}
	for o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Cors{}, apperrors.Config("config", allowedOriginsEnvVar+" contains an invalid origin: "+o)
		}
	}
	return Cors{origins: origins}, nil
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	return c.origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, " + CSRFHeaderName
}
