package provider

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Registry maps provider names to services. It is read-only after construction.
type Registry struct {
	services map[string]Service
}

// NewRegistry indexes services by lower-cased name.
func NewRegistry(services ...Service) (*Registry, error) {
	r := &Registry{services: make(map[string]Service, len(services))}
	for _, s := range services {
		name := normalizeName(s.Name())
		if _, ok := r.services[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, name)
		}
		r.services[name] = s
	}
	return r, nil
}

// NewRegistryFromConfigs builds an OAuth2Service for each config.
func NewRegistryFromConfigs(httpClient *http.Client, configs ...Config) (*Registry, error) {
	services := make([]Service, 0, len(configs))
	for _, cfg := range configs {
		s, err := NewOAuth2Service(cfg, httpClient)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return NewRegistry(services...)
}

// Lookup returns the service registered under name.
func (r *Registry) Lookup(name string) (Service, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.services[normalizeName(name)]
	return s, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CallbackURIs builds provider callback URLs below a public base URL.
type CallbackURIs struct {
	BaseURL string
}

// CallbackURI returns <base>/signin/<provider>/callback.
func (c CallbackURIs) CallbackURI(provider string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/signin/" + url.PathEscape(normalizeName(provider)) + "/callback"
}
