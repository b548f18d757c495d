package provider

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes one OAuth2 provider.
type Config struct {
	Name         string            `yaml:"name"`
	ClientID     string            `yaml:"client_id"`
	ClientSecret string            `yaml:"client_secret"`
	AuthURL      string            `yaml:"auth_url"`
	TokenURL     string            `yaml:"token_url"`
	UserInfoURL  string            `yaml:"userinfo_url"`
	Scopes       []string          `yaml:"scopes"`
	AuthStyle    string            `yaml:"auth_style"`
	TokenParam   string            `yaml:"token_param"`
	ExtraParams  map[string]string `yaml:"extra_params"`
	SignRequests bool              `yaml:"sign_requests"`
	Fields       FieldMapping      `yaml:"fields"`
}

// FieldMapping names the dotted JSON paths of profile fields. Numeric
// segments index arrays, so "response.0" selects the first element.
type FieldMapping struct {
	Root       string `yaml:"root"`
	ID         string `yaml:"id"`
	Email      string `yaml:"email"`
	TokenEmail string `yaml:"token_email"`
	Name       string `yaml:"name"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Avatar     string `yaml:"avatar"`
}

// Validate checks that the provider can be used for sign-in.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case c.ClientID == "" || c.ClientSecret == "":
		return fmt.Errorf("%w: %s: client id and secret are required", ErrInvalidConfig, c.Name)
	case c.AuthURL == "" || c.TokenURL == "" || c.UserInfoURL == "":
		return fmt.Errorf("%w: %s: auth, token and userinfo urls are required", ErrInvalidConfig, c.Name)
	case c.Fields.ID == "":
		return fmt.Errorf("%w: %s: fields.id is required", ErrInvalidConfig, c.Name)
	}
	switch c.AuthStyle {
	case "", "params", "header":
	default:
		return fmt.Errorf("%w: %s: unsupported auth_style %q", ErrInvalidConfig, c.Name, c.AuthStyle)
	}
	return nil
}

// Merge returns base with every non-empty field of override applied.
func Merge(base, override Config) Config {
	out := base
	setString(&out.Name, override.Name)
	setString(&out.ClientID, override.ClientID)
	setString(&out.ClientSecret, override.ClientSecret)
	setString(&out.AuthURL, override.AuthURL)
	setString(&out.TokenURL, override.TokenURL)
	setString(&out.UserInfoURL, override.UserInfoURL)
	setString(&out.AuthStyle, override.AuthStyle)
	setString(&out.TokenParam, override.TokenParam)
	if len(override.Scopes) > 0 {
		out.Scopes = append([]string(nil), override.Scopes...)
	}
	if len(override.ExtraParams) > 0 {
		params := make(map[string]string, len(base.ExtraParams)+len(override.ExtraParams))
		for k, v := range base.ExtraParams {
			params[k] = v
		}
		for k, v := range override.ExtraParams {
			params[k] = v
		}
		out.ExtraParams = params
	}
	if override.SignRequests {
		out.SignRequests = true
	}
	f := &out.Fields
	setString(&f.Root, override.Fields.Root)
	setString(&f.ID, override.Fields.ID)
	setString(&f.Email, override.Fields.Email)
	setString(&f.TokenEmail, override.Fields.TokenEmail)
	setString(&f.Name, override.Fields.Name)
	setString(&f.FirstName, override.Fields.FirstName)
	setString(&f.LastName, override.Fields.LastName)
	setString(&f.Avatar, override.Fields.Avatar)
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

type fileFormat struct {
	Providers map[string]Config `yaml:"providers"`
}

// LoadFile reads provider overrides from a YAML document of the form
//
//	providers:
//	  facebook:
//	    userinfo_url: https://graph.example.test/me
func LoadFile(path string) (map[string]Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return ParseFile(raw)
}

// ParseFile decodes a providers YAML document. Map keys become the provider
// names unless a name is set explicitly.
func ParseFile(raw []byte) (map[string]Config, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode providers file: %w", err)
	}
	out := make(map[string]Config, len(doc.Providers))
	for key, cfg := range doc.Providers {
		name := strings.ToLower(strings.TrimSpace(key))
		if cfg.Name == "" {
			cfg.Name = name
		}
		out[name] = cfg
	}
	return out, nil
}
