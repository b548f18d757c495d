package provider

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/MrEthical07/goSocialAuth/identity"
)

// Token is the result of an authorization code exchange.
type Token struct {
	AccessToken string
	Email       string
	Expiry      time.Time
}

// Service is one configured OAuth2 provider. Implementations are immutable
// and safe for concurrent use.
type Service interface {
	Name() string
	ClaimTypes() identity.ClaimTypes
	AuthCodeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (Token, error)
	FetchProfile(ctx context.Context, token Token) (identity.Profile, error)
}

// Client carries the per-request state of one sign-in against a Service.
type Client struct {
	service     Service
	redirectURI string
	token       Token
}

// NewClient returns a Client for a single request.
func NewClient(s Service) *Client {
	return &Client{service: s}
}

func (c *Client) Provider() string {
	return c.service.Name()
}

// SetRedirectURI sets the callback URI sent with the code exchange.
func (c *Client) SetRedirectURI(uri string) {
	c.redirectURI = uri
}

// SetAccessToken reuses a previously issued provider access token.
func (c *Client) SetAccessToken(token string) {
	c.token = Token{AccessToken: token}
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) error {
	tok, err := c.service.Exchange(ctx, code, c.redirectURI)
	if err != nil {
		return err
	}
	c.token = tok
	return nil
}

// FetchProfile loads the profile for the current access token.
func (c *Client) FetchProfile(ctx context.Context) (identity.Profile, error) {
	if c.token.AccessToken == "" {
		return identity.Profile{}, ErrNoAccessToken
	}
	return c.service.FetchProfile(ctx, c.token)
}

// OAuth2Service implements Service with golang.org/x/oauth2 and a JSON
// profile endpoint.
type OAuth2Service struct {
	cfg        Config
	oauth      oauth2.Config
	httpClient *http.Client
	types      identity.ClaimTypes
}

var _ Service = (*OAuth2Service)(nil)

// NewOAuth2Service validates cfg and builds a service. A nil httpClient uses
// a client with a 10 second timeout.
func NewOAuth2Service(cfg Config, httpClient *http.Client) (*OAuth2Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	style := oauth2.AuthStyleAutoDetect
	switch cfg.AuthStyle {
	case "params":
		style = oauth2.AuthStyleInParams
	case "header":
		style = oauth2.AuthStyleInHeader
	}
	return &OAuth2Service{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       append([]string(nil), cfg.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: style,
			},
		},
		httpClient: httpClient,
		types:      identity.ClaimTypesFor(cfg.Name),
	}, nil
}

func (s *OAuth2Service) Name() string {
	return s.cfg.Name
}

func (s *OAuth2Service) ClaimTypes() identity.ClaimTypes {
	return s.types
}

func (s *OAuth2Service) AuthCodeURL(state, redirectURI string) string {
	conf := s.oauth
	conf.RedirectURL = redirectURI
	return conf.AuthCodeURL(state)
}

func (s *OAuth2Service) Exchange(ctx context.Context, code, redirectURI string) (Token, error) {
	conf := s.oauth
	conf.RedirectURL = redirectURI
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return Token{}, &Error{
				Provider:    s.cfg.Name,
				Op:          "exchange",
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
				Err:         err,
			}
		}
		return Token{}, fmt.Errorf("provider %s: exchange: %w", s.cfg.Name, err)
	}

	out := Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}
	if key := s.cfg.Fields.TokenEmail; key != "" {
		if email, ok := tok.Extra(key).(string); ok {
			out.Email = email
		}
	}
	return out, nil
}

func (s *OAuth2Service) FetchProfile(ctx context.Context, token Token) (identity.Profile, error) {
	req, err := s.profileRequest(ctx, token.AccessToken)
	if err != nil {
		return identity.Profile{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("provider %s: profile: %w", s.cfg.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.Profile{}, fmt.Errorf("provider %s: profile: %w", s.cfg.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return identity.Profile{}, &Error{
			Provider:    s.cfg.Name,
			Op:          "profile",
			Code:        strconv.Itoa(resp.StatusCode),
			Description: http.StatusText(resp.StatusCode),
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return identity.Profile{}, &Error{Provider: s.cfg.Name, Op: "profile", Description: "malformed profile response", Err: err}
	}
	return s.mapProfile(doc, token)
}

func (s *OAuth2Service) profileRequest(ctx context.Context, accessToken string) (*http.Request, error) {
	u, err := url.Parse(s.cfg.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: userinfo url: %v", ErrInvalidConfig, s.cfg.Name, err)
	}
	q := u.Query()
	for k, v := range s.cfg.ExtraParams {
		q.Set(k, v)
	}
	if s.cfg.SignRequests {
		q.Set("sig", signParams(q, accessToken, s.cfg.ClientSecret))
	}
	if s.cfg.TokenParam != "" {
		q.Set(s.cfg.TokenParam, accessToken)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.TokenParam == "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return req, nil
}

// signParams computes the md5 request signature used by odnoklassniki:
// md5(sorted "k=v" pairs + md5(accessToken + secret)).
func signParams(q url.Values, accessToken, secret string) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.Get(k))
	}
	inner := md5.Sum([]byte(accessToken + secret))
	b.WriteString(hex.EncodeToString(inner[:]))
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (s *OAuth2Service) mapProfile(doc any, token Token) (identity.Profile, error) {
	f := s.cfg.Fields
	root := doc
	if f.Root != "" {
		var ok bool
		if root, ok = lookupPath(doc, f.Root); !ok {
			return identity.Profile{}, &Error{Provider: s.cfg.Name, Op: "profile", Description: "profile root not found"}
		}
	}

	id := stringAt(root, f.ID)
	if id == "" {
		return identity.Profile{}, &Error{Provider: s.cfg.Name, Op: "profile", Description: "profile has no id"}
	}
	name := stringAt(root, f.Name)
	if name == "" {
		name = strings.TrimSpace(stringAt(root, f.FirstName) + " " + stringAt(root, f.LastName))
	}
	email := stringAt(root, f.Email)
	if email == "" {
		email = token.Email
	}

	return identity.Profile{
		Provider:    s.cfg.Name,
		ExternalID:  id,
		Email:       strings.TrimSpace(email),
		Name:        name,
		Avatar:      stringAt(root, f.Avatar),
		AccessToken: token.AccessToken,
	}, nil
}

func stringAt(doc any, path string) string {
	if path == "" {
		return ""
	}
	v, ok := lookupPath(doc, path)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func lookupPath(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
