package committee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/logweave/logweave/internal/logx"
)

// draftSystemPrompt instructs the model to return strictly a JSON array of
// draft objects, generalizing numeric runs to the NUMNUM placeholder rather
// than emitting a live numeric regex -- the catalog substitutes the real
// numeric pattern at persistence time.
const draftSystemPrompt = `You are a log template engineer. Given sample log lines, ` +
	`propose regular expression templates that generalize them. Reply with ` +
	`a JSON array only, no prose, no markdown fences. Each element has keys ` +
	`"pattern", "sample_log", "semantic_info", "advise". In "pattern", replace ` +
	`every numeric run with the literal token NUMNUM instead of a digit regex.`

// AuthConfig selects how HTTPBackend authenticates to the chat completions
// endpoint: a static bearer token, an OAuth2 client-credentials flow, or a
// locally-signed JWT assertion (resolved via *_ref dot-paths into a secrets
// document by the config loader before reaching here).
type AuthConfig struct {
	BearerToken string
	OAuth2      *clientcredentials.Config // nil disables OAuth2
	JWT         *JWTSigner                // nil disables JWT signing
}

// JWTSigner mints a short-lived HS256 bearer assertion per request, for
// gateways that authenticate with a locally-held signing key instead of an
// OAuth2 exchange.
type JWTSigner struct {
	SigningKey []byte
	Issuer     string
	Subject    string
	TTL        time.Duration // zero selects 5 minutes
}

// Sign mints a fresh token. Called once per Draft call; JWTSigner holds no
// cached token since assertions are meant to be short-lived.
func (s *JWTSigner) Sign() (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   s.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.SigningKey)
}

// HTTPBackend drafts templates via an OpenAI-compatible chat completions
// endpoint. Grounded on core/committee.py's model-backed drafting path,
// collapsing its langchain/langgraph backend distinction into one HTTP
// client since both ultimately call a chat completions API.
type HTTPBackend struct {
	Endpoint string
	Model    string
	Auth     AuthConfig
	Client   *http.Client
	Limiter  *rate.Limiter // nil disables client-side rate limiting
}

// NewHTTPBackend returns an HTTPBackend with a default 30s HTTP client and
// a limiter of rps requests/second (burst 1) when rps > 0.
func NewHTTPBackend(endpoint, model string, auth AuthConfig, rps float64) *HTTPBackend {
	b := &HTTPBackend{
		Endpoint: endpoint,
		Model:    model,
		Auth:     auth,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
	if rps > 0 {
		b.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return b
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Draft implements Backend by sending samples to the configured chat
// completions endpoint and tolerantly parsing the reply.
func (b *HTTPBackend) Draft(ctx context.Context, samples []string) ([]Draft, error) {
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	token, err := b.bearerToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("committee: resolving auth token: %w", err)
	}

	reqBody := chatRequest{
		Model: b.Model,
		Messages: []chatMessage{
			{Role: "system", Content: draftSystemPrompt},
			{Role: "user", Content: strings.Join(samples, "\n")},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("committee: draft request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("committee: draft request: status %d: %s", resp.StatusCode, string(body))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("committee: decoding chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, nil
	}

	schema, err := compileDraftSchema()
	if err != nil {
		return nil, err
	}

	raws := parseJSONAfterThink(cr.Choices[0].Message.Content)
	drafts := make([]Draft, 0, len(raws))
	for _, r := range raws {
		if err := validateDraft(r); err != nil {
			continue
		}
		if !validateAgainstSchema(schema, r) {
			logx.Warnf("committee: dropping draft that failed schema validation: %q", r.Pattern)
			continue
		}
		drafts = append(drafts, Draft{
			Pattern:      r.Pattern,
			SampleLog:    r.SampleLog,
			SemanticInfo: r.SemanticInfo,
			Advise:       r.Advise,
		})
	}
	return drafts, nil
}

// bearerToken resolves the Authorization header value: a static token takes
// priority, then a locally-signed JWT, then an OAuth2 client-credentials
// exchange whose access token is used.
func (b *HTTPBackend) bearerToken(ctx context.Context) (string, error) {
	if b.Auth.BearerToken != "" {
		return b.Auth.BearerToken, nil
	}
	if b.Auth.JWT != nil {
		return b.Auth.JWT.Sign()
	}
	if b.Auth.OAuth2 == nil {
		return "", nil
	}
	var token *oauth2.Token
	token, err := b.Auth.OAuth2.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}
