package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Postwork-Signature"
)

// ErrUnauthorized marks every verification failure.
var ErrUnauthorized = errors.New("webhooks: callback is not authorized")

// CallbackRequest is the raw inbound callback as received over HTTP.
type CallbackRequest struct {
	BlockID string
	Headers http.Header
	Body    []byte
}

type Verifier interface {
	Verify(ctx context.Context, req CallbackRequest) error
}

type VerifierFunc func(ctx context.Context, req CallbackRequest) error

func (f VerifierFunc) Verify(ctx context.Context, req CallbackRequest) error {
	return f(ctx, req)
}

type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, req CallbackRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("%w: verification token is not configured", ErrUnauthorized)
	}
	actual := strings.TrimSpace(req.Headers.Get(v.Header))
	if actual == "" {
		return fmt.Errorf("%w: %s header is required", ErrUnauthorized, strings.TrimSpace(v.Header))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("%w: token mismatch", ErrUnauthorized)
	}
	return nil
}

type BearerTokenVerifier struct {
	Token string
}

func (v BearerTokenVerifier) Verify(_ context.Context, req CallbackRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("%w: verification token is not configured", ErrUnauthorized)
	}
	header := strings.TrimSpace(req.Headers.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return fmt.Errorf("%w: bearer authorization is required", ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(expected)) != 1 {
		return fmt.Errorf("%w: token mismatch", ErrUnauthorized)
	}
	return nil
}

// BodyFieldVerifier compares a top-level string field of a JSON body.
type BodyFieldVerifier struct {
	Field string
	Token string
}

func (v BodyFieldVerifier) Verify(_ context.Context, req CallbackRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("%w: verification token is not configured", ErrUnauthorized)
	}
	var fields map[string]any
	if err := json.Unmarshal(req.Body, &fields); err != nil {
		return fmt.Errorf("%w: body is not a json object", ErrUnauthorized)
	}
	actual, _ := fields[v.Field].(string)
	if strings.TrimSpace(actual) == "" {
		return fmt.Errorf("%w: %s is required", ErrUnauthorized, v.Field)
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(actual)), []byte(expected)) != 1 {
		return fmt.Errorf("%w: token mismatch", ErrUnauthorized)
	}
	return nil
}

type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req CallbackRequest) error {
	header := strings.TrimSpace(req.Headers.Get(v.Header))
	if header == "" {
		return fmt.Errorf("%w: %s signature header is required", ErrUnauthorized, strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("%w: signature secret is not configured", ErrUnauthorized)
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return fmt.Errorf("%w: signature value is required", ErrUnauthorized)
	}

	expected := Sign(secret, req.Body)
	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return fmt.Errorf("%w: decode signature: %v", ErrUnauthorized, err)
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("%w: signature verification failed", ErrUnauthorized)
	}
	return nil
}

// Sign returns the HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// AnyVerifier accepts a request once one of its verifiers does.
type AnyVerifier []Verifier

func (a AnyVerifier) Verify(ctx context.Context, req CallbackRequest) error {
	var lastErr error
	for _, verifier := range a {
		if verifier == nil {
			continue
		}
		err := verifier.Verify(ctx, req)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return fmt.Errorf("%w: no verifier configured", ErrUnauthorized)
	}
	return lastErr
}

// NewAPIKeyVerifier accepts the key from the X-Api-Key header, a bearer
// token, or the api_key body field echoed from the dispatch payload.
func NewAPIKeyVerifier(apiKey string) Verifier {
	apiKey = strings.TrimSpace(apiKey)
	return AnyVerifier{
		HeaderTokenVerifier{Header: HeaderAPIKey, Token: apiKey},
		BearerTokenVerifier{Token: apiKey},
		BodyFieldVerifier{Field: "api_key", Token: apiKey},
	}
}

// NewSignatureVerifier checks X-Postwork-Signature: sha256=<hex>.
func NewSignatureVerifier(secret string) Verifier {
	return HeaderHMACVerifier{
		Header:   HeaderSignature,
		Prefix:   "sha256=",
		Secret:   secret,
		Encoding: "hex",
	}
}
