// Package statetoken signs and verifies the OAuth state parameter.
//
// A token is "<body>.<signature>" where body is the base64url JSON payload
// and signature is HMAC-SHA256 over the encoded body. The token is
// self-verifying so it can travel through the tracker's redirect in a query
// string; it is never trusted without a signature check.
package statetoken

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/backlog-broker/internal/config"
	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/jrsteele09/backlog-broker/spaceurl"
	"golang.org/x/crypto/hkdf"
)

const (
	separator   = "."
	maxIDLength = 128
	keyInfo     = "oauth-state"
	keyLength   = 32
)

var encoding = base64.RawURLEncoding.Strict()

// Payload is the signed content of a state token.
type Payload struct {
	ID       string `json:"id"`
	SpaceURL string `json:"spaceUrl"`
	Exp      int64  `json:"exp"` // Unix seconds
}

// Codec signs and verifies state tokens with a key derived from the server secret.
type Codec struct {
	key     []byte
	method  *jwtlib.SigningMethodHMAC
	nowTime func() time.Time
}

// CodecOption defines a function type to modify the Codec instance.
type CodecOption func(*Codec)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowTime = nowFunc
	}
}

// NewCodec derives the signing key from secret. A secret shorter than 32
// bytes is a configuration error.
func NewCodec(secret []byte, options ...CodecOption) (*Codec, error) {
	if len(secret) < config.MinSigningSecretLength {
		return nil, apperrors.Config("statetoken.NewCodec", "signing secret must be at least 32 bytes")
	}

	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("[statetoken.NewCodec] derive key: %w", err)
	}

	c := &Codec{
		key:     key,
		method:  jwtlib.SigningMethodHS256,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Sign serializes and signs p.
func (c *Codec) Sign(p Payload) (string, error) {
	if err := validatePayload(p); err != nil {
		return "", fmt.Errorf("[statetoken.Sign] %w", err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("[statetoken.Sign] marshal payload: %w", err)
	}
	body := encoding.EncodeToString(raw)

	sig, err := c.method.Sign(body, c.key)
	if err != nil {
		return "", fmt.Errorf("[statetoken.Sign] sign: %w", err)
	}
	return body + separator + encoding.EncodeToString(sig), nil
}

// Verify checks the signature, expiry and schema of token. Any failure is
// reported as an authentication error without saying which check failed.
func (c *Codec) Verify(token string) (Payload, error) {
	const op = "statetoken.Verify"

	idx := strings.LastIndex(token, separator)
	if idx <= 0 || idx == len(token)-1 {
		return Payload{}, apperrors.Auth(op, fmt.Errorf("malformed token"))
	}
	body, encodedSig := token[:idx], token[idx+1:]

	sig, err := encoding.DecodeString(encodedSig)
	if err != nil {
		return Payload{}, apperrors.Auth(op, fmt.Errorf("decode signature: %w", err))
	}
	// hmac.Equal inside Verify keeps the comparison constant time.
	if err := c.method.Verify(body, sig, c.key); err != nil {
		return Payload{}, apperrors.Auth(op, fmt.Errorf("signature mismatch: %w", err))
	}

	raw, err := encoding.DecodeString(body)
	if err != nil {
		return Payload{}, apperrors.Auth(op, fmt.Errorf("decode body: %w", err))
	}

	var p Payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, apperrors.Auth(op, fmt.Errorf("decode payload: %w", err))
	}
	if err := validatePayload(p); err != nil {
		return Payload{}, apperrors.Auth(op, err)
	}

	if !c.nowTime().Before(time.Unix(p.Exp, 0)) {
		return Payload{}, apperrors.Auth(op, fmt.Errorf("state expired"))
	}
	return p, nil
}

func validatePayload(p Payload) error {
	if p.ID == "" || len(p.ID) > maxIDLength {
		return fmt.Errorf("invalid id")
	}
	if p.Exp <= 0 {
		return fmt.Errorf("invalid exp")
	}
	normalized, err := spaceurl.Validate(p.SpaceURL)
	if err != nil || normalized != p.SpaceURL {
		return fmt.Errorf("invalid spaceUrl")
	}
	return nil
}
