package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Scheme identifies the authentication scheme used for outbound CyberSource calls.
type Scheme string

const (
	// SchemeHTTPSignature is the HMAC-SHA256 HTTP signature scheme. This is the
	// only scheme with a working implementation.
	SchemeHTTPSignature Scheme = "http_signature"
	// SchemeJWT is certificate-based JWT authentication. Not supported.
	SchemeJWT Scheme = "jwt"
	// SchemeOAuth is OAuth bearer-token authentication. Not supported.
	SchemeOAuth Scheme = "oauth"
)

// SigningContext carries everything needed to sign one outbound request.
// The date is captured once at construction so every header of a single
// request embeds the same timestamp; recomputing it per header would skew
// the Date header against the signed string and invalidate the signature.
type SigningContext struct {
	Host           string
	OrganizationID string
	AccessKey      string
	SecretKey      string
	Date           string
}

// NewSigningContext builds a signing context with the date fixed at now,
// formatted per RFC 7231.
func NewSigningContext(host, organizationID, accessKey, secretKey string, now time.Time) SigningContext {
	return SigningContext{
		Host:           host,
		OrganizationID: organizationID,
		AccessKey:      accessKey,
		SecretKey:      secretKey,
		Date:           now.UTC().Format(http.TimeFormat),
	}
}

// SignedHeaders is the full header set for one signed request. Digest is
// empty for methods that carry no payload.
type SignedHeaders struct {
	Host        string
	ContentType string
	MerchantID  string
	Date        string
	Signature   string
	Digest      string
}

// Map returns the headers as name/value pairs ready to attach to a request.
func (h SignedHeaders) Map() map[string]string {
	m := map[string]string{
		"Host":            h.Host,
		"Content-Type":    h.ContentType,
		"v-c-merchant-id": h.MerchantID,
		"Date":            h.Date,
		"Signature":       h.Signature,
	}
	if h.Digest != "" {
		m["Digest"] = h.Digest
	}
	return m
}

// Signer produces the signed header set for a single request.
type Signer interface {
	SignedHeaders(method, path string, body []byte) (SignedHeaders, error)
}

// NewSigner selects a signer for the given scheme. Only the HTTP signature
// scheme is implemented; the JWT and OAuth variants fail here, at selection
// time, rather than on first use.
func NewSigner(scheme Scheme, sc SigningContext) (Signer, error) {
	switch scheme {
	case SchemeHTTPSignature:
		return &httpSignatureSigner{sc: sc}, nil
	case SchemeJWT, SchemeOAuth:
		return nil, fmt.Errorf("gateway: auth scheme %q is not supported", scheme)
	default:
		return nil, fmt.Errorf("gateway: unknown auth scheme %q", scheme)
	}
}

// httpSignatureSigner implements the CyberSource HTTP signature scheme:
// an HMAC-SHA256 over a canonical header string, keyed by the base64-decoded
// shared secret.
type httpSignatureSigner struct {
	sc SigningContext
}

const (
	headerListNoDigest   = "host date request-target v-c-merchant-id"
	headerListWithDigest = "host date request-target digest v-c-merchant-id"
)

// Digest returns the payload digest header value content: base64(SHA-256(body)).
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// methodHasPayload reports whether the digest line participates in the
// signature. GET and DELETE never carry one, POST/PUT/PATCH always do, even
// for an empty body.
func methodHasPayload(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

func (s *httpSignatureSigner) SignedHeaders(method, path string, body []byte) (SignedHeaders, error) {
	target := strings.ToLower(method) + " " + path

	headers := SignedHeaders{
		Host:        s.sc.Host,
		ContentType: "application/json",
		MerchantID:  s.sc.OrganizationID,
		Date:        s.sc.Date,
	}

	lines := []string{
		"host: " + s.sc.Host,
		"date: " + s.sc.Date,
		"request-target: " + target,
	}
	headerList := headerListNoDigest
	if methodHasPayload(method) {
		digest := Digest(body)
		headers.Digest = "SHA-256=" + digest
		lines = append(lines, "digest: SHA-256="+digest)
		headerList = headerListWithDigest
	}
	lines = append(lines, "v-c-merchant-id: "+s.sc.OrganizationID)

	signature, err := s.sign(strings.Join(lines, "\n"))
	if err != nil {
		return SignedHeaders{}, err
	}

	headers.Signature = fmt.Sprintf("keyid=%q,algorithm=%q,headers=%q,signature=%q",
		s.sc.AccessKey, "HmacSHA256", headerList, signature)
	return headers, nil
}

// sign computes base64(HMAC-SHA256(canonical, base64decode(secretKey))).
func (s *httpSignatureSigner) sign(canonical string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(s.sc.SecretKey)
	if err != nil {
		return "", fmt.Errorf("gateway: secret key is not valid base64: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
