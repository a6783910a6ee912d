package eks

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	// TokenPrefix is the required prefix for EKS bearer tokens.
	TokenPrefix = "k8s-aws-v1."

	// ClusterIDHeader is the header that identifies the cluster for token auth.
	ClusterIDHeader = "x-k8s-aws-id"

	// DefaultURLExpiry is the X-Amz-Expires window of the presigned URL.
	DefaultURLExpiry = 60 * time.Second

	// tokenExpiry is how long the token is considered valid.
	tokenExpiry = 15 * time.Minute

	expiresHeader = "X-Amz-Expires"
)

// Token is an EKS bearer token and the time it stops being accepted.
type Token struct {
	Value      string
	Expiration time.Time
}

// IdentityRequest is a GetCallerIdentity call scoped to one cluster. The
// cluster name is not a parameter of the STS call; it rides along as a signed
// header set by Transform.
type IdentityRequest struct {
	ClusterName string
	Expires     time.Duration
}

// RequestTransform edits the HTTP request immediately before it is signed.
type RequestTransform func(r *http.Request)

// Transform sets the cluster ID and expiry headers. It must run before
// signing; a header added afterwards is not covered by the signature.
func (ir IdentityRequest) Transform() RequestTransform {
	expires := ir.Expires
	if expires <= 0 {
		expires = DefaultURLExpiry
	}
	seconds := strconv.Itoa(int(expires / time.Second))
	return func(r *http.Request) {
		r.Header.Set(ClusterIDHeader, ir.ClusterName)
		r.Header.Set(expiresHeader, seconds)
	}
}

// PresignAPI is the part of sts.PresignClient used to build identity requests.
type PresignAPI interface {
	PresignGetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// BuildPresignedRequest presigns an sts:GetCallerIdentity GET for req. The
// request's own Transform runs first, then any extra transforms, all on the
// HTTP request handed to the SigV4 presigner.
func BuildPresignedRequest(ctx context.Context, presigner PresignAPI, req IdentityRequest, transforms ...RequestTransform) (*v4.PresignedHTTPRequest, error) {
	if req.ClusterName == "" {
		return nil, fmt.Errorf("presigning GetCallerIdentity: cluster name is required")
	}

	chain := append([]RequestTransform{req.Transform()}, transforms...)
	presigned, err := presigner.PresignGetCallerIdentity(ctx, &sts.GetCallerIdentityInput{},
		func(po *sts.PresignOptions) {
			po.Presigner = &transformingPresigner{base: po.Presigner, transforms: chain}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("presigning GetCallerIdentity: %w", err)
	}
	return presigned, nil
}

// transformingPresigner wraps sts.HTTPPresignerV4 and applies transforms to
// the HTTP request before signature computation.
//
// Setting headers on the request itself works around aws-sdk-go-v2#1922,
// where smithyhttp.AddHeaderValue doesn't produce valid signatures for EKS
// token auth.
type transformingPresigner struct {
	base       sts.HTTPPresignerV4
	transforms []RequestTransform
}

func (p *transformingPresigner) PresignHTTP(
	ctx context.Context, credentials aws.Credentials, r *http.Request,
	payloadHash string, service string, region string, signingTime time.Time,
	optFns ...func(*v4.SignerOptions),
) (string, http.Header, error) {
	for _, t := range p.transforms {
		t(r)
	}
	return p.base.PresignHTTP(ctx, credentials, r, payloadHash, service, region, signingTime, optFns...)
}

// EncodeToken turns a presigned URL into a bearer token.
func EncodeToken(presignedURL string) string {
	return TokenPrefix + base64.RawURLEncoding.EncodeToString([]byte(presignedURL))
}

// DecodeToken recovers the presigned URL from a bearer token.
func DecodeToken(token string) (string, error) {
	encoded, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return "", fmt.Errorf("decode token: missing %q prefix", TokenPrefix)
	}
	if rem := len(encoded) % 4; rem != 0 {
		encoded += strings.Repeat("=", 4-rem)
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	return string(raw), nil
}

// Issuer derives EKS bearer tokens and kubeconfigs from an explicitly passed
// signing identity. It makes no network calls.
type Issuer struct {
	presigner PresignAPI
	urlExpiry time.Duration
	now       func() time.Time
}

// NewIssuer creates an Issuer signing with the credentials in cfg.
func NewIssuer(cfg aws.Config) *Issuer {
	return NewIssuerWithPresigner(sts.NewPresignClient(sts.NewFromConfig(cfg)))
}

func NewIssuerWithPresigner(presigner PresignAPI) *Issuer {
	return &Issuer{
		presigner: presigner,
		urlExpiry: DefaultURLExpiry,
		now:       time.Now,
	}
}

// SetURLExpiry overrides the presigned URL window. Non-positive values are ignored.
func (i *Issuer) SetURLExpiry(d time.Duration) {
	if d > 0 {
		i.urlExpiry = d
	}
}

// Token presigns GetCallerIdentity for clusterName and encodes it as a bearer
// token. This is the same mechanism as `aws eks get-token`.
func (i *Issuer) Token(ctx context.Context, clusterName string) (Token, error) {
	presigned, err := BuildPresignedRequest(ctx, i.presigner, IdentityRequest{
		ClusterName: clusterName,
		Expires:     i.urlExpiry,
	})
	if err != nil {
		return Token{}, err
	}

	return Token{
		Value:      EncodeToken(presigned.URL),
		Expiration: i.now().Add(tokenExpiry),
	}, nil
}

// Kubeconfig issues a fresh token and embeds it in a kubeconfig for the cluster.
func (i *Issuer) Kubeconfig(ctx context.Context, endpoint, caData, clusterName string) (*KubeConfig, error) {
	tok, err := i.Token(ctx, clusterName)
	if err != nil {
		return nil, fmt.Errorf("issuing kubeconfig for %s: %w", clusterName, err)
	}
	return NewKubeConfig(endpoint, caData, tok.Value), nil
}
