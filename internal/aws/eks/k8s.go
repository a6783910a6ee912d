package eks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/version"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// tokenRefreshBuffer is how close to expiry a cached token is reissued.
const tokenRefreshBuffer = time.Minute

// TokenProvider caches one cluster's bearer token and reissues it shortly
// before it expires. Safe for concurrent use.
type TokenProvider struct {
	mu     sync.Mutex
	cached Token
	issue  func(ctx context.Context) (Token, error)
	now    func() time.Time
}

// NewTokenProvider returns a TokenProvider that issues tokens for clusterName.
func NewTokenProvider(issuer *Issuer, clusterName string) *TokenProvider {
	return &TokenProvider{
		issue: func(ctx context.Context) (Token, error) {
			return issuer.Token(ctx, clusterName)
		},
		now: time.Now,
	}
}

// Token returns the cached token, issuing a new one when fewer than
// tokenRefreshBuffer remain.
func (tp *TokenProvider) Token(ctx context.Context) (string, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.cached.Value != "" && tp.cached.Expiration.Sub(tp.now()) > tokenRefreshBuffer {
		return tp.cached.Value, nil
	}

	tok, err := tp.issue(ctx)
	if err != nil {
		return "", fmt.Errorf("issuing bearer token: %w", err)
	}
	tp.cached = tok
	return tok.Value, nil
}

// WrapTransport sets the bearer token on every request sent through rt.
func (tp *TokenProvider) WrapTransport(rt http.RoundTripper) http.RoundTripper {
	return transportFunc(func(req *http.Request) (*http.Response, error) {
		tok, err := tp.Token(req.Context())
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+tok)
		return rt.RoundTrip(req)
	})
}

type transportFunc func(*http.Request) (*http.Response, error)

func (f transportFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// K8sClient talks to a cluster's API server with issued bearer tokens.
type K8sClient struct {
	Clientset kubernetes.Interface
	Config    *rest.Config
}

// NewK8sClient builds a client for the API server at endpoint. caData is the
// base64 certificate authority from DescribeCluster.
func NewK8sClient(endpoint, caData string, tokens *TokenProvider) (*K8sClient, error) {
	ca, err := base64.StdEncoding.DecodeString(caData)
	if err != nil {
		return nil, fmt.Errorf("decode CA: %w", err)
	}

	config := &rest.Config{
		Host:            endpoint,
		TLSClientConfig: rest.TLSClientConfig{CAData: ca},
		WrapTransport:   tokens.WrapTransport,
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create K8s client: %w", err)
	}
	return &K8sClient{Clientset: clientset, Config: config}, nil
}

// ServerVersion fetches /version, which only succeeds when the endpoint, CA
// and bearer token are all accepted.
func (c *K8sClient) ServerVersion(ctx context.Context) (string, error) {
	raw, err := c.Clientset.Discovery().RESTClient().Get().AbsPath("/version").Do(ctx).Raw()
	if err != nil {
		return "", fmt.Errorf("get server version: %w", err)
	}
	var info version.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", fmt.Errorf("decode server version: %w", err)
	}
	return info.GitVersion, nil
}
