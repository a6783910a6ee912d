package eks

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	clientauthv1beta1 "k8s.io/client-go/pkg/apis/clientauthentication/v1beta1"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	kubeconfigCluster = "kubernetes"
	kubeconfigUser    = "aws"
	kubeconfigContext = "aws"
)

// KubeConfig is a self-contained kubeconfig document with a single cluster,
// context, and token user. It is built once and not modified afterwards.
type KubeConfig struct {
	APIVersion     string         `yaml:"apiVersion" json:"apiVersion"`
	Kind           string         `yaml:"kind" json:"kind"`
	Clusters       []NamedCluster `yaml:"clusters" json:"clusters"`
	Contexts       []NamedContext `yaml:"contexts" json:"contexts"`
	CurrentContext string         `yaml:"current-context" json:"current-context"`
	Preferences    Preferences    `yaml:"preferences" json:"preferences"`
	Users          []NamedUser    `yaml:"users" json:"users"`
}

type NamedCluster struct {
	Cluster ClusterInfo `yaml:"cluster" json:"cluster"`
	Name    string      `yaml:"name" json:"name"`
}

type ClusterInfo struct {
	Server                   string `yaml:"server" json:"server"`
	CertificateAuthorityData string `yaml:"certificate-authority-data" json:"certificate-authority-data"`
}

type NamedContext struct {
	Context ContextInfo `yaml:"context" json:"context"`
	Name    string      `yaml:"name" json:"name"`
}

type ContextInfo struct {
	Cluster string `yaml:"cluster" json:"cluster"`
	User    string `yaml:"user" json:"user"`
}

type NamedUser struct {
	Name string   `yaml:"name" json:"name"`
	User UserInfo `yaml:"user" json:"user"`
}

type UserInfo struct {
	Token string `yaml:"token" json:"token"`
}

// Preferences renders as an empty mapping.
type Preferences struct{}

// NewKubeConfig assembles the document. caData is already base64 and is
// copied as-is.
func NewKubeConfig(endpoint, caData, token string) *KubeConfig {
	return &KubeConfig{
		APIVersion: "v1",
		Kind:       "Config",
		Clusters: []NamedCluster{{
			Cluster: ClusterInfo{
				Server:                   endpoint,
				CertificateAuthorityData: caData,
			},
			Name: kubeconfigCluster,
		}},
		Contexts: []NamedContext{{
			Context: ContextInfo{
				Cluster: kubeconfigCluster,
				User:    kubeconfigUser,
			},
			Name: kubeconfigContext,
		}},
		CurrentContext: kubeconfigContext,
		Users: []NamedUser{{
			Name: kubeconfigUser,
			User: UserInfo{Token: token},
		}},
	}
}

// Token returns the bearer token of the single user.
func (k *KubeConfig) Token() string {
	if len(k.Users) == 0 {
		return ""
	}
	return k.Users[0].User.Token
}

// YAML renders the document as kubeconfig YAML.
func (k *KubeConfig) YAML() ([]byte, error) {
	data, err := yaml.Marshal(k)
	if err != nil {
		return nil, &SerializationError{Format: "yaml", Err: err}
	}
	return data, nil
}

// JSON renders the document as JSON.
func (k *KubeConfig) JSON() ([]byte, error) {
	data, err := json.Marshal(k)
	if err != nil {
		return nil, &SerializationError{Format: "json", Err: err}
	}
	return data, nil
}

// Map renders the document as a plain tree of maps, slices, and strings,
// the form persisted as runtime properties.
func (k *KubeConfig) Map() (map[string]any, error) {
	data, err := k.JSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &SerializationError{Format: "json", Err: err}
	}
	return out, nil
}

// Validate parses the rendered document with client-go and checks that the
// current context resolves to a cluster and a user.
func (k *KubeConfig) Validate() error {
	data, err := k.YAML()
	if err != nil {
		return err
	}
	cfg, err := clientcmd.Load(data)
	if err != nil {
		return fmt.Errorf("kubeconfig: %w", err)
	}

	current, ok := cfg.Contexts[cfg.CurrentContext]
	if !ok {
		return fmt.Errorf("kubeconfig: current context %q not defined", cfg.CurrentContext)
	}
	if _, ok := cfg.Clusters[current.Cluster]; !ok {
		return fmt.Errorf("kubeconfig: context %q references unknown cluster %q", cfg.CurrentContext, current.Cluster)
	}
	if _, ok := cfg.AuthInfos[current.AuthInfo]; !ok {
		return fmt.Errorf("kubeconfig: context %q references unknown user %q", cfg.CurrentContext, current.AuthInfo)
	}
	return nil
}

// ExecCredential renders tok in the format kubectl expects from an exec
// credential plugin.
func ExecCredential(tok Token) ([]byte, error) {
	expiry := metav1.NewTime(tok.Expiration.UTC())
	cred := clientauthv1beta1.ExecCredential{
		TypeMeta: metav1.TypeMeta{
			APIVersion: clientauthv1beta1.SchemeGroupVersion.String(),
			Kind:       "ExecCredential",
		},
		Status: &clientauthv1beta1.ExecCredentialStatus{
			Token:               tok.Value,
			ExpirationTimestamp: &expiry,
		},
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return nil, &SerializationError{Format: "json", Err: err}
	}
	return data, nil
}
