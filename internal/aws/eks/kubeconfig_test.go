package eks

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestNewKubeConfig_Shape(t *testing.T) {
	kc := NewKubeConfig("https://EXAMPLE", "Zm9v", "k8s-aws-v1.abc")

	if kc.APIVersion != "v1" || kc.Kind != "Config" {
		t.Errorf("header = %s/%s", kc.APIVersion, kc.Kind)
	}
	if len(kc.Clusters) != 1 || len(kc.Contexts) != 1 || len(kc.Users) != 1 {
		t.Fatalf("got %d clusters, %d contexts, %d users; want one of each",
			len(kc.Clusters), len(kc.Contexts), len(kc.Users))
	}
	if kc.Clusters[0].Name != "kubernetes" || kc.Clusters[0].Cluster.Server != "https://EXAMPLE" {
		t.Errorf("cluster = %+v", kc.Clusters[0])
	}
	if kc.Clusters[0].Cluster.CertificateAuthorityData != "Zm9v" {
		t.Errorf("CA = %q, want it copied verbatim", kc.Clusters[0].Cluster.CertificateAuthorityData)
	}
	if kc.CurrentContext != "aws" || kc.Contexts[0].Name != "aws" {
		t.Errorf("current-context = %q, context = %q", kc.CurrentContext, kc.Contexts[0].Name)
	}
	if kc.Contexts[0].Context.Cluster != "kubernetes" || kc.Contexts[0].Context.User != "aws" {
		t.Errorf("context refs = %+v", kc.Contexts[0].Context)
	}
	if kc.Token() != "k8s-aws-v1.abc" {
		t.Errorf("Token() = %q", kc.Token())
	}
}

func TestIssuer_Kubeconfig(t *testing.T) {
	fp := &fakePresigner{url: "https://sts.us-east-1.amazonaws.com/?Action=GetCallerIdentity&Version=2011-06-15"}
	issuer := NewIssuerWithPresigner(fp)

	kc, err := issuer.Kubeconfig(t.Context(), "https://EXAMPLE", "Zm9v", "demo")
	if err != nil {
		t.Fatalf("Kubeconfig: %v", err)
	}

	tok := kc.Token()
	if !strings.HasPrefix(tok, TokenPrefix) {
		t.Errorf("token %q missing prefix", tok)
	}
	if strings.Contains(tok, "=") {
		t.Errorf("token %q contains padding", tok)
	}
	decoded, err := DecodeToken(tok)
	if err != nil || decoded != fp.url {
		t.Errorf("DecodeToken = %q, %v", decoded, err)
	}
}

func TestKubeConfig_YAML(t *testing.T) {
	data, err := NewKubeConfig("https://EXAMPLE", "Zm9v", "k8s-aws-v1.abc").YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"apiVersion: v1",
		"kind: Config",
		"current-context: aws",
		"preferences: {}",
		"certificate-authority-data: Zm9v",
		"server: https://EXAMPLE",
		"token: k8s-aws-v1.abc",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML missing %q:\n%s", want, out)
		}
	}

	var back KubeConfig
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Token() != "k8s-aws-v1.abc" {
		t.Errorf("token after reparse = %q", back.Token())
	}
}

func TestKubeConfig_Map(t *testing.T) {
	m, err := NewKubeConfig("https://EXAMPLE", "Zm9v", "tok").Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if m["current-context"] != "aws" {
		t.Errorf("current-context = %v", m["current-context"])
	}
	clusters, ok := m["clusters"].([]any)
	if !ok || len(clusters) != 1 {
		t.Fatalf("clusters = %#v", m["clusters"])
	}
	prefs, ok := m["preferences"].(map[string]any)
	if !ok || len(prefs) != 0 {
		t.Errorf("preferences = %#v, want empty map", m["preferences"])
	}
}

func TestKubeConfig_Validate(t *testing.T) {
	kc := NewKubeConfig("https://EXAMPLE", "Zm9v", "tok")
	if err := kc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	kc.CurrentContext = "missing"
	if err := kc.Validate(); err == nil {
		t.Error("Validate accepted a dangling current-context")
	}

	kc = NewKubeConfig("https://EXAMPLE", "Zm9v", "tok")
	kc.Contexts[0].Context.User = "nobody"
	if err := kc.Validate(); err == nil {
		t.Error("Validate accepted a context with an unknown user")
	}
}

func TestExecCredential(t *testing.T) {
	exp := time.Date(2024, 5, 1, 12, 15, 0, 0, time.UTC)
	data, err := ExecCredential(Token{Value: "k8s-aws-v1.xyz", Expiration: exp})
	if err != nil {
		t.Fatalf("ExecCredential: %v", err)
	}

	var got struct {
		APIVersion string `json:"apiVersion"`
		Kind       string `json:"kind"`
		Status     struct {
			Token               string `json:"token"`
			ExpirationTimestamp string `json:"expirationTimestamp"`
		} `json:"status"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.APIVersion != "client.authentication.k8s.io/v1beta1" || got.Kind != "ExecCredential" {
		t.Errorf("type = %s/%s", got.APIVersion, got.Kind)
	}
	if got.Status.Token != "k8s-aws-v1.xyz" {
		t.Errorf("token = %q", got.Status.Token)
	}
	if got.Status.ExpirationTimestamp != "2024-05-01T12:15:00Z" {
		t.Errorf("expirationTimestamp = %q", got.Status.ExpirationTimestamp)
	}
}

func TestSerializationError(t *testing.T) {
	inner := errors.New("bad value")
	err := error(&SerializationError{Format: "yaml", Err: inner})

	if !errors.Is(err, ErrNotSerializable) {
		t.Error("SerializationError should match ErrNotSerializable")
	}
	if !errors.Is(err, inner) {
		t.Error("SerializationError should unwrap to the cause")
	}
}
