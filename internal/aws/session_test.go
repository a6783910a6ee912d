package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type mockCallerIdentityAPI struct {
	out *sts.GetCallerIdentityOutput
	err error
}

func (m *mockCallerIdentityAPI) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return m.out, m.err
}

func TestGetCallerIdentity(t *testing.T) {
	api := &mockCallerIdentityAPI{out: &sts.GetCallerIdentityOutput{
		Account: sdkaws.String("123456789012"),
		Arn:     sdkaws.String("arn:aws:iam::123456789012:user/ops"),
		UserId:  sdkaws.String("AIDA123"),
	}}

	id, err := getCallerIdentity(context.Background(), api)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Account != "123456789012" || id.ARN != "arn:aws:iam::123456789012:user/ops" || id.UserID != "AIDA123" {
		t.Errorf("identity = %+v", id)
	}
}

func TestGetCallerIdentity_Error(t *testing.T) {
	api := &mockCallerIdentityAPI{err: errors.New("ExpiredToken")}

	if _, err := getCallerIdentity(context.Background(), api); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestNewServiceClientFromConfig(t *testing.T) {
	cfg := sdkaws.Config{
		Region:      "eu-west-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	}

	sc := NewServiceClientFromConfig(cfg)
	if sc.Region != "eu-west-1" {
		t.Errorf("Region = %q", sc.Region)
	}
	if sc.EKS == nil || sc.Issuer == nil || sc.VPC == nil || sc.IAM == nil || sc.S3 == nil || sc.Logs == nil {
		t.Errorf("service client has nil members: %+v", sc)
	}
}
