package utils

import "testing"

func TestShortName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"arn:aws:eks:us-east-1:123456789012:cluster/demo", "demo"},
		{"arn:aws:iam::123456789012:role/service/eks-role", "eks-role"},
		{"plain-string", "plain-string"},
		{"", ""},
	}

	for _, tt := range tests {
		got := ShortName(tt.input)
		if got != tt.want {
			t.Errorf("ShortName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRegionFromARN(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"arn:aws:eks:eu-central-1:123456789012:cluster/demo", "eu-central-1", false},
		{"arn:aws-cn:eks:cn-north-1:123456789012:cluster/demo", "cn-north-1", false},
		{"arn:aws:iam::123456789012:role/eks", "", true},
		{"not-an-arn", "", true},
	}

	for _, tt := range tests {
		got, err := RegionFromARN(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("RegionFromARN(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("RegionFromARN(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAccountFromARN(t *testing.T) {
	got, err := AccountFromARN("arn:aws:eks:us-east-1:123456789012:cluster/demo")
	if err != nil || got != "123456789012" {
		t.Errorf("AccountFromARN = %q, %v", got, err)
	}
	if _, err := AccountFromARN("nope"); err == nil {
		t.Error("expected error for malformed ARN")
	}
}
