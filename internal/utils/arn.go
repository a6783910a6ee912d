package utils

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// ShortName extracts the last segment after "/" from an ARN or path.
// Returns the input unchanged if no "/" is found.
func ShortName(arn string) string {
	if parts := strings.Split(arn, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return arn
}

// RegionFromARN returns the region field of an ARN.
func RegionFromARN(s string) (string, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse ARN %q: %w", s, err)
	}
	if parsed.Region == "" {
		return "", fmt.Errorf("ARN %q has no region", s)
	}
	return parsed.Region, nil
}

// AccountFromARN returns the account ID field of an ARN.
func AccountFromARN(s string) (string, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse ARN %q: %w", s, err)
	}
	return parsed.AccountID, nil
}
