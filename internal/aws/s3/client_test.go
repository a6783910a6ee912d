package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3API struct {
	getBucketLocationFunc func(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error)
	putObjectFunc         func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	getObjectFunc         func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	deleteObjectFunc      func(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

func (m *mockS3API) GetBucketLocation(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
	if m.getBucketLocationFunc == nil {
		return &awss3.GetBucketLocationOutput{LocationConstraint: s3types.BucketLocationConstraintEuCentral1}, nil
	}
	return m.getBucketLocationFunc(ctx, params, optFns...)
}

func (m *mockS3API) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	return m.putObjectFunc(ctx, params, optFns...)
}

func (m *mockS3API) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	return m.getObjectFunc(ctx, params, optFns...)
}

func (m *mockS3API) DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	return m.deleteObjectFunc(ctx, params, optFns...)
}

// appliedRegion runs optFns against a blank Options and returns the region they set.
func appliedRegion(optFns []func(*awss3.Options)) string {
	var o awss3.Options
	for _, fn := range optFns {
		fn(&o)
	}
	return o.Region
}

func TestKubeconfigKey(t *testing.T) {
	assert.Equal(t, "kubeconfigs/dep-1/demo.yaml", KubeconfigKey("dep-1", "demo"))
	assert.Equal(t, "kubeconfigs/demo.yaml", KubeconfigKey("", "demo"))
}

func TestBucketRegion_DefaultsToUSEast1(t *testing.T) {
	mock := &mockS3API{
		getBucketLocationFunc: func(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
			return &awss3.GetBucketLocationOutput{}, nil
		},
	}

	region, err := NewClient(mock).BucketRegion(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)
}

func TestPut(t *testing.T) {
	var got *awss3.PutObjectInput
	var gotRegion string
	mock := &mockS3API{
		putObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			got = params
			gotRegion = appliedRegion(optFns)
			return &awss3.PutObjectOutput{ETag: awssdk.String(`"abc"`)}, nil
		},
	}
	client := NewClient(mock)
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	obj, err := client.Put(context.Background(), "kube-bucket", "kubeconfigs/demo.yaml", []byte("apiVersion: v1\n"), "application/yaml")
	require.NoError(t, err)

	assert.Equal(t, "kube-bucket", awssdk.ToString(got.Bucket))
	assert.Equal(t, "kubeconfigs/demo.yaml", awssdk.ToString(got.Key))
	assert.Equal(t, s3types.ServerSideEncryptionAes256, got.ServerSideEncryption)
	assert.Equal(t, int64(15), awssdk.ToInt64(got.ContentLength))
	assert.Equal(t, "eu-central-1", gotRegion)

	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, "apiVersion: v1\n", string(body))

	assert.Equal(t, "s3://kube-bucket/kubeconfigs/demo.yaml", obj.URI())
	assert.Equal(t, `"abc"`, obj.ETag)
	assert.Equal(t, fixed, obj.WrittenAt)
}

func TestPut_LocationError(t *testing.T) {
	mock := &mockS3API{
		getBucketLocationFunc: func(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
			return nil, errors.New("AccessDenied")
		},
		putObjectFunc: func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			t.Fatal("PutObject should not be called")
			return nil, nil
		},
	}

	_, err := NewClient(mock).Put(context.Background(), "b", "k", nil, "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestGet(t *testing.T) {
	mock := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("kind: Config\n"))}, nil
		},
	}

	data, err := NewClient(mock).Get(context.Background(), "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "kind: Config\n", string(data))
}

func TestGet_NoSuchKey(t *testing.T) {
	mock := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return nil, &s3types.NoSuchKey{}
		},
	}

	_, err := NewClient(mock).Get(context.Background(), "b", "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDelete(t *testing.T) {
	var gotKey string
	mock := &mockS3API{
		deleteObjectFunc: func(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
			gotKey = awssdk.ToString(params.Key)
			return &awss3.DeleteObjectOutput{}, nil
		},
	}

	require.NoError(t, NewClient(mock).Delete(context.Background(), "b", "kubeconfigs/demo.yaml"))
	assert.Equal(t, "kubeconfigs/demo.yaml", gotKey)
}
