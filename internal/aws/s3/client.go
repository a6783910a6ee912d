package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const kubeconfigPrefix = "kubeconfigs"

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

type S3API interface {
	GetBucketLocation(ctx context.Context, params *awss3.GetBucketLocationInput, optFns ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

type Client struct {
	api S3API
	now func() time.Time
}

func NewClient(api S3API) *Client {
	return &Client{api: api, now: time.Now}
}

// KubeconfigKey is the object key a cluster's kubeconfig is published under.
func KubeconfigKey(deploymentID, clusterName string) string {
	if deploymentID == "" {
		return path.Join(kubeconfigPrefix, clusterName+".yaml")
	}
	return path.Join(kubeconfigPrefix, deploymentID, clusterName+".yaml")
}

// BucketRegion returns the region a bucket lives in.
func (c *Client) BucketRegion(ctx context.Context, bucket string) (string, error) {
	out, err := c.api.GetBucketLocation(ctx, &awss3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", fmt.Errorf("GetBucketLocation(%s): %w", bucket, err)
	}
	region := string(out.LocationConstraint)
	if region == "" {
		region = "us-east-1"
	}
	return region, nil
}

func regionOpt(region string) []func(*awss3.Options) {
	if region == "" {
		return nil
	}
	return []func(*awss3.Options){func(o *awss3.Options) {
		o.Region = region
	}}
}

// Put writes body to bucket/key with server-side encryption, in the
// bucket's own region.
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte, contentType string) (PublishedObject, error) {
	region, err := c.BucketRegion(ctx, bucket)
	if err != nil {
		return PublishedObject{}, err
	}

	out, err := c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:               aws.String(bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentLength:        aws.Int64(int64(len(body))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	}, regionOpt(region)...)
	if err != nil {
		return PublishedObject{}, fmt.Errorf("PutObject(%s/%s): %w", bucket, key, err)
	}

	return PublishedObject{
		Bucket:    bucket,
		Key:       key,
		Region:    region,
		ETag:      aws.ToString(out.ETag),
		Size:      int64(len(body)),
		WrittenAt: c.now(),
	}, nil
}

// Get reads bucket/key. A missing key returns ErrObjectNotFound.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	region, err := c.BucketRegion(ctx, bucket)
	if err != nil {
		return nil, err
	}

	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, regionOpt(region)...)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("GetObject(%s/%s): %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("GetObject(%s/%s): %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Delete removes bucket/key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	region, err := c.BucketRegion(ctx, bucket)
	if err != nil {
		return err
	}

	_, err = c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, regionOpt(region)...)
	if err != nil {
		return fmt.Errorf("DeleteObject(%s/%s): %w", bucket, key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound"
	}
	return false
}
