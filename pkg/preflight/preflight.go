// Package preflight probes the target bucket with the operator's
// candidate credentials before anything is provisioned on the cluster.
//
// The in-cluster pre-check gates the workload either way; this local
// probe exists so obviously bad input (typo'd endpoint, revoked keys,
// missing bucket) fails in milliseconds instead of after a full
// provision/poll/teardown round-trip.
package preflight

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Capability names are stable strings used in reports.
const (
	CapBucketHead = "bucket.head"
	CapBucketList = "bucket.list"
)

// Normalized error codes for check results.
const (
	ErrCodeAccessDenied = "ACCESS_DENIED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeThrottled    = "THROTTLED"
	ErrCodeInternal     = "INTERNAL"
)

// S3API is the subset of the S3 client the probe uses. Tests substitute
// a fake.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// CheckResult records the outcome of a single capability probe.
type CheckResult struct {
	// Capability is the probed capability name.
	Capability string `json:"capability"`

	// Allowed reports whether the call succeeded.
	Allowed bool `json:"allowed"`

	// Method describes the call that was made.
	Method string `json:"method"`

	// ErrorCode is the normalized error class when Allowed is false.
	ErrorCode string `json:"error_code,omitempty"`

	// Detail is the raw error text when Allowed is false.
	Detail string `json:"detail,omitempty"`
}

// Report aggregates the probe results for one bucket.
type Report struct {
	Bucket  string        `json:"bucket"`
	Results []CheckResult `json:"results"`
}

// Run probes the bucket: a head-bucket call, then a single-key list.
// It returns the report and the first error encountered; the report is
// non-nil either way so callers can surface partial results.
func Run(ctx context.Context, api S3API, bucket string) (*Report, error) {
	rep := &Report{Bucket: bucket, Results: []CheckResult{}}

	_, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket})
	if err != nil {
		rep.Results = append(rep.Results, CheckResult{
			Capability: CapBucketHead,
			Allowed:    false,
			Method:     fmt.Sprintf("HeadBucket(bucket=%q)", bucket),
			ErrorCode:  normalizeErrorCode(err),
			Detail:     err.Error(),
		})
		return rep, err
	}
	rep.Results = append(rep.Results, CheckResult{
		Capability: CapBucketHead,
		Allowed:    true,
		Method:     fmt.Sprintf("HeadBucket(bucket=%q)", bucket),
	})

	one := int32(1)
	_, err = api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &bucket, MaxKeys: &one})
	if err != nil {
		rep.Results = append(rep.Results, CheckResult{
			Capability: CapBucketList,
			Allowed:    false,
			Method:     fmt.Sprintf("ListObjectsV2(bucket=%q,maxKeys=1)", bucket),
			ErrorCode:  normalizeErrorCode(err),
			Detail:     err.Error(),
		})
		return rep, err
	}
	rep.Results = append(rep.Results, CheckResult{
		Capability: CapBucketList,
		Allowed:    true,
		Method:     fmt.Sprintf("ListObjectsV2(bucket=%q,maxKeys=1)", bucket),
	})

	return rep, nil
}

// normalizeErrorCode maps S3 API error codes onto the stable set.
func normalizeErrorCode(err error) string {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ErrCodeInternal
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "Forbidden":
		return ErrCodeAccessDenied
	case "NoSuchBucket", "NotFound":
		return ErrCodeNotFound
	case "SlowDown", "TooManyRequests", "Throttling":
		return ErrCodeThrottled
	default:
		return ErrCodeInternal
	}
}
