// This file contains the concrete implementations of the service interfaces.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ClientImpl implements S3Client by delegating to the AWS SDK client.
type S3ClientImpl struct {
	client *s3.Client
}

// NewS3Client creates a new S3ClientImpl instance
func NewS3Client(client *s3.Client) *S3ClientImpl {
	return &S3ClientImpl{client: client}
}

// GetObject implements the S3Client interface for reading objects
func (c *S3ClientImpl) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return c.client.GetObject(ctx, params, optFns...)
}

// PutObject implements the S3Client interface for writing objects
func (c *S3ClientImpl) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return c.client.PutObject(ctx, params, optFns...)
}

// HeadObject implements the S3Client interface for retrieving object metadata
func (c *S3ClientImpl) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return c.client.HeadObject(ctx, params, optFns...)
}

// AthenaClientImpl implements AthenaClient by delegating to the AWS SDK client.
type AthenaClientImpl struct {
	client *athena.Client
}

// NewAthenaClient creates a new AthenaClientImpl instance
func NewAthenaClient(client *athena.Client) *AthenaClientImpl {
	return &AthenaClientImpl{client: client}
}

// StartQueryExecution implements the AthenaClient interface for submitting queries
func (c *AthenaClientImpl) StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	return c.client.StartQueryExecution(ctx, params, optFns...)
}

// GetQueryExecution implements the AthenaClient interface for polling query state
func (c *AthenaClientImpl) GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	return c.client.GetQueryExecution(ctx, params, optFns...)
}

// GetQueryResults implements the AthenaClient interface for paging result sets
func (c *AthenaClientImpl) GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	return c.client.GetQueryResults(ctx, params, optFns...)
}
