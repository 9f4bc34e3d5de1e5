// Package main implements the schema inference command. It reads
// newline-delimited JSON records from a file, stdin, or an S3 object and
// prints the unified schema descriptor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gurre/multidata/aws"
	"github.com/gurre/multidata/jsonutil"
	"github.com/gurre/multidata/recordio"
	"github.com/gurre/multidata/s3store"
	"github.com/gurre/multidata/schema"
	"github.com/gurre/s3streamer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("schemainfer", flag.ExitOnError)

	input := fs.String("input", "-", "NDJSON file to analyze, or - for stdin")
	s3URI := fs.String("s3", "", "S3 URI of an NDJSON object (s3://bucket/key)")
	region := fs.String("region", "", "AWS region (defaults to AWS_REGION env)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	var descriptor schema.Descriptor
	var err error
	if *s3URI != "" {
		descriptor, err = inferFromS3(context.Background(), *s3URI, *region)
	} else {
		descriptor, err = inferFromReader(*input)
	}
	if err != nil {
		return err
	}

	out, err := jsonutil.MarshalIndent(descriptor)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func inferFromReader(input string) (schema.Descriptor, error) {
	reader := os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	}

	records, err := recordio.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	descriptor, err := schema.Infer(records)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema: %w", err)
	}
	return descriptor, nil
}

func inferFromS3(ctx context.Context, uri, region string) (schema.Descriptor, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	rawClient := s3.NewFromConfig(awsCfg)
	store := s3store.NewStore(aws.NewS3Client(rawClient), s3streamer.NewS3Streamer(rawClient), nil)

	descriptor, err := store.InferSchema(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema from %s: %w", uri, err)
	}
	return descriptor, nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid S3 URI %s: must start with s3://", uri)
	}
	bucket, key, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %s: expected s3://bucket/key", uri)
	}
	return bucket, key, nil
}
