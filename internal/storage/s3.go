// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage mirrors the theme export artifacts to S3-compatible
// object storage. It wraps the AWS SDK v2 and is configured for
// path-style access (required by CEPH/Hetzner).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Client uploads export artifacts to a single public bucket.
type Client struct {
	s3        *s3.Client
	bucket    string
	prefix    string // key prefix, without leading or trailing slash
	endpoint  string
	publicURL string // optional CDN/direct URL for the bucket
}

// New creates an S3 storage client configured for CEPH/Hetzner with
// path-style addressing. Returns (nil, nil) if endpoint, credentials or
// bucket are empty, allowing the app to start without a mirror.
func New(endpoint, region, accessKey, secretKey, bucket, prefix, publicURL string) (*Client, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	endpoint = strings.TrimRight(endpoint, "/")

	s3Client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:        s3Client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		endpoint:  endpoint,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Key returns the object key an artifact is stored under.
func (c *Client) Key(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

// PutArtifact uploads one artifact with public-read ACL so it can be
// served directly from the bucket.
func (c *Client) PutArtifact(ctx context.Context, name, contentType string, data []byte) error {
	key := c.Key(name)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// ArtifactURL returns the public URL of a mirrored artifact.
// Uses the configured public URL if set, otherwise builds a path-style URL.
func (c *Client) ArtifactURL(name string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + c.Key(name)
	}
	return c.endpoint + "/" + c.bucket + "/" + c.Key(name)
}
