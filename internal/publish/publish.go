// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package publish ships generated artifacts to the targets named in the
// config: S3-compatible buckets and hosts reachable over SSH.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ccos/internal/apierr"
	"ccos/internal/config"
	"ccos/internal/ssh"
)

// Publisher copies a local file somewhere and reports where it went.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, localPath string) (location string, err error)
}

// S3Publisher uploads to a bucket.
type S3Publisher struct {
	name     string
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Publisher builds a publisher from an s3 target. Credentials come from
// the standard AWS chain (environment, shared config, instance role).
func NewS3Publisher(ctx context.Context, target config.PublishTarget) (*S3Publisher, error) {
	if target.Bucket == "" {
		return nil, apierr.Config(fmt.Sprintf("publish target %q needs a bucket", target.Name), nil)
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if target.Region != "" {
		opts = append(opts, awsconfig.WithRegion(target.Region))
	}
	if target.Endpoint != "" {
		region := target.Region
		if region == "" {
			region = "us-east-1"
			opts = append(opts, awsconfig.WithRegion(region))
		}
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, r string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               target.Endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
				}, nil
			})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apierr.Config("could not load AWS configuration", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, R2, ...) generally need path-style addressing.
		o.UsePathStyle = target.Endpoint != ""
	})

	return &S3Publisher{
		name:     target.Name,
		bucket:   target.Bucket,
		prefix:   target.Prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

func (p *S3Publisher) Name() string { return p.name }

// Key returns the object key a local file is stored under.
func (p *S3Publisher) Key(localPath string) string {
	base := filepath.Base(localPath)
	if p.prefix == "" {
		return base
	}
	return strings.TrimSuffix(p.prefix, "/") + "/" + base
}

func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", apierr.IO("could not open artifact", localPath, err)
	}
	defer file.Close()

	key := p.Key(localPath)
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", apierr.Publish(p.name, err)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

// SSHPublisher streams files to a remote directory over SSH.
type SSHPublisher struct {
	target  config.PublishTarget
	manager *ssh.Manager
}

// NewSSHPublisher expects a target already resolved against ~/.ssh/config.
func NewSSHPublisher(target config.PublishTarget, mgr *ssh.Manager) *SSHPublisher {
	return &SSHPublisher{target: target, manager: mgr}
}

func (p *SSHPublisher) Name() string { return p.target.Name }

func (p *SSHPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", apierr.IO("could not open artifact", localPath, err)
	}
	defer file.Close()

	remote, err := p.manager.Upload(ctx, p.target, filepath.Base(localPath), file)
	if err != nil {
		return "", apierr.Publish(p.target.Name, err)
	}
	return fmt.Sprintf("ssh://%s/%s", p.target.Hostname, strings.TrimPrefix(remote, "/")), nil
}

// FromConfig builds the publisher for the named target.
//
// Errors:
//
//   - ccos-error-config -- unknown target name or type, or an unusable target
func FromConfig(ctx context.Context, cfg config.Config, name string, mgr *ssh.Manager) (Publisher, error) {
	target, ok := cfg.Target(name)
	if !ok {
		return nil, apierr.Config(fmt.Sprintf("no publish target named %q in config", name), nil)
	}

	switch target.Type {
	case "s3":
		return NewS3Publisher(ctx, target)
	case "ssh":
		sshConfigPath, err := config.DefaultSSHConfigPath()
		if err != nil {
			return nil, apierr.Config("could not locate ssh config", err)
		}
		resolved, err := config.ResolveSSHTarget(target, sshConfigPath)
		if err != nil {
			return nil, apierr.Config(fmt.Sprintf("publish target %q", name), err)
		}
		if mgr == nil {
			mgr = ssh.NewManager()
		}
		return NewSSHPublisher(resolved, mgr), nil
	}
	return nil, apierr.Config(fmt.Sprintf("publish target %q has unknown type %q (want s3 or ssh)", name, target.Type), nil)
}
