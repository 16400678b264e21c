// Package s3_fetch downloads an object from an S3-compatible store, for
// weight mirrors that live behind minio or another S3 endpoint.
package s3_fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/fsutil"
	"github.com/vk/labrig/internal/integrity"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Environment variables consulted when the rig does not carry credentials
// inline. Empty credentials mean anonymous access.
const (
	EnvAccessKey = "LABRIG_S3_ACCESS_KEY"
	EnvSecretKey = "LABRIG_S3_SECRET_KEY"
)

// ObjectStore is the slice of the minio client this module uses.
type ObjectStore interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// DialFunc opens an object store client for an endpoint.
type DialFunc func(endpoint, accessKey, secretKey string, secure bool) (ObjectStore, error)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS   *workspace.Workspace
	Dial DialFunc
}

// Input defines the arguments for the 'arguments' HCL block. 'endpoint' is
// host[:port] without a scheme; 'dest' is the full workspace-relative path
// of the file to write.
type Input struct {
	Endpoint  string `hcl:"endpoint"`
	Bucket    string `hcl:"bucket"`
	Key       string `hcl:"key"`
	Dest      string `hcl:"dest"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	SHA256    string `hcl:"sha256,optional"`
	Insecure  bool   `hcl:"insecure,optional"`
}

// DialMinio is the production DialFunc.
func DialMinio(endpoint, accessKey, secretKey string, secure bool) (ObjectStore, error) {
	opts := &minio.Options{Secure: secure}
	if accessKey != "" {
		opts.Creds = credentials.NewStaticV4(accessKey, secretKey, "")
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open object store '%s': %w", endpoint, err)
	}
	return client, nil
}

// OnRunS3Fetch is the handler for the 's3_fetch' step kind. An existing
// non-empty destination short-circuits the download.
func (m *Module) OnRunS3Fetch(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("bucket", input.Bucket, "key", input.Key)

	dest, err := m.WS.Resolve(input.Dest)
	if err != nil {
		return cty.NilVal, err
	}

	if size, ok := fsutil.NonEmptyFile(dest); ok {
		logger.Info("File already present, skipping download", "path", dest, "size", size)
		return output(dest, size, true), nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create destination directory for '%s': %w", input.Dest, err)
	}

	access := input.AccessKey
	if access == "" {
		access = os.Getenv(EnvAccessKey)
	}
	secret := input.SecretKey
	if secret == "" {
		secret = os.Getenv(EnvSecretKey)
	}

	store, err := m.Dial(input.Endpoint, access, secret, !input.Insecure)
	if err != nil {
		return cty.NilVal, err
	}

	partial := dest + ".partial"
	defer os.Remove(partial)

	logger.Info("Downloading object", "endpoint", input.Endpoint, "dest", dest)

	if err := store.FGetObject(ctx, input.Bucket, input.Key, partial, minio.GetObjectOptions{}); err != nil {
		return cty.NilVal, fmt.Errorf("failed to fetch 's3://%s/%s': %w", input.Bucket, input.Key, err)
	}

	if input.SHA256 != "" {
		if err := integrity.VerifyFileSHA256(partial, input.SHA256); err != nil {
			return cty.NilVal, err
		}
	}

	stat, err := os.Stat(partial)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to stat downloaded object: %w", err)
	}
	if err := os.Rename(partial, dest); err != nil {
		return cty.NilVal, fmt.Errorf("failed to move downloaded object into place: %w", err)
	}

	logger.Info("Downloaded object", "path", dest, "size", stat.Size())
	return output(dest, stat.Size(), false), nil
}

func output(path string, bytes int64, skipped bool) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"path":    cty.StringVal(path),
		"bytes":   cty.NumberIntVal(bytes),
		"skipped": cty.BoolVal(skipped),
	})
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("s3_fetch", &registry.RegisteredStep{
		NewInput:  func() any { return new(Input) },
		Fn:        m.OnRunS3Fetch,
		Retryable: true,
	})
}
