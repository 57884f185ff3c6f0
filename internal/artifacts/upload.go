// Package artifacts uploads run reports and build logs to Azure Blob
// Storage when the pipeline config enables it.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"golang.org/x/sync/errgroup"

	"github.com/flakework/checkmatrix/internal/config"
)

// uploadConcurrency bounds parallel blob uploads.
const uploadConcurrency = 4

// Uploader pushes artifact files into one blob container.
type Uploader struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewUploader creates an uploader using the ambient Azure credential chain
// (environment, workload identity, managed identity, CLI).
func NewUploader(cfg *config.ArtifactsConfig) (*Uploader, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving Azure credential: %w", err)
	}

	client, err := azblob.NewClient(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}

	return &Uploader{
		client:    client,
		container: cfg.Container,
		prefix:    cfg.Prefix,
	}, nil
}

// UploadFiles uploads the given files under <prefix>/<runID>/. Files are
// uploaded concurrently; the first failure aborts the remaining uploads.
func (u *Uploader) UploadFiles(ctx context.Context, runID string, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for _, p := range paths {
		g.Go(func() error {
			return u.uploadFile(ctx, runID, p)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("uploading artifacts for %s: %w", runID, err)
	}
	return nil
}

func (u *Uploader) uploadFile(ctx context.Context, runID, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", filePath, err)
	}
	defer f.Close()

	name := blobName(u.prefix, runID, filePath)

	if _, err := u.client.UploadFile(ctx, u.container, name, f, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return fmt.Errorf("uploading %s: %s (HTTP %d)", name, respErr.ErrorCode, respErr.StatusCode)
		}
		return fmt.Errorf("uploading %s: %w", name, err)
	}

	slog.Debug("artifact uploaded", "blob", name)
	return nil
}

// blobName lays out artifacts as <prefix>/<runID>/<base name>, so one
// container holds every run and each run's files stay grouped.
func blobName(prefix, runID, filePath string) string {
	return path.Join(prefix, runID, filepath.Base(filePath))
}
