// file: internal/upload/upload.go
// version: 1.0.0
// guid: 9e0f1a2b-3c4d-4e5f-b0a1-7c8d9e0f1a2b

package upload

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/jdfalk/epub-enricher/internal/config"
)

// Uploader delivers a finished book to its destination.
type Uploader interface {
	Deliver(ctx context.Context, path string) error
}

// ForConfig picks the delivery backend: Google Drive when enabled, a local
// output directory otherwise.
func ForConfig(ctx context.Context, cfg config.Config) (Uploader, error) {
	if cfg.EnableDriveUpload {
		return NewDrive(ctx, cfg.CredentialsPath, cfg.DriveFolderID)
	}
	return &Local{OutputDir: cfg.OutputDir}, nil
}

// Local moves finished books into a local directory.
type Local struct {
	OutputDir string
}

// Deliver implements Uploader.
func (l *Local) Deliver(_ context.Context, path string) error {
	if err := os.MkdirAll(l.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	dest := filepath.Join(l.OutputDir, filepath.Base(path))
	if err := os.Rename(path, dest); err == nil {
		return nil
	}
	// Cross-device moves need copy+remove.
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()
	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy to %s: %w", dest, err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// Drive uploads finished books to a Google Drive folder, replacing any
// previous upload with the same name.
type Drive struct {
	service  *drive.Service
	folderID string
}

// NewDrive builds a Drive uploader from a credentials file.
func NewDrive(ctx context.Context, credentialsPath, folderID string) (*Drive, error) {
	service, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	return &Drive{service: service, folderID: folderID}, nil
}

// Deliver implements Uploader.
func (d *Drive) Deliver(ctx context.Context, path string) error {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	existingID, err := d.findExisting(ctx, name)
	if err != nil {
		// A failed lookup degrades to a fresh upload rather than losing the book.
		log.Printf("[drive] lookup for %s failed, uploading fresh copy: %v", name, err)
		existingID = ""
	}

	if existingID != "" {
		_, err = d.service.Files.Update(existingID, &drive.File{}).
			Context(ctx).Media(f).Do()
		if err != nil {
			return fmt.Errorf("failed to update %s on drive: %w", name, err)
		}
		return nil
	}

	meta := &drive.File{Name: name}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}
	if _, err := d.service.Files.Create(meta).Context(ctx).Media(f).Do(); err != nil {
		return fmt.Errorf("failed to upload %s to drive: %w", name, err)
	}
	return nil
}

func (d *Drive) findExisting(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", name)
	if d.folderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", d.folderID)
	}
	list, err := d.service.Files.List().Context(ctx).Q(query).Fields("files(id)").PageSize(1).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}
