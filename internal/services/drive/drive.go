// Package drive wraps the Google Drive API for ticket distribution. Each
// sender identity owns a folder under a fixed parent; uploaded tickets get
// an anyone-with-the-link reader permission.
package drive

import (
	"bytes"
	"context"
	"fmt"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Client is the Drive adapter.
type Client struct {
	svc            *gdrive.Service
	parentFolderID string
	available      bool
}

// New authenticates with a service-account credentials file.
func New(ctx context.Context, credentialsFile, parentFolderID string) (*Client, error) {
	if parentFolderID == "" {
		return nil, fmt.Errorf("drive parent folder id is empty")
	}
	svc, err := gdrive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gdrive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}
	return &Client{svc: svc, parentFolderID: parentFolderID, available: true}, nil
}

// Disabled returns a client in degraded mode.
func Disabled() *Client {
	return &Client{}
}

// Available reports whether uploads can be attempted.
func (c *Client) Available() bool {
	return c != nil && c.available
}

// EnsureFolder finds or creates a folder by name under the fixed parent.
func (c *Client) EnsureFolder(ctx context.Context, name string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("drive service not initialized")
	}
	query := fmt.Sprintf(
		"'%s' in parents and mimeType='%s' and name='%s' and trashed=false",
		c.parentFolderID, folderMimeType, name,
	)
	list, err := c.svc.Files.List().Q(query).Fields("files(id,name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	folder, err := c.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{c.parentFolderID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return folder.Id, nil
}

// Upload stores the document in the named folder, makes it public and
// returns the shareable link.
func (c *Client) Upload(ctx context.Context, folderName, filename string, data []byte) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("drive service not initialized")
	}
	folderID, err := c.EnsureFolder(ctx, folderName)
	if err != nil {
		return "", err
	}

	file, err := c.svc.Files.Create(&gdrive.File{
		Name:    filename,
		Parents: []string{folderID},
	}).Media(bytes.NewReader(data)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", filename, err)
	}

	return c.MakePublic(ctx, file.Id)
}

// MakePublic grants anyone-with-the-link read access and returns the link.
func (c *Client) MakePublic(ctx context.Context, fileID string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("drive service not initialized")
	}
	_, err := c.svc.Permissions.Create(fileID, &gdrive.Permission{
		Role: "reader",
		Type: "anyone",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("make file %s public: %w", fileID, err)
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view?usp=sharing", fileID), nil
}
