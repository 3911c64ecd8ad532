package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	listFields = "nextPageToken, files(id, name, mimeType, size, createdTime, modifiedTime, webViewLink, webContentLink, iconLink, thumbnailLink, parents, shared, trashed)"
	fileFields = "id, name, mimeType, size, createdTime, modifiedTime, webViewLink, webContentLink, iconLink, thumbnailLink, parents, shared, trashed"
	// Full metadata includes owners and permissions.
	metadataFields = "*"
)

// Factory builds per-connection clients. Options are applied to every client
// and let tests point the service at a fake endpoint.
type Factory struct {
	opts []option.ClientOption
}

// NewFactory creates a Factory with extra client options.
func NewFactory(opts ...option.ClientOption) *Factory {
	return &Factory{opts: opts}
}

// NewClient creates a Drive client authorized by ts.
func (f *Factory) NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, f.opts...)
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Client{service: service}, nil
}

// Client wraps the Google Drive API service for one connection.
type Client struct {
	service *drive.Service
}

// IsNotFound reports whether err is a Drive 404.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// EscapeQuery quotes s for use inside a single-quoted Drive query literal.
func EscapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// ListFiles returns the non-trashed children of folderID, folders first, then by name.
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]*FileInfo, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", EscapeQuery(folderID))
	files, err := c.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list files in %s: %w", folderID, err)
	}
	return files, nil
}

// SearchFiles returns non-trashed children of folderID whose name contains query.
func (c *Client) SearchFiles(ctx context.Context, query, folderID string) ([]*FileInfo, error) {
	q := fmt.Sprintf("'%s' in parents and name contains '%s' and trashed=false",
		EscapeQuery(folderID), EscapeQuery(query))
	files, err := c.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return files, nil
}

func (c *Client) list(ctx context.Context, q string) ([]*FileInfo, error) {
	var files []*FileInfo
	err := c.service.Files.List().
		Q(q).
		OrderBy("folder,name").
		Fields(listFields).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, convertToFileInfo(f))
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*FileInfo{}
	}
	return files, nil
}

// GetFile retrieves the descriptor of a single file.
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileInfo, error) {
	return c.get(ctx, fileID, fileFields)
}

// GetFileMetadata retrieves every metadata field, including owners and permissions.
func (c *Client) GetFileMetadata(ctx context.Context, fileID string) (*FileInfo, error) {
	return c.get(ctx, fileID, metadataFields)
}

func (c *Client) get(ctx context.Context, fileID string, fields googleapi.Field) (*FileInfo, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}
	f, err := c.service.Files.Get(fileID).
		Context(ctx).
		Fields(fields).
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return convertToFileInfo(f), nil
}

// CreateFolder creates a folder under parentID.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (*FileInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}
	folder := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	f, err := c.service.Files.Create(folder).
		Context(ctx).
		Fields(fileFields).
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return convertToFileInfo(f), nil
}

// RenameFile changes only the display name of a file.
func (c *Client) RenameFile(ctx context.Context, fileID, newName string) (*FileInfo, error) {
	if fileID == "" || newName == "" {
		return nil, fmt.Errorf("fileID and name are required")
	}
	f, err := c.service.Files.Update(fileID, &drive.File{Name: newName}).
		Context(ctx).
		Fields(fileFields).
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to rename file %s: %w", fileID, err)
	}
	return convertToFileInfo(f), nil
}

// UploadFile uploads content in one request through the API server.
func (c *Client) UploadFile(ctx context.Context, name, mimeType string, content io.Reader, parentID string) (*FileInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	file := &drive.File{Name: name, MimeType: mimeType}
	if parentID != "" {
		file.Parents = []string{parentID}
	}
	f, err := c.service.Files.Create(file).
		Context(ctx).
		Media(content, googleapi.ContentType(mimeType)).
		Fields(fileFields).
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	return convertToFileInfo(f), nil
}

// DeleteFile permanently deletes a file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return fmt.Errorf("fileID is required")
	}
	if err := c.service.Files.Delete(fileID).Context(ctx).SupportsAllDrives(true).Do(); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}
	return nil
}

// ShareFile grants a permission on a file.
func (c *Client) ShareFile(ctx context.Context, fileID string, opts ShareOptions) (*Permission, error) {
	perm := &drive.Permission{
		Type:         opts.Type,
		Role:         opts.Role,
		EmailAddress: opts.EmailAddress,
		Domain:       opts.Domain,
	}
	call := c.service.Permissions.Create(fileID, perm).
		Context(ctx).
		Fields("id, type, role, emailAddress, domain, displayName").
		SupportsAllDrives(true)
	if opts.Type == "user" || opts.Type == "group" {
		call = call.SendNotificationEmail(opts.SendNotificationEmail)
	}
	p, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to share file %s: %w", fileID, err)
	}
	return convertToPermission(p), nil
}

// FindOrCreateFolder returns the id of the first non-trashed folder named
// name in My Drive, creating one at the top level when none exists.
func (c *Client) FindOrCreateFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", EscapeQuery(name), FolderMimeType)
	list, err := c.service.Files.List().
		Context(ctx).
		Q(q).
		Spaces("drive").
		Fields("files(id, name)").
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	f, err := c.service.Files.Create(&drive.File{Name: name, MimeType: FolderMimeType}).
		Context(ctx).
		Fields("id").
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	return f.Id, nil
}

func convertToFileInfo(f *drive.File) *FileInfo {
	info := &FileInfo{
		ID:             f.Id,
		Name:           f.Name,
		MimeType:       f.MimeType,
		Size:           f.Size,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
		IconLink:       f.IconLink,
		ThumbnailLink:  f.ThumbnailLink,
		Description:    f.Description,
		Md5Checksum:    f.Md5Checksum,
		Parents:        f.Parents,
		Shared:         f.Shared,
		Trashed:        f.Trashed,
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		info.CreatedTime = t
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		info.ModifiedTime = t
	}
	for _, o := range f.Owners {
		info.Owners = append(info.Owners, User{DisplayName: o.DisplayName, EmailAddress: o.EmailAddress})
	}
	for _, p := range f.Permissions {
		info.Permissions = append(info.Permissions, *convertToPermission(p))
	}
	return info
}

func convertToPermission(p *drive.Permission) *Permission {
	return &Permission{
		ID:           p.Id,
		Type:         p.Type,
		Role:         p.Role,
		EmailAddress: p.EmailAddress,
		Domain:       p.Domain,
		DisplayName:  p.DisplayName,
	}
}
