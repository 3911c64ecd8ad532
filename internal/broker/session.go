package broker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/drive"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/metrics"
	"github.com/pysugar/unified-drive/internal/tracing"
)

// Session is Drive access through one resolved credential.
type Session struct {
	cred       *models.Credential
	client     *drive.Client
	guard      Guard
	negotiator *drive.Negotiator
	log        *slog.Logger
}

// Credential returns the credential the session acts through.
func (s *Session) Credential() *models.Credential {
	return s.cred
}

// run guards the token, then calls fn with tracing and metrics around it.
// op is a human phrase such as "list files".
func (s *Session) run(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	name := strings.ReplaceAll(op, " ", "_")
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "drive."+name,
		attribute.String("connection.id", s.cred.ID))
	defer func() {
		metrics.ObserveDriveOperation(name, start, err)
		tracing.End(span, err)
	}()

	if err := s.guard.Ensure(ctx, s.cred); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		return s.classify(op, err)
	}
	return nil
}

func (s *Session) classify(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if drive.IsNotFound(err) {
		return apperr.NotFound("File or folder not found")
	}
	s.log.Warn("drive call failed", logging.Operation(op), logging.Err(err))
	return apperr.Remote(op, err)
}

func (s *Session) folderOrRoot(folderID string) (string, error) {
	if folderID != "" {
		return folderID, nil
	}
	if s.cred.DriveRootFolderID != "" {
		return s.cred.DriveRootFolderID, nil
	}
	return "", apperr.NotConfigured("Drive root folder is not set for this connection. Please reconnect the drive.")
}

// ListFiles lists the folder's children, defaulting to the connection root.
func (s *Session) ListFiles(ctx context.Context, folderID string) ([]*drive.FileInfo, error) {
	folder, err := s.folderOrRoot(folderID)
	if err != nil {
		return nil, err
	}
	var files []*drive.FileInfo
	err = s.run(ctx, "list files", func(ctx context.Context) (err error) {
		files, err = s.client.ListFiles(ctx, folder)
		return err
	})
	return files, err
}

// SearchFiles matches names containing query within the folder.
func (s *Session) SearchFiles(ctx context.Context, query, folderID string) ([]*drive.FileInfo, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.BadRequest("Search query is required")
	}
	folder, err := s.folderOrRoot(folderID)
	if err != nil {
		return nil, err
	}
	var files []*drive.FileInfo
	err = s.run(ctx, "search files", func(ctx context.Context) (err error) {
		files, err = s.client.SearchFiles(ctx, query, folder)
		return err
	})
	return files, err
}

func (s *Session) GetFile(ctx context.Context, fileID string) (*drive.FileInfo, error) {
	var file *drive.FileInfo
	err := s.run(ctx, "get file", func(ctx context.Context) (err error) {
		file, err = s.client.GetFile(ctx, fileID)
		return err
	})
	return file, err
}

func (s *Session) GetFileMetadata(ctx context.Context, fileID string) (*drive.FileInfo, error) {
	var file *drive.FileInfo
	err := s.run(ctx, "get file metadata", func(ctx context.Context) (err error) {
		file, err = s.client.GetFileMetadata(ctx, fileID)
		return err
	})
	return file, err
}

// CreateFolder creates name under parentID, defaulting to the connection root.
func (s *Session) CreateFolder(ctx context.Context, name, parentID string) (*drive.FileInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.BadRequest("Folder name is required")
	}
	parent, err := s.folderOrRoot(parentID)
	if err != nil {
		return nil, err
	}
	var folder *drive.FileInfo
	err = s.run(ctx, "create folder", func(ctx context.Context) (err error) {
		folder, err = s.client.CreateFolder(ctx, name, parent)
		return err
	})
	return folder, err
}

// RenameFile changes the display name only.
func (s *Session) RenameFile(ctx context.Context, fileID, newName string) (*drive.FileInfo, error) {
	newName = strings.TrimSpace(newName)
	if fileID == "" || newName == "" {
		return nil, apperr.BadRequest("fileId and newName are required")
	}
	var file *drive.FileInfo
	err := s.run(ctx, "rename file", func(ctx context.Context) (err error) {
		file, err = s.client.RenameFile(ctx, fileID, newName)
		return err
	})
	return file, err
}

// UploadFile sends an already buffered payload through the server. It is the
// fallback for browsers that cannot upload directly.
func (s *Session) UploadFile(ctx context.Context, name, mimeType string, content []byte, parentID string) (*drive.FileInfo, error) {
	if name == "" {
		return nil, apperr.BadRequest("File is required")
	}
	parent, err := s.folderOrRoot(parentID)
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var file *drive.FileInfo
	err = s.run(ctx, "upload file", func(ctx context.Context) (err error) {
		file, err = s.client.UploadFile(ctx, name, mimeType, bytes.NewReader(content), parent)
		return err
	})
	return file, err
}

// DeleteFile fails closed: any remote failure is returned.
func (s *Session) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return apperr.BadRequest("fileId is required")
	}
	return s.run(ctx, "delete file", func(ctx context.Context) error {
		return s.client.DeleteFile(ctx, fileID)
	})
}

var (
	shareTypes = map[string]bool{"user": true, "group": true, "domain": true, "anyone": true}
	shareRoles = map[string]bool{"reader": true, "commenter": true, "writer": true}
)

// ShareFile grants a permission on the file.
func (s *Session) ShareFile(ctx context.Context, fileID string, opts drive.ShareOptions) (*drive.Permission, error) {
	switch {
	case !shareTypes[opts.Type]:
		return nil, apperr.BadRequest("type must be one of user, group, domain, anyone")
	case !shareRoles[opts.Role]:
		return nil, apperr.BadRequest("role must be one of reader, commenter, writer")
	case (opts.Type == "user" || opts.Type == "group") && opts.EmailAddress == "":
		return nil, apperr.BadRequest("emailAddress is required for user and group shares")
	case opts.Type == "domain" && opts.Domain == "":
		return nil, apperr.BadRequest("domain is required for domain shares")
	}
	var perm *drive.Permission
	err := s.run(ctx, "share file", func(ctx context.Context) (err error) {
		perm, err = s.client.ShareFile(ctx, fileID, opts)
		return err
	})
	return perm, err
}

// DownloadDescriptor returns where the browser can fetch the file content.
func (s *Session) DownloadDescriptor(ctx context.Context, fileID string) (*drive.DownloadDescriptor, error) {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsFolder() {
		return nil, apperr.BadRequest("Folders cannot be downloaded")
	}
	if file.WebContentLink == "" {
		return nil, apperr.BadRequest("This file has no downloadable content")
	}
	return &drive.DownloadDescriptor{
		DownloadURL: file.WebContentLink,
		FileName:    file.Name,
		MimeType:    file.MimeType,
		Size:        file.Size,
	}, nil
}

// GenerateUploadURL delegates to the negotiator with this session's credential.
func (s *Session) GenerateUploadURL(ctx context.Context, req drive.UploadRequest) (*drive.UploadInstruction, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "drive.generate_upload_url",
		attribute.String("connection.id", s.cred.ID),
		attribute.String("upload.strategy", drive.ChooseStrategy(req.FileSize)))
	inst, err := s.negotiator.Negotiate(ctx, s.cred, req)
	metrics.ObserveDriveOperation("generate_upload_url", start, err)
	tracing.End(span, err)
	return inst, err
}
