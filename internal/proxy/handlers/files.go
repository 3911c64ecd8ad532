package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/broker"
	"github.com/pysugar/unified-drive/internal/drive"
	"github.com/pysugar/unified-drive/internal/logging"
	"github.com/pysugar/unified-drive/internal/proxy/envelope"
)

// openSession resolves the connection for the current user. On failure the
// error envelope has already been written.
func openSession(w http.ResponseWriter, r *http.Request, b *broker.Broker, log *slog.Logger, connectionID string) (*broker.Session, bool) {
	s, err := b.Open(r.Context(), currentUser(r).ID, connectionID)
	if err != nil {
		envelope.Error(w, r, log, err)
		return nil, false
	}
	return s, true
}

// ListFilesHandler lists a folder (default: the connection root).
func ListFilesHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := openSession(w, r, b, log, connectionParam(r, ""))
		if !ok {
			return
		}
		files, err := s.ListFiles(r.Context(), r.URL.Query().Get("folderId"))
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if files == nil {
			files = []*drive.FileInfo{}
		}
		envelope.OK(w, files)
	}
}

// SearchFilesHandler matches names within a folder (default: the connection root).
func SearchFilesHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if strings.TrimSpace(q.Get("q")) == "" {
			envelope.Error(w, r, log, apperr.BadRequest("Search query is required"))
			return
		}
		s, ok := openSession(w, r, b, log, connectionParam(r, ""))
		if !ok {
			return
		}
		files, err := s.SearchFiles(r.Context(), q.Get("q"), q.Get("folderId"))
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if files == nil {
			files = []*drive.FileInfo{}
		}
		envelope.OK(w, files)
	}
}

// UploadFileHandler is the server-relayed upload for clients that cannot use
// an upload token. The whole body is bounded by maxBytes.
func UploadFileHandler(b *broker.Broker, maxBytes int64, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tooLarge := &apperr.Error{
			Status:  http.StatusRequestEntityTooLarge,
			Kind:    apperr.KindBadRequest,
			Message: fmt.Sprintf("File exceeds the %d byte relay limit; request an upload token instead", maxBytes),
		}
		if r.ContentLength > maxBytes {
			envelope.Error(w, r, log, tooLarge)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				envelope.Error(w, r, log, tooLarge)
				return
			}
			envelope.Error(w, r, log, apperr.BadRequest("Invalid multipart form"))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			envelope.Error(w, r, log, apperr.BadRequest("File is required"))
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			envelope.Error(w, r, log, apperr.BadRequest("Could not read uploaded file"))
			return
		}

		s, ok := openSession(w, r, b, log, connectionParam(r, r.FormValue("connectionId")))
		if !ok {
			return
		}
		uploaded, err := s.UploadFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), content, r.FormValue("parentFolderId"))
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}

		logging.FromContext(r.Context(), log).Info("file uploaded through relay",
			logging.Connection(s.Credential().ID),
			logging.FileID(uploaded.ID),
			slog.Int("bytes", len(content)),
		)
		envelope.OK(w, uploaded)
	}
}

type createFolderRequest struct {
	Name           string `json:"name"`
	ParentFolderID string `json:"parentFolderId"`
	ConnectionID   string `json:"connectionId"`
}

// CreateFolderHandler creates a folder (default parent: the connection root).
func CreateFolderHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createFolderRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			envelope.Error(w, r, log, apperr.BadRequest("Folder name is required"))
			return
		}
		s, ok := openSession(w, r, b, log, connectionParam(r, req.ConnectionID))
		if !ok {
			return
		}
		folder, err := s.CreateFolder(r.Context(), req.Name, req.ParentFolderID)
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		envelope.OK(w, folder)
	}
}

type renameFileRequest struct {
	FileID       string `json:"fileId"`
	NewName      string `json:"newName"`
	ConnectionID string `json:"connectionId"`
}

// RenameFileHandler renames a file or folder.
func RenameFileHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameFileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if req.FileID == "" || strings.TrimSpace(req.NewName) == "" {
			envelope.Error(w, r, log, apperr.BadRequest("File ID and new name are required"))
			return
		}
		s, ok := openSession(w, r, b, log, connectionParam(r, req.ConnectionID))
		if !ok {
			return
		}
		file, err := s.RenameFile(r.Context(), req.FileID, req.NewName)
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		envelope.OK(w, file)
	}
}

type uploadTokenRequest struct {
	FileName       string `json:"fileName"`
	MimeType       string `json:"mimeType"`
	ParentFolderID string `json:"parentFolderId"`
	FileSize       *int64 `json:"fileSize"`
	ConnectionID   string `json:"connectionId"`
}

// UploadTokenHandler returns an instruction for uploading straight from the
// browser to Google.
func UploadTokenHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		if req.FileName == "" || req.MimeType == "" {
			envelope.Error(w, r, log, apperr.BadRequest("File name and mime type are required"))
			return
		}
		s, ok := openSession(w, r, b, log, connectionParam(r, req.ConnectionID))
		if !ok {
			return
		}
		inst, err := s.GenerateUploadURL(r.Context(), drive.UploadRequest{
			FileName:       req.FileName,
			MimeType:       req.MimeType,
			ParentFolderID: req.ParentFolderID,
			FileSize:       req.FileSize,
		})
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		envelope.OK(w, inst)
	}
}

// DownloadHandler returns a descriptor the browser follows to fetch content.
func DownloadHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := openSession(w, r, b, log, connectionParam(r, ""))
		if !ok {
			return
		}
		desc, err := s.DownloadDescriptor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		envelope.OK(w, desc)
	}
}

// FileMetadataHandler returns every field Drive knows about a file.
func FileMetadataHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := openSession(w, r, b, log, connectionParam(r, ""))
		if !ok {
			return
		}
		file, err := s.GetFileMetadata(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		envelope.OK(w, file)
	}
}

// DeleteFileHandler permanently deletes a file or folder.
func DeleteFileHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := openSession(w, r, b, log, connectionParam(r, ""))
		if !ok {
			return
		}
		fileID := chi.URLParam(r, "id")
		if err := s.DeleteFile(r.Context(), fileID); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		logging.FromContext(r.Context(), log).Info("file deleted",
			logging.Connection(s.Credential().ID),
			logging.FileID(fileID),
		)
		envelope.OK(w, map[string]any{"message": "File deleted successfully", "id": fileID})
	}
}

type shareFileRequest struct {
	drive.ShareOptions
	ConnectionID string `json:"connectionId"`
}

// ShareFileHandler grants a permission on a file.
func ShareFileHandler(b *broker.Broker, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shareFileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		s, ok := openSession(w, r, b, log, connectionParam(r, req.ConnectionID))
		if !ok {
			return
		}
		perm, err := s.ShareFile(r.Context(), chi.URLParam(r, "id"), req.ShareOptions)
		if err != nil {
			envelope.Error(w, r, log, err)
			return
		}
		envelope.OK(w, perm)
	}
}
