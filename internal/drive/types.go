package drive

import "time"

// FolderMimeType is the MIME type for Google Drive folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// FileInfo describes a Drive file or folder.
type FileInfo struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	MimeType       string       `json:"mimeType"`
	Size           int64        `json:"size,omitempty"`
	CreatedTime    time.Time    `json:"createdTime"`
	ModifiedTime   time.Time    `json:"modifiedTime"`
	WebViewLink    string       `json:"webViewLink,omitempty"`
	WebContentLink string       `json:"webContentLink,omitempty"`
	IconLink       string       `json:"iconLink,omitempty"`
	ThumbnailLink  string       `json:"thumbnailLink,omitempty"`
	Description    string       `json:"description,omitempty"`
	Md5Checksum    string       `json:"md5Checksum,omitempty"`
	Parents        []string     `json:"parents,omitempty"`
	Owners         []User       `json:"owners,omitempty"`
	Permissions    []Permission `json:"permissions,omitempty"`
	Shared         bool         `json:"shared"`
	Trashed        bool         `json:"trashed"`
}

// IsFolder reports whether the item is a folder.
func (f *FileInfo) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// User is a Drive user such as a file owner.
type User struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Permission is an access grant on a file.
type Permission struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Role         string `json:"role"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Domain       string `json:"domain,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}

// ShareOptions describes a permission to create.
type ShareOptions struct {
	// Type is user, group, domain or anyone.
	Type string `json:"type"`
	// Role is reader, commenter or writer.
	Role         string `json:"role"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Domain       string `json:"domain,omitempty"`
	// SendNotificationEmail applies to user and group grants only.
	SendNotificationEmail bool `json:"sendNotificationEmail,omitempty"`
}

// DownloadDescriptor tells the browser where to fetch file content.
type DownloadDescriptor struct {
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	MimeType    string `json:"mimeType"`
	Size        int64  `json:"size"`
}

// Upload strategies.
const (
	UploadSimple    = "simple"
	UploadResumable = "resumable"
)

// UploadRequest declares a file the browser is about to upload.
type UploadRequest struct {
	FileName       string
	MimeType       string
	ParentFolderID string
	// FileSize is nil when the browser does not know the size up front.
	FileSize *int64
}

// UploadMetadata is the JSON part of a simple multipart upload.
type UploadMetadata struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents"`
}

// UploadInstruction is everything the browser needs to upload directly.
type UploadInstruction struct {
	UploadURL   string          `json:"uploadUrl"`
	AccessToken string          `json:"accessToken"`
	ExpiresIn   int             `json:"expiresIn"`
	UploadType  string          `json:"uploadType"`
	Metadata    *UploadMetadata `json:"metadata,omitempty"`
	Boundary    string          `json:"boundary,omitempty"`
}
