package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/db/models"
	"github.com/pysugar/unified-drive/internal/metrics"
	"github.com/pysugar/unified-drive/internal/util"
)

const (
	// SimpleUploadThreshold is the exclusive upper bound for the simple strategy.
	SimpleUploadThreshold = 5 * 1024 * 1024

	// MultipartBoundary is the boundary the browser must use for simple uploads.
	MultipartBoundary = "-------314159265358979323846"

	// DefaultUploadBaseURL is Google's media upload endpoint.
	DefaultUploadBaseURL = "https://www.googleapis.com/upload/drive/v3/files"

	// instructionTTL mirrors Google's access token lifetime.
	instructionTTL = 3600
)

// Ensurer refreshes a credential's access token when it is close to expiry.
type Ensurer interface {
	Ensure(ctx context.Context, cred *models.Credential) error
}

// Negotiator issues upload instructions for direct browser uploads.
type Negotiator struct {
	guard      Ensurer
	httpClient *http.Client
	baseURL    string
}

// NewNegotiator creates a Negotiator. httpClient and baseURL may be zero to
// use http.DefaultClient and DefaultUploadBaseURL.
func NewNegotiator(guard Ensurer, httpClient *http.Client, baseURL string) *Negotiator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultUploadBaseURL
	}
	return &Negotiator{guard: guard, httpClient: httpClient, baseURL: baseURL}
}

// ChooseStrategy picks simple only for a known size below the threshold.
func ChooseStrategy(size *int64) string {
	if size != nil && *size < SimpleUploadThreshold {
		return UploadSimple
	}
	return UploadResumable
}

// Negotiate refreshes cred if needed and returns an upload instruction bound
// to its access token. Resumable sessions are provisioned before returning.
func (n *Negotiator) Negotiate(ctx context.Context, cred *models.Credential, req UploadRequest) (inst *UploadInstruction, err error) {
	strategy := ChooseStrategy(req.FileSize)
	defer func() { metrics.ObserveUploadNegotiation(strategy, err) }()

	if req.FileName == "" {
		return nil, apperr.BadRequest("fileName is required")
	}
	if req.FileSize != nil && *req.FileSize < 0 {
		return nil, apperr.BadRequest("fileSize must not be negative")
	}

	parent := req.ParentFolderID
	if parent == "" {
		parent = cred.DriveRootFolderID
	}
	if parent == "" {
		return nil, apperr.NotConfigured("Drive root folder is not set for this connection. Please reconnect the drive.")
	}

	if err := n.guard.Ensure(ctx, cred); err != nil {
		return nil, err
	}

	meta := &UploadMetadata{Name: req.FileName, Parents: []string{parent}}

	if strategy == UploadSimple {
		return &UploadInstruction{
			UploadURL:   n.baseURL + "?uploadType=multipart&supportsAllDrives=true",
			AccessToken: cred.AccessToken,
			ExpiresIn:   instructionTTL,
			UploadType:  UploadSimple,
			Metadata:    meta,
			Boundary:    MultipartBoundary,
		}, nil
	}

	sessionURL, err := n.provision(ctx, cred.AccessToken, meta, req)
	if err != nil {
		return nil, err
	}
	return &UploadInstruction{
		UploadURL:   sessionURL,
		AccessToken: cred.AccessToken,
		ExpiresIn:   instructionTTL,
		UploadType:  UploadResumable,
	}, nil
}

// provision opens a resumable upload session and returns its URL.
func (n *Negotiator) provision(ctx context.Context, accessToken string, meta *UploadMetadata, req UploadRequest) (string, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return "", apperr.Internal(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.baseURL+"?uploadType=resumable&supportsAllDrives=true", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Internal(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	if req.MimeType != "" {
		httpReq.Header.Set("X-Upload-Content-Type", req.MimeType)
	}
	if req.FileSize != nil {
		httpReq.Header.Set("X-Upload-Content-Length", strconv.FormatInt(*req.FileSize, 10))
	}

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return "", apperr.Remote("initialize upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		detail := fmt.Errorf("%d %s", resp.StatusCode, util.TruncateBytes(raw))
		e := apperr.Remote("initialize upload", detail)
		e.Message = fmt.Sprintf("Failed to initialize upload: %v", detail)
		return "", e
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", apperr.Remote("initialize upload", fmt.Errorf("response carried no Location header"))
	}
	return location, nil
}
