package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// MediaClient handles communication with the document-service, which fronts
// object storage for extracted proposal images.
type MediaClient struct {
	baseURL    string
	bucket     string
	httpClient *http.Client
}

// MediaUploadResult is the document-service response payload for one upload
type MediaUploadResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type mediaUploadResponse struct {
	Success bool               `json:"success"`
	Data    *MediaUploadResult `json:"data,omitempty"`
	Message *string            `json:"message,omitempty"`
}

// NewMediaClient creates a new media client. Returns nil when no
// document-service is configured; callers must treat a nil client as
// "uploads disabled" and keep extraction working without stored images.
func NewMediaClient() *MediaClient {
	baseURL := os.Getenv("DOCUMENT_SERVICE_URL")
	if baseURL == "" {
		return nil
	}

	bucket := os.Getenv("PROPOSAL_IMAGES_BUCKET")
	if bucket == "" {
		bucket = "proposal-images"
	}

	return &MediaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		bucket:  bucket,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UploadImage stores one extracted image and returns its public URL. filename
// should carry the original extension so the document-service sets the right
// content type.
func (c *MediaClient) UploadImage(tenantID, runID, filename string, data []byte) (*MediaUploadResult, error) {
	if c == nil {
		return nil, fmt.Errorf("media client is not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	writer.WriteField("bucket", c.bucket)
	writer.WriteField("isPublic", "false")
	writer.WriteField("tags", fmt.Sprintf("run_id:%s,tenant_id:%s", runID, tenantID))

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", c.baseURL+"/api/v1/documents/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-jwt-claim-tenant-id", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document-service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("document-service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result mediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("document-service returned no upload data")
	}

	return result.Data, nil
}
