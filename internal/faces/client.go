// Package faces is the client for the external face-recognition service
// (C5 Face Detector Client). The service's actual recognition model is
// out of scope for this module; this package only talks to its HTTP API,
// shaped after CompreFace's detect/recognize/subjects/faces surface.
package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// RejectedError is a non-retryable 4xx response from the service: the
// request itself was invalid (bad image, missing key), not a transient
// failure. The caller should proceed with an empty face list.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("face service rejected request (status %d): %s", e.StatusCode, e.Body)
}

// Client talks to the external face-recognition service.
type Client struct {
	baseURL        string
	detectionKey   string
	recognitionKey string
	maxRetries     int
	httpClient     *http.Client
}

// NewClient builds a Client with the given base URL and per-endpoint API
// keys. timeout bounds each individual HTTP call.
func NewClient(baseURL, detectionKey, recognitionKey string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:        baseURL,
		detectionKey:   detectionKey,
		recognitionKey: recognitionKey,
		maxRetries:     maxRetries,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

// DetectFaces submits image bytes for face detection.
// POST /api/v1/detection/detect
func (c *Client) DetectFaces(ctx context.Context, imageBytes []byte, filename string) (*DetectionResponse, error) {
	var out DetectionResponse
	err := c.doMultipart(ctx, "POST", fmt.Sprintf("%s/api/v1/detection/detect", c.baseURL),
		c.detectionKey, imageBytes, filename, &out)
	return &out, err
}

// RecognizeFaces submits a face crop for recognition against enrolled
// subjects, with landmark/gender/age plugins enabled.
// POST /api/v1/recognition/recognize
func (c *Client) RecognizeFaces(ctx context.Context, imageBytes []byte, filename string) (*RecognitionResponse, error) {
	plugins := "landmarks,gender,age"
	u := fmt.Sprintf("%s/api/v1/recognition/recognize?face_plugins=%s", c.baseURL, url.QueryEscape(plugins))
	var out RecognitionResponse
	err := c.doMultipart(ctx, "POST", u, c.recognitionKey, imageBytes, filename, &out)
	return &out, err
}

// AddSubject enrolls a face crop under subjectName.
// POST /api/v1/recognition/faces?subject={subject}
func (c *Client) AddSubject(ctx context.Context, subjectName string, imageBytes []byte, filename string) (*AddSubjectResponse, error) {
	u := fmt.Sprintf("%s/api/v1/recognition/faces?subject=%s", c.baseURL, url.QueryEscape(subjectName))
	var out AddSubjectResponse
	err := c.doMultipart(ctx, "POST", u, c.recognitionKey, imageBytes, filename, &out)
	return &out, err
}

// ListSubjects lists all enrolled subjects.
// GET /api/v1/recognition/subjects
func (c *Client) ListSubjects(ctx context.Context) ([]string, error) {
	var out SubjectListResponse
	err := c.doJSON(ctx, "GET", fmt.Sprintf("%s/api/v1/recognition/subjects", c.baseURL), c.recognitionKey, nil, &out)
	return out.Subjects, err
}

// DeleteSubject removes a subject and all its enrolled faces.
// DELETE /api/v1/recognition/subjects/{subject}
func (c *Client) DeleteSubject(ctx context.Context, subjectName string) error {
	u := fmt.Sprintf("%s/api/v1/recognition/subjects/%s", c.baseURL, url.PathEscape(subjectName))
	return c.doJSON(ctx, "DELETE", u, c.recognitionKey, nil, nil)
}

// ListFaces lists the enrolled faces for a subject.
// GET /api/v1/recognition/faces?subject={subject}
func (c *Client) ListFaces(ctx context.Context, subjectName string) ([]FaceListItem, error) {
	u := fmt.Sprintf("%s/api/v1/recognition/faces?subject=%s", c.baseURL, url.QueryEscape(subjectName))
	var out FaceListResponse
	err := c.doJSON(ctx, "GET", u, c.recognitionKey, nil, &out)
	return out.Faces, err
}

// DeleteFace removes a single enrolled face by its service-assigned id.
// DELETE /api/v1/recognition/faces/{image_id}
func (c *Client) DeleteFace(ctx context.Context, imageID string) error {
	u := fmt.Sprintf("%s/api/v1/recognition/faces/%s", c.baseURL, url.PathEscape(imageID))
	return c.doJSON(ctx, "DELETE", u, c.recognitionKey, nil, nil)
}

// doMultipart performs a retried multipart file upload. Non-retryable 4xx
// responses return a *RejectedError immediately; 5xx and network errors
// are retried up to maxRetries times with linear backoff.
func (c *Client) doMultipart(ctx context.Context, method, u, apiKey string, fileBytes []byte, filename string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(fileBytes); err != nil {
			return fmt.Errorf("write image data: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close multipart writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("x-api-key", apiKey)

		resp, respErr := c.httpClient.Do(req)
		if respErr != nil {
			lastErr = fmt.Errorf("send request: %w", respErr)
			slog.Warn("face service request failed, retrying", "url", u, "attempt", attempt, "error", respErr)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("face service error %d: %s", resp.StatusCode, string(respBody))
			slog.Warn("face service 5xx, retrying", "url", u, "attempt", attempt, "status", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return &RejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("face service unreachable after %d attempts: %w", c.maxRetries+1, lastErr)
}

// doJSON performs a retried JSON request with the same retry policy as
// doMultipart.
func (c *Client) doJSON(ctx context.Context, method, u, apiKey string, reqBody []byte, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		var bodyReader io.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("x-api-key", apiKey)

		resp, respErr := c.httpClient.Do(req)
		if respErr != nil {
			lastErr = fmt.Errorf("send request: %w", respErr)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("face service error %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode >= 400 {
			return &RejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("face service unreachable after %d attempts: %w", c.maxRetries+1, lastErr)
}
