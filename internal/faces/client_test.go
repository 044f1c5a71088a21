package faces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DetectFaces_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/detection/detect", r.URL.Path)
		assert.Equal(t, "det-key", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(DetectionResponse{
			Result: []FaceResult{{Box: Box{XMin: 1, YMin: 2, XMax: 3, YMax: 4, Probability: 0.99}}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "det-key", "rec-key", time.Second, 0)
	resp, err := c.DetectFaces(context.Background(), []byte("fake-jpeg"), "photo.jpg")

	require.NoError(t, err)
	require.Len(t, resp.Result, 1)
	assert.Equal(t, 0.99, resp.Result[0].Box.Probability)
}

func TestClient_AddSubject_RejectedIsNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"no face found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "det-key", "rec-key", time.Second, 3)
	_, err := c.AddSubject(context.Background(), "person-1", []byte("bad"), "crop.jpg")

	require.Error(t, err)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Equal(t, 1, attempts, "a 4xx must not be retried")
}

func TestClient_RecognizeFaces_RetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(RecognitionResponse{Result: []FaceResult{{}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "det-key", "rec-key", time.Second, 3)
	resp, err := c.RecognizeFaces(context.Background(), []byte("img"), "photo.jpg")

	require.NoError(t, err)
	assert.Len(t, resp.Result, 1)
	assert.Equal(t, 3, attempts)
}

func TestClient_ListSubjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(SubjectListResponse{Subjects: []string{"a", "b"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "det-key", "rec-key", time.Second, 0)
	subjects, err := c.ListSubjects(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, subjects)
}

func TestClient_DeleteSubject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "det-key", "rec-key", time.Second, 0)
	err := c.DeleteSubject(context.Background(), "person-1")
	assert.NoError(t, err)
}

func TestClient_ExhaustsRetriesOnPersistent5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "det-key", "rec-key", time.Second, 2)
	_, err := c.DetectFaces(context.Background(), []byte("img"), "photo.jpg")

	assert.Error(t, err)
}
