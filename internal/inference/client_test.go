package inference

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyReadsPredictionKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/upload", r.URL.Path)

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		file.Close()

		w.Write([]byte(`{"prediction": 1, "confidence": 0.93}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result, err := client.Classify(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Classification)
	assert.True(t, result.HasConfidence)
	assert.InDelta(t, 0.93, result.Confidence, 1e-9)
	assert.False(t, result.NoFruitingBag)
}

func TestClassifyFallsBackToResultKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": 2}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result, err := client.Classify(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Classification)
	assert.False(t, result.HasConfidence)
}

func TestClassifyNoFruitingBagSentinel(t *testing.T) {
	// The backend delivers the sentinel as a 400 with a string error field.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "No fruiting bag detected in the image", "status": "error"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result, err := client.Classify(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.True(t, result.NoFruitingBag)
}

func TestClassifySentinelWithBooleanErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "error": true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result, err := client.Classify(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.True(t, result.NoFruitingBag)
}

func TestClassifyRejectionWithoutStatusIsNotSentinel(t *testing.T) {
	// Upload validation failures carry an error string but no status field.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "No file uploaded"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Classify(context.Background(), []byte("frame"))
	assert.Error(t, err)
}

func TestClassifyRejectsResponseWithoutPrediction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Classify(context.Background(), []byte("frame"))
	assert.Error(t, err)
}

func TestClassifyRejectsNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Classify(context.Background(), []byte("frame"))
	assert.Error(t, err)
}

func TestClassifySurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Classify(context.Background(), []byte("frame"))
	assert.Error(t, err)
}

func TestHeatmapDecodesEnvelope(t *testing.T) {
	heatmap := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/heatmap", r.URL.Path)
		encoded := base64.StdEncoding.EncodeToString(heatmap)
		w.Write([]byte(`{"image": "` + encoded + `", "status": "success"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	body, contentType, err := client.Heatmap(context.Background(), []byte("frame"))
	require.NoError(t, err)

	assert.Equal(t, heatmap, body)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestHeatmapSurfacesGeneratorUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "Heatmap generator not available"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, _, err := client.Heatmap(context.Background(), []byte("frame"))
	assert.Error(t, err)
}
