package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/internal/document/models"
	"ekyc/internal/document/providers"
	"ekyc/internal/document/providers/contract"
	"ekyc/pkg/platform/circuit"
)

var faceTemplates = []models.LandmarkTemplate{
	{Name: "face", Role: models.RoleFace},
	{Name: "signature", Role: models.RoleSignature},
}

func detectHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "img", string(content))
		assert.Equal(t, "sg-passport", r.FormValue("model"))
		assert.ElementsMatch(t, []string{"face", "signature"}, r.MultipartForm.Value["name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[
			{"name":"face","confidence":0.98,"box":{"left":0.05,"top":0.3,"width":0.25,"height":0.4}},
			{"name":"signature","confidence":0.7,"box":{"left":0.4,"top":0.8,"width":0.2,"height":0.08}},
			{"name":"hologram","confidence":0.9,"box":{"left":0.1,"top":0.1,"width":0.1,"height":0.1}}
		]}`))
	}
}

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/detect", detectHandler(t))
	mux.HandleFunc("/liveness", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("media")
		require.NoError(t, err)
		content, _ := io.ReadAll(file)
		_ = json.NewEncoder(w).Encode(map[string]any{"live": string(content) == "selfie", "score": 0.9})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectLandmarks(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL+"/", 5*time.Second)

	detections, err := c.DetectLandmarks(context.Background(), []byte("img"), "sg-passport", faceTemplates)
	require.NoError(t, err)

	require.Len(t, detections, 2, "unrequested names are dropped")
	assert.Equal(t, "face", detections[0].Name)
	assert.InDelta(t, 0.98, detections[0].Confidence, 1e-9)
	assert.Equal(t, models.BoundingBox{Left: 0.05, Top: 0.3, Width: 0.25, Height: 0.4}, detections[0].Box)
}

func TestCheckLiveness(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, 5*time.Second)

	live, err := c.CheckLiveness(context.Background(), []byte("selfie"))
	require.NoError(t, err)
	assert.True(t, live)

	live, err = c.CheckLiveness(context.Background(), []byte("photo of a photo"))
	require.NoError(t, err)
	assert.False(t, live, "a negative verdict is not an error")
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	assert.NoError(t, New(srv.URL, time.Second, WithAPIKey("secret")).Health(context.Background()))
}

func TestInferenceContract(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, 5*time.Second)

	suite := &contract.DetectionSuite{
		Landmarks: c,
		Tests: []contract.DetectionTest{{
			Name:        "passport regions",
			Image:       []byte("img"),
			ModelID:     "sg-passport",
			Names:       []string{"face", "signature"},
			ExpectNames: []string{"face"},
		}},
	}
	suite.Run(t)
}

func statusServer(t *testing.T, code int, body string) *Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second)
}

func TestErrorContract(t *testing.T) {
	cases := []struct {
		name      string
		code      int
		body      string
		category  providers.ErrorCategory
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, "boom", providers.ErrorOutage, true},
		{"bad gateway", http.StatusBadGateway, "", providers.ErrorOutage, true},
		{"gateway timeout", http.StatusGatewayTimeout, "", providers.ErrorTimeout, true},
		{"throttled", http.StatusTooManyRequests, "", providers.ErrorRateLimited, true},
		{"bad request", http.StatusBadRequest, "unreadable image", providers.ErrorBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, "", providers.ErrorAuthentication, false},
		{"unknown model", http.StatusNotFound, "", providers.ErrorNotFound, false},
		{"malformed body", http.StatusOK, "{not json", providers.ErrorBadData, false},
		{"missing verdict", http.StatusOK, `{"score":0.4}`, providers.ErrorBadData, false},
	}
	for _, tc := range cases {
		c := statusServer(t, tc.code, tc.body)
		ect := &contract.ErrorContractTest{
			Name: tc.name,
			Call: func(ctx context.Context) error {
				_, err := c.CheckLiveness(ctx, []byte("selfie"))
				return err
			},
			ExpectedError: tc.category,
			ExpectedRetry: tc.retryable,
		}
		ect.Run(t)
	}
}

func TestUnreachableServiceIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).DetectLandmarks(context.Background(), []byte("img"), "m", faceTemplates)
	require.Error(t, err)
	assert.Equal(t, providers.ErrorOutage, providers.GetCategory(err))
	assert.True(t, providers.IsRetryable(err))
}

func TestSlowServiceTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL, 5*time.Second).CheckLiveness(ctx, []byte("selfie"))
	require.Error(t, err)
	assert.Equal(t, providers.ErrorTimeout, providers.GetCategory(err))
	assert.True(t, models.IsRetryable(err))
}

func TestBreakerFailsFastAfterOutages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	breaker := circuit.New(BackendName, circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	c := New(srv.URL, time.Second, WithBreaker(breaker))
	ctx := context.Background()

	for range 2 {
		_, err := c.CheckLiveness(ctx, []byte("selfie"))
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	_, err := c.CheckLiveness(ctx, []byte("selfie"))
	require.Error(t, err)
	assert.Equal(t, providers.ErrorOutage, providers.GetCategory(err))
	assert.True(t, providers.IsRetryable(err))
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the service")
}

func TestBreakerIgnoresRejectedRequests(t *testing.T) {
	breaker := circuit.New(BackendName, circuit.WithFailureThreshold(1))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, time.Second, WithBreaker(breaker))

	_, err := c.CheckLiveness(context.Background(), []byte("selfie"))
	require.Error(t, err)
	assert.False(t, breaker.IsOpen())
}
