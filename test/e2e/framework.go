//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/adapter"
	"github.com/marmos91/dittodrive/pkg/api"
	"github.com/marmos91/dittodrive/pkg/blob"
	"github.com/marmos91/dittodrive/pkg/drive"
	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/marmos91/dittodrive/pkg/metadata"
	"github.com/marmos91/dittodrive/pkg/server"
	"github.com/marmos91/dittodrive/pkg/usage"
)

const jwtSecret = "e2e-secret-0123456789abcdef"

// TestContext provides a complete testing environment with:
// - Running DittoDrive server with the HTTP API on a free port
// - An orphan collector wired to the same stores
// - Cleanup mechanisms
type TestContext struct {
	T         *testing.T
	Config    *TestConfig
	Server    *server.Server
	API       *api.HTTPAdapter
	Metadata  metadata.Store
	Blobs     blob.Store
	Collector *gc.Collector
	BaseURL   string
	client    *http.Client
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	tempDirs  []string
}

// NewTestContext creates a new test environment with the specified
// configuration and starts the server. Cleanup is registered with t.
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: config,
		client: &http.Client{Timeout: 30 * time.Second},
		ctx:    ctx,
		cancel: cancel,
	}
	t.Cleanup(tc.Cleanup)

	tc.setupStores()
	tc.startServer()

	return tc
}

// CreateTempDir implements TestContextProvider.
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp dir: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

// GetConfig implements TestContextProvider.
func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}

func (tc *TestContext) setupStores() {
	tc.T.Helper()

	var err error

	tc.Metadata, err = tc.Config.CreateMetadataStore(tc.ctx, tc)
	if err != nil {
		tc.T.Fatalf("Failed to create metadata store: %v", err)
	}

	tc.Blobs, err = tc.Config.CreateBlobStore(tc.ctx, tc)
	if err != nil {
		tc.T.Fatalf("Failed to create blob store: %v", err)
	}
}

func (tc *TestContext) startServer() {
	tc.T.Helper()

	logger.SetLevel("ERROR")
	gin.SetMode(gin.TestMode)

	accountant := usage.NewAccountant(tc.Metadata, usage.Config{}, usage.WithCache(usage.NewMemoryCache(time.Minute)))
	service := drive.NewService(tc.Metadata, tc.Blobs, drive.DefaultConfig(), drive.WithObserver(accountant))

	tc.Server = server.New(&adapter.Services{
		Drive:    service,
		Usage:    accountant,
		Metadata: tc.Metadata,
	}, 30*time.Second)

	tc.API = api.New(api.Config{JWTSecret: jwtSecret, ShutdownTimeout: 10 * time.Second}, nil)
	if err := tc.Server.AddAdapter(tc.API); err != nil {
		tc.T.Fatalf("Failed to add HTTP adapter: %v", err)
	}

	collector, err := gc.NewCollector(tc.Metadata, tc.Blobs, gc.Config{
		Prefix:      "/storex",
		GracePeriod: time.Nanosecond,
	}, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create collector: %v", err)
	}
	tc.Collector = collector
	tc.Server.AddWorker(collector)

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if err := tc.Server.Serve(tc.ctx); err != nil && err != context.Canceled {
			tc.T.Logf("Server error: %v", err)
		}
	}()

	tc.waitForServer()
}

// waitForServer waits until the API answers its health endpoint.
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for server to start")
		case <-ticker.C:
			port := tc.API.Port()
			if port == 0 {
				continue
			}
			resp, err := tc.client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				tc.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
				return
			}
		}
	}
}

// Cleanup stops the server, closes the stores and removes temp dirs.
func (tc *TestContext) Cleanup() {
	if tc.cancel != nil {
		tc.cancel()
	}
	tc.wg.Wait()

	if tc.Metadata != nil {
		_ = tc.Metadata.Close()
	}
	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// Envelope is the decoded API reply.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode unmarshals the reply data into v.
func (e Envelope) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(e.Data, v); err != nil {
		t.Fatalf("Failed to decode reply data %s: %v", e.Data, err)
	}
}

// Do sends a request authenticated as owner and decodes the envelope of
// JSON replies. The raw body is returned for downloads.
func (tc *TestContext) Do(method, path, owner string, body io.Reader, contentType string) (int, Envelope, []byte) {
	tc.T.Helper()

	req, err := http.NewRequestWithContext(tc.ctx, method, tc.BaseURL+path, body)
	if err != nil {
		tc.T.Fatalf("Failed to build request: %v", err)
	}
	if owner != "" {
		token, err := api.NewToken(jwtSecret, "", owner, time.Hour)
		if err != nil {
			tc.T.Fatalf("Failed to issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		tc.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.T.Fatalf("Failed to read reply: %v", err)
	}

	var env Envelope
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) && resp.Header.Get("Content-Disposition") == "" {
		if err := json.Unmarshal(raw, &env); err != nil {
			tc.T.Fatalf("Failed to decode envelope %q: %v", raw, err)
		}
	}
	return resp.StatusCode, env, raw
}

// CreateFolder creates a folder and fails the test on error.
func (tc *TestContext) CreateFolder(owner, name, parentID string) *metadata.FileRecord {
	tc.T.Helper()

	payload, _ := json.Marshal(map[string]string{"name": name, "parentId": parentID})
	status, env, _ := tc.Do(http.MethodPost, "/api/folders", owner, bytes.NewReader(payload), "application/json")
	if status != http.StatusCreated {
		tc.T.Fatalf("Create folder %q: status %d: %s", name, status, env.Message)
	}

	var rec metadata.FileRecord
	env.Decode(tc.T, &rec)
	return &rec
}

// UploadFile uploads one file and fails the test on error.
func (tc *TestContext) UploadFile(owner, parentID, name, mimeType string, data []byte) *metadata.FileRecord {
	tc.T.Helper()

	status, env := tc.Upload(owner, parentID, UploadPart{Name: name, MimeType: mimeType, Data: data})
	if status != http.StatusCreated {
		tc.T.Fatalf("Upload %q: status %d: %s", name, status, env.Message)
	}

	var report drive.UploadReport
	env.Decode(tc.T, &report)
	if len(report.Files) != 1 {
		tc.T.Fatalf("Upload %q: expected one stored file, got %+v", name, report)
	}
	return report.Files[0]
}

// UploadPart is one file of a multipart upload.
type UploadPart struct {
	Name     string
	MimeType string
	Data     []byte
}

// Upload sends a multipart upload and returns the raw outcome.
func (tc *TestContext) Upload(owner, parentID string, parts ...UploadPart) (int, Envelope) {
	tc.T.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if parentID != "" {
		_ = w.WriteField("parentId", parentID)
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, p.Name))
		h.Set("Content-Type", p.MimeType)
		pw, err := w.CreatePart(h)
		if err != nil {
			tc.T.Fatalf("Failed to create part: %v", err)
		}
		_, _ = pw.Write(p.Data)
	}
	_ = w.Close()

	status, env, _ := tc.Do(http.MethodPost, "/api/files/upload", owner, &buf, w.FormDataContentType())
	return status, env
}

// List returns the records of a listing route.
func (tc *TestContext) List(owner, path string) []*metadata.FileRecord {
	tc.T.Helper()

	status, env, _ := tc.Do(http.MethodGet, path, owner, nil, "")
	if status != http.StatusOK {
		tc.T.Fatalf("GET %s: status %d: %s", path, status, env.Message)
	}

	var records []*metadata.FileRecord
	env.Decode(tc.T, &records)
	return records
}

// Usage returns the owner's storage usage.
func (tc *TestContext) Usage(owner string) usage.Usage {
	tc.T.Helper()

	status, env, _ := tc.Do(http.MethodGet, "/api/storage", owner, nil, "")
	if status != http.StatusOK {
		tc.T.Fatalf("GET /api/storage: status %d: %s", status, env.Message)
	}

	var u usage.Usage
	env.Decode(tc.T, &u)
	return u
}

// runOnAllConfigs runs a test on every configuration without external services
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			testFunc(t, NewTestContext(t, config))
		})
	}
}

// runOnS3Configs runs a test on the S3 configurations, skipping when
// Localstack is not reachable
func runOnS3Configs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	if !CheckLocalstackAvailable(t) {
		t.Skip("Localstack not available, skipping S3 tests")
	}

	helper := NewLocalstackHelper(t)
	defer helper.Cleanup()

	for _, config := range S3Configurations() {
		t.Run(config.Name, func(t *testing.T) {
			SetupS3Config(t, config, helper)
			testFunc(t, NewTestContext(t, config))
		})
	}
}
