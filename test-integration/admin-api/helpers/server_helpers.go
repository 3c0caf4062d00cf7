package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/onsi/gomega"

	adminapp "github.com/ed-fi-alliance/ods-admin-api/internal/app"
	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
	"github.com/ed-fi-alliance/ods-admin-api/internal/edorg"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
)

// ServerTestHelper manages the admin API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	database   *Database
	baseURL    string
	httpClient *http.Client
	app        *adminapp.AdminApp
	done       chan error
}

// NewServerTestHelper creates a server backed by database
func NewServerTestHelper(ctx context.Context, database *Database) *ServerTestHelper {
	return &ServerTestHelper{
		ctx:      ctx,
		database: database,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StartServer builds the admin API in single-tenant mode and serves it on a
// random local port.
func (s *ServerTestHelper) StartServer() error {
	cfg := &config.Config{
		DatabaseEngine:    db.EnginePostgreSQL,
		ConnectionStrings: config.ConnectionStrings{EdFiAdmin: s.database.ConnStr},
		MaxParallelism:    2,
	}

	app, err := adminapp.NewAdminApp(s.ctx,
		adminapp.WithConfig(cfg),
		adminapp.WithEncryptionKey(s.database.Key),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = app.Stop(time.Second)
		return err
	}

	s.app = app
	s.baseURL = "http://" + listener.Addr().String()
	s.done = make(chan error, 1)
	go func() {
		s.done <- app.Serve(listener)
	}()
	return nil
}

// StopServer gracefully stops the admin API server
func (s *ServerTestHelper) StopServer() error {
	if s.app == nil {
		return nil
	}
	if err := s.app.Stop(5 * time.Second); err != nil {
		return err
	}
	return <-s.done
}

// WaitForServerReady waits for the readiness probe to succeed
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 200*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Get makes a GET request to path
func (s *ServerTestHelper) Get(path string) (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + path)
}

// RefreshResponse is the body of an accepted refresh request
type RefreshResponse struct {
	Message string `json:"message"`
	RunID   string `json:"runId"`
}

// Refresh queues a refresh of every instance, or of instanceID when set, and
// returns the run id.
func (s *ServerTestHelper) Refresh(instanceID *int) string {
	path := "/v2/educationOrganizations/refresh"
	if instanceID != nil {
		path = fmt.Sprintf("%s/%d", path, *instanceID)
	}
	resp, err := s.httpClient.Post(s.baseURL+path, "application/json", bytes.NewReader(nil))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusAccepted))

	var body RefreshResponse
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&body)).To(gomega.Succeed())
	gomega.Expect(body.RunID).NotTo(gomega.BeEmpty())
	return body.RunID
}

// JobStatus loads the status of runID
func (s *ServerTestHelper) JobStatus(runID string) (*status.Record, int) {
	resp, err := s.Get("/v2/jobs/" + runID)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode
	}
	var rec status.Record
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&rec)).To(gomega.Succeed())
	return &rec, resp.StatusCode
}

// WaitForJob waits until runID reaches a terminal status and returns it
func (s *ServerTestHelper) WaitForJob(runID string, timeout time.Duration) *status.Record {
	var rec *status.Record
	gomega.Eventually(func() bool {
		rec, _ = s.JobStatus(runID)
		return rec != nil && rec.Status.IsTerminal()
	}, timeout, 200*time.Millisecond).Should(gomega.BeTrue(), "job %s should finish", runID)
	return rec
}

// EducationOrganizations lists the cache, optionally for one instance
func (s *ServerTestHelper) EducationOrganizations(instanceID *int) []edorg.EducationOrganization {
	path := "/v2/educationOrganizations"
	if instanceID != nil {
		path = fmt.Sprintf("%s/%d", path, *instanceID)
	}
	resp, err := s.Get(path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var orgs []edorg.EducationOrganization
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&orgs)).To(gomega.Succeed())
	return orgs
}
