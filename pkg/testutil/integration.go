package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/lumen/pkg/client"
)

// IntegrationTestSuite runs the same checks against several clients of one
// deployment, typically a local client, a wire loopback client and an HTTP
// client. Concrete suites register their clients in SetupSuite.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
	clients   map[string]*client.Client
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()
	s.clients = make(map[string]*client.Client)

	tempDir, err := os.MkdirTemp("", "lumen-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// CreateTempFile creates a temporary file with content
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.WriteFile(path, content, 0600))
	return path
}

// AddClient registers a client under name.
func (s *IntegrationTestSuite) AddClient(name string, c *client.Client) {
	s.clients[name] = c
}

// EachClient runs fn as a subtest for every registered client, in name
// order.
func (s *IntegrationTestSuite) EachClient(fn func(name string, c *client.Client)) {
	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := s.clients[name]
		s.Run(name, func() { fn(name, c) })
	}
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// PerformanceTest checks table construction throughput against targets.
type PerformanceTest struct {
	t         *testing.T
	name      string
	threshold struct {
		minThroughput float64 // rows/sec
		maxMemory     int64   // bytes
	}
}

// NewPerformanceTest creates a new performance test
func NewPerformanceTest(t *testing.T, name string) *PerformanceTest {
	return &PerformanceTest{
		t:    t,
		name: name,
	}
}

// WithThroughputTarget sets the minimum rows ingested per second
func (p *PerformanceTest) WithThroughputTarget(rowsPerSec float64) *PerformanceTest {
	p.threshold.minThroughput = rowsPerSec
	return p
}

// WithMemoryTarget sets maximum memory usage
func (p *PerformanceTest) WithMemoryTarget(maxBytes int64) *PerformanceTest {
	p.threshold.maxMemory = maxBytes
	return p
}

// Run executes fn, which reports how many rows it ingested and how long
// that took.
func (p *PerformanceTest) Run(fn func() (rows int64, duration time.Duration)) {
	p.t.Helper()

	initialMem := CaptureMemoryProfile()
	rows, duration := fn()
	finalMem := CaptureMemoryProfile()

	throughput := float64(rows) / duration.Seconds()
	memoryUsed := int64(finalMem.TotalAlloc - initialMem.TotalAlloc)

	p.t.Logf("Performance Test: %s", p.name)
	p.t.Logf("  Rows: %d", rows)
	p.t.Logf("  Duration: %v", duration)
	p.t.Logf("  Throughput: %.0f rows/sec", throughput)
	p.t.Logf("  Allocated: %s", formatBytes(memoryUsed))

	if p.threshold.minThroughput > 0 && throughput < p.threshold.minThroughput {
		p.t.Errorf("Throughput %.0f rows/sec below target %.0f rows/sec",
			throughput, p.threshold.minThroughput)
	}
	if p.threshold.maxMemory > 0 && memoryUsed > p.threshold.maxMemory {
		p.t.Errorf("Memory usage %s exceeds target %s",
			formatBytes(memoryUsed), formatBytes(p.threshold.maxMemory))
	}
}

// MemoryProfile captures memory statistics
type MemoryProfile struct {
	AllocBytes uint64
	TotalAlloc uint64
	HeapInuse  uint64
}

// CaptureMemoryProfile captures current memory profile
func CaptureMemoryProfile() *MemoryProfile {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &MemoryProfile{
		AllocBytes: m.Alloc,
		TotalAlloc: m.TotalAlloc,
		HeapInuse:  m.HeapInuse,
	}
}

// formatBytes formats bytes into human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
