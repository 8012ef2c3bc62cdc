package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStdout   string
	LastStderr   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	EnvVars    map[string]string

	// Result file inspected by the result steps, relative to WorkingDir
	ResultFile string

	// Fake tesseract installed by the OCR steps
	TesseractDir string
}

// NewTestContext creates a new test context with an empty working
// directory. Commands run with the working directory as current directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "pdflabels-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	workingDir := filepath.Join(tempDir, "work")
	if err := os.MkdirAll(workingDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	return &TestContext{
		WorkingDir: workingDir,
		TempDir:    tempDir,
		EnvVars:    map[string]string{},
		ResultFile: "result.json",
	}, nil
}

// Cleanup removes all temporary files and directories created during tests.
func (testCtx *TestContext) Cleanup() error {
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars[name] = value
}

// WorkPath resolves a path relative to the working directory.
func (testCtx *TestContext) WorkPath(name string) string {
	return filepath.Join(testCtx.WorkingDir, filepath.FromSlash(name))
}

// GetTempDir returns a path inside the scenario's temp directory.
func (testCtx *TestContext) GetTempDir(name string) string {
	return filepath.Join(testCtx.TempDir, name)
}
