package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/pdflabels/cmd/pdflabels/cmd"
	"github.com/cucumber/godog"
)

// commandTimeout bounds a single in-process run.
const commandTimeout = 30 * time.Second

// splitCommand splits a command line on whitespace. Single quotes group
// words.
func splitCommand(command string) []string {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
		inWord  bool
	)
	for _, r := range command {
		switch {
		case r == '\'':
			quoted = !quoted
			inWord = true
		case !quoted && (r == ' ' || r == '\t'):
			if inWord {
				parts = append(parts, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		parts = append(parts, current.String())
	}
	return parts
}

// enterEnvironment switches to the working directory and applies the
// scenario's environment variables. The returned function undoes both.
func (testCtx *TestContext) enterEnvironment() (func(), error) {
	previousDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := os.Chdir(testCtx.WorkingDir); err != nil {
		return nil, fmt.Errorf("failed to enter working directory: %w", err)
	}

	type saved struct {
		value string
		set   bool
	}
	previousEnv := make(map[string]saved, len(testCtx.EnvVars))
	for name, value := range testCtx.EnvVars {
		old, set := os.LookupEnv(name)
		previousEnv[name] = saved{value: old, set: set}
		_ = os.Setenv(name, value)
	}

	return func() {
		for name, s := range previousEnv {
			if s.set {
				_ = os.Setenv(name, s.value)
			} else {
				_ = os.Unsetenv(name)
			}
		}
		_ = os.Chdir(previousDir)
	}, nil
}

// iRunCommand runs a pdflabels command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	parts := splitCommand(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "pdflabels" {
		return fmt.Errorf("unsupported command %q", parts[0])
	}
	testCtx.LastCommand = command

	restore, err := testCtx.enterEnvironment()
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	root := cmd.NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts[1:])

	start := time.Now()
	runErr := root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(start)

	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastOutput = stdout.String() + stderr.String()
	if runErr != nil {
		testCtx.LastOutput += runErr.Error() + "\n"
	}
	testCtx.LastError = runErr
	testCtx.LastExitCode = cmd.ExitCode(runErr)
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theExitStatusShouldBe verifies the exit status of the last command.
func (testCtx *TestContext) theExitStatusShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("expected exit status %d, got %d\nOutput: %s", code, testCtx.LastExitCode, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies the output lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theEnvironmentVariableIsSetTo sets an environment variable for the
// following commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// aFileWithContent writes a file into the working directory.
func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	return testCtx.writeWorkFile(name, []byte(content.Content))
}

// aFileContaining writes a one-line file into the working directory.
func (testCtx *TestContext) aFileContaining(name, content string) error {
	return testCtx.writeWorkFile(name, []byte(content))
}

func (testCtx *TestContext) writeWorkFile(name string, data []byte) error {
	path := testCtx.WorkPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	return os.WriteFile(path, data, 0o600)
}

// theFileShouldExist verifies a file exists in the working directory.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.WorkPath(name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

// theFileShouldNotExist verifies a file is absent from the working directory.
func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if _, err := os.Stat(testCtx.WorkPath(name)); err == nil {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

// theFileShouldContain verifies a file in the working directory contains
// text.
func (testCtx *TestContext) theFileShouldContain(name, text string) error {
	data, err := os.ReadFile(testCtx.WorkPath(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain '%s'\nActual content: %s", name, text, data)
	}
	return nil
}

// RegisterCommonSteps registers command and file step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Command execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the exit status should be (\d+)$`, testCtx.theExitStatusShouldBe)

	// Output
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)

	// Environment and files
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^a file "([^"]*)" with:$`, testCtx.aFileWithContent)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
