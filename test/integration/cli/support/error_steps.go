package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/pdflabels/cmd/pdflabels/cmd"
	"github.com/cucumber/godog"
)

// theCommandShouldFailWithAUsageError verifies the command rejected its
// arguments.
func (testCtx *TestContext) theCommandShouldFailWithAUsageError() error {
	var usageErr *cmd.UsageError
	if !errors.As(testCtx.LastError, &usageErr) {
		return fmt.Errorf("expected a usage error, got %v\nOutput: %s", testCtx.LastError, testCtx.LastOutput)
	}
	return testCtx.theExitStatusShouldBe(2)
}

// theErrorShouldMention verifies the returned error mentions text.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("no error was returned\nOutput: %s", testCtx.LastOutput)
	}
	if !strings.Contains(strings.ToLower(testCtx.LastError.Error()), strings.ToLower(text)) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, text)
	}
	return nil
}

// logRecords decodes the JSON log lines written to stderr.
func (testCtx *TestContext) logRecords() []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(testCtx.LastStderr, "\n") {
		var rec map[string]any
		if json.Unmarshal([]byte(line), &rec) == nil {
			records = append(records, rec)
		}
	}
	return records
}

// theLogShouldReportFor verifies a log record with message msg names file.
func (testCtx *TestContext) theLogShouldReportFor(msg, file string) error {
	for _, rec := range testCtx.logRecords() {
		if rec["msg"] == msg && rec["file"] == file {
			return nil
		}
	}
	return fmt.Errorf("no log record %q for %s\nLog: %s", msg, file, testCtx.LastStderr)
}

// theLogShouldContainLevel verifies a record of the given level was logged
// with message msg.
func (testCtx *TestContext) theLogShouldContainLevel(level, msg string) error {
	for _, rec := range testCtx.logRecords() {
		if rec["level"] == strings.ToUpper(level) && rec["msg"] == msg {
			return nil
		}
	}
	return fmt.Errorf("no %s record %q\nLog: %s", level, msg, testCtx.LastStderr)
}

// RegisterErrorSteps registers the failure step definitions.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the command should fail with a usage error$`, testCtx.theCommandShouldFailWithAUsageError)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the log should report "([^"]*)" for "([^"]*)"$`, testCtx.theLogShouldReportFor)
	sc.Step(`^the log should contain the (debug|info|warn|error) message "([^"]*)"$`, testCtx.theLogShouldContainLevel)
}
