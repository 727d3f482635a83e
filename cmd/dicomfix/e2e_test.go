package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"
)

// binaryPath holds the path to the compiled binary (set once in TestMain)
var binaryPath string

// testContext holds state for a single scenario
type testContext struct {
	tmpDir   string
	exitCode int
	output   string
}

// buildBinary compiles the dicomfix binary once
func buildBinary() (string, error) {
	tmpFile, err := os.CreateTemp("", "dicomfix-test-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpFile.Close()

	_, thisFile, _, _ := runtime.Caller(0)
	cmd := exec.Command("go", "build", "-o", tmpFile.Name(), ".")
	cmd.Dir = filepath.Dir(thisFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed: %w\n%s", err, stderr.String())
	}

	return tmpFile.Name(), nil
}

// TestMain compiles the binary once before running all tests
func TestMain(m *testing.M) {
	var err error
	binaryPath, err = buildBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Remove(binaryPath)
	os.Exit(code)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "dicomfix-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	sc.Step(`^dicomfix is built$`, tc.dicomfixIsBuilt)
	sc.Step(`^a synthetic plan "([^"]*)" with (\d+) fields$`, tc.aSyntheticPlan)
	sc.Step(`^a weights file "([^"]*)" with (\d+) factors of ([0-9.]+)$`, tc.aWeightsFile)
	sc.Step(`^a beam model "([^"]*)"$`, tc.aBeamModel)
	sc.Step(`^I run dicomfix with "([^"]*)"$`, tc.iRunDicomfixWith)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^"([^"]*)" should exist$`, tc.shouldExist)
	sc.Step(`^"([^"]*)" should not exist$`, tc.shouldNotExist)
	sc.Step(`^"([^"]*)" should contain "([^"]*)"$`, tc.fileShouldContain)
	sc.Step(`^"([^"]*)" should hold (\d+) files matching "([^"]*)"$`, tc.shouldHoldFiles)
}

func (tc *testContext) dicomfixIsBuilt() error {
	if binaryPath == "" {
		return fmt.Errorf("binary not built")
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		return fmt.Errorf("binary does not exist at %s", binaryPath)
	}
	return nil
}

func (tc *testContext) path(p string) string {
	return strings.ReplaceAll(p, "{tmpdir}", tc.tmpDir)
}

func (tc *testContext) aSyntheticPlan(name string, fields int) error {
	if err := tc.iRunDicomfixWith(fmt.Sprintf(
		"synth --quiet --seed 7 --fields %d --low-weight 0.2 --output %s", fields, filepath.Join("{tmpdir}", name))); err != nil {
		return err
	}
	if tc.exitCode != 0 {
		return fmt.Errorf("synth failed with exit code %d:\n%s", tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) aWeightsFile(name string, n int, factor float64) error {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = strconv.FormatFloat(factor, 'g', -1, 64)
	}
	return os.WriteFile(filepath.Join(tc.tmpDir, name), []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

// aBeamModel writes a 10 column model covering the synthetic plan energies.
func (tc *testContext) aBeamModel(name string) error {
	model := `# E_nom, E_meas, dE, protons/MU, sigmaX, sigmaY, divX, divY, covX, covY
70, 70.2, 0.40, 1.0e8, 6.0, 6.0, 0.0030, 0.0030, 0.10, 0.10
150, 150.3, 0.60, 1.1e8, 4.0, 4.0, 0.0025, 0.0025, 0.15, 0.15
250, 250.1, 0.80, 1.2e8, 3.0, 3.0, 0.0020, 0.0020, 0.20, 0.20
`
	return os.WriteFile(filepath.Join(tc.tmpDir, name), []byte(model), 0644)
}

func (tc *testContext) iRunDicomfixWith(args string) error {
	cmd := exec.Command(binaryPath, splitArgs(tc.path(args))...)
	cmd.Dir = tc.tmpDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	tc.output = output.String()

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		tc.exitCode = exitErr.ExitCode()
	case err != nil:
		return fmt.Errorf("failed to run command: %w", err)
	default:
		tc.exitCode = 0
	}
	return nil
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nOutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	expected = tc.path(expected)
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldNotContain(unexpected string) error {
	unexpected = tc.path(unexpected)
	if strings.Contains(tc.output, unexpected) {
		return fmt.Errorf("output contains %q\nOutput:\n%s", unexpected, tc.output)
	}
	return nil
}

func (tc *testContext) shouldExist(path string) error {
	if _, err := os.Stat(tc.path(path)); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return nil
}

func (tc *testContext) shouldNotExist(path string) error {
	if _, err := os.Stat(tc.path(path)); err == nil {
		return fmt.Errorf("path exists: %s", path)
	}
	return nil
}

func (tc *testContext) fileShouldContain(path, expected string) error {
	expected = tc.path(expected)
	data, err := os.ReadFile(tc.path(path))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("%s does not contain %q", path, expected)
	}
	return nil
}

func (tc *testContext) shouldHoldFiles(dir string, count int, pattern string) error {
	files, err := filepath.Glob(filepath.Join(tc.path(dir), pattern))
	if err != nil {
		return err
	}
	if len(files) != count {
		return fmt.Errorf("expected %d files matching %s in %s, found %d", count, pattern, dir, len(files))
	}
	return nil
}

// splitArgs splits a command line string into arguments. Single quotes
// group words, since the step text itself is double quoted.
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
