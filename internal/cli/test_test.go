package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("testdata", "scenarios")

// tempScenario writes a passing mass scenario into a fresh directory.
func tempScenario(t *testing.T) (dir, file string) {
	t.Helper()
	specs, err := filepath.Abs(weakSpecs)
	require.NoError(t, err)
	dir = t.TempDir()
	file = filepath.Join(dir, "mass.yaml")
	content := `name: mass
description: "Constant mixed derivative"
specs: ` + specs + `
context: mass
batches:
  - points: 1
    fields:
      u: [3]
    expect:
      - deriv: "{0,1}"
        value: 1
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return dir, file
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	output, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found")

	output, err = execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)
	var result TestResult
	resp := decodeResponse(t, output, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, result.Total)
}

func TestTestCommandGoldenMatch(t *testing.T) {
	output, err := execute(t, "test", scenariosDir, "--filter", "residual")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ residual")
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	output, err := execute(t, "--format", "json", "test", scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, output, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Passed)

	byName := map[string]ScenarioResult{}
	for _, sr := range result.Scenarios {
		byName[sr.Name] = sr
	}
	assert.Equal(t, "match", byName["residual"].Golden)
	wrong := byName["mass_wrong"]
	assert.False(t, wrong.Pass)
	assert.Equal(t, "none", wrong.Golden)
	require.NotEmpty(t, wrong.Errors)
	assert.Contains(t, wrong.Errors[0], "expected 2, got 1")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir, file := tempScenario(t)

	output, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ mass (golden updated)")

	golden := goldenFilePath(file)
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario":"mass"`)
	assert.Contains(t, string(data), `"run_id":"mass-0001"`)

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "freshly written golden file matches")

	require.NoError(t, os.WriteFile(golden, []byte(`{}`), 0644))
	output, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, output, "trace does not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	output, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ broken.yaml")
	assert.Contains(t, output, "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := findScenarioFiles(scenariosDir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(scenariosDir, "mass_wrong.yaml"),
		filepath.Join(scenariosDir, "residual.yaml"),
	}, files)

	files, err = findScenarioFiles(scenariosDir, "mass_*")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = findScenarioFiles(scenariosDir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "residual.golden"),
		goldenFilePath(filepath.Join("scenarios", "residual.yaml")))
}
