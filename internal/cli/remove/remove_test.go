package remove

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func setupRemoveTestEnvironment(t *testing.T, manifest string) string {
	t.Helper()
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Cargo.toml"), []byte(manifest), 0644))
	return tempDir
}

func runRemoveCommand(t *testing.T, workDir string, args ...string) error {
	t.Helper()

	originalWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workDir))
	defer func() {
		require.NoError(t, os.Chdir(originalWd))
	}()

	app := &cli.App{
		Name: "cargoctl-test",
		Commands: []*cli.Command{
			NewRemoveCommand(),
		},
		ExitErrHandler: func(context *cli.Context, err error) {
			// Assertions handle errors from app.Run.
		},
	}

	cliArgs := append([]string{"cargoctl-test", "rm"}, args...)
	return app.Run(cliArgs)
}

func readManifest(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)
	return string(data)
}

const packageHeader = "[package]\nname = \"test-project\"\nversion = \"0.1.0\"\n"

func TestRemoveCommandDropsDependency(t *testing.T) {
	tempDir := setupRemoveTestEnvironment(t, packageHeader+`
[dependencies]
serde = "1.0"
anyhow = "1"
`)

	require.NoError(t, runRemoveCommand(t, tempDir, "serde"))

	out := readManifest(t, tempDir)
	assert.NotContains(t, out, "serde")
	assert.Contains(t, out, "anyhow = \"1\"")
}

func TestRemoveCommandDropsEmptyTable(t *testing.T) {
	tempDir := setupRemoveTestEnvironment(t, packageHeader+"\n[dependencies]\nserde = \"1.0\"\n")

	require.NoError(t, runRemoveCommand(t, tempDir, "serde"))

	assert.Equal(t, packageHeader, readManifest(t, tempDir))
}

func TestRemoveCommandMultipleNames(t *testing.T) {
	tempDir := setupRemoveTestEnvironment(t, packageHeader+`
[dependencies]
serde = "1.0"
anyhow = "1"
thiserror = "1"
`)

	require.NoError(t, runRemoveCommand(t, tempDir, "serde", "anyhow"))

	out := readManifest(t, tempDir)
	assert.NotContains(t, out, "serde")
	assert.NotContains(t, out, "anyhow")
	assert.Contains(t, out, "thiserror")
}

func TestRemoveCommandDevSection(t *testing.T) {
	tempDir := setupRemoveTestEnvironment(t, packageHeader+`
[dependencies]
serde = "1.0"

[dev-dependencies]
serde = "1.0"
`)

	require.NoError(t, runRemoveCommand(t, tempDir, "--dev", "serde"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, "[dependencies]\nserde = \"1.0\"")
	assert.NotContains(t, out, "[dev-dependencies]")
}

func TestRemoveCommandGcsFeatures(t *testing.T) {
	tempDir := setupRemoveTestEnvironment(t, packageHeader+`
[dependencies]
foo = { version = "1", optional = true }

[features]
bar = ["foo", "foo/x", "other"]
`)

	require.NoError(t, runRemoveCommand(t, tempDir, "foo"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, "bar = [\"other\"]")
}

func TestRemoveCommandMissingDependency(t *testing.T) {
	manifest := packageHeader + "\n[dependencies]\nserde = \"1.0\"\n"
	tempDir := setupRemoveTestEnvironment(t, manifest)

	err := runRemoveCommand(t, tempDir, "anyhow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anyhow")
	assert.Equal(t, manifest, readManifest(t, tempDir))
}

func TestRemoveCommandDryRun(t *testing.T) {
	manifest := packageHeader + "\n[dependencies]\nserde = \"1.0\"\n"
	tempDir := setupRemoveTestEnvironment(t, manifest)

	require.NoError(t, runRemoveCommand(t, tempDir, "--dry-run", "serde"))

	assert.Equal(t, manifest, readManifest(t, tempDir))
}

func TestRemoveCommandMissingArgument(t *testing.T) {
	tempDir := setupRemoveTestEnvironment(t, packageHeader)
	require.Error(t, runRemoveCommand(t, tempDir))
}
