package add

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/cargoctl/cargoctl/internal/core/dependency"
	"github.com/cargoctl/cargoctl/internal/core/resolve"
)

// fakeResolver serves a fixed crate set so tests never touch the network.
type fakeResolver struct {
	crates map[string]*resolve.CrateMetadata
}

func (r *fakeResolver) Latest(name, req, registry string) (*resolve.CrateMetadata, error) {
	meta, ok := r.crates[name]
	if !ok {
		return nil, errors.New("no crate named " + name)
	}
	return meta, nil
}

func (r *fakeResolver) AvailableFeatures(dep *dependency.Dependency) (map[string][]string, error) {
	meta, ok := r.crates[dep.Name]
	if !ok {
		return nil, errors.New("no crate named " + dep.Name)
	}
	return meta.Features, nil
}

func testResolver() *fakeResolver {
	return &fakeResolver{crates: map[string]*resolve.CrateMetadata{
		"serde": {
			Name:     "serde",
			Version:  semver.MustParse("1.0.200"),
			Features: map[string][]string{"default": {"std"}, "std": nil, "derive": nil},
		},
	}}
}

func setupAddTestEnvironment(t *testing.T, manifest string) string {
	t.Helper()
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Cargo.toml"), []byte(manifest), 0644))
	return tempDir
}

func runAddCommand(t *testing.T, workDir string, args ...string) error {
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
			NewAddCommand(testResolver()),
		},
		ExitErrHandler: func(context *cli.Context, err error) {
			// Assertions handle errors from app.Run.
		},
	}

	cliArgs := append([]string{"cargoctl-test", "add"}, args...)
	return app.Run(cliArgs)
}

func readManifest(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)
	return string(data)
}

const basicManifest = "[package]\nname = \"test-project\"\nversion = \"0.1.0\"\n"

func TestAddCommandResolvesLatest(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)

	require.NoError(t, runAddCommand(t, tempDir, "serde"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, "[dependencies]")
	assert.Contains(t, out, "serde = \"1.0.200\"")
}

func TestAddCommandExplicitVersionAndFeatures(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)

	require.NoError(t, runAddCommand(t, tempDir, "--features", "derive", "--no-default-features", "serde@1.0"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, `serde = { version = "1.0", default-features = false, features = ["derive"] }`)
}

func TestAddCommandDevSection(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)

	require.NoError(t, runAddCommand(t, tempDir, "--dev", "serde"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, "[dev-dependencies]")
	assert.NotContains(t, out, "\n[dependencies]")
}

func TestAddCommandRename(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)

	require.NoError(t, runAddCommand(t, tempDir, "--rename", "serde1", "serde"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, `serde1 = { version = "1.0.200", package = "serde" }`)
}

func TestAddCommandGitSource(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)

	require.NoError(t, runAddCommand(t, tempDir, "--git", "https://example.com/foo", "--branch", "dev", "foo"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, `foo = { git = "https://example.com/foo", branch = "dev" }`)
}

func TestAddCommandDryRun(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)

	require.NoError(t, runAddCommand(t, tempDir, "--dry-run", "serde"))

	assert.Equal(t, basicManifest, readManifest(t, tempDir))
}

func TestAddCommandUpdatesExisting(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest+"\n[dependencies]\nserde = { version = \"0.9\", features = [\"derive\"] }\n")

	require.NoError(t, runAddCommand(t, tempDir, "serde@1.0"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, `version = "1.0"`)
	assert.Contains(t, out, `features = ["derive"]`)
}

func TestAddCommandDeOptionalizeGcsFeatures(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest+`
[dependencies]
foo = { version = "1.0", optional = true }

[features]
bar = ["foo", "foo/x"]
`)

	require.NoError(t, runAddCommand(t, tempDir, "--optional=false", "foo@1.0"))

	out := readManifest(t, tempDir)
	assert.Contains(t, out, "foo = \"1.0\"\n")
	assert.Contains(t, out, "bar = [\"foo/x\"]", "the implicit feature goes away, transitive features stay")
}

func TestAddCommandUnknownCrate(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)

	err := runAddCommand(t, tempDir, "no-such-crate")
	require.Error(t, err)
	assert.Equal(t, basicManifest, readManifest(t, tempDir))
}

func TestAddCommandMissingArgument(t *testing.T) {
	tempDir := setupAddTestEnvironment(t, basicManifest)
	require.Error(t, runAddCommand(t, tempDir))
}

func TestAddCommandWorkspaceMember(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Cargo.toml"),
		[]byte("[workspace]\nmembers = [\"app\", \"util\"]\n"), 0644))
	appDir := filepath.Join(tempDir, "app")
	utilDir := filepath.Join(tempDir, "util")
	require.NoError(t, os.Mkdir(appDir, 0755))
	require.NoError(t, os.Mkdir(utilDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "Cargo.toml"),
		[]byte("[package]\nname = \"app\"\nversion = \"0.1.0\"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(utilDir, "Cargo.toml"),
		[]byte("[package]\nname = \"util\"\nversion = \"0.3.0\"\n"), 0644))

	require.NoError(t, runAddCommand(t, appDir, "util"))

	out := readManifest(t, appDir)
	assert.Contains(t, out, `util = { version = "0.3.0", path = "../util" }`)
}
