package setversion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runSetVersionCommand(t *testing.T, workDir string, args ...string) error {
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
			NewSetVersionCommand(),
		},
		ExitErrHandler: func(context *cli.Context, err error) {
			// Assertions handle errors from app.Run.
		},
	}

	cliArgs := append([]string{"cargoctl-test", "set-version"}, args...)
	return app.Run(cliArgs)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSetVersionAbsolute(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"x\"\nversion = \"0.1.0\"\n")

	require.NoError(t, runSetVersionCommand(t, dir, "0.2.0"))

	assert.Contains(t, read(t, filepath.Join(dir, "Cargo.toml")), "version = \"0.2.0\"")
}

func TestSetVersionDowngradeFails(t *testing.T) {
	dir := t.TempDir()
	manifest := "[package]\nname = \"x\"\nversion = \"0.2.0\"\n"
	write(t, filepath.Join(dir, "Cargo.toml"), manifest)

	err := runSetVersionCommand(t, dir, "0.1.0")
	require.Error(t, err)
	assert.Equal(t, manifest, read(t, filepath.Join(dir, "Cargo.toml")))
}

func TestSetVersionBumpLevels(t *testing.T) {
	cases := []struct {
		level string
		from  string
		want  string
	}{
		{"major", "1.2.3", "2.0.0"},
		{"minor", "1.2.3", "1.3.0"},
		{"patch", "1.2.3", "1.2.4"},
		{"alpha", "1.2.3", "1.2.4-alpha.1"},
		{"rc", "1.2.4-beta.2", "1.2.4-rc.1"},
		{"release", "1.2.4-rc.1", "1.2.4"},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			dir := t.TempDir()
			write(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"x\"\nversion = \""+tc.from+"\"\n")

			require.NoError(t, runSetVersionCommand(t, dir, "--bump", tc.level))

			assert.Contains(t, read(t, filepath.Join(dir, "Cargo.toml")), "version = \""+tc.want+"\"")
		})
	}
}

func TestSetVersionBackwardPreReleaseFails(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"x\"\nversion = \"1.0.0-rc.1\"\n")

	require.Error(t, runSetVersionCommand(t, dir, "--bump", "beta"))
}

func TestSetVersionMetadata(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"x\"\nversion = \"1.0.0\"\n")

	require.NoError(t, runSetVersionCommand(t, dir, "--metadata", "build.7", "1.1.0"))

	assert.Contains(t, read(t, filepath.Join(dir, "Cargo.toml")), "version = \"1.1.0+build.7\"")
}

func TestSetVersionRequiresTarget(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "Cargo.toml"), "[package]\nname = \"x\"\nversion = \"1.0.0\"\n")

	require.Error(t, runSetVersionCommand(t, dir))
	require.Error(t, runSetVersionCommand(t, dir, "--bump", "minor", "2.0.0"))
}

func workspaceFixture(t *testing.T) string {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "Cargo.toml"), "[workspace]\nmembers = [\"app\", \"util\"]\n")
	write(t, filepath.Join(dir, "app", "Cargo.toml"), `[package]
name = "app"
version = "0.1.0"

[dependencies]
util = { path = "../util", version = "0.1" }
`)
	write(t, filepath.Join(dir, "util", "Cargo.toml"), "[package]\nname = \"util\"\nversion = \"0.1.0\"\n")
	return dir
}

func TestSetVersionPropagatesToPathDeps(t *testing.T) {
	dir := workspaceFixture(t)

	require.NoError(t, runSetVersionCommand(t, filepath.Join(dir, "util"), "0.2.0"))

	assert.Contains(t, read(t, filepath.Join(dir, "util", "Cargo.toml")), "version = \"0.2.0\"")
	assert.Contains(t, read(t, filepath.Join(dir, "app", "Cargo.toml")), `util = { path = "../util", version = "0.2" }`)
}

func TestSetVersionPackageFlag(t *testing.T) {
	dir := workspaceFixture(t)

	require.NoError(t, runSetVersionCommand(t, filepath.Join(dir, "app"), "--package", "util", "0.2.0"))

	assert.Contains(t, read(t, filepath.Join(dir, "util", "Cargo.toml")), "version = \"0.2.0\"")
	assert.Contains(t, read(t, filepath.Join(dir, "app", "Cargo.toml")), "version = \"0.1.0\"")
}

func TestSetVersionWholeWorkspace(t *testing.T) {
	dir := workspaceFixture(t)

	require.NoError(t, runSetVersionCommand(t, filepath.Join(dir, "app"), "--workspace", "1.0.0"))

	assert.Contains(t, read(t, filepath.Join(dir, "app", "Cargo.toml")), "version = \"1.0.0\"")
	assert.Contains(t, read(t, filepath.Join(dir, "util", "Cargo.toml")), "version = \"1.0.0\"")
	assert.Contains(t, read(t, filepath.Join(dir, "app", "Cargo.toml")), `util = { path = "../util", version = "1.0" }`)
}

func TestSetVersionInheritedWorkspaceVersion(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "Cargo.toml"), `[workspace]
members = ["a"]

[workspace.package]
version = "1.0.0"
`)
	write(t, filepath.Join(dir, "a", "Cargo.toml"), "[package]\nname = \"a\"\nversion = { workspace = true }\n")

	require.NoError(t, runSetVersionCommand(t, filepath.Join(dir, "a"), "1.1.0"))

	assert.Contains(t, read(t, filepath.Join(dir, "Cargo.toml")), "version = \"1.1.0\"")
	assert.Contains(t, read(t, filepath.Join(dir, "a", "Cargo.toml")), "version = { workspace = true }")
}

func TestSetVersionDryRun(t *testing.T) {
	dir := t.TempDir()
	manifest := "[package]\nname = \"x\"\nversion = \"0.1.0\"\n"
	write(t, filepath.Join(dir, "Cargo.toml"), manifest)

	require.NoError(t, runSetVersionCommand(t, dir, "--dry-run", "0.2.0"))

	assert.Equal(t, manifest, read(t, filepath.Join(dir, "Cargo.toml")))
}
