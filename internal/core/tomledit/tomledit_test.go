package tomledit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `# top comment
[package]
name = "demo"   # trailing comment
version = "0.1.0"
edition = "2021"

[dependencies]
serde = { version = "1.0", features = ["derive"] }
anyhow = "1"

# build tooling
[build-dependencies]
cc = "1.0"

[target."cfg(unix)".dependencies]
libc = "0.2"

[features]
default = ["std"]
std = []

[[bin]]
name = "demo"
path = "src/main.rs"
`

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		sampleManifest,
		"",
		"key = 'literal'\nnum = 42\nfloat = 1.5e3\nflag = true\n",
		"# only a comment, no trailing newline",
		"[a]\n\n\n[a.b.c]\nx = [\n  1,\n  2, # two\n]\n",
		"empty = []\ntrail = [1, 2,]\n",
		"ml = \"\"\"\nline one\nline two\"\"\"\n",
		"date = 1979-05-27T07:32:00Z\n",
	}
	for _, in := range inputs {
		doc, err := Parse([]byte(in))
		require.NoError(t, err, "input: %q", in)
		assert.Equal(t, in, doc.String(), "round-trip mismatch for %q", in)
	}
}

func TestRoundTripAfterNoOpNavigation(t *testing.T) {
	doc, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	_, err = doc.GetTable([]string{"dependencies"})
	require.NoError(t, err)
	_, err = doc.GetTable([]string{"target", "cfg(unix)", "dependencies"})
	require.NoError(t, err)

	assert.Equal(t, sampleManifest, doc.String())
}

func TestGetTableMissing(t *testing.T) {
	doc, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	_, err = doc.GetTable([]string{"dev-dependencies"})
	var missing *NonExistentTableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "dev-dependencies", missing.Segment)
}

func TestGetOrInsertTableCreates(t *testing.T) {
	doc, err := Parse([]byte("[package]\nname = \"x\"\n"))
	require.NoError(t, err)

	tbl := doc.GetOrInsertTable([]string{"dev-dependencies"})
	tbl.Set("serde", String("1.0"))

	assert.Equal(t, "[package]\nname = \"x\"\n\n[dev-dependencies]\nserde = \"1.0\"\n", doc.String())
}

func TestGetOrInsertTableDottedHeader(t *testing.T) {
	doc, err := Parse([]byte(""))
	require.NoError(t, err)

	tbl := doc.GetOrInsertTable([]string{"target", "cfg(unix)", "dependencies"})
	tbl.Set("libc", String("0.2"))

	assert.Equal(t, "[target.\"cfg(unix)\".dependencies]\nlibc = \"0.2\"\n", doc.String())
}

func TestSetPreservesDecoration(t *testing.T) {
	in := "[package]\n# keep me\nversion = \"0.1.0\"  # pinned\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)

	pkg, err := doc.GetTable([]string{"package"})
	require.NoError(t, err)
	pkg.Set("version", String("0.2.0"))

	assert.Equal(t, "[package]\n# keep me\nversion = \"0.2.0\"  # pinned\n", doc.String())
}

func TestRemoveEntryAndTable(t *testing.T) {
	in := "[dependencies]\nserde = \"1\"\nanyhow = \"1\"\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)

	deps, err := doc.GetTable([]string{"dependencies"})
	require.NoError(t, err)
	require.True(t, deps.Remove("serde"))
	assert.Equal(t, "[dependencies]\nanyhow = \"1\"\n", doc.String())

	require.True(t, deps.Remove("anyhow"))
	require.True(t, deps.IsEmpty())
	require.True(t, doc.Root().RemoveSub("dependencies"))
	assert.Equal(t, "", doc.String())
}

func TestRemoveSubDropsNestedBlocks(t *testing.T) {
	in := "[dependencies]\na = \"1\"\n\n[dependencies.serde]\nversion = \"1\"\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)

	require.True(t, doc.Root().RemoveSub("dependencies"))
	assert.Equal(t, "", doc.String())
}

func TestArrayEdit(t *testing.T) {
	in := "[features]\nbar = [\"foo\", \"foo/x\", \"other\"]\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)

	feats, err := doc.GetTable([]string{"features"})
	require.NoError(t, err)
	arr := feats.Get("bar").AsArray()
	require.NotNil(t, arr)
	require.Equal(t, 3, arr.Len())

	// Highest to lowest so indices stay valid.
	arr.Remove(1)
	arr.Remove(0)
	assert.Equal(t, "[features]\nbar = [\"other\"]\n", doc.String())
}

func TestInlineTableEdit(t *testing.T) {
	in := "[dependencies]\nserde = { version = \"1.0\", features = [\"derive\"] }\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)

	deps, err := doc.GetTable([]string{"dependencies"})
	require.NoError(t, err)
	it := deps.Get("serde").AsInlineTable()
	require.NotNil(t, it)

	v, ok := it.Get("version").AsString()
	require.True(t, ok)
	assert.Equal(t, "1.0", v)

	it.Set("version", String("2.0"))
	it.Set("optional", Bool(true))
	assert.Contains(t, doc.String(), `version = "2.0"`)
	assert.Contains(t, doc.String(), `optional = true`)
}

func TestInlineTableAppendKeepsSpacing(t *testing.T) {
	in := "[dependencies]\nserde = { version = \"1.0\" }\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)

	deps, err := doc.GetTable([]string{"dependencies"})
	require.NoError(t, err)
	it := deps.Get("serde").AsInlineTable()
	require.NotNil(t, it)

	it.Set("optional", Bool(true))
	assert.Equal(t, "[dependencies]\nserde = { version = \"1.0\", optional = true }\n", doc.String())

	it.Set("default-features", Bool(false))
	assert.Equal(t, "[dependencies]\nserde = { version = \"1.0\", optional = true, default-features = false }\n", doc.String())
}

func TestSortEntries(t *testing.T) {
	in := "[dependencies]\nzlib = \"1\"\n# about anyhow\nanyhow = \"1\"\nserde = \"1\"\n"
	doc, err := Parse([]byte(in))
	require.NoError(t, err)

	deps, err := doc.GetTable([]string{"dependencies"})
	require.NoError(t, err)
	assert.False(t, deps.IsSorted())

	deps.Sort()
	assert.True(t, deps.IsSorted())
	assert.Equal(t, "[dependencies]\n# about anyhow\nanyhow = \"1\"\nserde = \"1\"\nzlib = \"1\"\n", doc.String())
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"key = ",
		"key \"no equals\"",
		"[unclosed",
		"key = \"unterminated",
		"[a]\nx = 1\n[a]\ny = 2\n",
	}
	for _, in := range cases {
		_, err := Parse([]byte(in))
		assert.Error(t, err, "input: %q", in)
	}
}
