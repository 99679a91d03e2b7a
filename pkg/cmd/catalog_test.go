package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, dir, name, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFeatures(t *testing.T) {
	catalog := t.TempDir()
	writeCatalogFile(t, filepath.Join(catalog, "features"), "stamp.json", `{
		"id": "stamp",
		"name": "Stamp Document",
		"expose_action": true,
		"run_manually": true
	}`)

	repository, err := LoadFeatures(t.Context(), catalog)
	require.NoError(t, err)

	feature, err := repository.GetByID(t.Context(), "stamp")
	require.NoError(t, err)
	assert.Equal(t, "Stamp Document", feature.Name)
	assert.True(t, feature.ExposeAction)
}

func TestLoadFeatures_EmptyCatalog(t *testing.T) {
	repository, err := LoadFeatures(t.Context(), t.TempDir())
	require.NoError(t, err)

	all, err := repository.All(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLoadFeatures_MalformedFile(t *testing.T) {
	catalog := t.TempDir()
	writeCatalogFile(t, filepath.Join(catalog, "features"), "broken.json", "{not json")

	_, err := LoadFeatures(t.Context(), catalog)
	assert.Error(t, err)
}

func TestLoadDefinitions(t *testing.T) {
	catalog := t.TempDir()
	writeCatalogFile(t, filepath.Join(catalog, "workflows"), "approval.json", `{
		"uuid": "wf-approval",
		"title": "Document Approval",
		"states": {
			"draft": {},
			"approved": {"is_final": true}
		},
		"transitions": [
			{"from": "draft", "signal": "approve", "target": "approved"}
		]
	}`)

	definitions, err := LoadDefinitions(catalog)
	require.NoError(t, err)

	definition, err := definitions.GetDefinition(t.Context(), "wf-approval")
	require.NoError(t, err)
	assert.Equal(t, "Document Approval", definition.Title)
	assert.Equal(t, "draft", definition.InitialState())
}

func TestLoadDefinitions_RejectsInvalidGraph(t *testing.T) {
	catalog := t.TempDir()
	writeCatalogFile(t, filepath.Join(catalog, "workflows"), "broken.json", `{
		"uuid": "wf-broken",
		"title": "Broken",
		"states": {"draft": {}},
		"transitions": [
			{"from": "draft", "signal": "go", "target": "missing"}
		]
	}`)

	_, err := LoadDefinitions(catalog)
	assert.Error(t, err)
}
