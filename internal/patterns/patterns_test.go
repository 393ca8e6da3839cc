package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggestMatchesKnownLabelPaths(t *testing.T) {
	sample := map[string]any{
		"labels": map[string]any{
			"severity":  "critical",
			"alertname": "HighCPU",
		},
		"annotations": map[string]any{
			"summary": "cpu is high",
		},
	}

	got := Suggest(sample)

	byPath := make(map[string]string, len(got))
	for _, m := range got {
		byPath[m.SourcePath] = m.TargetField
	}
	assert.Equal(t, "severity", byPath["labels.severity"])
	assert.Equal(t, "alertname", byPath["labels.alertname"])
	assert.Equal(t, "message", byPath["annotations.summary"])
}

func TestSuggestSkipsNullAndBlankLeaves(t *testing.T) {
	sample := map[string]any{
		"labels": map[string]any{
			"severity": "",
			"pod":      nil,
			"job":      "api",
		},
	}

	got := Suggest(sample)

	for _, m := range got {
		assert.NotEqual(t, "labels.severity", m.SourcePath)
		assert.NotEqual(t, "labels.pod", m.SourcePath)
	}
	assert.Len(t, got, 1)
	assert.Equal(t, "labels.job", got[0].SourcePath)
}

func TestSuggestDedupesByTargetKeepingFirstObserved(t *testing.T) {
	// "summary" and "description" both fuzzy-match to "message"; since
	// flatten() walks keys in sorted order, "description" sorts before
	// "summary" and should win.
	sample := map[string]any{
		"description": "a",
		"summary":     "b",
	}

	got := Suggest(sample)

	assert.Len(t, got, 1)
	assert.Equal(t, "description", got[0].SourcePath)
	assert.Equal(t, "message", got[0].TargetField)
}

func TestSuggestArraysAreTruncatedToThreeElements(t *testing.T) {
	sample := map[string]any{
		"items": []any{"a", "b", "c", "d", "e"},
	}

	got := Suggest(sample)

	assert.Len(t, got, 3)
}

func TestSuggestUnknownPathFallsBackToLastSegment(t *testing.T) {
	sample := map[string]any{
		"custom": map[string]any{
			"weird-field": "x",
		},
	}

	got := Suggest(sample)

	assert.Len(t, got, 1)
	assert.Equal(t, "weird_field", got[0].TargetField)
}

func TestBuildTransformProducesRenameAndOutputTemplate(t *testing.T) {
	mappings := []Mapping{
		{SourcePath: "labels.severity", TargetField: "severity"},
		{SourcePath: "annotations.summary", TargetField: "message"},
	}

	tr := BuildTransform(mappings)

	got, ok := tr.Rename.Get("labels.severity")
	assert.True(t, ok)
	assert.Equal(t, "severity", got)

	got, ok = tr.Rename.Get("annotations.summary")
	assert.True(t, ok)
	assert.Equal(t, "message", got)

	assert.Contains(t, tr.IncludeFields, "labels")
	assert.Contains(t, tr.IncludeFields, "labels.severity")
	assert.Contains(t, tr.IncludeFields, "annotations")
	assert.Contains(t, tr.IncludeFields, "annotations.summary")

	require := tr.OutputTemplate
	if assert.NotNil(t, require) {
		assert.Equal(t, "flat", require.Type)
		sev, ok := require.Fields.Get("severity")
		assert.True(t, ok)
		assert.Equal(t, "$.severity", sev)
	}
}

func TestBuildTransformIgnoresMappingsWithBlankFields(t *testing.T) {
	mappings := []Mapping{
		{SourcePath: "", TargetField: "severity"},
		{SourcePath: "labels.pod", TargetField: ""},
	}

	tr := BuildTransform(mappings)

	assert.Equal(t, 0, tr.Rename.Len())
	assert.Nil(t, tr.OutputTemplate)
}

func TestBuildTransformEmptyMappingsYieldsZeroValueTransform(t *testing.T) {
	tr := BuildTransform(nil)
	assert.Equal(t, 0, tr.Rename.Len())
	assert.Nil(t, tr.IncludeFields)
	assert.Nil(t, tr.OutputTemplate)
}
