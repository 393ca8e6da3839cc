package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertbridge/relay/internal/ruleset"
)

func TestEmptyTransformIsIdentity(t *testing.T) {
	in := map[string]any{
		"alert": map[string]any{"severity": "critical", "id": float64(7)},
		"tags":  []any{"a", "b"},
	}
	p := Compile(ruleset.Transform{})
	out := p.Apply(in)

	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("empty transform changed the document (-in +out):\n%s", diff)
	}
	// And confirm independence: mutating out must not touch in.
	out.(map[string]any)["tags"] = "mutated"
	assert.Equal(t, []any{"a", "b"}, in["tags"])
}

func TestIncludeFieldsKeepsOnlyListedPaths(t *testing.T) {
	in := map[string]any{
		"alert":  map[string]any{"severity": "critical", "noise": "drop me"},
		"source": "ocp",
	}
	p := Compile(ruleset.Transform{IncludeFields: []string{"alert.severity", "source"}})
	out := p.Apply(in).(map[string]any)

	require.Contains(t, out, "alert")
	require.Contains(t, out, "source")
	alert := out["alert"].(map[string]any)
	assert.Equal(t, "critical", alert["severity"])
	assert.NotContains(t, alert, "noise")
}

func TestDropFieldsRemovesListedPaths(t *testing.T) {
	in := map[string]any{"a": map[string]any{"b": 1, "c": 2}}
	p := Compile(ruleset.Transform{DropFields: []string{"a.b"}})
	out := p.Apply(in).(map[string]any)

	a := out["a"].(map[string]any)
	assert.NotContains(t, a, "b")
	assert.Contains(t, a, "c")
}

func TestRenameMovesValueAndDeletesSource(t *testing.T) {
	in := map[string]any{"labels": map[string]any{"severity": "critical"}}
	rename := ruleset.OrderedStringMap{}
	rename.Set("labels.severity", "level")
	p := Compile(ruleset.Transform{Rename: rename})
	out := p.Apply(in).(map[string]any)

	assert.Equal(t, "critical", out["level"])
	labels := out["labels"].(map[string]any)
	assert.NotContains(t, labels, "severity")
}

func TestEnrichStaticAddsFields(t *testing.T) {
	in := map[string]any{"a": 1}
	p := Compile(ruleset.Transform{EnrichStatic: map[string]any{"team": "sre"}})
	out := p.Apply(in).(map[string]any)

	assert.Equal(t, "sre", out["team"])
	assert.Equal(t, 1, out["a"])
}

func TestMapValuesTranslatesKnownScalar(t *testing.T) {
	in := map[string]any{"severity": "critical"}
	p := Compile(ruleset.Transform{
		MapValues: map[string]ruleset.MapValueRule{
			"severity": {"critical": "P1", "warning": "P3"},
		},
	})
	out := p.Apply(in).(map[string]any)
	assert.Equal(t, "P1", out["severity"])
}

func TestMapValuesLeavesUnknownScalarUntouched(t *testing.T) {
	in := map[string]any{"severity": "info"}
	p := Compile(ruleset.Transform{
		MapValues: map[string]ruleset.MapValueRule{
			"severity": {"critical": "P1"},
		},
	})
	out := p.Apply(in).(map[string]any)
	assert.Equal(t, "info", out["severity"])
}

func TestOutputTemplateBuildsNewShapeFromSelectors(t *testing.T) {
	in := map[string]any{
		"alert": map[string]any{"severity": "critical"},
		"extra": "ignored",
	}
	fields := ruleset.OrderedStringMap{}
	fields.Set("level", "$.alert.severity")
	fields.Set("raw", "$")
	p := Compile(ruleset.Transform{OutputTemplate: &ruleset.OutputTemplate{Fields: fields}})
	out := p.Apply(in).(map[string]any)

	assert.Equal(t, "critical", out["level"])
	raw := out["raw"].(map[string]any)
	assert.Equal(t, "ignored", raw["extra"])
	assert.NotContains(t, out, "extra")
}

func TestOutputTemplateMissingSelectorYieldsNil(t *testing.T) {
	in := map[string]any{"a": 1}
	fields := ruleset.OrderedStringMap{}
	fields.Set("missing", "$.does.not.exist")
	p := Compile(ruleset.Transform{OutputTemplate: &ruleset.OutputTemplate{Fields: fields}})
	out := p.Apply(in).(map[string]any)

	assert.Nil(t, out["missing"])
}

func TestPipelineStepsRunInFixedOrder(t *testing.T) {
	// Alertmanager-style flat-output scenario (spec.md §8, scenario 1):
	// rename then output_template must see the renamed field, proving
	// rename executes before output_template regardless of configuration
	// order in the struct literal.
	in := map[string]any{"labels": map[string]any{"alertname": "KubePodCrashLooping"}}
	rename := ruleset.OrderedStringMap{}
	rename.Set("labels.alertname", "alert_name")
	fields := ruleset.OrderedStringMap{}
	fields.Set("name", "$.alert_name")
	p := Compile(ruleset.Transform{
		Rename:         rename,
		OutputTemplate: &ruleset.OutputTemplate{Fields: fields},
	})
	out := p.Apply(in).(map[string]any)
	assert.Equal(t, "KubePodCrashLooping", out["name"])
}

func TestMapValuesNumericKeyMatchesIntegralForm(t *testing.T) {
	in := map[string]any{"code": float64(2)}
	p := Compile(ruleset.Transform{
		MapValues: map[string]ruleset.MapValueRule{
			"code": {"2": "warning"},
		},
	})
	out := p.Apply(in).(map[string]any)
	assert.Equal(t, "warning", out["code"])
}
