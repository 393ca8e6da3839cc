package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseRoute(name, source string) Route {
	return Route{
		Name:   name,
		Match:  Match{Source: source},
		Target: Target{URL: "https://example.invalid"},
	}
}

func TestValidateRejectsDuplicateRouteNames(t *testing.T) {
	rs := &RuleSet{Routes: []Route{baseRoute("a", "s1"), baseRoute("a", "s2")}}
	assert.Error(t, rs.Validate())
}

func TestValidateRejectsDuplicateSources(t *testing.T) {
	rs := &RuleSet{Routes: []Route{baseRoute("a", "s"), baseRoute("b", "s")}}
	assert.Error(t, rs.Validate())
}

func TestValidateRejectsDuplicateSourcesCaseInsensitive(t *testing.T) {
	rs := &RuleSet{Routes: []Route{baseRoute("a", "Ocp"), baseRoute("b", "ocp")}}
	assert.Error(t, rs.Validate())
}

func TestValidateAcceptsWellFormedRuleSet(t *testing.T) {
	r := baseRoute("a", "s")
	r.Transform = Transform{
		IncludeFields: []string{"a.b"},
		OutputTemplate: &OutputTemplate{
			Fields: NewOrderedStringMap([2]string{"out", "$.a.b"}),
		},
	}
	rs := &RuleSet{Routes: []Route{r}}
	assert.NoError(t, rs.Validate())
}

func TestValidateRejectsBadSelector(t *testing.T) {
	r := baseRoute("a", "s")
	r.Transform = Transform{
		OutputTemplate: &OutputTemplate{
			Fields: NewOrderedStringMap([2]string{"out", "a.b"}),
		},
	}
	rs := &RuleSet{Routes: []Route{r}}
	assert.Error(t, rs.Validate())
}
