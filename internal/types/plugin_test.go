package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchRuleCompile(t *testing.T) {
	r := MatchRule{Pattern: `^\{.*\}$`, Weight: 20}
	assert.NoError(t, r.Compile())
	assert.True(t, r.Matches(`{"name": "test"}`))
	assert.False(t, r.Matches(`plain text`))
}

func TestMatchRuleCompileInvalid(t *testing.T) {
	r := MatchRule{Pattern: `([unclosed`}
	assert.Error(t, r.Compile())
}

func TestMatchRuleCaseInsensitive(t *testing.T) {
	r := MatchRule{Pattern: `^color\s`}
	assert.NoError(t, r.Compile())
	assert.True(t, r.Matches("Color #ff0000"))
}

func TestMatchRuleUncompiledNeverMatches(t *testing.T) {
	r := MatchRule{Pattern: `.*`}
	assert.False(t, r.Matches("anything"))
}

func TestManifestSearchable(t *testing.T) {
	m := Manifest{ID: "p"}
	assert.True(t, m.Searchable())

	no := false
	m.AllowSearch = &no
	assert.False(t, m.Searchable())

	yes := true
	m.AllowSearch = &yes
	assert.True(t, m.Searchable())
}

func TestManifestDefaults(t *testing.T) {
	m := Manifest{ID: "p"}
	assert.Equal(t, 1.0, m.EffectiveWeight())
	assert.Equal(t, "index.html", m.EntryArtifact())

	m.Weight = 2.5
	m.Entry = "main.html"
	assert.Equal(t, 2.5, m.EffectiveWeight())
	assert.Equal(t, "main.html", m.EntryArtifact())
}

func TestViewStateString(t *testing.T) {
	assert.Equal(t, "closed", ViewClosed.String())
	assert.Equal(t, "opening", ViewOpening.String())
	assert.Equal(t, "open", ViewOpen.String())
}

func TestInitDataEmpty(t *testing.T) {
	var d *InitData
	assert.True(t, d.Empty())
	assert.True(t, (&InitData{}).Empty())
	assert.False(t, (&InitData{InitialValue: "q"}).Empty())
	assert.False(t, (&InitData{Context: map[string]any{"k": 1}}).Empty())
}

func TestResultHelpers(t *testing.T) {
	ok := Ok(map[string]any{"k": "v"})
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)

	fail := Fail("boom")
	assert.False(t, fail.Success)
	assert.Equal(t, "boom", *fail.Error)
}
