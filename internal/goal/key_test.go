package goal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameKey_IgnoresDisplayName(t *testing.T) {
	a := Key{Environment: "0-code", UniqueName: "build#goals.ts:42", Name: "build"}
	b := Key{Environment: "0-code", UniqueName: "build#goals.ts:42", Name: "Build (renamed)"}
	assert.True(t, SameKey(a, b))
}

func TestSameKey_EnvironmentParticipates(t *testing.T) {
	a := Key{Environment: "0-code", UniqueName: "build"}
	b := Key{Environment: "1-staging", UniqueName: "build"}
	assert.False(t, SameKey(a, b))
}

func TestFindByKey(t *testing.T) {
	siblings := []Event{
		{Environment: "0-code", UniqueName: "build", Name: "build"},
		{Environment: "1-staging", UniqueName: "deploy", Name: "deploy"},
	}

	found := FindByKey(siblings, Key{Environment: "1-staging", UniqueName: "deploy"})
	require.NotNil(t, found)
	assert.Equal(t, "deploy", found.Name)

	assert.Nil(t, FindByKey(siblings, Key{Environment: "0-code", UniqueName: "lint"}))
	assert.Nil(t, FindByKey(nil, Key{Environment: "0-code", UniqueName: "build"}))
}

func TestDependsOn(t *testing.T) {
	deploy := Event{
		Environment: "1-staging",
		UniqueName:  "deploy",
		PreConditions: []Key{
			{Environment: "0-code", UniqueName: "build"},
		},
	}

	assert.True(t, deploy.DependsOn(Key{Environment: "0-code", UniqueName: "build"}))
	assert.False(t, deploy.DependsOn(Key{Environment: "0-code", UniqueName: "test"}))
}
