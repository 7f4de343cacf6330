package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentv/agentv"
	"github.com/agentv/agentv/internal/target"
)

func TestFilterCases(t *testing.T) {
	cases := []agentv.EvalCase{
		{ID: "auth_basic"},
		{ID: "auth_token"},
		{ID: "user_create"},
		{ID: "user_delete"},
		{ID: "admin_auth"},
		{ID: "troubleshoot_network"},
		{ID: "troubleshoot_service"},
	}

	tests := []struct {
		name     string
		pattern  string
		expected []string
		wantErr  bool
	}{
		{
			name:     "match prefix",
			pattern:  "^auth",
			expected: []string{"auth_basic", "auth_token"},
		},
		{
			name:     "match suffix",
			pattern:  "auth$",
			expected: []string{"admin_auth"},
		},
		{
			name:     "match multiple",
			pattern:  "auth|user",
			expected: []string{"auth_basic", "auth_token", "user_create", "user_delete", "admin_auth"},
		},
		{
			name:     "no matches",
			pattern:  "nonexistent",
			expected: nil,
		},
		{
			name:    "invalid regex",
			pattern: "[invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := require.New(t)

			result, err := filterCases(cases, tt.pattern)

			if tt.wantErr {
				assert.Error(err)
				return
			}

			assert.NoError(err)

			var ids []string
			for _, c := range result {
				ids = append(ids, c.ID)
			}
			assert.Equal(tt.expected, ids)
		})
	}
}

func TestFilterCases_MatchAll(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	cases := []agentv.EvalCase{{ID: "test1"}, {ID: "test2"}, {ID: "test3"}}

	result, err := filterCases(cases, ".*")
	assert.NoError(err)
	assert.Len(result, 3)
}

func TestBuildProvider_UnsupportedKind(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	_, err := buildProvider(target.Config{Name: "x", Kind: "azure"})
	assert.Error(err)
}
