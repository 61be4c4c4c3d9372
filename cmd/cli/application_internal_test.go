package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/repomirror/internal/backup"
	"github.com/tyemirov/repomirror/internal/utils"
)

func TestNormalizeInitializationScopeArguments(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{name: "empty", arguments: nil, expected: nil},
		{name: "bare_flag_at_end", arguments: []string{"--init"}, expected: []string{"--init=local"}},
		{name: "bare_flag_before_flag", arguments: []string{"--init", "--overwrite"}, expected: []string{"--init=local", "--overwrite"}},
		{name: "explicit_scope", arguments: []string{"--init", "user"}, expected: []string{"--init", "user"}},
		{name: "empty_assignment", arguments: []string{"--init="}, expected: []string{"--init=local"}},
		{name: "unrelated_arguments", arguments: []string{"sync", "--dry-run"}, expected: []string{"sync", "--dry-run"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, normalizeInitializationScopeArguments(testCase.arguments))
		})
	}
}

func TestSyncConfigurationAppliesExplicitFlagsOnly(testInstance *testing.T) {
	application := &Application{configuration: ApplicationConfiguration{Sync: backup.CommandConfiguration{
		DryRun:           true,
		Scrub:            true,
		Only:             []string{"widgets"},
		DiscoveryWorkers: 0,
	}}}

	testCases := []struct {
		name     string
		flags    utils.ExecutionFlags
		expected backup.CommandConfiguration
	}{
		{
			name:     "configuration_only",
			flags:    utils.ExecutionFlags{},
			expected: backup.CommandConfiguration{DryRun: true, Scrub: true, Only: []string{"widgets"}, DiscoveryWorkers: 4},
		},
		{
			name:     "flags_override",
			flags:    utils.ExecutionFlags{DryRun: false, DryRunSet: true, Force: true, ForceSet: true, ScrubOnly: true, ScrubOnlySet: true},
			expected: backup.CommandConfiguration{Force: true, Scrub: true, ScrubOnly: true, Only: []string{"widgets"}, DiscoveryWorkers: 4},
		},
		{
			name:     "only_flag_replaces_list",
			flags:    utils.ExecutionFlags{Only: []string{"gadgets", " gadgets "}, OnlySet: true},
			expected: backup.CommandConfiguration{DryRun: true, Scrub: true, Only: []string{"gadgets"}, DiscoveryWorkers: 4},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, application.syncConfiguration(testCase.flags))
		})
	}
}

func TestParseListOutputFormat(testInstance *testing.T) {
	testCases := []struct {
		raw           string
		expected      listOutputFormat
		expectedError string
	}{
		{raw: "", expected: listOutputTable},
		{raw: " TABLE ", expected: listOutputTable},
		{raw: "yaml", expected: listOutputYAML},
		{raw: "json", expected: listOutputJSON},
		{raw: "xml", expectedError: `unsupported output format "xml"`},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.raw, func(testInstance *testing.T) {
			format, parseError := parseListOutputFormat(testCase.raw)
			if len(testCase.expectedError) > 0 {
				require.EqualError(testInstance, parseError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expected, format)
		})
	}
}

func TestRenderRepositories(testInstance *testing.T) {
	repositories := toListedRepositories([]backup.Repository{
		backup.NewRepository("vault", "Widgets", "[backup] https://github.com/acme/Widgets", "https://git.example.com/acme/Widgets", "git@git.example.com:acme/Widgets.git"),
		backup.NewRepository("vault", "alpha", "", "https://git.example.com/acme/alpha", "git@git.example.com:acme/alpha.git"),
	})
	require.Equal(testInstance, "alpha", repositories[0].Name)
	require.Equal(testInstance, "widgets", repositories[1].NormalizedName)

	testInstance.Run("table", func(testInstance *testing.T) {
		var output bytes.Buffer
		require.NoError(testInstance, renderRepositories(&output, listOutputTable, repositories))
		require.Contains(testInstance, output.String(), "NAME     NORMALIZED  DESCRIPTION")
		require.Contains(testInstance, output.String(), "git@git.example.com:acme/Widgets.git")
	})

	testInstance.Run("json", func(testInstance *testing.T) {
		var output bytes.Buffer
		require.NoError(testInstance, renderRepositories(&output, listOutputJSON, repositories))
		var decoded []listedRepository
		require.NoError(testInstance, json.Unmarshal(output.Bytes(), &decoded))
		require.Equal(testInstance, repositories, decoded)
	})

	testInstance.Run("yaml", func(testInstance *testing.T) {
		var output bytes.Buffer
		require.NoError(testInstance, renderRepositories(&output, listOutputYAML, repositories))
		require.Contains(testInstance, output.String(), "normalized_name: widgets")
		var decoded []listedRepository
		require.NoError(testInstance, yaml.Unmarshal(output.Bytes(), &decoded))
		require.Equal(testInstance, repositories, decoded)
	})
}

func TestEmbeddedDefaultConfigurationDecodes(testInstance *testing.T) {
	configurationData, configurationType := EmbeddedDefaultConfiguration()
	require.Equal(testInstance, "yaml", configurationType)

	var decoded map[string]any
	require.NoError(testInstance, yaml.Unmarshal(configurationData, &decoded))
	for _, section := range []string{"common", "hosts", "keep", "sync", "git", "metrics"} {
		require.Contains(testInstance, decoded, section)
	}
}
