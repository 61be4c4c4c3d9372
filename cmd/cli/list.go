package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/repomirror/internal/backup"
	flagutils "github.com/tyemirov/repomirror/internal/utils/flags"
)

type listOutputFormat string

const (
	listOutputTable listOutputFormat = "table"
	listOutputYAML  listOutputFormat = "yaml"
	listOutputJSON  listOutputFormat = "json"
)

const (
	unsupportedListOutputTemplateConstant = "unsupported output format %q"
	unknownHostTemplateConstant           = "unknown host %q"
	unknownHostSuggestionTemplateConstant = "unknown host %q (did you mean %s?)"
	listHostFailedTemplateConstant        = "unable to list repositories on %s: %w"
	listTableHeaderConstant               = "NAME\tNORMALIZED\tDESCRIPTION\tPUSH URL"
	listTableRowTemplateConstant          = "%s\t%s\t%s\t%s\n"
	listJSONIndentConstant                = "  "
	listYAMLIndentConstant                = 2
	suggestionSeparatorConstant           = ", "
)

type listedRepository struct {
	Name           string `json:"name" yaml:"name"`
	NormalizedName string `json:"normalized_name" yaml:"normalized_name"`
	Description    string `json:"description" yaml:"description"`
	WebURL         string `json:"web_url" yaml:"web_url"`
	PushURL        string `json:"push_url" yaml:"push_url"`
}

func supportedListOutputNames() []string {
	return []string{string(listOutputTable), string(listOutputYAML), string(listOutputJSON)}
}

func parseListOutputFormat(raw string) (listOutputFormat, error) {
	switch format := listOutputFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case "", listOutputTable:
		return listOutputTable, nil
	case listOutputYAML, listOutputJSON:
		return format, nil
	default:
		return "", fmt.Errorf(unsupportedListOutputTemplateConstant, raw)
	}
}

func (application *Application) runListCommand(command *cobra.Command, arguments []string) error {
	outputValue, _, _ := flagutils.StringFlag(command, listOutputFlagNameConstant)
	format, formatError := parseListOutputFormat(outputValue)
	if formatError != nil {
		return formatError
	}

	runtime, runtimeError := application.buildRuntime()
	if runtimeError != nil {
		return runtimeError
	}

	hostName := strings.TrimSpace(arguments[0])
	host, found := runtime.registry.Host(hostName)
	if !found {
		return unknownHostError(hostName, runtime.registry)
	}

	repositories, listError := host.Provider.ListRepositories(command.Context())
	if listError != nil {
		return fmt.Errorf(listHostFailedTemplateConstant, host.Name, listError)
	}

	return renderRepositories(command.OutOrStdout(), format, toListedRepositories(repositories))
}

func unknownHostError(hostName string, registry *backup.Registry) error {
	hostNames := make([]string, 0, len(registry.Hosts()))
	for _, host := range registry.Hosts() {
		hostNames = append(hostNames, host.Name)
	}
	if suggestions := backup.SuggestNames(hostName, hostNames); len(suggestions) > 0 {
		return fmt.Errorf(unknownHostSuggestionTemplateConstant, hostName, strings.Join(suggestions, suggestionSeparatorConstant))
	}
	return fmt.Errorf(unknownHostTemplateConstant, hostName)
}

func toListedRepositories(repositories []backup.Repository) []listedRepository {
	sorted := append([]backup.Repository(nil), repositories...)
	sort.SliceStable(sorted, func(left int, right int) bool {
		if sorted[left].NormalizedName != sorted[right].NormalizedName {
			return sorted[left].NormalizedName < sorted[right].NormalizedName
		}
		return sorted[left].Name < sorted[right].Name
	})

	listed := make([]listedRepository, 0, len(sorted))
	for _, repository := range sorted {
		listed = append(listed, listedRepository{
			Name:           repository.Name,
			NormalizedName: repository.NormalizedName,
			Description:    repository.Description,
			WebURL:         repository.WebURL,
			PushURL:        repository.PushURL,
		})
	}
	return listed
}

func renderRepositories(output io.Writer, format listOutputFormat, repositories []listedRepository) error {
	switch format {
	case listOutputJSON:
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", listJSONIndentConstant)
		return encoder.Encode(repositories)
	case listOutputYAML:
		encoder := yaml.NewEncoder(output)
		encoder.SetIndent(listYAMLIndentConstant)
		if encodeError := encoder.Encode(repositories); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	default:
		tableWriter := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tableWriter, listTableHeaderConstant)
		for _, repository := range repositories {
			fmt.Fprintf(tableWriter, listTableRowTemplateConstant, repository.Name, repository.NormalizedName, repository.Description, repository.PushURL)
		}
		return tableWriter.Flush()
	}
}
