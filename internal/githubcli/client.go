package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/tyemirov/repomirror/internal/execshell"
)

const (
	repoSubcommandConstant                  = "repo"
	listSubcommandConstant                  = "list"
	viewSubcommandConstant                  = "view"
	createSubcommandConstant                = "create"
	editSubcommandConstant                  = "edit"
	deleteSubcommandConstant                = "delete"
	jsonFlagConstant                        = "--json"
	limitFlagConstant                       = "--limit"
	descriptionFlagConstant                 = "--description"
	confirmFlagConstant                     = "--yes"
	visibilityFlagPrefixConstant            = "--"
	repositoryJSONFieldsConstant            = "name,nameWithOwner,description,url,sshUrl,visibility,isArchived"
	repositoryFieldNameConstant             = "repository"
	ownerFieldNameConstant                  = "owner"
	visibilityFieldNameConstant             = "visibility"
	requiredValueMessageConstant            = "value required"
	unsupportedVisibilityMessageConstant    = "must be private, internal or public"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	repositoryListLimitDefaultValueConstant = 1000
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	truncatedListingTemplateConstant        = "repository listing for %s exceeds the limit of %d"
	listRepositoriesOperationNameConstant   = OperationName("ListRepositories")
	viewRepositoryOperationNameConstant     = OperationName("ViewRepository")
	createRepositoryOperationNameConstant   = OperationName("CreateRepository")
	editDescriptionOperationNameConstant    = OperationName("EditDescription")
	deleteRepositoryOperationNameConstant   = OperationName("DeleteRepository")
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// Visibility describes who can see a created repository.
type Visibility string

// Supported repository visibilities.
const (
	VisibilityPrivate  Visibility = Visibility("private")
	VisibilityInternal Visibility = Visibility("internal")
	VisibilityPublic   Visibility = Visibility("public")
)

// RepositorySummary contains the repository details needed for mirroring.
type RepositorySummary struct {
	Name          string
	NameWithOwner string
	Description   string
	URL           string
	SSHURL        string
	Visibility    string
	IsArchived    bool
}

// RepositoryCreateOptions configures repository creation.
type RepositoryCreateOptions struct {
	Repository  string
	Description string
	Visibility  Visibility
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithEnvironment adds environment variables, such as GH_TOKEN or GH_HOST, to every gh invocation.
func WithEnvironment(environment map[string]string) ClientOption {
	return func(client *Client) {
		for key, value := range environment {
			if len(strings.TrimSpace(key)) == 0 {
				continue
			}
			client.environment[key] = value
		}
	}
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor    GitHubCommandExecutor
	environment map[string]string
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// TruncatedListingError reports that gh returned more repositories than the requested limit,
// so the listing cannot be trusted as complete.
type TruncatedListingError struct {
	Owner string
	Limit int
}

// Error describes the truncated listing.
func (truncatedError TruncatedListingError) Error() string {
	return fmt.Sprintf(truncatedListingTemplateConstant, truncatedError.Owner, truncatedError.Limit)
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor GitHubCommandExecutor, options ...ClientOption) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	client := &Client{executor: executor, environment: map[string]string{}}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type repositoryResponse struct {
	Name          string `json:"name"`
	NameWithOwner string `json:"nameWithOwner"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	SSHURL        string `json:"sshUrl"`
	Visibility    string `json:"visibility"`
	IsArchived    bool   `json:"isArchived"`
}

func (response repositoryResponse) summary() RepositorySummary {
	return RepositorySummary{
		Name:          response.Name,
		NameWithOwner: response.NameWithOwner,
		Description:   response.Description,
		URL:           response.URL,
		SSHURL:        response.SSHURL,
		Visibility:    strings.ToLower(response.Visibility),
		IsArchived:    response.IsArchived,
	}
}

// ListRepositories enumerates the repositories of an owner using gh repo list.
func (client *Client) ListRepositories(executionContext context.Context, owner string, resultLimit int) ([]RepositorySummary, error) {
	ownerIdentifier := strings.TrimSpace(owner)
	if len(ownerIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: ownerFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if resultLimit <= 0 {
		resultLimit = repositoryListLimitDefaultValueConstant
	}

	executionResult, executionError := client.execute(executionContext,
		repoSubcommandConstant,
		listSubcommandConstant,
		ownerIdentifier,
		limitFlagConstant,
		strconv.Itoa(resultLimit+1),
		jsonFlagConstant,
		repositoryJSONFieldsConstant,
	)
	if executionError != nil {
		return nil, OperationError{Operation: listRepositoriesOperationNameConstant, Cause: executionError}
	}

	var response []repositoryResponse
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return nil, ResponseDecodingError{Operation: listRepositoriesOperationNameConstant, Cause: decodingError}
	}
	// gh truncates silently at --limit; one extra slot tells a full listing from a cut one.
	if len(response) > resultLimit {
		return nil, OperationError{Operation: listRepositoriesOperationNameConstant, Cause: TruncatedListingError{Owner: ownerIdentifier, Limit: resultLimit}}
	}

	repositories := make([]RepositorySummary, 0, len(response))
	for _, entry := range response {
		repositories = append(repositories, entry.summary())
	}
	return repositories, nil
}

// ViewRepository retrieves a single repository using gh repo view.
func (client *Client) ViewRepository(executionContext context.Context, repository string) (RepositorySummary, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return RepositorySummary{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.execute(executionContext,
		repoSubcommandConstant,
		viewSubcommandConstant,
		repositoryIdentifier,
		jsonFlagConstant,
		repositoryJSONFieldsConstant,
	)
	if executionError != nil {
		return RepositorySummary{}, OperationError{Operation: viewRepositoryOperationNameConstant, Cause: executionError}
	}

	var response repositoryResponse
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return RepositorySummary{}, ResponseDecodingError{Operation: viewRepositoryOperationNameConstant, Cause: decodingError}
	}
	return response.summary(), nil
}

// CreateRepository creates an empty repository using gh repo create and returns its details.
func (client *Client) CreateRepository(executionContext context.Context, options RepositoryCreateOptions) (RepositorySummary, error) {
	repositoryIdentifier := strings.TrimSpace(options.Repository)
	if len(repositoryIdentifier) == 0 {
		return RepositorySummary{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	visibility := options.Visibility
	if len(visibility) == 0 {
		visibility = VisibilityPrivate
	}
	switch visibility {
	case VisibilityPrivate, VisibilityInternal, VisibilityPublic:
	default:
		return RepositorySummary{}, InvalidInputError{FieldName: visibilityFieldNameConstant, Message: unsupportedVisibilityMessageConstant}
	}

	_, executionError := client.execute(executionContext,
		repoSubcommandConstant,
		createSubcommandConstant,
		repositoryIdentifier,
		visibilityFlagPrefixConstant+string(visibility),
		descriptionFlagConstant,
		options.Description,
	)
	if executionError != nil {
		return RepositorySummary{}, OperationError{Operation: createRepositoryOperationNameConstant, Cause: executionError}
	}

	return client.ViewRepository(executionContext, repositoryIdentifier)
}

// EditDescription replaces the description of a repository using gh repo edit.
func (client *Client) EditDescription(executionContext context.Context, repository string, description string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := client.execute(executionContext,
		repoSubcommandConstant,
		editSubcommandConstant,
		repositoryIdentifier,
		descriptionFlagConstant,
		description,
	)
	if executionError != nil {
		return OperationError{Operation: editDescriptionOperationNameConstant, Cause: executionError}
	}
	return nil
}

// DeleteRepository permanently deletes a repository using gh repo delete.
func (client *Client) DeleteRepository(executionContext context.Context, repository string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := client.execute(executionContext,
		repoSubcommandConstant,
		deleteSubcommandConstant,
		repositoryIdentifier,
		confirmFlagConstant,
	)
	if executionError != nil {
		return OperationError{Operation: deleteRepositoryOperationNameConstant, Cause: executionError}
	}
	return nil
}

func (client *Client) execute(executionContext context.Context, arguments ...string) (execshell.ExecutionResult, error) {
	commandDetails := execshell.CommandDetails{Arguments: arguments}
	if len(client.environment) > 0 {
		commandDetails.EnvironmentVariables = maps.Clone(client.environment)
	}
	return client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
}
