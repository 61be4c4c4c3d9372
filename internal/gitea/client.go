package gitea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	apiPathPrefixConstant                        = "api/v1"
	reposPathSegmentConstant                     = "repos"
	userPathSegmentConstant                      = "user"
	acceptHeaderNameConstant                     = "Accept"
	contentTypeHeaderNameConstant                = "Content-Type"
	jsonMediaTypeConstant                        = "application/json"
	authorizationHeaderNameConstant              = "Authorization"
	tokenAuthorizationTemplateConstant           = "token %s"
	limitQueryParameterNameConstant              = "limit"
	pageQueryParameterNameConstant               = "page"
	totalCountHeaderNameConstant                 = "X-Total-Count"
	incompleteListingTemplateConstant            = "incomplete repository listing for %s: received %d of %d"
	defaultPageSizeConstant                      = 50
	requestCreationErrorTemplateConstant         = "unable to create %s request for %s: %w"
	requestExecutionErrorTemplateConstant        = "request execution failed: %w"
	unexpectedStatusCodeWithBodyTemplateConstant = "unexpected status code %d for %s %s: %s"
	responseDecodeErrorTemplateConstant          = "unable to decode %s response: %w"
	payloadEncodeErrorTemplateConstant           = "unable to encode %s payload: %w"
	listPageMessageConstant                      = "Fetched Gitea repositories page"
	ownerLogFieldNameConstant                    = "owner"
	ownerTypeLogFieldNameConstant                = "owner_type"
	pageLogFieldNameConstant                     = "page_number"
	pageCountLogFieldNameConstant                = "page_repositories"
	baseURLMissingErrorMessageConstant           = "gitea base url must be provided"
	ownerMissingErrorMessageConstant             = "owner must be provided"
	repositoryMissingErrorMessageConstant        = "repository name must be provided"
	listOperationNameConstant                    = "list repositories"
	createOperationNameConstant                  = "create repository"
	editOperationNameConstant                    = "edit repository"
)

var (
	// ErrBaseURLMissing indicates the client was configured without a server URL.
	ErrBaseURLMissing = errors.New(baseURLMissingErrorMessageConstant)
	// ErrOwnerMissing indicates an owner-scoped call without an owner.
	ErrOwnerMissing = errors.New(ownerMissingErrorMessageConstant)
	// ErrRepositoryMissing indicates a repository-scoped call without a repository name.
	ErrRepositoryMissing = errors.New(repositoryMissingErrorMessageConstant)
)

// HTTPClient abstracts the Do method of http.Client for easier testing.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ClientConfiguration specifies the server and credentials used by the client.
type ClientConfiguration struct {
	BaseURL  string
	Token    string
	PageSize int
}

// Repository is the subset of the Gitea repository payload used for mirroring.
type Repository struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	SSHURL      string `json:"ssh_url"`
	CloneURL    string `json:"clone_url"`
	Private     bool   `json:"private"`
	Archived    bool   `json:"archived"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// CreateRepositoryRequest captures the fields sent when creating a repository.
type CreateRepositoryRequest struct {
	Owner       string
	OwnerType   OwnerType
	Name        string
	Description string
	Private     bool
}

// Client interacts with the Gitea REST API.
type Client struct {
	logger     *zap.Logger
	httpClient HTTPClient
	baseURL    *url.URL
	token      string
	pageSize   int
}

// NewClient constructs a Gitea client.
func NewClient(logger *zap.Logger, httpClient HTTPClient, configuration ClientConfiguration) (*Client, error) {
	resolvedLogger := logger
	if resolvedLogger == nil {
		resolvedLogger = zap.NewNop()
	}

	resolvedClient := httpClient
	if resolvedClient == nil {
		resolvedClient = http.DefaultClient
	}

	trimmedBaseURL := strings.TrimSpace(configuration.BaseURL)
	if len(trimmedBaseURL) == 0 {
		return nil, ErrBaseURLMissing
	}
	parsedBaseURL, parseError := url.Parse(trimmedBaseURL)
	if parseError != nil {
		return nil, parseError
	}
	parsedBaseURL.Path = strings.TrimSuffix(parsedBaseURL.Path, "/")

	resolvedPageSize := configuration.PageSize
	if resolvedPageSize <= 0 {
		resolvedPageSize = defaultPageSizeConstant
	}

	return &Client{
		logger:     resolvedLogger,
		httpClient: resolvedClient,
		baseURL:    parsedBaseURL,
		token:      strings.TrimSpace(configuration.Token),
		pageSize:   resolvedPageSize,
	}, nil
}

// ListRepositories pages through every repository of the owner.
func (client *Client) ListRepositories(executionContext context.Context, ownerType OwnerType, owner string) ([]Repository, error) {
	trimmedOwner := strings.TrimSpace(owner)
	if len(trimmedOwner) == 0 {
		return nil, ErrOwnerMissing
	}

	var repositories []Repository
	for pageNumber := 1; ; pageNumber++ {
		pageURL := client.buildURL([]string{ownerType.PathSegment(), trimmedOwner, reposPathSegmentConstant}, url.Values{
			limitQueryParameterNameConstant: []string{strconv.Itoa(client.pageSize)},
			pageQueryParameterNameConstant:  []string{strconv.Itoa(pageNumber)},
		})

		var page []Repository
		responseHeader, requestError := client.do(executionContext, http.MethodGet, pageURL, nil, http.StatusOK, listOperationNameConstant, &page)
		if requestError != nil {
			return nil, requestError
		}
		totalCount, totalKnown := parseTotalCount(responseHeader)

		client.logger.Debug(
			listPageMessageConstant,
			zap.String(ownerLogFieldNameConstant, trimmedOwner),
			zap.String(ownerTypeLogFieldNameConstant, string(ownerType)),
			zap.Int(pageLogFieldNameConstant, pageNumber),
			zap.Int(pageCountLogFieldNameConstant, len(page)),
		)

		repositories = append(repositories, page...)
		// The server clamps limit to its MAX_RESPONSE_ITEMS, so a short page does not mark the end.
		if len(page) == 0 {
			if totalKnown && len(repositories) < totalCount {
				return nil, fmt.Errorf(incompleteListingTemplateConstant, trimmedOwner, len(repositories), totalCount)
			}
			break
		}
		if totalKnown && len(repositories) >= totalCount {
			break
		}
	}
	return repositories, nil
}

func parseTotalCount(header http.Header) (int, bool) {
	rawValue := strings.TrimSpace(header.Get(totalCountHeaderNameConstant))
	if len(rawValue) == 0 {
		return 0, false
	}
	totalCount, parseError := strconv.Atoi(rawValue)
	if parseError != nil || totalCount < 0 {
		return 0, false
	}
	return totalCount, true
}

// CreateRepository creates an empty repository under a user or organization.
func (client *Client) CreateRepository(executionContext context.Context, request CreateRepositoryRequest) (Repository, error) {
	trimmedOwner := strings.TrimSpace(request.Owner)
	if len(trimmedOwner) == 0 {
		return Repository{}, ErrOwnerMissing
	}
	trimmedName := strings.TrimSpace(request.Name)
	if len(trimmedName) == 0 {
		return Repository{}, ErrRepositoryMissing
	}

	pathSegments := []string{userPathSegmentConstant, reposPathSegmentConstant}
	if request.OwnerType == OrganizationOwnerType {
		pathSegments = []string{organizationsPathSegmentConstant, trimmedOwner, reposPathSegmentConstant}
	}
	payload := map[string]any{
		"name":        trimmedName,
		"description": request.Description,
		"private":     request.Private,
	}

	var created Repository
	if _, requestError := client.do(executionContext, http.MethodPost, client.buildURL(pathSegments, nil), payload, http.StatusCreated, createOperationNameConstant, &created); requestError != nil {
		return Repository{}, requestError
	}
	return created, nil
}

// EditDescription replaces the description of owner/name.
func (client *Client) EditDescription(executionContext context.Context, owner string, name string, description string) error {
	repositoryURL, validationError := client.repositoryURL(owner, name)
	if validationError != nil {
		return validationError
	}
	payload := map[string]any{"description": description}
	_, requestError := client.do(executionContext, http.MethodPatch, repositoryURL, payload, http.StatusOK, editOperationNameConstant, nil)
	return requestError
}

// DeleteRepository permanently deletes owner/name.
func (client *Client) DeleteRepository(executionContext context.Context, owner string, name string) error {
	repositoryURL, validationError := client.repositoryURL(owner, name)
	if validationError != nil {
		return validationError
	}
	_, requestError := client.do(executionContext, http.MethodDelete, repositoryURL, nil, http.StatusNoContent, "", nil)
	return requestError
}

func (client *Client) repositoryURL(owner string, name string) (string, error) {
	trimmedOwner := strings.TrimSpace(owner)
	if len(trimmedOwner) == 0 {
		return "", ErrOwnerMissing
	}
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return "", ErrRepositoryMissing
	}
	return client.buildURL([]string{reposPathSegmentConstant, trimmedOwner, trimmedName}, nil), nil
}

func (client *Client) buildURL(pathSegments []string, query url.Values) string {
	requestURL := *client.baseURL
	requestURL.Path = strings.Join(append([]string{client.baseURL.Path, apiPathPrefixConstant}, pathSegments...), "/")
	requestURL.RawPath = ""
	requestURL.RawQuery = ""
	if len(query) > 0 {
		requestURL.RawQuery = query.Encode()
	}
	return requestURL.String()
}

func (client *Client) do(executionContext context.Context, method string, requestURL string, payload any, expectedStatus int, operation string, response any) (http.Header, error) {
	var body io.Reader
	if payload != nil {
		encoded, encodeError := json.Marshal(payload)
		if encodeError != nil {
			return nil, fmt.Errorf(payloadEncodeErrorTemplateConstant, operation, encodeError)
		}
		body = bytes.NewReader(encoded)
	}

	httpRequest, requestCreationError := http.NewRequestWithContext(executionContext, method, requestURL, body)
	if requestCreationError != nil {
		return nil, fmt.Errorf(requestCreationErrorTemplateConstant, method, requestURL, requestCreationError)
	}
	httpRequest.Header.Set(acceptHeaderNameConstant, jsonMediaTypeConstant)
	if payload != nil {
		httpRequest.Header.Set(contentTypeHeaderNameConstant, jsonMediaTypeConstant)
	}
	if len(client.token) > 0 {
		httpRequest.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(tokenAuthorizationTemplateConstant, client.token))
	}

	httpResponse, requestError := client.httpClient.Do(httpRequest)
	if requestError != nil {
		return nil, fmt.Errorf(requestExecutionErrorTemplateConstant, requestError)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != expectedStatus {
		responseBody, _ := io.ReadAll(httpResponse.Body)
		return httpResponse.Header, fmt.Errorf(
			unexpectedStatusCodeWithBodyTemplateConstant,
			httpResponse.StatusCode,
			method,
			requestURL,
			strings.TrimSpace(string(responseBody)),
		)
	}

	if response == nil {
		return httpResponse.Header, nil
	}
	if decodeError := json.NewDecoder(httpResponse.Body).Decode(response); decodeError != nil {
		return httpResponse.Header, fmt.Errorf(responseDecodeErrorTemplateConstant, operation, decodeError)
	}
	return httpResponse.Header, nil
}
