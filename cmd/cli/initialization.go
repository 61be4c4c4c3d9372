package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	initializationScopeLocalConstant               = "local"
	initializationScopeUserConstant                = "user"
	initializationFlagPrefixConstant               = "--" + configurationInitializationFlagNameConstant
	initializationUnsupportedScopeTemplateConstant = "unsupported initialization scope %q"
	initializationLocationTemplateConstant         = "unable to locate %s configuration directory: %w"
	initializationEmptyContentMessageConstant      = "embedded configuration content is unavailable"
	initializationExistingFileTemplateConstant     = "configuration file already exists at %s (use --overwrite to replace it)"
	initializationNotDirectoryTemplateConstant     = "configuration path %s is not a directory"
	initializationIsDirectoryTemplateConstant      = "configuration path %s is a directory"
	initializationWriteTemplateConstant            = "unable to write configuration file %s: %w"
	configurationDirectoryPermissionConstant       = 0o755
	configurationFilePermissionConstant            = 0o600
)

// configurationLocator answers where configuration lives for the current user and process.
type configurationLocator struct {
	lookupEnvironment func(string) (string, bool)
	workingDirectory  func() (string, error)
	userConfigDir     func() (string, error)
	userHomeDir       func() (string, error)
}

func newConfigurationLocator(lookupEnvironment func(string) (string, bool)) configurationLocator {
	return configurationLocator{
		lookupEnvironment: lookupEnvironment,
		workingDirectory:  os.Getwd,
		userConfigDir:     os.UserConfigDir,
		userHomeDir:       os.UserHomeDir,
	}
}

func (locator configurationLocator) environment(name string) string {
	value, _ := locator.lookupEnvironment(name)
	return strings.TrimSpace(value)
}

// searchPaths lists the directories checked for config.yaml, most specific first.
// REPOMIRROR_CONFIG_SEARCH_PATH replaces the whole list.
func (locator configurationLocator) searchPaths() []string {
	if override := locator.environment(configurationSearchPathEnvironmentVariableConstant); len(override) > 0 {
		var paths []string
		for _, candidate := range filepath.SplitList(override) {
			if trimmed := strings.TrimSpace(candidate); len(trimmed) > 0 {
				paths = append(paths, trimmed)
			}
		}
		if len(paths) > 0 {
			return paths
		}
	}

	paths := []string{defaultConfigurationSearchPathConstant}
	seen := map[string]bool{}
	add := func(base string, name string) {
		if len(strings.TrimSpace(base)) == 0 {
			return
		}
		directory := filepath.Join(base, name)
		if !seen[directory] {
			seen[directory] = true
			paths = append(paths, directory)
		}
	}
	add(locator.environment(xdgConfigHomeEnvironmentVariableConstant), applicationNameConstant)
	if configurationBase, configurationBaseError := locator.userConfigDir(); configurationBaseError == nil {
		add(configurationBase, applicationNameConstant)
	}
	if homeDirectory, homeDirectoryError := locator.userHomeDir(); homeDirectoryError == nil {
		add(homeDirectory, homeConfigurationDirectoryNameConstant)
	}
	return paths
}

// initializationTarget resolves the config.yaml path written by --init for scope.
func (locator configurationLocator) initializationTarget(scope string) (string, error) {
	normalizedScope := strings.ToLower(strings.TrimSpace(scope))
	var directory string
	switch normalizedScope {
	case "", initializationScopeLocalConstant:
		normalizedScope = initializationScopeLocalConstant
		workingDirectory, workingDirectoryError := locator.workingDirectory()
		if workingDirectoryError != nil {
			return "", fmt.Errorf(initializationLocationTemplateConstant, normalizedScope, workingDirectoryError)
		}
		directory = workingDirectory
	case initializationScopeUserConstant:
		if xdgConfigHome := locator.environment(xdgConfigHomeEnvironmentVariableConstant); len(xdgConfigHome) > 0 {
			directory = filepath.Join(xdgConfigHome, applicationNameConstant)
			break
		}
		homeDirectory, homeDirectoryError := locator.userHomeDir()
		if homeDirectoryError != nil {
			return "", fmt.Errorf(initializationLocationTemplateConstant, normalizedScope, homeDirectoryError)
		}
		directory = filepath.Join(homeDirectory, homeConfigurationDirectoryNameConstant)
	default:
		return "", fmt.Errorf(initializationUnsupportedScopeTemplateConstant, strings.TrimSpace(scope))
	}
	return filepath.Join(directory, configurationFileNameConstant), nil
}

// writeInitialConfiguration stores content at filePath, creating the parent directory.
// An existing file is replaced only when overwrite is set.
func writeInitialConfiguration(fileSystem afero.Fs, filePath string, content []byte, overwrite bool) error {
	if len(content) == 0 {
		return errors.New(initializationEmptyContentMessageConstant)
	}

	directory := filepath.Dir(filePath)
	if exists, _ := afero.Exists(fileSystem, directory); exists {
		if isDirectory, _ := afero.IsDir(fileSystem, directory); !isDirectory {
			return fmt.Errorf(initializationNotDirectoryTemplateConstant, directory)
		}
	} else if createError := fileSystem.MkdirAll(directory, configurationDirectoryPermissionConstant); createError != nil {
		return fmt.Errorf(initializationWriteTemplateConstant, filePath, createError)
	}

	if isDirectory, _ := afero.IsDir(fileSystem, filePath); isDirectory {
		return fmt.Errorf(initializationIsDirectoryTemplateConstant, filePath)
	}
	if exists, _ := afero.Exists(fileSystem, filePath); exists && !overwrite {
		return fmt.Errorf(initializationExistingFileTemplateConstant, filePath)
	}
	if writeError := afero.WriteFile(fileSystem, filePath, content, configurationFilePermissionConstant); writeError != nil {
		return fmt.Errorf(initializationWriteTemplateConstant, filePath, writeError)
	}
	return nil
}

// normalizeInitializationScopeArguments turns a bare --init (last, or followed by another
// flag) into --init=local so cobra does not consume the next argument as its value.
func normalizeInitializationScopeArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}
	defaultAssignment := initializationFlagPrefixConstant + "=" + configurationInitializationDefaultScopeConstant

	normalized := make([]string, 0, len(arguments))
	for index, argument := range arguments {
		switch {
		case argument == initializationFlagPrefixConstant+"=":
			normalized = append(normalized, defaultAssignment)
		case argument == initializationFlagPrefixConstant:
			isLast := index == len(arguments)-1
			if isLast || strings.HasPrefix(arguments[index+1], "-") {
				normalized = append(normalized, defaultAssignment)
			} else {
				normalized = append(normalized, argument)
			}
		default:
			normalized = append(normalized, argument)
		}
	}
	return normalized
}
