package hosts

import (
	"fmt"
	"strings"
)

// ProviderName identifies a hosting implementation.
type ProviderName string

// Supported providers.
const (
	ProviderGitHub ProviderName = "github"
	ProviderGitea  ProviderName = "gitea"
	ProviderLocal  ProviderName = "local"
)

// PushProtocol selects which remote URL git pushes and compares against.
type PushProtocol string

// Supported push protocols.
const (
	PushProtocolSSH   PushProtocol = "ssh"
	PushProtocolHTTPS PushProtocol = "https"
)

const (
	unknownProviderTemplateConstant     = "host %q: unknown provider %q (expected github, gitea or local)"
	unknownPushProtocolTemplateConstant = "host %q: unknown push_protocol %q (expected ssh or https)"
	missingFieldTemplateConstant        = "host %q: %s is required for provider %s"
	ownerFieldNameConstant              = "owner"
	baseURLFieldNameConstant            = "base_url"
	rootFieldNameConstant               = "root"
)

// Configuration describes one host entry of the hosts section.
type Configuration struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Role         string `mapstructure:"role" yaml:"role"`
	Priority     int    `mapstructure:"priority" yaml:"priority"`
	Provider     string `mapstructure:"provider" yaml:"provider"`
	Owner        string `mapstructure:"owner" yaml:"owner,omitempty"`
	OwnerType    string `mapstructure:"owner_type" yaml:"owner_type,omitempty"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Root         string `mapstructure:"root" yaml:"root,omitempty"`
	TokenEnv     string `mapstructure:"token_env" yaml:"token_env,omitempty"`
	Visibility   string `mapstructure:"visibility" yaml:"visibility,omitempty"`
	PushProtocol string `mapstructure:"push_protocol" yaml:"push_protocol,omitempty"`
	ListLimit    int    `mapstructure:"list_limit" yaml:"list_limit,omitempty"`
}

// Sanitize trims string fields and lowercases enumerations.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Name = strings.TrimSpace(configuration.Name)
	sanitized.Role = strings.ToLower(strings.TrimSpace(configuration.Role))
	sanitized.Provider = strings.ToLower(strings.TrimSpace(configuration.Provider))
	sanitized.Owner = strings.TrimSpace(configuration.Owner)
	sanitized.OwnerType = strings.ToLower(strings.TrimSpace(configuration.OwnerType))
	sanitized.BaseURL = strings.TrimSpace(configuration.BaseURL)
	sanitized.Root = strings.TrimSpace(configuration.Root)
	sanitized.TokenEnv = strings.TrimSpace(configuration.TokenEnv)
	sanitized.Visibility = strings.ToLower(strings.TrimSpace(configuration.Visibility))
	sanitized.PushProtocol = strings.ToLower(strings.TrimSpace(configuration.PushProtocol))
	if len(sanitized.PushProtocol) == 0 {
		sanitized.PushProtocol = string(PushProtocolSSH)
	}
	return sanitized
}

// Validate checks the provider-specific required fields. Names, roles and duplicates are
// validated by the backup registry.
func (configuration Configuration) Validate() error {
	switch ProviderName(configuration.Provider) {
	case ProviderGitHub:
		if len(configuration.Owner) == 0 {
			return fmt.Errorf(missingFieldTemplateConstant, configuration.Name, ownerFieldNameConstant, configuration.Provider)
		}
	case ProviderGitea:
		if len(configuration.Owner) == 0 {
			return fmt.Errorf(missingFieldTemplateConstant, configuration.Name, ownerFieldNameConstant, configuration.Provider)
		}
		if len(configuration.BaseURL) == 0 {
			return fmt.Errorf(missingFieldTemplateConstant, configuration.Name, baseURLFieldNameConstant, configuration.Provider)
		}
	case ProviderLocal:
		if len(configuration.Root) == 0 {
			return fmt.Errorf(missingFieldTemplateConstant, configuration.Name, rootFieldNameConstant, configuration.Provider)
		}
	default:
		return fmt.Errorf(unknownProviderTemplateConstant, configuration.Name, configuration.Provider)
	}

	switch PushProtocol(configuration.PushProtocol) {
	case PushProtocolSSH, PushProtocolHTTPS:
		return nil
	default:
		return fmt.Errorf(unknownPushProtocolTemplateConstant, configuration.Name, configuration.PushProtocol)
	}
}
