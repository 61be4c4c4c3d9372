package gitea

import (
	"errors"
	"fmt"
	"strings"
)

// OwnerType identifies whether repositories belong to a user or an organization.
type OwnerType string

// Supported owner types.
const (
	UserOwnerType         OwnerType = OwnerType("user")
	OrganizationOwnerType OwnerType = OwnerType("org")
)

const (
	usersPathSegmentConstant         = "users"
	organizationsPathSegmentConstant = "orgs"
	ownerTypeRequiredMessageConstant = "owner type must be provided"
	ownerTypeUnknownTemplateConstant = "unsupported owner type %q (expected user or org)"
)

// ParseOwnerType converts a configuration value into an OwnerType.
func ParseOwnerType(value string) (OwnerType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "":
		return "", errors.New(ownerTypeRequiredMessageConstant)
	case string(UserOwnerType):
		return UserOwnerType, nil
	case string(OrganizationOwnerType), "organization":
		return OrganizationOwnerType, nil
	default:
		return "", fmt.Errorf(ownerTypeUnknownTemplateConstant, value)
	}
}

// PathSegment returns the API path segment listing the owner's repositories.
func (ownerType OwnerType) PathSegment() string {
	if ownerType == OrganizationOwnerType {
		return organizationsPathSegmentConstant
	}
	return usersPathSegmentConstant
}
