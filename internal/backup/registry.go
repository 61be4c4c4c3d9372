package backup

import (
	"fmt"
	"sort"
	"strings"

	backuperrors "github.com/tyemirov/repomirror/internal/backup/errors"
)

// Registry holds the configured hosts in declaration order together with the
// names that scrub must never delete.
type Registry struct {
	hosts     []Host
	hostIndex map[string]int
	keepNames map[string]struct{}
}

// NewRegistry validates the hosts and normalizes the keep list.
func NewRegistry(hosts []Host, keepNames []string) (*Registry, error) {
	registry := &Registry{
		hosts:     make([]Host, 0, len(hosts)),
		hostIndex: make(map[string]int, len(hosts)),
		keepNames: make(map[string]struct{}, len(keepNames)),
	}

	for _, host := range hosts {
		name := strings.TrimSpace(host.Name)
		if len(name) == 0 {
			return nil, backuperrors.Wrap(backuperrors.OperationRegistry, "", backuperrors.ErrHostNameMissing, nil)
		}
		if _, duplicate := registry.hostIndex[name]; duplicate {
			return nil, backuperrors.WrapMessage(backuperrors.OperationRegistry, name, backuperrors.ErrDuplicateHost, "host name declared more than once")
		}
		if host.Role != RoleSource && host.Role != RoleBackup {
			return nil, backuperrors.WrapMessage(backuperrors.OperationRegistry, name, backuperrors.ErrUnknownRole, fmt.Sprintf("role %q is neither source nor backup", host.Role))
		}
		if host.Provider == nil {
			return nil, backuperrors.Wrap(backuperrors.OperationRegistry, name, backuperrors.ErrHostProviderMissing, nil)
		}
		host.Name = name
		registry.hostIndex[name] = len(registry.hosts)
		registry.hosts = append(registry.hosts, host)
	}

	for _, keepName := range keepNames {
		normalized := NormalizeName(keepName)
		if len(normalized) == 0 {
			continue
		}
		registry.keepNames[normalized] = struct{}{}
	}
	return registry, nil
}

// Hosts returns every host in declaration order.
func (registry *Registry) Hosts() []Host {
	return append([]Host(nil), registry.hosts...)
}

// SourceHosts returns the source hosts in declaration order.
func (registry *Registry) SourceHosts() []Host {
	return registry.hostsWithRole(RoleSource)
}

// BackupHosts returns the backup hosts in declaration order.
func (registry *Registry) BackupHosts() []Host {
	return registry.hostsWithRole(RoleBackup)
}

// Host looks up a host by name.
func (registry *Registry) Host(name string) (Host, bool) {
	index, found := registry.hostIndex[strings.TrimSpace(name)]
	if !found {
		return Host{}, false
	}
	return registry.hosts[index], true
}

// HostOrder returns the declaration position of a host, used to break priority ties.
func (registry *Registry) HostOrder(name string) int {
	index, found := registry.hostIndex[name]
	if !found {
		return len(registry.hosts)
	}
	return index
}

// IsKept reports whether the normalized name is protected from scrub.
func (registry *Registry) IsKept(normalizedName string) bool {
	_, kept := registry.keepNames[normalizedName]
	return kept
}

// KeepNames returns the normalized keep list.
func (registry *Registry) KeepNames() []string {
	names := make([]string, 0, len(registry.keepNames))
	for name := range registry.keepNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (registry *Registry) hostsWithRole(role Role) []Host {
	selected := make([]Host, 0, len(registry.hosts))
	for _, host := range registry.hosts {
		if host.Role == role {
			selected = append(selected, host)
		}
	}
	return selected
}
