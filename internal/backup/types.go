package backup

import (
	"context"
	"sort"
	"time"
)

// Role classifies a host as holding originals or mirrors.
type Role string

// Supported host roles.
const (
	RoleSource Role = "source"
	RoleBackup Role = "backup"
)

// Exit codes returned by the reconciliation pipeline.
const (
	ExitCodeSuccess        = 0
	ExitCodePartialFailure = 1
	ExitCodeFatal          = 2
)

// HostProvider exposes the repository capabilities of one hosting provider.
type HostProvider interface {
	ListRepositories(executionContext context.Context) ([]Repository, error)
	CreateRepository(executionContext context.Context, name string, description string) (Repository, error)
	UpdateDescription(executionContext context.Context, repository Repository, description string) error
	DeleteRepository(executionContext context.Context, repository Repository) error
}

// ReferenceComparer computes branch-level differences between two repositories.
type ReferenceComparer interface {
	CompareReferences(executionContext context.Context, source Repository, target Repository) (DifferenceState, error)
}

// MirrorPusher copies every ref of the source repository to the destination repository.
type MirrorPusher interface {
	MirrorPush(executionContext context.Context, source Repository, destination Repository) error
}

// RunRecorder receives counters describing a run.
type RunRecorder interface {
	RecordDiscovered(hostName string, role Role, repositoryCount int)
	RecordAction(hostName string, action string, outcome string)
	RecordRunCompleted(exitCode int, duration time.Duration)
}

// Host is a configured hosting endpoint. Hosts are immutable for the duration of a run.
type Host struct {
	Name     string
	Role     Role
	Priority int
	Provider HostProvider
}

// Repository is a read-only snapshot of a repository discovered on a host.
type Repository struct {
	HostName       string
	Name           string
	NormalizedName string
	Description    string
	WebURL         string
	PushURL        string
}

// NewRepository builds a repository snapshot and derives its normalized name.
func NewRepository(hostName string, name string, description string, webURL string, pushURL string) Repository {
	return Repository{
		HostName:       hostName,
		Name:           name,
		NormalizedName: NormalizeName(name),
		Description:    description,
		WebURL:         webURL,
		PushURL:        pushURL,
	}
}

// DivergenceKind describes how one branch differs between two repositories.
type DivergenceKind string

// Supported divergence kinds.
const (
	DivergenceMissingInTarget DivergenceKind = "missing_in_target"
	DivergenceMissingInSource DivergenceKind = "missing_in_source"
	DivergenceCommitMismatch  DivergenceKind = "commit_mismatch"
)

// Divergence captures the commit pointers of one differing branch.
type Divergence struct {
	Kind         DivergenceKind
	SourceCommit string
	TargetCommit string
}

// DifferenceState maps branch names to their divergence. An empty state means identical refs.
type DifferenceState map[string]Divergence

// Empty reports whether both repositories carry identical branch refs.
func (state DifferenceState) Empty() bool {
	return len(state) == 0
}

// Branches returns the divergent branch names in lexical order.
func (state DifferenceState) Branches() []string {
	branches := make([]string, 0, len(state))
	for branch := range state {
		branches = append(branches, branch)
	}
	sort.Strings(branches)
	return branches
}

// ComputeDifferences compares two branch-to-commit maps.
func ComputeDifferences(sourceReferences map[string]string, targetReferences map[string]string) DifferenceState {
	state := DifferenceState{}
	for branch, sourceCommit := range sourceReferences {
		targetCommit, present := targetReferences[branch]
		switch {
		case !present:
			state[branch] = Divergence{Kind: DivergenceMissingInTarget, SourceCommit: sourceCommit}
		case targetCommit != sourceCommit:
			state[branch] = Divergence{Kind: DivergenceCommitMismatch, SourceCommit: sourceCommit, TargetCommit: targetCommit}
		}
	}
	for branch, targetCommit := range targetReferences {
		if _, present := sourceReferences[branch]; !present {
			state[branch] = Divergence{Kind: DivergenceMissingInSource, TargetCommit: targetCommit}
		}
	}
	return state
}

type nopRecorder struct{}

func (nopRecorder) RecordDiscovered(string, Role, int) {}

func (nopRecorder) RecordAction(string, string, string) {}

func (nopRecorder) RecordRunCompleted(int, time.Duration) {}
