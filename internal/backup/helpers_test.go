package backup_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/repomirror/internal/backup"
)

type providerCall struct {
	Operation   string
	Name        string
	Description string
}

type fakeProvider struct {
	hostName     string
	repositories []backup.Repository
	listError    error
	createError  error
	updateError  error
	deleteErrors map[string]error

	mutex sync.Mutex
	calls []providerCall
}

func newFakeProvider(hostName string, repositories ...backup.Repository) *fakeProvider {
	return &fakeProvider{hostName: hostName, repositories: repositories}
}

func (provider *fakeProvider) ListRepositories(context.Context) ([]backup.Repository, error) {
	provider.record(providerCall{Operation: "list"})
	if provider.listError != nil {
		return nil, provider.listError
	}
	return append([]backup.Repository(nil), provider.repositories...), nil
}

func (provider *fakeProvider) CreateRepository(_ context.Context, name string, description string) (backup.Repository, error) {
	provider.record(providerCall{Operation: "create", Name: name, Description: description})
	if provider.createError != nil {
		return backup.Repository{}, provider.createError
	}
	return backup.NewRepository(provider.hostName, name, description, "https://"+provider.hostName+"/"+name, "ssh://"+provider.hostName+"/"+name+".git"), nil
}

func (provider *fakeProvider) UpdateDescription(_ context.Context, repository backup.Repository, description string) error {
	provider.record(providerCall{Operation: "describe", Name: repository.Name, Description: description})
	return provider.updateError
}

func (provider *fakeProvider) DeleteRepository(_ context.Context, repository backup.Repository) error {
	provider.record(providerCall{Operation: "delete", Name: repository.Name})
	return provider.deleteErrors[repository.Name]
}

func (provider *fakeProvider) record(call providerCall) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.calls = append(provider.calls, call)
}

func (provider *fakeProvider) mutatingCalls() []providerCall {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	var mutating []providerCall
	for _, call := range provider.calls {
		if call.Operation != "list" {
			mutating = append(mutating, call)
		}
	}
	return mutating
}

// fakeComparer derives differences from per-repository branch maps keyed by "host/name".
type fakeComparer struct {
	references map[string]map[string]string
	failures   map[string]error
	calls      []string
}

func newFakeComparer() *fakeComparer {
	return &fakeComparer{references: map[string]map[string]string{}, failures: map[string]error{}}
}

func (comparer *fakeComparer) set(hostName string, name string, references map[string]string) {
	comparer.references[hostName+"/"+name] = references
}

func (comparer *fakeComparer) fail(hostName string, name string, failure error) {
	comparer.failures[hostName+"/"+name] = failure
}

func (comparer *fakeComparer) CompareReferences(_ context.Context, source backup.Repository, target backup.Repository) (backup.DifferenceState, error) {
	sourceKey := source.HostName + "/" + source.Name
	targetKey := target.HostName + "/" + target.Name
	comparer.calls = append(comparer.calls, sourceKey+"->"+targetKey)
	if failure := comparer.failures[sourceKey]; failure != nil {
		return nil, failure
	}
	if failure := comparer.failures[targetKey]; failure != nil {
		return nil, failure
	}
	return backup.ComputeDifferences(comparer.references[sourceKey], comparer.references[targetKey]), nil
}

type pushCall struct {
	Source      string
	Destination string
}

type fakePusher struct {
	failures map[string]error
	calls    []pushCall
}

func (pusher *fakePusher) MirrorPush(_ context.Context, source backup.Repository, destination backup.Repository) error {
	call := pushCall{Source: source.HostName + "/" + source.Name, Destination: destination.HostName + "/" + destination.Name}
	pusher.calls = append(pusher.calls, call)
	return pusher.failures[call.Destination]
}

type recordingReporter struct {
	mutex  sync.Mutex
	events []backup.Event
}

func (reporter *recordingReporter) Report(event backup.Event) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	reporter.events = append(reporter.events, event)
}

func (reporter *recordingReporter) codes() []string {
	codes := make([]string, 0, len(reporter.events))
	for _, event := range reporter.events {
		codes = append(codes, event.Code)
	}
	return codes
}

func (reporter *recordingReporter) eventsWithCode(code string) []backup.Event {
	var matching []backup.Event
	for _, event := range reporter.events {
		if event.Code == code {
			matching = append(matching, event)
		}
	}
	return matching
}

type recordedAction struct {
	HostName string
	Action   string
	Outcome  string
}

type recordingRecorder struct {
	mutex      sync.Mutex
	discovered map[string]int
	actions    []recordedAction
	exitCodes  []int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{discovered: map[string]int{}}
}

func (recorder *recordingRecorder) RecordDiscovered(hostName string, _ backup.Role, repositoryCount int) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.discovered[hostName] = repositoryCount
}

func (recorder *recordingRecorder) RecordAction(hostName string, action string, outcome string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.actions = append(recorder.actions, recordedAction{HostName: hostName, Action: action, Outcome: outcome})
}

func (recorder *recordingRecorder) RecordRunCompleted(exitCode int, _ time.Duration) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.exitCodes = append(recorder.exitCodes, exitCode)
}

var errHostUnavailable = errors.New("host unavailable")

func sourceRepository(hostName string, name string) backup.Repository {
	return backup.NewRepository(hostName, name, "", "https://"+hostName+"/"+name, "ssh://"+hostName+"/"+name+".git")
}

func backupRepository(hostName string, name string, description string) backup.Repository {
	return backup.NewRepository(hostName, name, description, "https://"+hostName+"/"+name, "ssh://"+hostName+"/"+name+".git")
}

func newTestRegistry(testInstance *testing.T, keepNames []string, hosts ...backup.Host) *backup.Registry {
	testInstance.Helper()
	registry, registryError := backup.NewRegistry(hosts, keepNames)
	require.NoError(testInstance, registryError)
	return registry
}

func sourceHost(name string, priority int, provider backup.HostProvider) backup.Host {
	return backup.Host{Name: name, Role: backup.RoleSource, Priority: priority, Provider: provider}
}

func backupHost(name string, provider backup.HostProvider) backup.Host {
	return backup.Host{Name: name, Role: backup.RoleBackup, Provider: provider}
}
