package backup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/repomirror/internal/backup"
	backuperrors "github.com/tyemirov/repomirror/internal/backup/errors"
)

type serviceFixture struct {
	alpha    *fakeProvider
	beta     *fakeProvider
	vault    *fakeProvider
	comparer *fakeComparer
	pusher   *fakePusher
	reporter *recordingReporter
	recorder *recordingRecorder
	service  *backup.Service
}

// newServiceFixture models two sources that both hold foo (alpha as "foo", beta as "Foo" with newer commits)
// and a backup host holding a stale foo plus an orphaned tagged copy of a deleted repository.
func newServiceFixture(testInstance *testing.T) *serviceFixture {
	testInstance.Helper()
	fixture := &serviceFixture{
		alpha: newFakeProvider("alpha", sourceRepository("alpha", "foo")),
		beta:  newFakeProvider("beta", sourceRepository("beta", "Foo")),
		vault: newFakeProvider("vault",
			backupRepository("vault", "foo", backup.FormatBackupTag("https://beta/Foo")),
			backupRepository("vault", "gone", backup.FormatBackupTag("https://alpha/gone")),
		),
		comparer: newFakeComparer(),
		pusher:   &fakePusher{},
		reporter: &recordingReporter{},
		recorder: newRecordingRecorder(),
	}
	fixture.comparer.set("alpha", "foo", map[string]string{"main": "c1"})
	fixture.comparer.set("beta", "Foo", map[string]string{"main": "c2"})
	fixture.comparer.set("vault", "foo", map[string]string{"main": "c1"})

	registry := newTestRegistry(testInstance, nil,
		sourceHost("alpha", 1, fixture.alpha),
		sourceHost("beta", 2, fixture.beta),
		backupHost("vault", fixture.vault),
	)
	clockValue := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	service, serviceError := backup.NewService(backup.Dependencies{
		Registry: registry,
		Comparer: fixture.comparer,
		Pusher:   fixture.pusher,
		Reporter: fixture.reporter,
		Recorder: fixture.recorder,
		Clock: func() time.Time {
			clockValue = clockValue.Add(time.Second)
			return clockValue
		},
	})
	require.NoError(testInstance, serviceError)
	fixture.service = service
	return fixture
}

func TestServiceRunReconcilesThenScrubs(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)

	exitCode := fixture.service.Run(context.Background(), backup.RunOptions{Scrub: true})

	require.Equal(testInstance, backup.ExitCodeSuccess, exitCode)
	require.Equal(testInstance, []pushCall{{Source: "beta/Foo", Destination: "vault/foo"}}, fixture.pusher.calls)
	require.Equal(testInstance, []providerCall{{Operation: "delete", Name: "gone"}}, fixture.vault.mutatingCalls())
	require.Empty(testInstance, fixture.alpha.mutatingCalls())
	require.Empty(testInstance, fixture.beta.mutatingCalls())
	require.Equal(testInstance, []int{backup.ExitCodeSuccess}, fixture.recorder.exitCodes)

	codes := fixture.reporter.codes()
	require.Equal(testInstance, backup.EventCodeRunCompleted, codes[len(codes)-1])
}

func TestServiceRunCreatesMissingBackupFromElectedSource(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	fixture.vault.repositories = nil

	exitCode := fixture.service.Run(context.Background(), backup.RunOptions{})

	require.Equal(testInstance, backup.ExitCodeSuccess, exitCode)
	require.Equal(testInstance, []providerCall{{Operation: "create", Name: "Foo", Description: "[backup] https://beta/Foo"}}, fixture.vault.mutatingCalls())
	require.Equal(testInstance, []pushCall{{Source: "beta/Foo", Destination: "vault/Foo"}}, fixture.pusher.calls)
	require.Empty(testInstance, fixture.alpha.mutatingCalls())
	require.Empty(testInstance, fixture.beta.mutatingCalls())

	divergedEvents := fixture.reporter.eventsWithCode(backup.EventCodeSourceDiverged)
	require.Len(testInstance, divergedEvents, 1)
	require.Equal(testInstance, "beta", divergedEvents[0].HostName)
	require.Equal(testInstance, "foo", divergedEvents[0].Repository)
	require.Len(testInstance, fixture.reporter.eventsWithCode(backup.EventCodeBackupCreated), 1)
	require.Len(testInstance, fixture.reporter.eventsWithCode(backup.EventCodePushed), 1)
}

func TestServiceRunDryRunMutatesNothing(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)

	exitCode := fixture.service.Run(context.Background(), backup.RunOptions{DryRun: true, Scrub: true})

	require.Equal(testInstance, backup.ExitCodeSuccess, exitCode)
	require.Empty(testInstance, fixture.pusher.calls)
	require.Empty(testInstance, fixture.vault.mutatingCalls())
	require.Len(testInstance, fixture.reporter.eventsWithCode(backup.EventCodePushPlanned), 1)
	require.Len(testInstance, fixture.reporter.eventsWithCode(backup.EventCodeScrubOrphan), 1)
}

func TestServiceRunBackupDiscoveryFailureIsFatal(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	fixture.vault.listError = errHostUnavailable

	exitCode := fixture.service.Run(context.Background(), backup.RunOptions{Scrub: true})

	require.Equal(testInstance, backup.ExitCodeFatal, exitCode)
	require.Empty(testInstance, fixture.pusher.calls)
	require.Empty(testInstance, fixture.comparer.calls)
	require.Empty(testInstance, fixture.vault.mutatingCalls())
	require.Equal(testInstance, []int{backup.ExitCodeFatal}, fixture.recorder.exitCodes)
}

func TestServiceRunReconcileFailureSkipsScrub(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	fixture.pusher.failures = map[string]error{"vault/foo": errHostUnavailable}

	exitCode := fixture.service.Run(context.Background(), backup.RunOptions{Scrub: true})

	require.Equal(testInstance, backup.ExitCodePartialFailure, exitCode)
	require.Empty(testInstance, fixture.vault.mutatingCalls())
	require.Empty(testInstance, fixture.reporter.eventsWithCode(backup.EventCodeScrubOrphan))
}

func TestServiceRunScrubOnlySkipsReconciliation(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)

	exitCode := fixture.service.Run(context.Background(), backup.RunOptions{ScrubOnly: true})

	require.Equal(testInstance, backup.ExitCodeSuccess, exitCode)
	require.Empty(testInstance, fixture.pusher.calls)
	require.Empty(testInstance, fixture.comparer.calls)
	require.Equal(testInstance, []providerCall{{Operation: "delete", Name: "gone"}}, fixture.vault.mutatingCalls())
}

func TestServiceRunOnlyNamesNeverScrubsLiveSources(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	fixture.alpha.repositories = []backup.Repository{sourceRepository("alpha", "bar")}

	exitCode := fixture.service.Run(context.Background(), backup.RunOptions{OnlyNames: []string{"foo"}, Scrub: true})

	require.Equal(testInstance, backup.ExitCodeSuccess, exitCode)
	require.Empty(testInstance, fixture.vault.mutatingCalls())
	require.Empty(testInstance, fixture.pusher.calls)
	require.Empty(testInstance, fixture.reporter.eventsWithCode(backup.EventCodeScrubOrphan))
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	provider := newFakeProvider("any")
	sourceOnly := newTestRegistry(testInstance, nil, sourceHost("github", 1, provider))
	complete := newTestRegistry(testInstance, nil, sourceHost("github", 1, provider), backupHost("vault", provider))

	testCases := []struct {
		name          string
		dependencies  backup.Dependencies
		expectedError error
	}{
		{name: "registry", dependencies: backup.Dependencies{Comparer: newFakeComparer(), Pusher: &fakePusher{}}, expectedError: backup.ErrRegistryMissing},
		{name: "comparer", dependencies: backup.Dependencies{Registry: complete, Pusher: &fakePusher{}}, expectedError: backup.ErrComparerMissing},
		{name: "pusher", dependencies: backup.Dependencies{Registry: complete, Comparer: newFakeComparer()}, expectedError: backup.ErrPusherMissing},
		{name: "backup_hosts", dependencies: backup.Dependencies{Registry: sourceOnly, Comparer: newFakeComparer(), Pusher: &fakePusher{}}, expectedError: backuperrors.ErrNoBackupHosts},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			service, serviceError := backup.NewService(testCase.dependencies)
			require.Nil(testInstance, service)
			require.True(testInstance, errors.Is(serviceError, testCase.expectedError), serviceError)
		})
	}
}
