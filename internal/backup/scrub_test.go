package backup_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/repomirror/internal/backup"
)

func TestScrub(testInstance *testing.T) {
	liveTag := backup.FormatBackupTag("https://github/widgets")
	goneTag := backup.FormatBackupTag("https://github/retired")
	keptTag := backup.FormatBackupTag("https://github/legacy")

	testCases := []struct {
		name             string
		dryRun           bool
		keepNames        []string
		deleteErrors     map[string]error
		expectedExitCode int
		expectedDeletes  []providerCall
		expectedCodes    map[string]int
	}{
		{
			name:             "orphans_are_deleted",
			keepNames:        []string{"legacy"},
			expectedExitCode: backup.ExitCodeSuccess,
			expectedDeletes:  []providerCall{{Operation: "delete", Name: "Retired"}},
			expectedCodes: map[string]int{
				backup.EventCodeScrubOrphan:  1,
				backup.EventCodeScrubDeleted: 1,
				backup.EventCodeScrubKeep:    1,
			},
		},
		{
			name:             "dry_run_deletes_nothing",
			dryRun:           true,
			keepNames:        []string{"legacy"},
			expectedExitCode: backup.ExitCodeSuccess,
			expectedCodes: map[string]int{
				backup.EventCodeScrubOrphan:  1,
				backup.EventCodeScrubDeleted: 0,
				backup.EventCodeScrubKeep:    1,
			},
		},
		{
			name:             "without_keep_list_legacy_is_orphaned",
			expectedExitCode: backup.ExitCodeSuccess,
			expectedDeletes:  []providerCall{{Operation: "delete", Name: "Retired"}, {Operation: "delete", Name: "legacy.git"}},
			expectedCodes: map[string]int{
				backup.EventCodeScrubOrphan:  2,
				backup.EventCodeScrubDeleted: 2,
			},
		},
		{
			name:             "delete_failure_is_fatal_but_continues",
			deleteErrors:     map[string]error{"Retired": errHostUnavailable},
			expectedExitCode: backup.ExitCodeFatal,
			expectedDeletes:  []providerCall{{Operation: "delete", Name: "Retired"}, {Operation: "delete", Name: "legacy.git"}},
			expectedCodes: map[string]int{
				backup.EventCodeScrubDeleteFailed: 1,
				backup.EventCodeScrubDeleted:      1,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			vault := newFakeProvider("vault")
			vault.deleteErrors = testCase.deleteErrors
			registry := newTestRegistry(testInstance, testCase.keepNames,
				sourceHost("github", 1, newFakeProvider("github")),
				backupHost("vault", vault),
			)
			inventory := backup.NewInventory(registry.Hosts(), map[string][]backup.Repository{
				"github": {sourceRepository("github", "widgets"), sourceRepository("github", "fresh")},
				"vault": {
					backupRepository("vault", "Widgets", liveTag),
					backupRepository("vault", "Retired", goneTag),
					backupRepository("vault", "legacy.git", keptTag),
					backupRepository("vault", "personal", "not a mirror"),
				},
			}, nil)
			reporter := &recordingReporter{}

			exitCode := backup.NewScrubber(nil, reporter, nil).Scrub(context.Background(), registry, inventory, testCase.dryRun)

			require.Equal(testInstance, testCase.expectedExitCode, exitCode)
			require.Equal(testInstance, testCase.expectedDeletes, vault.mutatingCalls())
			for code, expectedCount := range testCase.expectedCodes {
				require.Len(testInstance, reporter.eventsWithCode(code), expectedCount, code)
			}

			notBackedUp := reporter.eventsWithCode(backup.EventCodeScrubNotBackedUp)
			require.Len(testInstance, notBackedUp, 1)
			require.Equal(testInstance, "fresh", notBackedUp[0].Repository)
		})
	}
}

func TestScrubRefusesIncompleteInventory(testInstance *testing.T) {
	vault := newFakeProvider("vault")
	registry := newTestRegistry(testInstance, nil,
		sourceHost("github", 1, newFakeProvider("github")),
		backupHost("vault", vault),
	)
	inventory := backup.NewInventory(registry.Hosts(), map[string][]backup.Repository{
		"vault": {backupRepository("vault", "widgets", backup.FormatBackupTag("https://github/widgets"))},
	}, []string{"github"})
	reporter := &recordingReporter{}

	exitCode := backup.NewScrubber(nil, reporter, nil).Scrub(context.Background(), registry, inventory, false)

	require.Equal(testInstance, backup.ExitCodeFatal, exitCode)
	require.Empty(testInstance, vault.mutatingCalls())
	require.Equal(testInstance, []string{backup.EventCodeScrubAborted}, reporter.codes())
}

func TestBuildRunStatusTracksTaggedBackupsOnly(testInstance *testing.T) {
	registry := newTestRegistry(testInstance, nil,
		sourceHost("github", 1, newFakeProvider("github")),
		backupHost("vault", newFakeProvider("vault")),
		backupHost("attic", newFakeProvider("attic")),
	)
	inventory := backup.NewInventory(registry.Hosts(), map[string][]backup.Repository{
		"github": {sourceRepository("github", "widgets")},
		"vault": {
			backupRepository("vault", "widgets", backup.FormatBackupTag("https://github/widgets")),
			backupRepository("vault", "notes", "personal notes"),
		},
		"attic": {backupRepository("attic", "Widgets.git", backup.FormatBackupTag("https://github/widgets"))},
	}, nil)

	status := backup.BuildRunStatus(inventory)

	require.Equal(testInstance, []string{"widgets"}, status.Names())
	entry, tracked := status.Entry("widgets")
	require.True(testInstance, tracked)
	require.False(testInstance, entry.Found)
	require.Len(testInstance, entry.Backups, 2)
	require.Equal(testInstance, "https://github/widgets", entry.Backups[1].LinkedSourceURL)

	_, untagged := status.Entry("notes")
	require.False(testInstance, untagged)
}
