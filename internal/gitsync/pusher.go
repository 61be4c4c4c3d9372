package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tyemirov/repomirror/internal/backup"
)

const (
	workDirectoryPatternConstant        = "repomirror-*"
	mirrorDirectoryNameConstant         = "mirror.git"
	mirrorPushStartedMessageConstant    = "mirroring repository"
	mirrorPushFinishedMessageConstant   = "mirrored repository"
	cleanupFailedMessageConstant        = "failed to remove work directory"
	sourceURLLogFieldConstant           = "source_url"
	destinationURLLogFieldConstant      = "destination_url"
	workDirectoryLogFieldConstant       = "work_directory"
	transportMissingMessageConstant     = "mirror transport not configured"
	createWorkDirectoryTemplateConstant = "create work directory: %w"
	cloneSourceTemplateConstant         = "clone %s: %w"
	pushDestinationTemplateConstant     = "push to %s: %w"
)

// ErrMirrorTransportMissing indicates the pusher was built without a git transport.
var ErrMirrorTransportMissing = errors.New(transportMissingMessageConstant)

// MirrorTransport performs the git operations behind a mirror push.
type MirrorTransport interface {
	CloneMirror(executionContext context.Context, repositoryURL string, destinationPath string) error
	PushMirror(executionContext context.Context, repositoryPath string, repositoryURL string) error
}

// ReferenceInvalidator forgets cached branch heads after a repository changed.
type ReferenceInvalidator interface {
	Invalidate(repository backup.Repository)
}

// MirrorPusher copies every ref of a source repository into a destination through a temporary mirror clone.
type MirrorPusher struct {
	transport     MirrorTransport
	invalidator   ReferenceInvalidator
	workDirectory string
	logger        *zap.Logger
}

// NewMirrorPusher constructs a MirrorPusher. An empty work directory selects the system temporary directory.
func NewMirrorPusher(transport MirrorTransport, invalidator ReferenceInvalidator, workDirectory string, logger *zap.Logger) (*MirrorPusher, error) {
	if transport == nil {
		return nil, ErrMirrorTransportMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirrorPusher{transport: transport, invalidator: invalidator, workDirectory: workDirectory, logger: logger}, nil
}

// MirrorPush clones the source with --mirror and pushes the clone with --mirror to the destination.
func (pusher *MirrorPusher) MirrorPush(executionContext context.Context, source backup.Repository, destination backup.Repository) error {
	sourceURL := RemoteURL(source)
	if len(sourceURL) == 0 {
		return fmt.Errorf(missingRemoteURLTemplateConstant, source.Name, source.HostName)
	}
	destinationURL := RemoteURL(destination)
	if len(destinationURL) == 0 {
		return fmt.Errorf(missingRemoteURLTemplateConstant, destination.Name, destination.HostName)
	}

	if len(pusher.workDirectory) > 0 {
		if mkdirError := os.MkdirAll(pusher.workDirectory, 0o755); mkdirError != nil {
			return fmt.Errorf(createWorkDirectoryTemplateConstant, mkdirError)
		}
	}
	workDirectory, tempError := os.MkdirTemp(pusher.workDirectory, workDirectoryPatternConstant)
	if tempError != nil {
		return fmt.Errorf(createWorkDirectoryTemplateConstant, tempError)
	}
	defer func() {
		if removeError := os.RemoveAll(workDirectory); removeError != nil {
			pusher.logger.Warn(cleanupFailedMessageConstant, zap.String(workDirectoryLogFieldConstant, workDirectory), zap.Error(removeError))
		}
	}()

	pusher.logger.Info(mirrorPushStartedMessageConstant,
		zap.String(sourceURLLogFieldConstant, sourceURL),
		zap.String(destinationURLLogFieldConstant, destinationURL),
	)

	mirrorPath := filepath.Join(workDirectory, mirrorDirectoryNameConstant)
	if cloneError := pusher.transport.CloneMirror(executionContext, sourceURL, mirrorPath); cloneError != nil {
		return fmt.Errorf(cloneSourceTemplateConstant, sourceURL, cloneError)
	}
	pushError := pusher.transport.PushMirror(executionContext, mirrorPath, destinationURL)
	if pusher.invalidator != nil {
		pusher.invalidator.Invalidate(destination)
	}
	if pushError != nil {
		return fmt.Errorf(pushDestinationTemplateConstant, destinationURL, pushError)
	}

	pusher.logger.Info(mirrorPushFinishedMessageConstant,
		zap.String(sourceURLLogFieldConstant, sourceURL),
		zap.String(destinationURLLogFieldConstant, destinationURL),
	)
	return nil
}
