package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/gittyup/internal/execshell"
	"github.com/temirov/gittyup/internal/gitrepo"
	"github.com/temirov/gittyup/internal/repos/discovery"
	"github.com/temirov/gittyup/internal/repos/shared"
)

// ResolveRepositoryDiscoverer returns the provided discoverer or a filesystem-backed default.
func ResolveRepositoryDiscoverer(existing shared.RepositoryDiscoverer, scannerOptions ...discovery.ScannerOption) shared.RepositoryDiscoverer {
	if existing != nil {
		return existing
	}
	return discovery.NewFilesystemRepositoryDiscoverer(scannerOptions...)
}

// ResolveCommandRunner returns the provided runner or an os/exec backed default.
func ResolveCommandRunner(existing execshell.CommandRunner) execshell.CommandRunner {
	if existing != nil {
		return existing
	}
	return execshell.NewOSCommandRunner()
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
func ResolveGitExecutor(existing shared.GitExecutor, logger *zap.Logger, runner execshell.CommandRunner, options ...execshell.ExecutorOption) (shared.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	shellExecutor, creationError := execshell.NewShellExecutor(logger, ResolveCommandRunner(runner), options...)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

// ResolveGitRepositoryManager returns the provided repository manager or constructs one from the executor.
func ResolveGitRepositoryManager(existing shared.GitRepositoryManager, executor shared.GitExecutor) (shared.GitRepositoryManager, error) {
	if existing != nil {
		return existing, nil
	}

	repositoryManager, creationError := gitrepo.NewRepositoryManager(executor)
	if creationError != nil {
		return nil, creationError
	}
	return repositoryManager, nil
}
