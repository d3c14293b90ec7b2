package discovery_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gittyup/internal/repos/discovery"
)

const (
	scannerDirectoryPermissions = 0o755
	scannerFilePermissions      = 0o644
	gitFileContents             = "gitdir: /elsewhere/.git/worktrees/feature\n"
)

type scannerLayout struct {
	gitDirectories []string
	gitFiles       []string
	bareRepos      []string
	plainDirs      []string
}

func buildScannerLayout(testInstance *testing.T, layout scannerLayout) string {
	testInstance.Helper()
	rootDirectory := testInstance.TempDir()
	for _, relativePath := range layout.gitDirectories {
		require.NoError(testInstance, os.MkdirAll(filepath.Join(rootDirectory, relativePath, ".git"), scannerDirectoryPermissions))
	}
	for _, relativePath := range layout.gitFiles {
		require.NoError(testInstance, os.MkdirAll(filepath.Join(rootDirectory, relativePath), scannerDirectoryPermissions))
		require.NoError(testInstance, os.WriteFile(filepath.Join(rootDirectory, relativePath, ".git"), []byte(gitFileContents), scannerFilePermissions))
	}
	for _, relativePath := range layout.bareRepos {
		require.NoError(testInstance, os.MkdirAll(filepath.Join(rootDirectory, relativePath, "objects"), scannerDirectoryPermissions))
		require.NoError(testInstance, os.MkdirAll(filepath.Join(rootDirectory, relativePath, "refs"), scannerDirectoryPermissions))
		require.NoError(testInstance, os.WriteFile(filepath.Join(rootDirectory, relativePath, "HEAD"), []byte("ref: refs/heads/main\n"), scannerFilePermissions))
	}
	for _, relativePath := range layout.plainDirs {
		require.NoError(testInstance, os.MkdirAll(filepath.Join(rootDirectory, relativePath), scannerDirectoryPermissions))
	}
	return rootDirectory
}

func relativePaths(testInstance *testing.T, rootDirectory string, absolutePaths []string) []string {
	testInstance.Helper()
	relative := make([]string, 0, len(absolutePaths))
	for _, absolutePath := range absolutePaths {
		relativePath, relativeError := filepath.Rel(rootDirectory, absolutePath)
		require.NoError(testInstance, relativeError)
		relative = append(relative, filepath.ToSlash(relativePath))
	}
	return relative
}

func intPointer(value int) *int {
	return &value
}

func TestScannerScan(testInstance *testing.T) {
	testCases := []struct {
		name     string
		layout   scannerLayout
		options  []discovery.ScannerOption
		expected []string
	}{
		{
			name:     "lexical_depth_first_order",
			layout:   scannerLayout{gitDirectories: []string{"zeta", "alpha/two", "alpha/one", "beta"}},
			expected: []string{"alpha/one", "alpha/two", "beta", "zeta"},
		},
		{
			name:     "root_is_repository",
			layout:   scannerLayout{gitDirectories: []string{".", "nested"}},
			expected: []string{"."},
		},
		{
			name:     "nested_repository_not_descended",
			layout:   scannerLayout{gitDirectories: []string{"outer", "outer/inner"}},
			expected: []string{"outer"},
		},
		{
			name:     "git_file_counts",
			layout:   scannerLayout{gitFiles: []string{"worktree"}, gitDirectories: []string{"main"}},
			expected: []string{"main", "worktree"},
		},
		{
			name:     "bare_repository_detected",
			layout:   scannerLayout{bareRepos: []string{"mirror.git"}, plainDirs: []string{"half/objects", "half/refs"}},
			expected: []string{"mirror.git"},
		},
		{
			name:     "empty_tree",
			layout:   scannerLayout{plainDirs: []string{"a/b/c"}},
			expected: []string{},
		},
		{
			name:     "max_depth_zero_examines_root_only",
			layout:   scannerLayout{gitDirectories: []string{"a"}},
			options:  []discovery.ScannerOption{discovery.WithMaxDepth(intPointer(0))},
			expected: []string{},
		},
		{
			name:     "max_depth_one",
			layout:   scannerLayout{gitDirectories: []string{"a", "b/c"}},
			options:  []discovery.ScannerOption{discovery.WithMaxDepth(intPointer(1))},
			expected: []string{"a"},
		},
		{
			name:     "unlimited_depth",
			layout:   scannerLayout{gitDirectories: []string{"a/b/c/d/e"}},
			options:  []discovery.ScannerOption{discovery.WithMaxDepth(nil)},
			expected: []string{"a/b/c/d/e"},
		},
		{
			name:     "exclusions_at_any_depth",
			layout:   scannerLayout{gitDirectories: []string{"node_modules/pkg", "src/node_modules/dep", "src/app", "tmp-1/x"}},
			options:  []discovery.ScannerOption{discovery.WithExcludePatterns([]string{"node_modules", "tmp-*"})},
			expected: []string{"src/app"},
		},
		{
			name:     "excluded_repository_not_emitted",
			layout:   scannerLayout{gitDirectories: []string{"vendor", "app"}},
			options:  []discovery.ScannerOption{discovery.WithExcludePatterns([]string{"vendor"})},
			expected: []string{"app"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			rootDirectory := buildScannerLayout(testInstance, testCase.layout)
			scanner := discovery.NewScanner(testCase.options...)

			discovered := slices.Collect(scanner.Scan(context.Background(), rootDirectory))
			require.Equal(testInstance, testCase.expected, relativePaths(testInstance, rootDirectory, discovered))
		})
	}
}

func TestScannerDoesNotFollowSymbolicLinks(testInstance *testing.T) {
	rootDirectory := buildScannerLayout(testInstance, scannerLayout{gitDirectories: []string{"real"}})
	outsideDirectory := buildScannerLayout(testInstance, scannerLayout{gitDirectories: []string{"outside"}})
	if symlinkError := os.Symlink(filepath.Join(outsideDirectory, "outside"), filepath.Join(rootDirectory, "linked")); symlinkError != nil {
		testInstance.Skipf("symbolic links unavailable: %v", symlinkError)
	}

	discovered := slices.Collect(discovery.NewScanner().Scan(context.Background(), rootDirectory))
	require.Equal(testInstance, []string{"real"}, relativePaths(testInstance, rootDirectory, discovered))
}

func TestScannerStopsWhenConsumerStops(testInstance *testing.T) {
	rootDirectory := buildScannerLayout(testInstance, scannerLayout{gitDirectories: []string{"a", "b", "c"}})

	discovered := make([]string, 0)
	for repositoryPath := range discovery.NewScanner().Scan(context.Background(), rootDirectory) {
		discovered = append(discovered, repositoryPath)
		break
	}
	require.Equal(testInstance, []string{"a"}, relativePaths(testInstance, rootDirectory, discovered))
}

func TestScannerStopsWhenContextCancelled(testInstance *testing.T) {
	rootDirectory := buildScannerLayout(testInstance, scannerLayout{gitDirectories: []string{"a", "b", "c"}})
	executionContext, cancel := context.WithCancel(context.Background())
	defer cancel()

	discovered := make([]string, 0)
	for repositoryPath := range discovery.NewScanner().Scan(executionContext, rootDirectory) {
		discovered = append(discovered, repositoryPath)
		cancel()
	}
	require.Equal(testInstance, []string{"a"}, relativePaths(testInstance, rootDirectory, discovered))
}

func TestScannerReportsUnreadableDirectories(testInstance *testing.T) {
	if os.Geteuid() == 0 {
		testInstance.Skip("permission checks do not apply to root")
	}
	rootDirectory := buildScannerLayout(testInstance, scannerLayout{gitDirectories: []string{"a", "c"}, plainDirs: []string{"b/hidden"}})
	lockedDirectory := filepath.Join(rootDirectory, "b")
	require.NoError(testInstance, os.Chmod(lockedDirectory, 0o000))
	testInstance.Cleanup(func() {
		_ = os.Chmod(lockedDirectory, scannerDirectoryPermissions)
	})

	observedCore, observedLogs := observer.New(zapcore.WarnLevel)
	accessErrors := make([]discovery.AccessError, 0)
	scanner := discovery.NewScanner(
		discovery.WithLogger(zap.New(observedCore)),
		discovery.WithAccessErrorObserver(func(accessError discovery.AccessError) {
			accessErrors = append(accessErrors, accessError)
		}),
	)

	discovered := slices.Collect(scanner.Scan(context.Background(), rootDirectory))
	require.Equal(testInstance, []string{"a", "c"}, relativePaths(testInstance, rootDirectory, discovered))
	require.Len(testInstance, accessErrors, 1)
	require.Equal(testInstance, lockedDirectory, accessErrors[0].Path)
	require.ErrorIs(testInstance, accessErrors[0], os.ErrPermission)
	require.Equal(testInstance, 1, observedLogs.Len())
}

func TestScannerReportsMissingRoot(testInstance *testing.T) {
	missingRoot := filepath.Join(testInstance.TempDir(), "absent")
	accessErrors := make([]discovery.AccessError, 0)
	scanner := discovery.NewScanner(discovery.WithAccessErrorObserver(func(accessError discovery.AccessError) {
		accessErrors = append(accessErrors, accessError)
	}))

	discovered := slices.Collect(scanner.Scan(context.Background(), missingRoot))
	require.Empty(testInstance, discovered)
	require.Len(testInstance, accessErrors, 1)
}
