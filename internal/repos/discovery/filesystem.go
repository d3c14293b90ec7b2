package discovery

import (
	"context"
	"slices"
)

// FilesystemRepositoryDiscoverer collects repositories beneath several roots into a sorted slice.
type FilesystemRepositoryDiscoverer struct {
	scanner *Scanner
}

// NewFilesystemRepositoryDiscoverer constructs a discoverer backed by a Scanner configured with the supplied options.
func NewFilesystemRepositoryDiscoverer(options ...ScannerOption) *FilesystemRepositoryDiscoverer {
	return &FilesystemRepositoryDiscoverer{scanner: NewScanner(options...)}
}

// DiscoverRepositories drains a scan of every root and returns the de-duplicated, sorted repository paths.
func (discoverer *FilesystemRepositoryDiscoverer) DiscoverRepositories(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	repositories := make([]string, 0)

	for _, root := range roots {
		for repositoryPath := range discoverer.scanner.Scan(context.Background(), root) {
			if _, alreadySeen := seen[repositoryPath]; alreadySeen {
				continue
			}
			seen[repositoryPath] = struct{}{}
			repositories = append(repositories, repositoryPath)
		}
	}

	slices.Sort(repositories)
	return repositories, nil
}
