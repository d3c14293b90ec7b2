package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	gitMetadataEntryNameConstant        = ".git"
	bareHeadFileNameConstant            = "HEAD"
	bareObjectsDirectoryNameConstant    = "objects"
	bareReferencesDirectoryNameConstant = "refs"
	accessErrorTemplateConstant         = "unable to read %s: %v"
	accessErrorLogMessageConstant       = "directory skipped"
	repositoryFoundLogMessageConstant   = "repository discovered"
	logFieldDirectoryConstant           = "directory"
	logFieldDepthConstant               = "depth"
)

// AccessError reports a directory the scanner could not read. Its subtree is skipped.
type AccessError struct {
	Path  string
	Cause error
}

func (accessError AccessError) Error() string {
	return fmt.Sprintf(accessErrorTemplateConstant, accessError.Path, accessError.Cause)
}

// Unwrap exposes the underlying filesystem error.
func (accessError AccessError) Unwrap() error {
	return accessError.Cause
}

// AccessErrorObserver receives directories skipped because they could not be read.
type AccessErrorObserver func(AccessError)

// ScannerOption customizes a Scanner.
type ScannerOption func(*Scanner)

// WithMaxDepth limits traversal depth. The root is depth 0; nil means unlimited.
func WithMaxDepth(maxDepth *int) ScannerOption {
	return func(scanner *Scanner) {
		if maxDepth == nil {
			scanner.maxDepth = -1
			return
		}
		scanner.maxDepth = *maxDepth
	}
}

// WithExcludePatterns sets glob patterns matched against directory base names.
func WithExcludePatterns(patterns []string) ScannerOption {
	return func(scanner *Scanner) {
		scanner.excludePatterns = append([]string{}, patterns...)
	}
}

// WithLogger sets the logger used for discovery diagnostics.
func WithLogger(logger *zap.Logger) ScannerOption {
	return func(scanner *Scanner) {
		if logger != nil {
			scanner.logger = logger
		}
	}
}

// WithAccessErrorObserver registers a callback for unreadable directories.
func WithAccessErrorObserver(observer AccessErrorObserver) ScannerOption {
	return func(scanner *Scanner) {
		scanner.accessErrorObserver = observer
	}
}

// Scanner walks a directory tree and yields git working copies and bare repositories.
type Scanner struct {
	maxDepth            int
	excludePatterns     []string
	logger              *zap.Logger
	accessErrorObserver AccessErrorObserver
}

// NewScanner constructs a Scanner with unlimited depth and no exclusions unless configured.
func NewScanner(options ...ScannerOption) *Scanner {
	scanner := &Scanner{maxDepth: -1, logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(scanner)
		}
	}
	return scanner
}

// Scan lazily yields repository paths beneath root in depth-first lexical order.
// Repositories are not descended into and symbolic links are never followed.
func (scanner *Scanner) Scan(executionContext context.Context, root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner.walk(executionContext, filepath.Clean(root), 0, yield)
	}
}

func (scanner *Scanner) walk(executionContext context.Context, directory string, depth int, yield func(string) bool) bool {
	if executionContext.Err() != nil {
		return false
	}
	if scanner.maxDepth >= 0 && depth > scanner.maxDepth {
		return true
	}

	entries, readError := os.ReadDir(directory)
	if readError != nil {
		scanner.reportAccessError(AccessError{Path: directory, Cause: readError}, depth)
		return true
	}

	if isRepositoryDirectory(entries) {
		scanner.logger.Debug(repositoryFoundLogMessageConstant, zap.String(logFieldDirectoryConstant, directory), zap.Int(logFieldDepthConstant, depth))
		return yield(directory)
	}

	for _, entry := range entries {
		if !entry.IsDir() || scanner.isExcluded(entry.Name()) {
			continue
		}
		if !scanner.walk(executionContext, filepath.Join(directory, entry.Name()), depth+1, yield) {
			return false
		}
	}
	return true
}

func (scanner *Scanner) isExcluded(name string) bool {
	for _, pattern := range scanner.excludePatterns {
		if pattern == name {
			return true
		}
		if matched, matchError := filepath.Match(pattern, name); matchError == nil && matched {
			return true
		}
	}
	return false
}

func (scanner *Scanner) reportAccessError(accessError AccessError, depth int) {
	scanner.logger.Warn(
		accessErrorLogMessageConstant,
		zap.String(logFieldDirectoryConstant, accessError.Path),
		zap.Int(logFieldDepthConstant, depth),
		zap.Error(accessError.Cause),
	)
	if scanner.accessErrorObserver != nil {
		scanner.accessErrorObserver(accessError)
	}
}

func isRepositoryDirectory(entries []fs.DirEntry) bool {
	hasHeadFile := false
	hasObjectsDirectory := false
	hasReferencesDirectory := false

	for _, entry := range entries {
		switch entry.Name() {
		case gitMetadataEntryNameConstant:
			if entry.IsDir() || entry.Type().IsRegular() {
				return true
			}
		case bareHeadFileNameConstant:
			hasHeadFile = entry.Type().IsRegular()
		case bareObjectsDirectoryNameConstant:
			hasObjectsDirectory = entry.IsDir()
		case bareReferencesDirectoryNameConstant:
			hasReferencesDirectory = entry.IsDir()
		}
	}

	return hasHeadFile && hasObjectsDirectory && hasReferencesDirectory
}
