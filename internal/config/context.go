package config

import "context"

const (
	resolutionContextKeyConstant = resolutionContextKey("resolution")
)

type resolutionContextKey string

// ContextAccessor stores and retrieves resolved configuration in command execution contexts.
type ContextAccessor struct{}

// NewContextAccessor constructs a ContextAccessor.
func NewContextAccessor() ContextAccessor {
	return ContextAccessor{}
}

// WithResolution attaches the resolved configuration to the provided context.
func (accessor ContextAccessor) WithResolution(parentContext context.Context, resolution Resolution) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, resolutionContextKeyConstant, resolution)
}

// Resolution extracts the resolved configuration from the provided context.
func (accessor ContextAccessor) Resolution(executionContext context.Context) (Resolution, bool) {
	if executionContext == nil {
		return Resolution{}, false
	}
	resolution, resolutionAvailable := executionContext.Value(resolutionContextKeyConstant).(Resolution)
	return resolution, resolutionAvailable
}
