package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *DocrunError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *DocrunError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration file invalid").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *DocrunError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Dependency (precondition) errors

func DependencyCheckFailed(check, path string, cause error) *DocrunError {
	return Wrap(cause, CategoryDependency, SeverityFatal, "dependency check failed").
		WithContext("check", check).
		WithContext("path", path)
}

// Copy errors

func CopyFailed(src, dst string, cause error) *DocrunError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "failed to copy config file").
		WithContext("source", src).
		WithContext("destination", dst)
}

// Command errors

func CommandFailed(command string, exitCode int, cause error) *DocrunError {
	return Wrap(cause, CategoryCommand, SeverityFatal, "command failed").
		WithContext("command", command).
		WithContext("exit_code", exitCode)
}

func CommandSpawnFailed(command string, cause error) *DocrunError {
	return Wrap(cause, CategoryCommand, SeverityFatal, "command could not be started").
		WithContext("command", command)
}

// Lock errors

func LockHeld(path string) *DocrunError {
	return New(CategoryLock, SeverityFatal, "another run holds the lock").
		WithContext("path", path)
}

// Internal errors

func InternalError(message string, cause error) *DocrunError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
