package model

// Exit statuses and stderr markers shared by every generated driver and the
// result normalizer.
const (
	ExitRuntimeError = 1
	ExitTimeout      = 124

	RuntimeErrorPrefix = "Runtime Error: "
	TimeoutMarker      = "Time Limit Exceeded"
)

// Diagnostic categories written after RuntimeErrorPrefix.
const (
	FaultStackOverflow   = "Stack overflow"
	FaultOutOfMemory     = "Out of memory"
	FaultArgumentCount   = "Argument count mismatch"
	FaultUndefinedName   = "Undefined reference"
	FaultFunctionMissing = "Function not found"
)
