package exitcodes

// Exit codes for rmx
// These codes form the operational contract with scripts and CI
const (
	Success         = 0 // Every root removed (or unlocked)
	PartialFailure  = 1 // Run completed but some entries could not be processed
	InvalidUsage    = 2 // Bad flags, arguments or configuration file
	SafetyViolation = 3 // A root was refused by the safety validator
	RuntimeError    = 4 // Runtime error before or outside the run
)
