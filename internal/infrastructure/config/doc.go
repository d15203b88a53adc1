// Package config loads and validates the audio controller configuration.
//
// Configuration is read from a YAML file with hardcoded defaults applied
// first and AUDIOCTL_* environment variables applied last. Durations are
// expressed in the file as plain numbers (seconds) and exposed to the rest
// of the code as time.Duration via the GetXxx helpers.
package config
