package main

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const envPrefix = "RELAY_"

// setFlagsFromEnvVars sets every flag not given on the command line from a
// matching RELAY_<FLAG_NAME> environment variable.
func setFlagsFromEnvVars(flags *pflag.FlagSet) error {
	var firstErr error
	flags.VisitAll(func(f *pflag.Flag) {
		// command line wins over the environment
		if f.Changed {
			return
		}

		newEnvVar := flagNameToEnvVar(f.Name, envPrefix)
		value, present := os.LookupEnv(newEnvVar)
		if !present {
			return
		}

		if err := flags.Set(f.Name, value); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// flagNameToEnvVar converts a flag name to an environment variable name, e.g.
// listen-address becomes RELAY_LISTEN_ADDRESS.
func flagNameToEnvVar(cmdFlag string, prefix string) string {
	parsed := strings.ReplaceAll(cmdFlag, "-", "_")
	upper := strings.ToUpper(parsed)
	return prefix + upper
}
