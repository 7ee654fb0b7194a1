// Package flagx lets several components share one command line by picking
// out only the flags each of them understands.
package flagx

import (
	"flag"
	"strings"
)

// Spec names the flags a component owns. Valued flags may take their value
// from the next argument; switches never do.
type Spec struct {
	Valued   []string
	Switches []string
}

func flagName(arg string) string {
	return strings.TrimLeft(arg, "-")
}

// FilterArgs returns the arguments that belong to the flags named in spec,
// keeping their order. Both "-name value" and "-name=value" forms are kept,
// and "--name" is treated as "-name".
func FilterArgs(args []string, spec Spec) []string {
	valued := make(map[string]struct{}, len(spec.Valued))
	for _, f := range spec.Valued {
		valued[flagName(f)] = struct{}{}
	}
	switches := make(map[string]struct{}, len(spec.Switches))
	for _, f := range spec.Switches {
		switches[flagName(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if name, _, ok := strings.Cut(arg, "="); ok {
			n := flagName(name)
			_, v := valued[n]
			_, s := switches[n]
			if v || s {
				filtered = append(filtered, arg)
			}
			continue
		}

		n := flagName(arg)
		if _, ok := switches[n]; ok {
			filtered = append(filtered, arg)
			continue
		}
		if _, ok := valued[n]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}

// JsonConfigFlags returns the config file path given with -c or -config, or
// "" when neither is present.
func JsonConfigFlags(args []string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, Spec{Valued: []string{"-c", "-config"}}))

	return config
}
