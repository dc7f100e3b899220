package compiler

import (
	"fmt"
	"go/version"
	"runtime"
	"strings"
)

// DefaultModulePath is the module path of the sources under
// compilation when no -module option is given.
const DefaultModulePath = "gencheck.test"

// Options are the parsed compiler options.
type Options struct {
	Tags       []string
	Processor  map[string]string
	ModulePath string
	GoVersion  string
}

// NormalizeOptions splits every option string on whitespace, so
// "-go 1.22" and "-go", "1.22" are equivalent.
func NormalizeOptions(opts []string) []string {
	var out []string
	for _, o := range opts {
		out = append(out, strings.Fields(o)...)
	}
	return out
}

// ParseOptions parses normalized option tokens. Invalid tokens are
// returned as messages rather than errors: the service reports them
// as error diagnostics.
func ParseOptions(tokens []string) (Options, []string) {
	opts := Options{
		Processor:  make(map[string]string),
		ModulePath: DefaultModulePath,
		GoVersion:  defaultGoVersion(),
	}
	var invalid []string

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		value := func() (string, bool) {
			if i+1 >= len(tokens) {
				invalid = append(invalid, "flag needs an argument: "+tok)
				return "", false
			}
			i++
			return tokens[i], true
		}

		switch {
		case tok == "-tags":
			if v, ok := value(); ok {
				for _, t := range strings.Split(v, ",") {
					if t = strings.TrimSpace(t); t != "" {
						opts.Tags = append(opts.Tags, t)
					}
				}
			}
		case tok == "-module":
			if v, ok := value(); ok {
				opts.ModulePath = v
			}
		case tok == "-go":
			if v, ok := value(); ok {
				if !version.IsValid("go" + v) {
					invalid = append(invalid, fmt.Sprintf("invalid go version: %s", v))
					continue
				}
				opts.GoVersion = v
			}
		case tok == "-A":
			if v, ok := value(); ok {
				addProcessorOption(opts.Processor, v)
			}
		case strings.HasPrefix(tok, "-A") && len(tok) > 2:
			addProcessorOption(opts.Processor, tok[2:])
		default:
			invalid = append(invalid, "invalid flag: "+tok)
		}
	}
	return opts, invalid
}

func addProcessorOption(m map[string]string, kv string) {
	k, v, _ := strings.Cut(kv, "=")
	m[k] = v
}

func defaultGoVersion() string {
	lang := version.Lang(runtime.Version())
	if lang == "" {
		return "1.22"
	}
	return strings.TrimPrefix(lang, "go")
}
