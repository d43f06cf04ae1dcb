// Command nfagrep compiles a single pattern and reports whether each
// remaining argument matches it, printing any non-empty captures.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/johnbartholomew/libnfa/nfa"
)

func main() {
	caseInsensitive := flag.Bool("i", false, "case-insensitive matching")
	flag.Parse()
	defer glog.Flush()

	args := flag.Args()
	if len(args) < 1 {
		// glog's own -v/-logtostderr flags gate the disassembly logging.
		fmt.Fprintln(os.Stderr, "usage: nfagrep [-i] [-logtostderr -v=1] PATTERN [input ...]")
		os.Exit(2)
	}

	var flags nfa.CompileFlags
	if *caseInsensitive {
		flags |= nfa.CaseInsensitiveFlag
	}

	pattern := args[0]
	prog, err := nfa.Compile(pattern, flags)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}

	nfa.LogDisassembly(pattern, prog)

	m := nfa.NewMachine(prog)
	for _, input := range args[1:] {
		matched, caps := m.MatchString(input)
		if matched {
			fmt.Printf("   MATCH: '%s'\n", input)
		} else {
			fmt.Printf("NO MATCH: '%s'\n", input)
		}
		for i, c := range caps {
			if c.Begin == -1 && c.End == -1 {
				continue
			}
			fmt.Printf("capture %d: %d--%d '%s'\n", i, c.Begin, c.End, input[c.Begin:c.End])
		}
	}
}
