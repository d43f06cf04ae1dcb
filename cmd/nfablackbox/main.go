// Command nfablackbox runs a script of patterns and expected matches
// against the nfa package.
//
// A script is a text file of lines:
//
//	# comment
//	p PATTERN       set the current pattern (recompiled immediately)
//	y INPUT         INPUT must match the current pattern
//	n INPUT         INPUT must not match the current pattern
//
// Blank lines and lines starting with '#' are skipped. Each y/n line
// prints " ok" or "FAIL" followed by the pattern and input under test;
// the driver exits non-zero if any line failed or could not be
// understood.
package main

import (
	"bufio"
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
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: nfablackbox [-i] testset")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open %q: %v\n", args[0], err)
		os.Exit(1)
	}
	defer f.Close()

	var flags nfa.CompileFlags
	if *caseInsensitive {
		flags |= nfa.CaseInsensitiveFlag
	}

	ok, fail := runTests(f, flags)
	fmt.Printf("%d ok, %d failed\n", ok, fail)
	if fail > 0 {
		os.Exit(1)
	}
}

func runTests(f *os.File, flags nfa.CompileFlags) (ok, fail int) {
	var pattern string
	var m *nfa.Machine

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}

		if len(line) < 2 || line[1] != ' ' {
			glog.Warningf("line %d: could not understand input line: %q", lineNo, line)
			fail++
			continue
		}
		tag, rest := line[0], line[2:]

		if tag == 'p' {
			pattern = rest
			prog, err := nfa.Compile(pattern, flags)
			if err != nil {
				glog.Warningf("line %d: could not build NFA for regex %q: %v", lineNo, pattern, err)
				m = nil
				continue
			}
			m = nfa.NewMachine(prog)
			continue
		}

		var expected bool
		switch tag {
		case 'y':
			expected = true
		case 'n':
			expected = false
		default:
			glog.Warningf("line %d: could not understand input line: %q", lineNo, line)
			fail++
			continue
		}

		var matched bool
		if m != nil {
			matched, _ = m.MatchString(rest)
		}

		relation := "~!"
		if matched {
			relation = "~="
		}
		if matched == expected {
			ok++
			fmt.Printf(" ok   (/%s/ %s '%s')\n", pattern, relation, rest)
		} else {
			fail++
			fmt.Printf("FAIL  (/%s/ %s '%s')\n", pattern, relation, rest)
		}
	}
	if err := scanner.Err(); err != nil {
		glog.Warningf("read error: %v", err)
		fail++
	}
	return ok, fail
}
