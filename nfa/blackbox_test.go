package nfa

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
)

// TestBlackboxScripts replays the p/y/n regression scripts under testdata,
// the same line grammar cmd/nfablackbox consumes.
func TestBlackboxScripts(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.blackbox"))
	assert(t, err == nil, "glob failed: %s", err)
	assert(t, len(files) > 0, "no blackbox scripts under testdata")

	for _, file := range files {
		runBlackboxScript(t, file)
	}
}

func runBlackboxScript(t *testing.T, file string) {
	f, err := os.Open(file)
	assert(t, err == nil, "could not open %s: %s", file, err)
	defer f.Close()

	var pattern string
	var m *Machine

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		assert(t, len(line) >= 2 && line[1] == ' ', "%s:%d: bad script line %q", file, lineNo, line)
		tag, rest := line[0], line[2:]

		switch tag {
		case 'p':
			pattern = rest
			p, err := Compile(pattern, 0)
			assert(t, err == nil, "%s:%d: could not compile /%s/: %s", file, lineNo, pattern, err)
			checkProgram(t, p)
			m = NewMachine(p)
		case 'y', 'n':
			assert(t, m != nil, "%s:%d: test line before any pattern", file, lineNo)
			matched, _ := m.MatchString(rest)
			want := tag == 'y'
			assert(t, matched == want, "%s:%d: /%s/ on %q: got %v, want %v", file, lineNo, pattern, rest, matched, want)
		default:
			assert(t, false, "%s:%d: unknown tag %q", file, lineNo, tag)
		}
	}
	assert(t, scanner.Err() == nil, "%s: read error: %s", file, scanner.Err())
}
