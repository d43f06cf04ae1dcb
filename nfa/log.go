package nfa

import "github.com/golang/glog"

// LogDisassembly writes p's disassembly through glog at verbosity level 1.
// Nothing in this package calls it: it exists for front ends (the grep
// demo calls it) that want compiled-program diagnostics without the
// library forcing a global logger on every embedder.
func LogDisassembly(label string, p *Program) {
	if glog.V(1) {
		glog.Infof("%s:\n%s", label, p.String())
	}
}

// LogParseWarning reports a non-fatal parse problem through glog at the
// default verbosity.
func LogParseWarning(format string, args ...any) {
	glog.Warningf(format, args...)
}
