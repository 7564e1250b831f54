package compress

import "runtime"

// ghostscriptBinaryName mirrors the source processor's platform-specific
// binary naming (gswin64c.exe on Windows, gs everywhere else).
func ghostscriptBinaryName() string {
	if runtime.GOOS == "windows" {
		return "gswin64c"
	}
	return "gs"
}
