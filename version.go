package votera

import (
	"fmt"
	"runtime"
)

// Set with -ldflags at build time.
var (
	CurrentVersion = "0.1.0"
	CurrentBranch  = "main"
	CurrentCommit  = ""
	BuildDate      = ""
)

var (
	Platform  = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	GoVersion = runtime.Version()
)
