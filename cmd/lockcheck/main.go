// Command lockcheck runs internal/lockorder's static lock-order analyzer
// over a set of packages, the developer-facing counterpart to
// internal/kmutex's runtime checkOrder diagnostic: catching an
// out-of-order acquisition at review time instead of waiting to hit it
// under a debug build.
//
// Usage:
//
//	lockcheck [packages]
//
// Grounded on biscuit's own reliance on golang.org/x/tools/go/pointer-
// class alias analysis as an auxiliary dev tool run over its source
// tree rather than shipped in the kernel binary; lockcheck follows the
// same convention using golang.org/x/tools/go/analysis/singlechecker
// instead of a bespoke driver.
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"exos/internal/lockorder"
)

func main() {
	singlechecker.Main(lockorder.Analyzer)
}
