package commands

import (
	"fmt"

	"github.com/teranos/iiify/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(baseURL, dbPath string, workers int) {
	cyan := "\033[36m"
	green := "\033[32m"
	blue := "\033[34m"
	yellow := "\033[33m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔══════════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                              ║\n")
	fmt.Printf("   ║   ██ ██ ██ ███████ ██    ██                  ║\n")
	fmt.Printf("   ║   ██ ██ ██ ██       ██  ██                   ║\n")
	fmt.Printf("   ║   ██ ██ ██ █████     ████                    ║\n")
	fmt.Printf("   ║   ██ ██ ██ ██         ██                     ║\n")
	fmt.Printf("   ║   ██ ██ ██ ██         ██                     ║\n")
	fmt.Printf("   ║                                              ║\n")
	fmt.Printf("   ║   METS/MODS %s⇒%s IIIF import service            ║\n", yellow, reset+cyan+bold)
	fmt.Printf("   ║                                              ║\n")
	fmt.Printf("   ╚══════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ iiify Info ────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:  %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Base URL: %s\n", green, reset, baseURL)
	fmt.Printf("%s│%s Database: %s\n", green, reset, dbPath)
	fmt.Printf("%s│%s Workers:  %d\n", green, reset, workers)
	fmt.Printf("%s└─────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
