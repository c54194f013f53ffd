package cmd

import (
	"fmt"
)

const banner = `
   _____          _   ______
  / ____|        | | |  ____|
 | |     ___ _ __| |_| |__ ___  _ __ __ _  ___
 | |    / _ \ '__| __|  __/ _ \| '__/ _` + "`" + ` |/ _ \
 | |___|  __/ |  | |_| | | (_) | | | (_| |  __/
  \_____\___|_|   \__|_|  \___/|_|  \__, |\___|
                                     __/ |
                                    |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Certificate Integrity Engine - Version %s\x1b[0m\n\n", Version)
}
