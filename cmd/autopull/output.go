package main

import (
	"fmt"
	"os"
)

var (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

func init() {
	// Check if output is a terminal
	if stat, err := os.Stdout.Stat(); err == nil {
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			colorGreen = ""
			colorRed = ""
			colorYellow = ""
			colorReset = ""
		}
	}
}

// printSuccess prints a message with an [OK] marker
func printSuccess(msg string) {
	fmt.Printf("%-70s%s[OK]%s\n", msg, colorGreen, colorReset)
}

// printFail prints a message with a [FAIL] marker
func printFail(msg string) {
	fmt.Printf("%-70s%s[FAIL]%s\n", msg, colorRed, colorReset)
}

// printWarn prints a message with a [WARN] marker
func printWarn(msg string) {
	fmt.Printf("%-70s%s[WARN]%s\n", msg, colorYellow, colorReset)
}
