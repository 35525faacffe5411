package cmd

import (
	"bufio"
	"fmt"
	"strings"
)

// prompt reads one line, returning defaultVal on empty input.
func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// confirm asks a yes/no question, defaulting to no.
func confirm(reader *bufio.Reader, label string) bool {
	fmt.Printf("%s [y/N]: ", label)
	input, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
