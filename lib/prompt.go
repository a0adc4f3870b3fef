package lib

import (
	"fmt"
	"strings"
)

// AskYesNo prompts the user and reports whether the reply matches expected,
// case-insensitively.
func AskYesNo(prompt string, expected string) bool {
	fmt.Print(prompt)

	var response string
	fmt.Scanln(&response)

	return strings.EqualFold(strings.TrimSpace(response), expected)
}
