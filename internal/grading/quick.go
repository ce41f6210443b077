package grading

import "strings"

// QuickWiden is how many extra chunks a quick answer retrieves on retry.
const QuickWiden = 5

const quickMinChars = 10

// Confident reports whether a quick answer can be returned as is. Short
// answers and explicit "I don't know" replies get one retry with a wider
// context.
func Confident(answer string) bool {
	a := strings.TrimSpace(answer)
	if len(a) < quickMinChars {
		return false
	}
	return !strings.Contains(strings.ToLower(a), "i don't know")
}
