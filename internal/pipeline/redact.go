package pipeline

// redactPrefix is how many characters of a token may appear in logs or
// responses.
const redactPrefix = 8

// Redact shortens a device token to a short prefix plus an ellipsis.
func Redact(token string) string {
	r := []rune(token)
	if len(r) > redactPrefix {
		r = r[:redactPrefix]
	}
	return string(r) + "..."
}
