package utils

// MaskSecret keeps the first four characters of a credential for log lines.
// An unset credential stays empty.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "*****"
	default:
		return s[:4] + "*****"
	}
}
