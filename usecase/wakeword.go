package usecase

import "strings"

// Accepted spellings of the wake phrase, covering the common recognizer
// mishearings observed in the field.
var wakeVariants = []string{
	"hey donna",
	"hey, donna",
	"hey danna",
	"hay donna",
}

// ContainsWakePhrase reports whether the transcript contains any accepted
// wake-phrase variant. Matching is case-insensitive and position-independent.
func ContainsWakePhrase(transcript string) bool {
	lowered := strings.ToLower(transcript)
	for _, variant := range wakeVariants {
		if strings.Contains(lowered, variant) {
			return true
		}
	}
	return false
}

// StripWakePhrase removes the first wake-phrase variant found in the
// transcript, so a one-breath utterance like "hey donna, check stock" yields
// the bare command. Returns the trimmed remainder.
func StripWakePhrase(transcript string) string {
	lowered := strings.ToLower(transcript)
	for _, variant := range wakeVariants {
		idx := strings.Index(lowered, variant)
		if idx < 0 {
			continue
		}
		remainder := transcript[:idx] + transcript[idx+len(variant):]
		remainder = strings.TrimSpace(remainder)
		remainder = strings.TrimPrefix(remainder, ",")
		// Excising a mid-utterance wake phrase leaves a doubled interior
		// space, so collapse whitespace runs before handing the command on.
		return strings.Join(strings.Fields(remainder), " ")
	}
	return strings.TrimSpace(transcript)
}
