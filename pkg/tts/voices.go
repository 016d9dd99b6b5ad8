package tts

// SupportedVoices enumerates the voices the gateway accepts, with a short
// client-facing description each.
var SupportedVoices = map[string]string{
	"en-US-JennyNeural": "Female, Neutral",
	"en-US-GuyNeural":   "Male, Neutral",
	"en-US-AriaNeural":  "Female, Professional",
	"en-US-DavisNeural": "Male, Professional",
	"en-GB-SoniaNeural": "Female, British",
	"en-GB-RyanNeural":  "Male, British",
}

// DefaultVoice is used when a session or request does not pick one.
const DefaultVoice = "en-US-JennyNeural"

// IsSupportedVoice reports whether voiceID is in the catalog.
func IsSupportedVoice(voiceID string) bool {
	_, ok := SupportedVoices[voiceID]
	return ok
}
