package kokoro

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// Kokoro ships one default voice per supported language.
var voiceTags = []language.Tag{
	language.English,    // af_heart
	language.Japanese,   // jf_alpha
	language.Spanish,    // ef_dora
	language.French,     // ff_siwis
	language.Hindi,      // hf_alpha
	language.Italian,    // if_sara
	language.Portuguese, // pf_dora
	language.Chinese,    // zf_xiaobei
}

var voiceByTag = map[language.Tag]string{
	language.English:    "af_heart",
	language.Japanese:   "jf_alpha",
	language.Spanish:    "ef_dora",
	language.French:     "ff_siwis",
	language.Hindi:      "hf_alpha",
	language.Italian:    "if_sara",
	language.Portuguese: "pf_dora",
	language.Chinese:    "zf_xiaobei",
}

var voiceMatcher = language.NewMatcher(voiceTags)

// VoiceForText picks a voice profile by detecting the text's language.
// Unrecognized or low-confidence input falls back to the English
// default voice.
func VoiceForText(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return voiceByTag[language.English]
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return voiceByTag[language.English]
	}
	_, index, confidence := voiceMatcher.Match(tag)
	if confidence == language.No {
		return voiceByTag[language.English]
	}
	return voiceByTag[voiceTags[index]]
}
