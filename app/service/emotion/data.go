package emotion

import "regexp"

// valenceByLabel maps every classifiable emotion label to its polarity.
var valenceByLabel = map[string]float64{
	"joy": 1.0, "love": 0.9, "gratitude": 0.8, "optimism": 0.7, "admiration": 0.7,
	"caring": 0.6, "approval": 0.5, "pride": 0.5, "neutral": 0.0, "realization": 0.2,
	"curiosity": 0.1, "surprise": 0.2, "confusion": -0.2, "remorse": -0.6,
	"sadness": -0.8, "grief": -0.9, "fear": -0.9, "nervousness": -0.7,
	"disappointment": -0.6, "anger": -1.0, "disgust": -0.9, "embarrassment": -0.5,
	"relief": 0.4, "amusement": 0.8, "excitement": 0.9, "desire": 0.7, "annoyance": -0.4,
}

var emojiValence = map[rune]float64{
	'😊': 0.8, '😍': 0.9, '😄': 0.8, '😢': -0.9, '😭': -1.0,
	'😡': -0.9, '💔': -0.9, '😱': -0.8, '😞': -0.7, '😔': -0.6,
	'🤗': 0.7, '🤩': 0.8, '😶': 0.0, '😕': -0.3,
}

var fallbackPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"joy", regexp.MustCompile(`\b(happy|good|great|awesome|love|like|yay|fun)\b`)},
	{"sadness", regexp.MustCompile(`\b(sad|bad|cry|depressed|unhappy|lonely|hurt)\b`)},
	{"anger", regexp.MustCompile(`\b(angry|mad|hate|furious|annoyed)\b`)},
	{"fear", regexp.MustCompile(`\b(scared|afraid|fear|worry|worried|anxious)\b`)},
	{"surprise", regexp.MustCompile(`\b(wow|omg|surprise)\b`)},
}

var (
	funRe  = regexp.MustCompile(`\b(joke|funny|laugh|story|meme|pun)\b`)
	helpRe = regexp.MustCompile(`\b(help|advise|problem|issue|cheated|betray(ed)?|divorce|grief|depress(ed)?|anxious|panic|lonely)\b`)
	askRe  = regexp.MustCompile(`\b(why|how|what|when|where|which|who)\b`)
)
