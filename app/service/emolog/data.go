package emolog

// Entry is one logged turn. Entries are append-only: once written, a line is
// never updated or deleted, and the log file is the source of truth for
// historical queries.
type Entry struct {
	Timestamp string  `json:"timestamp"`
	UserInput string  `json:"user_input"`
	Emotion   string  `json:"emotion"`
	Valence   float64 `json:"valence"`
	Trend     string  `json:"trend"`
	AgentUsed string  `json:"agent_used"`
	AIReply   string  `json:"ai_reply"`
}

// DailyStats is the aggregate served by the stats endpoint.
type DailyStats struct {
	Date            string         `json:"date"`
	TotalEntries    int            `json:"total_entries"`
	EmotionCounts   map[string]int `json:"emotion_counts"`
	YesterdayCounts map[string]int `json:"yesterday_counts"`
	AIDailyReport   string         `json:"ai_daily_report"`
}
