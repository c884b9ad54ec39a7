package emolog

import (
	"bufio"
	"context"
	"emoai/app/client/nvidia"
	"emoai/app/config"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

type completer interface {
	Complete(ctx context.Context, messages []nvidia.Message, temperature float32, maxTokens int) (string, error)
}

// Service appends turn entries to a flat JSONL log and answers historical
// queries by scanning it back.
type Service struct {
	filePath string
	llm      completer
	mu       sync.Mutex
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(cfg.Data.EmotionLog, do.MustInvoke[*nvidia.Client](di))
}

func NewService(filePath string, llm completer) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &Service{
		filePath: filePath,
		llm:      llm,
	}, nil
}

// Append writes one entry as a single JSON line.
func (s *Service) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open emotion log: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	if _, err = file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}

	return nil
}

// Read scans the whole log, skipping blank and unparseable lines.
func (s *Service) Read() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open emotion log: %w", err)
	}
	defer file.Close()

	entries := make([]Entry, 0)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err = json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Warn("Skipping unparseable log line", "error", err)
			continue
		}

		entries = append(entries, entry)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading emotion log: %w", err)
	}

	return entries, nil
}

// ReadNewestFirst returns the log sorted by timestamp descending.
func (s *Service) ReadNewestFirst() ([]Entry, error) {
	entries, err := s.Read()
	if err != nil {
		return nil, err
	}

	return pie.SortUsing(entries, func(a, b Entry) bool {
		return a.Timestamp > b.Timestamp
	}), nil
}

// TodayStats aggregates today's emotion counts, compares them with
// yesterday's when available, and asks the generation model for a structured
// daily report. Report failures degrade to a placeholder string.
func (s *Service) TodayStats(ctx context.Context, now time.Time) (*DailyStats, error) {
	entries, err := s.Read()
	if err != nil {
		return nil, err
	}

	todayStr := now.Format("2006-01-02")
	yesterdayStr := now.AddDate(0, 0, -1).Format("2006-01-02")

	todayLogs := pie.Filter(entries, func(e Entry) bool {
		return strings.HasPrefix(e.Timestamp, todayStr)
	})
	yesterdayLogs := pie.Filter(entries, func(e Entry) bool {
		return strings.HasPrefix(e.Timestamp, yesterdayStr)
	})

	todayStats := countEmotions(todayLogs)
	yesterdayStats := countEmotions(yesterdayLogs)

	return &DailyStats{
		Date:            todayStr,
		TotalEntries:    len(todayLogs),
		EmotionCounts:   todayStats,
		YesterdayCounts: yesterdayStats,
		AIDailyReport:   s.generateDailyReport(ctx, todayStr, todayStats, yesterdayStats, len(yesterdayLogs) > 0),
	}, nil
}

func (s *Service) generateDailyReport(ctx context.Context, todayStr string, todayStats, yesterdayStats map[string]int, haveYesterday bool) string {
	var compareText string
	if haveYesterday {
		diff := make(map[string]int)
		for k, v := range todayStats {
			diff[k] = v
		}
		for k, v := range yesterdayStats {
			diff[k] -= v
		}

		diffParts := make([]string, 0, len(diff))
		for k, v := range diff {
			diffParts = append(diffParts, fmt.Sprintf("%s %+d", k, v))
		}

		compareText = fmt.Sprintf("Yesterday's emotion counts: %s\nChange summary: %s",
			formatCounts(yesterdayStats), strings.Join(diffParts, ", "))
	} else {
		compareText = "No emotion data is available for yesterday; please analyze today's data only."
	}

	emotionSummary := formatCounts(todayStats)
	if emotionSummary == "" {
		emotionSummary = "no data"
	}

	prompt := fmt.Sprintf(`Today is %s.
Today's emotion counts: %s
%s

Write a structured emotional daily report in the following format:

YYYY/MM/DD
Today's Mood Keywords
<3-5 emotion keywords derived from today's dominant emotions>

Emotion Trend
<describe changes if yesterday's data is available;
if yesterday is missing, acknowledge that and focus on today's emotions>

Emotional Summary
<brief description of today's emotional pattern>

AI Observation
<1-2 sentences interpreting what today's emotions suggest about the user's mindset>

Healing Exercise
<one small, gentle self-care suggestion>

AI's Message
<2-3 sentences written like a kind, human message, no signature>

Tone: warm, natural, and empathetic.
Write in English.
Keep each section under 3 sentences.`, todayStr, emotionSummary, compareText)

	report, err := s.llm.Complete(ctx, []nvidia.Message{
		{Role: "user", Content: prompt},
	}, 0.6, 420)
	if err != nil {
		slog.Warn("Daily report generation failed", "error", err)
		return fmt.Sprintf("[Error generating report: %v]", err)
	}

	return report
}

func countEmotions(entries []Entry) map[string]int {
	stats := make(map[string]int)
	for _, entry := range entries {
		label := entry.Emotion
		if label == "" {
			label = "unknown"
		}
		stats[label]++
	}

	return stats
}

func formatCounts(stats map[string]int) string {
	parts := make([]string, 0, len(stats))
	for k, v := range stats {
		parts = append(parts, fmt.Sprintf("%s: %d", k, v))
	}

	return strings.Join(parts, ", ")
}
