package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// 保持するログの上限件数（古いものから破棄）
const maxMonitoringEntries = 10000

// RequestLogEntry は単一のHTTPリクエストログを表します。
type RequestLogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// AnalysisLogEntry は1回の分析実行の記録です。
type AnalysisLogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	RunID        string        `json:"runId"`
	AnalysisType string        `json:"analysisType"`
	Status       string        `json:"status"`
	Products     int           `json:"products"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// MonitoringService はAPIリクエストと分析実行のモニタリング機能を提供します。
type MonitoringService struct {
	requests []RequestLogEntry
	analyses []AnalysisLogEntry
	mu       sync.RWMutex
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		requests: make([]RequestLogEntry, 0),
		analyses: make([]AnalysisLogEntry, 0),
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry RequestLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, entry)
	if len(s.requests) > maxMonitoringEntries {
		s.requests = s.requests[len(s.requests)-maxMonitoringEntries:]
	}
}

// LogAnalysis は分析実行を記録します。
func (s *MonitoringService) LogAnalysis(entry AnalysisLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, entry)
	if len(s.analyses) > maxMonitoringEntries {
		s.analyses = s.analyses[len(s.analyses)-maxMonitoringEntries:]
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		entry := RequestLogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		}

		ev := log.Debug()
		if entry.StatusCode >= 500 {
			ev = log.Error()
		}
		ev.Str("method", entry.Method).
			Str("path", path).
			Int("status", entry.StatusCode).
			Dur("latency", entry.ResponseTime).
			Msg("🌐 リクエスト")

		// 管理系・モニタリング・メトリクスは集計対象外
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") || path == "/metrics" {
			return
		}
		s.LogRequest(entry)
	}
}

// AnalysisTypeStats は分析タイプ別の集計です。
type AnalysisTypeStats struct {
	Runs          int   `json:"runs"`
	Failures      int   `json:"failures"`
	AvgDurationMs int64 `json:"avgDurationMs"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]interface{}     `json:"requestsOverTime"`
	Endpoints        map[string]int               `json:"endpoints"`
	StatusCodes      []map[string]interface{}     `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{}     `json:"avgResponseTimes"`
	RecentErrors     []RequestLogEntry            `json:"recentErrors"`
	Analyses         map[string]AnalysisTypeStats `json:"analyses"`
	RecentAnalyses   []AnalysisLogEntry           `json:"recentAnalyses"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	jst, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		jst = time.UTC
	}

	now := time.Now().In(jst)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	requests := make([]RequestLogEntry, 0)
	for _, entry := range s.requests {
		if entry.Timestamp.After(since) {
			requests = append(requests, entry)
		}
	}

	// 1時間ごとのリクエスト数（古い順）
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[string]int, periodHours)
	for i := 0; i < periodHours; i++ {
		t := now.Add(-time.Duration(periodHours-1-i) * time.Hour)
		bucketIndex[t.Truncate(time.Hour).Format(time.RFC3339)] = i
		requestsOverTime[i] = map[string]interface{}{"time": t.Format("15:00"), "requests": 0}
	}

	endpoints := make(map[string]int)
	statusCodes := map[string]int{
		"2xx Success":      0,
		"4xx Client Error": 0,
		"5xx Server Error": 0,
	}
	responseTimeSum := make(map[string]time.Duration)

	for _, entry := range requests {
		if i, ok := bucketIndex[entry.Timestamp.In(jst).Truncate(time.Hour).Format(time.RFC3339)]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}

		endpoints[entry.Path]++
		responseTimeSum[entry.Path] += entry.ResponseTime

		switch {
		case entry.StatusCode >= 500:
			statusCodes["5xx Server Error"]++
		case entry.StatusCode >= 400:
			statusCodes["4xx Client Error"]++
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			statusCodes["2xx Success"]++
		}
	}

	statusNames := make([]string, 0, len(statusCodes))
	for name := range statusCodes {
		statusNames = append(statusNames, name)
	}
	sort.Strings(statusNames)
	statusCodesSlice := make([]map[string]interface{}, 0, len(statusNames))
	for _, name := range statusNames {
		statusCodesSlice = append(statusCodesSlice, map[string]interface{}{"name": name, "value": statusCodes[name]})
	}

	avgResponseTimes := make([]map[string]interface{}, 0, len(responseTimeSum))
	for path, total := range responseTimeSum {
		avg := total.Milliseconds() / int64(endpoints[path])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": path, "responseTime": avg})
	}

	recentErrors := make([]RequestLogEntry, 0)
	for i := len(requests) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if requests[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, requests[i])
		}
	}

	// 分析タイプ別の集計
	analyses := make(map[string]AnalysisTypeStats)
	durationSum := make(map[string]time.Duration)
	recentAnalyses := make([]AnalysisLogEntry, 0)
	for i := len(s.analyses) - 1; i >= 0; i-- {
		entry := s.analyses[i]
		if !entry.Timestamp.After(since) {
			continue
		}
		stats := analyses[entry.AnalysisType]
		stats.Runs++
		if entry.Error != "" {
			stats.Failures++
		}
		durationSum[entry.AnalysisType] += entry.Duration
		stats.AvgDurationMs = durationSum[entry.AnalysisType].Milliseconds() / int64(stats.Runs)
		analyses[entry.AnalysisType] = stats

		if len(recentAnalyses) < 10 {
			recentAnalyses = append(recentAnalyses, entry)
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodesSlice,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
		Analyses:         analyses,
		RecentAnalyses:   recentAnalyses,
	}
}
