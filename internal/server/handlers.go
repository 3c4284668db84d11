package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/rs/zerolog/hlog"
)

// scrapeRequest POST /scrape 请求体
type scrapeRequest struct {
	URL       string           `json:"url"`
	Mode      models.CrawlMode `json:"mode"`
	Pages     int              `json:"pages"`
	StartDate string           `json:"startDate"`
	EndDate   string           `json:"endDate"`
}

func (r scrapeRequest) toCrawlRequest() models.CrawlRequest {
	return models.CrawlRequest{
		URL:       r.URL,
		Mode:      r.Mode,
		Pages:     r.Pages,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}
}

// handleScrape 一次性返回完整报告
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("请求体不是有效的JSON: %v", err))
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "URL不能为空")
		return
	}

	done := s.track()
	report, err := s.scraper.Run(r.Context(), body.toCrawlRequest(), nil, false)
	done(err)

	if err != nil {
		if isClientError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("url", body.URL).Msg("爬取失败")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleScrapeStream 以SSE推送进度
// 参数: url, mode, pages(默认1), startDate, endDate
// 客户端断开时请求的context被取消,爬取随之停止
func (s *Server) handleScrapeStream(w http.ResponseWriter, r *http.Request) {
	stream, err := newEventStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q := r.URL.Query()
	req := models.CrawlRequest{
		URL:       q.Get("url"),
		Mode:      models.CrawlMode(q.Get("mode")),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}
	if req.URL == "" {
		stream.Emit(models.NewEvent(models.EventError, "URL不能为空"))
		return
	}
	if p := q.Get("pages"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			stream.Emit(models.NewEvent(models.EventError, "页数必须为整数: "+p))
			return
		}
		req.Pages = n
	}

	done := s.track()
	_, err = s.scraper.Run(r.Context(), req, stream, true)
	done(err)

	if err != nil && r.Context().Err() != nil {
		hlog.FromRequest(r).Info().Msg("客户端已断开SSE连接")
	}
}

// isClientError 输入错误返回400
func isClientError(err error) bool {
	return errors.Is(err, models.ErrInvalidRequest) || errors.Is(err, models.ErrInvalidURL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
