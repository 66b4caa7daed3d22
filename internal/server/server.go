// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polyrank/internal/aggregate"
	"github.com/liamashdown/polyrank/internal/config"
	"github.com/liamashdown/polyrank/internal/engine"
	"github.com/liamashdown/polyrank/internal/ingest"
	"github.com/liamashdown/polyrank/internal/metrics"
	"github.com/liamashdown/polyrank/internal/rank"
	"github.com/liamashdown/polyrank/internal/score"
	"github.com/liamashdown/polyrank/internal/storage"
)

// Server wires HTTP routes to engine operations. The audit store is
// optional; without it the /api/runs endpoint reports 404 and ranking
// passes are simply not recorded.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	store  *storage.DB
	log    *logrus.Logger
	http   *http.Server
}

// New creates a Server
func New(cfg *config.Config, eng *engine.Engine, store *storage.DB, log *logrus.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		store:  store,
		log:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/gainers", s.handleGainers)
	mux.HandleFunc("/api/markets/watch", s.handleWatch)
	mux.HandleFunc("/api/markets/trending", s.handleTrending)
	mux.HandleFunc("/api/markets/search", s.handleSearch)
	mux.HandleFunc("/api/markets/", s.handleMarketBySlug)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
	}

	return s
}

// ListenAndServe blocks serving HTTP until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.http.Addr).Info("HTTP server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// profileView is the wire shape of one ranked wallet. Gains are rounded
// to cents here, at the presentation boundary only.
type profileView struct {
	Wallet              string  `json:"wallet"`
	Handle              string  `json:"handle,omitempty"`
	Profit              float64 `json:"profit"`
	TradeGain           float64 `json:"trade_gain"`
	ActivityGain        float64 `json:"activity_gain"`
	BuyVolume           float64 `json:"buy_volume"`
	SellVolume          float64 `json:"sell_volume"`
	BuyCount            int     `json:"buy_count"`
	SellCount           int     `json:"sell_count"`
	TradeCount          int     `json:"trade_count"`
	ActivityCount       int     `json:"activity_count"`
	UniqueMarkets       int     `json:"unique_markets"`
	FirstSeen           string  `json:"first_seen,omitempty"`
	NewInWindow         bool    `json:"new_in_window"`
	ActivityUnavailable bool    `json:"activity_unavailable,omitempty"`
}

type gainersResponse struct {
	Profiles      []profileView `json:"profiles"`
	TotalMatched  int           `json:"total_matched"`
	Partial       bool          `json:"partial"`
	FailedWallets int           `json:"failed_wallets,omitempty"`
}

func (s *Server) handleGainers(w http.ResponseWriter, r *http.Request) {
	var req rank.Request
	var err error

	switch r.Method {
	case http.MethodGet:
		req, err = gainersRequestFromQuery(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, &rank.ValidationError{Msg: "invalid JSON body: " + err.Error()})
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	result, err := s.engine.RankWallets(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.recordRun(req, result, time.Since(start))

	now := time.Now().UTC()
	window := time.Duration(req.Hours) * time.Hour
	resp := gainersResponse{
		Profiles:      make([]profileView, 0, len(result.Profiles)),
		TotalMatched:  result.TotalMatched,
		Partial:       result.Partial,
		FailedWallets: result.FailedWallets,
	}
	for _, p := range result.Profiles {
		resp.Profiles = append(resp.Profiles, viewFromProfile(p, now, window))
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// gainersRequestFromQuery maps the GET form of the gainers endpoint.
// min_/max_ shortcut parameters expand to the equivalent criteria.
func gainersRequestFromQuery(r *http.Request) (rank.Request, error) {
	q := r.URL.Query()

	req := rank.Request{
		Category:   q.Get("category"),
		SortBy:     rank.SortKey(q.Get("sort_by")),
		Visibility: rank.Visibility(q.Get("visibility")),
	}

	var err error
	if req.Hours, err = intParam(q.Get("hours"), 0); err != nil {
		return req, &rank.ValidationError{Msg: "invalid hours: " + q.Get("hours")}
	}
	if req.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		return req, &rank.ValidationError{Msg: "invalid limit: " + q.Get("limit")}
	}
	if req.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		return req, &rank.ValidationError{Msg: "invalid offset: " + q.Get("offset")}
	}

	shortcuts := []struct {
		param     string
		field     rank.Field
		condition rank.Condition
	}{
		{"min_profit", rank.FieldMoneyGain, rank.ConditionMore},
		{"max_profit", rank.FieldMoneyGain, rank.ConditionLess},
		{"min_spent", rank.FieldMoneySpent, rank.ConditionMore},
		{"min_trades", rank.FieldTradeCount, rank.ConditionMore},
		{"max_trades", rank.FieldTradeCount, rank.ConditionLess},
		{"max_age_days", rank.FieldAccountAgeDays, rank.ConditionLess},
	}
	for _, sc := range shortcuts {
		raw := q.Get(sc.param)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, &rank.ValidationError{Msg: fmt.Sprintf("invalid %s: %s", sc.param, raw)}
		}
		req.Criteria = append(req.Criteria, rank.Criterion{
			Field:     sc.field,
			Condition: sc.condition,
			Threshold: value,
		})
	}

	return req, nil
}

type marketsResponse struct {
	Markets []marketView `json:"markets"`
}

type marketView struct {
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Category     string   `json:"category,omitempty"`
	Score        int      `json:"score"`
	Reasons      []string `json:"reasons"`
	YesPrice     float64  `json:"yes_price"`
	NoPrice      float64  `json:"no_price"`
	Volume24h    float64  `json:"volume_24h"`
	Volume1wk    float64  `json:"volume_1wk"`
	Volume1mo    float64  `json:"volume_1mo"`
	Liquidity    float64  `json:"liquidity"`
	CreatedAt    string   `json:"created_at,omitempty"`
	CommentCount int      `json:"comment_count"`
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := engine.WatchOptions{}
	var err error
	if opts.Limit, err = intParam(q.Get("limit"), 20); err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid limit: " + q.Get("limit")})
		return
	}
	if opts.MinScore, err = intParam(q.Get("min_score"), 0); err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid min_score: " + q.Get("min_score")})
		return
	}
	if opts.CreatedDays, err = intParam(q.Get("created_days"), 0); err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid created_days: " + q.Get("created_days")})
		return
	}
	if opts.MinVolume, err = floatParam(q.Get("min_volume")); err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid min_volume: " + q.Get("min_volume")})
		return
	}
	if opts.MinLiquidity, err = floatParam(q.Get("min_liquidity")); err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid min_liquidity: " + q.Get("min_liquidity")})
		return
	}

	scored, err := s.engine.ScoreMarkets(r.Context(), q.Get("category"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.recordScores(scored)
	s.writeJSON(w, http.StatusOK, marketsResponse{Markets: viewsFromScored(scored)})
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid limit: " + q.Get("limit")})
		return
	}
	minVolume, err := floatParam(q.Get("min_volume"))
	if err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid min_volume: " + q.Get("min_volume")})
		return
	}

	scored, err := s.engine.TrendingMarkets(r.Context(), q.Get("period"), limit, minVolume)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, marketsResponse{Markets: viewsFromScored(scored)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid limit: " + q.Get("limit")})
		return
	}

	scored, err := s.engine.SearchMarkets(r.Context(), q.Get("q"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, marketsResponse{Markets: viewsFromScored(scored)})
}

func (s *Server) handleMarketBySlug(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, "/api/markets/")
	if slug == "" || strings.Contains(slug, "/") {
		http.NotFound(w, r)
		return
	}

	detail, err := s.engine.MarketBySlug(r.Context(), slug)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view := struct {
		marketView
		Description string           `json:"description,omitempty"`
		Outcomes    []engine.Outcome `json:"outcomes"`
	}{
		marketView:  viewFromScored(detail.ScoredMarket),
		Description: detail.Description,
		Outcomes:    detail.Outcomes,
	}

	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.NotFound(w, r)
		return
	}

	limit, err := intParam(r.URL.Query().Get("limit"), 20)
	if err != nil {
		s.writeError(w, &rank.ValidationError{Msg: "invalid limit"})
		return
	}

	runs, err := s.store.RecentRankingRuns(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to read ranking runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RecordHealthCheck(true)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordRun persists one ranking pass to the audit store, off the request
// path so a slow database never delays the response.
func (s *Server) recordRun(req rank.Request, result *engine.RankResult, duration time.Duration) {
	if s.store == nil {
		return
	}

	criteriaJSON, _ := json.Marshal(req.Criteria)
	run := &storage.RankingRun{
		Category:      req.Category,
		WindowHours:   req.Hours,
		SortBy:        string(req.SortBy),
		CriteriaJSON:  string(criteriaJSON),
		WalletCount:   len(result.Profiles),
		MatchedCount:  result.TotalMatched,
		FailedWallets: result.FailedWallets,
		Partial:       result.Partial,
		DurationMS:    duration.Milliseconds(),
	}
	if len(result.Profiles) > 0 {
		run.TopWallet = result.Profiles[0].Wallet
		run.TopGainUSD = roundCents(result.Profiles[0].RealizedGain)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.InsertRankingRun(ctx, run); err != nil {
			s.log.WithError(err).Warn("Failed to record ranking run")
		}
	}()
}

func (s *Server) recordScores(scored []score.ScoredMarket) {
	if s.store == nil || len(scored) == 0 {
		return
	}

	rows := make([]storage.MarketScore, 0, len(scored))
	for _, m := range scored {
		reasonsJSON, _ := json.Marshal(m.Reasons)
		rows = append(rows, storage.MarketScore{
			MarketSlug:   m.Slug,
			MarketTitle:  m.Title,
			Category:     m.Category,
			Score:        m.Score,
			ReasonsJSON:  string(reasonsJSON),
			Volume24hUSD: m.Volume24h,
			LiquidityUSD: m.Liquidity,
			YesPricePct:  m.YesPrice,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.InsertMarketScores(ctx, rows); err != nil {
			s.log.WithError(err).Warn("Failed to record market scores")
		}
	}()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *rank.ValidationError

	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Msg})
	case errors.Is(err, engine.ErrMarketNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ingest.ErrUpstreamUnavailable):
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		s.writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "request deadline exceeded"})
	default:
		s.log.WithError(err).Error("Request failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("Failed to encode response")
	}
}

func viewFromProfile(p aggregate.Profile, now time.Time, window time.Duration) profileView {
	v := profileView{
		Wallet:              p.Wallet,
		Handle:              p.Handle,
		Profit:              roundCents(p.RealizedGain),
		TradeGain:           roundCents(p.TradeGain),
		ActivityGain:        roundCents(p.ActivityGain),
		BuyVolume:           roundCents(p.BuyVolume),
		SellVolume:          roundCents(p.SellVolume),
		BuyCount:            p.BuyCount,
		SellCount:           p.SellCount,
		TradeCount:          p.TradeCount,
		ActivityCount:       p.ActivityCount,
		UniqueMarkets:       p.UniqueMarkets,
		NewInWindow:         p.NewInWindow(now, window),
		ActivityUnavailable: p.ActivityUnavailable,
	}
	if !p.FirstSeen.IsZero() {
		v.FirstSeen = p.FirstSeen.UTC().Format(time.RFC3339)
	}
	return v
}

func viewsFromScored(scored []score.ScoredMarket) []marketView {
	out := make([]marketView, 0, len(scored))
	for _, m := range scored {
		out = append(out, viewFromScored(m))
	}
	return out
}

func viewFromScored(m score.ScoredMarket) marketView {
	v := marketView{
		Slug:         m.Slug,
		Title:        m.Title,
		Category:     m.Category,
		Score:        m.Score,
		Reasons:      m.Reasons,
		YesPrice:     m.YesPrice,
		NoPrice:      m.NoPrice,
		Volume24h:    m.Volume24h,
		Volume1wk:    m.Volume1wk,
		Volume1mo:    m.Volume1mo,
		Liquidity:    m.Liquidity,
		CommentCount: m.CommentCount,
	}
	if v.Reasons == nil {
		v.Reasons = []string{}
	}
	if !m.CreatedAt.IsZero() {
		v.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func roundCents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func floatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
