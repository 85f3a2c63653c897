package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/httputil"
	"github.com/ashare-lab/screener/pkg/logger"
)

// EastmoneyProvider pulls live board constituents and daily kline data
// from the Eastmoney endpoints. Responses are cached per ticker and
// as-of date so a rerun on the same day never refetches.
type EastmoneyProvider struct {
	baseURL  string
	cacheDir string
	client   *httputil.Client
	logger   *logger.Logger
}

// NewEastmoneyProvider creates the live provider. The client should
// already carry rate limiting and retry configuration.
func NewEastmoneyProvider(baseURL, cacheDir string, client *httputil.Client, log *logger.Logger) *EastmoneyProvider {
	if baseURL == "" {
		baseURL = "https://push2.eastmoney.com"
	}
	return &EastmoneyProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: cacheDir,
		client:   client,
		logger:   log,
	}
}

func (p *EastmoneyProvider) Name() string { return "eastmoney" }

// boardListResponse is the push2 clist envelope.
type boardListResponse struct {
	Data struct {
		Diff []map[string]json.RawMessage `json:"diff"`
	} `json:"data"`
}

// GetStockUniverse resolves each term as an Eastmoney board and unions
// the constituents. Tickers resolved by multiple terms keep the first
// term as their attribute.
func (p *EastmoneyProvider) GetStockUniverse(ctx context.Context, terms []string) ([]contracts.StockInfo, error) {
	seen := make(map[string]bool)
	var universe []contracts.StockInfo

	for _, term := range terms {
		stocks, err := p.fetchBoardMembers(ctx, term)
		if err != nil {
			p.logger.WithField("board", term).WithError(err).Warn("Board fetch failed, skipping term")
			continue
		}
		for _, s := range stocks {
			if seen[s.Ticker] {
				continue
			}
			seen[s.Ticker] = true
			universe = append(universe, s)
		}
	}

	if len(universe) == 0 {
		return nil, fmt.Errorf("no constituents resolved for %d terms", len(terms))
	}
	return universe, nil
}

// fetchBoardMembers queries the clist endpoint for one board name and
// falls back to scraping the quote center page when the JSON endpoint
// yields nothing.
func (p *EastmoneyProvider) fetchBoardMembers(ctx context.Context, board string) ([]contracts.StockInfo, error) {
	endpoint := fmt.Sprintf(
		"%s/api/qt/clist/get?pn=1&pz=500&fields=f12,f14&fs=b:%s",
		p.baseURL, url.QueryEscape(board),
	)
	resp, err := p.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("board request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read board response: %w", err)
	}

	var parsed boardListResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Data.Diff) > 0 {
		var stocks []contracts.StockInfo
		for _, row := range parsed.Data.Diff {
			ticker := contracts.NormalizeTicker(rawString(row["f12"]))
			if ticker == "" {
				continue
			}
			stocks = append(stocks, contracts.StockInfo{
				Ticker:   ticker,
				Name:     rawString(row["f14"]),
				Industry: board,
				Concept:  board,
			})
		}
		if len(stocks) > 0 {
			return stocks, nil
		}
	}

	return p.scrapeBoardMembers(ctx, board)
}

// scrapeBoardMembers parses the HTML constituents table. Structure: the
// data table rows carry code and name in the second and third cells.
func (p *EastmoneyProvider) scrapeBoardMembers(ctx context.Context, board string) ([]contracts.StockInfo, error) {
	pageURL := fmt.Sprintf("https://quote.eastmoney.com/center/boardlist.html#boards-%s", url.PathEscape(board))
	resp, err := p.client.GetWithHeaders(ctx, pageURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		"Referer":    "https://quote.eastmoney.com/",
	})
	if err != nil {
		return nil, fmt.Errorf("board page request failed: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse board page: %w", err)
	}

	var stocks []contracts.StockInfo
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		ticker := contracts.NormalizeTicker(strings.TrimSpace(cells.Eq(1).Text()))
		if ticker == "" {
			return
		}
		stocks = append(stocks, contracts.StockInfo{
			Ticker:   ticker,
			Name:     strings.TrimSpace(cells.Eq(2).Text()),
			Industry: board,
			Concept:  board,
		})
	})

	if len(stocks) == 0 {
		return nil, fmt.Errorf("board %q has no parseable constituents", board)
	}
	return stocks, nil
}

// klineResponse is the push2his kline envelope. Each kline is a
// comma-separated "date,open,close,high,low,volume,..." string.
type klineResponse struct {
	Data struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// GetPriceHistory fetches daily bars per ticker up to asOf, keeping the
// trailing lookbackDays bars. One failed ticker drops that ticker, not
// the run; downstream history filters handle the gap.
func (p *EastmoneyProvider) GetPriceHistory(
	ctx context.Context,
	stocks []contracts.StockInfo,
	asOf time.Time,
	lookbackDays int,
	_ int64,
) ([]contracts.PriceBar, error) {
	var all []contracts.PriceBar
	for _, stock := range stocks {
		bars, err := p.fetchDailyBars(ctx, stock, asOf, lookbackDays)
		if err != nil {
			p.logger.WithField("ticker", stock.Ticker).WithError(err).Warn("Price fetch failed, dropping ticker")
			continue
		}
		all = append(all, bars...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no price history fetched for %d tickers", len(stocks))
	}
	return all, nil
}

func (p *EastmoneyProvider) fetchDailyBars(
	ctx context.Context,
	stock contracts.StockInfo,
	asOf time.Time,
	lookbackDays int,
) ([]contracts.PriceBar, error) {
	if cached, ok := p.readTickerCache(stock.Ticker, asOf); ok {
		return p.finishBars(cached, stock, asOf, lookbackDays), nil
	}

	// secid prefix: 1 for Shanghai (6xx), 0 otherwise.
	market := "0"
	if strings.HasPrefix(stock.Ticker, "6") {
		market = "1"
	}
	start := asOf.AddDate(0, 0, -lookbackDays*2).Format("20060102")
	endpoint := fmt.Sprintf(
		"%s/api/qt/stock/kline/get?secid=%s.%s&klt=101&fqt=0&beg=%s&end=%s&fields1=f1&fields2=f51,f52,f53,f54,f55,f56",
		p.baseURL, market, stock.Ticker, start, asOf.Format("20060102"),
	)

	resp, err := p.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("kline request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read kline response: %w", err)
	}

	var parsed klineResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode kline response: %w", err)
	}
	if len(parsed.Data.Klines) == 0 {
		return nil, fmt.Errorf("empty kline history")
	}

	bars := make([]contracts.PriceBar, 0, len(parsed.Data.Klines))
	for _, line := range parsed.Data.Klines {
		fields := strings.Split(line, ",")
		if len(fields) < 6 {
			continue
		}
		date, err := time.Parse("2006-01-02", fields[0])
		if err != nil {
			continue
		}
		closePx, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseFloat(fields[5], 64)
		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Ticker: stock.Ticker,
			Close:  closePx,
			Volume: volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no parseable klines")
	}

	p.writeTickerCache(stock.Ticker, asOf, bars)
	return p.finishBars(bars, stock, asOf, lookbackDays), nil
}

// finishBars filters to asOf, keeps the trailing window and stamps the
// stock attributes onto every bar.
func (p *EastmoneyProvider) finishBars(
	bars []contracts.PriceBar,
	stock contracts.StockInfo,
	asOf time.Time,
	lookbackDays int,
) []contracts.PriceBar {
	var kept []contracts.PriceBar
	for _, b := range bars {
		if b.Date.After(asOf) {
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) > lookbackDays {
		kept = kept[len(kept)-lookbackDays:]
	}
	for i := range kept {
		kept[i].Name = stock.Name
		kept[i].Industry = stock.Industry
		kept[i].Concept = stock.Concept
		kept[i].Description = stock.Description
	}
	return kept
}

func (p *EastmoneyProvider) cachePath(ticker string, asOf time.Time) string {
	return filepath.Join(p.cacheDir, "eastmoney", fmt.Sprintf("%s_%s.json", ticker, asOf.Format("2006-01-02")))
}

func (p *EastmoneyProvider) readTickerCache(ticker string, asOf time.Time) ([]contracts.PriceBar, bool) {
	if p.cacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(p.cachePath(ticker, asOf))
	if err != nil {
		return nil, false
	}
	var bars []contracts.PriceBar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, false
	}
	return bars, true
}

func (p *EastmoneyProvider) writeTickerCache(ticker string, asOf time.Time, bars []contracts.PriceBar) {
	if p.cacheDir == "" {
		return
	}
	path := p.cachePath(ticker, asOf)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	data, err := json.Marshal(bars)
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil && p.logger != nil {
		p.logger.WithField("ticker", ticker).WithError(err).Debug("Price cache write failed")
	}
}

func rawString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
