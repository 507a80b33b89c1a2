// internal/validator/yahoo.go
package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-relay/internal/metrics"
	"github.com/YaganovValera/quote-relay/pkg/backoff"
	"github.com/YaganovValera/quote-relay/pkg/logger"
)

var tracer = otel.Tracer("symbol-validator")

// errUnknownSymbol помечает окончательный ответ «символа нет».
var errUnknownSymbol = errors.New("unknown symbol")

// Config — параметры обращения к chart API.
type Config struct {
	BaseURL   string         `mapstructure:"base_url"`   // "https://query1.finance.yahoo.com"
	Timeout   time.Duration  `mapstructure:"timeout"`    // на одну попытку
	UserAgent string         `mapstructure:"user_agent"` //
	Backoff   backoff.Config `mapstructure:"backoff"`    // ретраи сетевых ошибок и 5xx
	Cache     CacheConfig    `mapstructure:"cache"`
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; quote-relay/1.0)"
	}
	if c.Backoff.MaxElapsedTime <= 0 {
		c.Backoff.MaxElapsedTime = 10 * time.Second
	}
}

// chartResponse — нужная часть ответа /v8/finance/chart/{symbol}.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				ShortName string `json:"shortName"`
				LongName  string `json:"longName"`
			} `json:"meta"`
			Timestamp []int64 `json:"timestamp"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Yahoo проверяет символ запросом дневного графика.
type Yahoo struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger
}

// NewYahoo создаёт валидатор. client == nil → http.Client без общего таймаута
// (таймаут задаётся на попытку через контекст).
func NewYahoo(cfg Config, client *http.Client, log *logger.Logger) (*Yahoo, error) {
	cfg.applyDefaults()
	cfg.Backoff.PerAttemptTimeout = cfg.Timeout
	if err := cfg.Backoff.Validate(); err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Yahoo{cfg: cfg, client: client, log: log.Named("validator")}, nil
}

// Validate: символ валиден, если у него есть имя или хотя бы одна цена за день.
func (y *Yahoo) Validate(ctx context.Context, symbol string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Validate", trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	var valid bool
	err := backoff.Execute(ctx, y.cfg.Backoff, y.log, "validate-symbol", func(ctx context.Context) error {
		ok, err := y.lookup(ctx, symbol)
		if err != nil {
			return err
		}
		valid = ok
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errUnknownSymbol):
		valid, err = false, nil
	default:
		span.RecordError(err)
		metrics.Validations.WithLabelValues("error", "yahoo").Inc()
		return false, fmt.Errorf("validator: %s: %w", symbol, err)
	}

	if valid {
		metrics.Validations.WithLabelValues("valid", "yahoo").Inc()
	} else {
		metrics.Validations.WithLabelValues("invalid", "yahoo").Inc()
	}
	y.log.Debug("symbol checked", zap.String("symbol", symbol), zap.Bool("valid", valid))
	return valid, nil
}

// lookup выполняет одну попытку. Окончательные ответы оборачиваются в Permanent.
func (y *Yahoo) lookup(ctx context.Context, symbol string) (bool, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d",
		strings.TrimRight(y.cfg.BaseURL, "/"), url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", y.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, backoff.Permanent(errUnknownSymbol)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return false, fmt.Errorf("upstream status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, backoff.Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	var body chartResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return false, backoff.Permanent(fmt.Errorf("decode chart: %w", err))
	}
	if body.Chart.Error != nil || len(body.Chart.Result) == 0 {
		return false, backoff.Permanent(errUnknownSymbol)
	}
	r := body.Chart.Result[0]
	return r.Meta.ShortName != "" || r.Meta.LongName != "" || len(r.Timestamp) > 0, nil
}
