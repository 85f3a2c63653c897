package provider

import (
	"fmt"
	"time"

	"github.com/ashare-lab/screener/pkg/config"
	"github.com/ashare-lab/screener/pkg/database"
	"github.com/ashare-lab/screener/pkg/httputil"
	"github.com/ashare-lab/screener/pkg/logger"
)

// Deps carries everything a provider may need. DB is only required for
// the postgres provider.
type Deps struct {
	Config       *config.Config
	DB           *database.DB
	Logger       *logger.Logger
	AsOf         time.Time
	SnapshotAsOf time.Time
}

// Build constructs the named provider.
func Build(name string, deps Deps) (DataProvider, error) {
	switch name {
	case "mock":
		return NewMockProvider(), nil
	case "snapshot":
		return NewSnapshotProvider(deps.Config.Screener.SnapshotDir, deps.AsOf, deps.SnapshotAsOf, deps.Logger), nil
	case "postgres":
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres provider requires a database connection")
		}
		return NewPostgresProvider(deps.DB.Pool), nil
	case "eastmoney":
		client := httputil.New(deps.Logger, deps.Config.Eastmoney.HTTPTimeout).
			WithRetry(deps.Config.Eastmoney.MaxRetries, deps.Config.Eastmoney.RetryDelay).
			WithRateLimit(deps.Config.Eastmoney.RateLimit)
		return NewEastmoneyProvider(deps.Config.Eastmoney.BaseURL, deps.Config.Cache.Dir, client, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
