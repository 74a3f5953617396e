package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Rank report client configuration

[session]
# Rank service endpoint
host = "localhost"
port = 8194
# Service name: "//blp/rankapi-beta" (beta) or "//blp/rankapi" (prod)
service = "//blp/rankapi-beta"
# Maximum number of requests awaiting a response on one session
max_pending_requests = 1
# Deadline from request submission to the terminal response
request_timeout = "60s"
# Connection establishment timeout
dial_timeout = "10s"
# Buffered events between the transport and the dispatcher
inbox_size = 64

[query]
# Security: exactly one of ticker, figi or exchange
ticker = "AAPL US Equity"
# figi = "BBG000B9XRY4"
# exchange = "US"
# Broker: exactly one of broker_acronym or broker_rank
broker_acronym = "BCAP"
# broker_rank = 1
# Date range (YYYY-MM-DD), start must not be after end
start = "2020-01-01"
end = "2020-05-01"
# Grouping: Broker or Security
group_by = "Broker"
# Source: Broker Contributed
source = "Broker Contributed"
# Units: Shares, Local, USD, EUR, GBP
units = "Shares"

[logging]
# Level: debug, info, warn, error
level = "info"
console = true
# Rotating log file
file = false
max_size = 50
max_backups = 5
max_age = 30

[journal]
# Record submitted requests and their outcome (never report contents)
enabled = true

[server]
# Listen address of 'rankreq serve'
listen = "localhost:8194"
services = ["//blp/rankapi-beta", "//blp/rankapi"]
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
