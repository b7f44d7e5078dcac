package gateway

import "time"

// Config is the gateway connection configuration.
type Config struct {
	// Endpoint is the transaction API URL.
	Endpoint string `env:"GATEWAY_ENDPOINT" envDefault:"https://secure.networkmerchants.com/api/transact.php"`
	// SecurityKey authenticates every request. It is appended server-side
	// and must never be logged or exposed to clients.
	SecurityKey string `env:"GATEWAY_SECURITY_KEY"`
	// TokenizationKey is the public key browsers use to tokenize card data.
	// Exposed to clients; not used by this package directly.
	TokenizationKey string `env:"GATEWAY_TOKENIZATION_KEY"`
	// Timeout bounds each gateway round trip.
	Timeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"30s"`
	// TestMode routes transactions to the gateway's test processor.
	TestMode bool `env:"GATEWAY_TEST_MODE" envDefault:"true"`
}
