package restservice

import (
	"fmt"
	"net"
	"time"
)

const defaultShutdownTimeout = 10 * time.Second

type Config struct {
	Port uint32
	// EnableMetrics exposes the prometheus collectors at /metrics.
	EnableMetrics bool
	// CorsOrigins are the origins allowed to call the API from a browser,
	// any origin is allowed if it contains "*".
	CorsOrigins []string
}

func (c Config) Validate() error {
	lis, err := net.Listen("tcp", c.address())
	if err != nil {
		return fmt.Errorf("invalid port: %s", err)
	}
	// nolint:all
	defer lis.Close()

	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}
