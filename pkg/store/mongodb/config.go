package mongodb

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// ErrInvalidConfig is wrapped by every configuration error from this package.
var ErrInvalidConfig = errors.New("invalid mongodb configuration")

// Defaults applied by Config when a field is left zero.
const (
	DefaultURL            = "mongodb://localhost:27017"
	DefaultDatabase       = "ycsb"
	DefaultMaxConnections = 10
	DefaultWriteConcern   = "acknowledged"
	DefaultConnectTimeout = 5 * time.Second
)

// Write-acknowledgement levels accepted by ParseWriteConcern.
const (
	WriteConcernAcknowledged = "acknowledged"
	WriteConcernSafe         = "safe"
	WriteConcernNormal       = "normal"
	WriteConcernFsyncSafe    = "fsync_safe"
	WriteConcernReplicasSafe = "replicas_safe"
	WriteConcernMajority     = "majority"
)

// WriteConcernNames lists the accepted write concern names in display order.
var WriteConcernNames = []string{
	WriteConcernAcknowledged,
	WriteConcernSafe,
	WriteConcernNormal,
	WriteConcernFsyncSafe,
	WriteConcernReplicasSafe,
	WriteConcernMajority,
}

// Config holds MongoDB adapter configuration.
type Config struct {
	// URL is a mongodb:// or mongodb+srv:// URI, or a bare host:port.
	URL      string
	Database string
	// MaxConnections caps the driver pool. A maxPoolSize in the URI wins.
	MaxConnections   int
	WriteConcern     string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.URL) == "" {
		c.URL = DefaultURL
	}
	if strings.TrimSpace(c.Database) == "" {
		c.Database = DefaultDatabase
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if strings.TrimSpace(c.WriteConcern) == "" {
		c.WriteConcern = DefaultWriteConcern
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Validate reports every problem in c at once. Zero values are checked after defaults.
func (c Config) Validate() error {
	c = c.withDefaults()
	var errs []error
	if _, err := ResolveURI(c.URL); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseWriteConcern(c.WriteConcern); err != nil {
		errs = append(errs, err)
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("%w: max connections must be positive, got %d", ErrInvalidConfig, c.MaxConnections))
	}
	if c.OperationTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: operation timeout must not be negative", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// ResolveURI returns a connection URI for raw. URIs pass through unchanged;
// host:port is turned into a mongodb:// URI.
func ResolveURI(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "mongodb://") || strings.HasPrefix(raw, "mongodb+srv://") {
		return raw, nil
	}
	host, port, err := net.SplitHostPort(raw)
	if err != nil || host == "" || strings.ContainsAny(host, "/@?") {
		return "", fmt.Errorf("%w: mongodb url %q must be a mongodb:// URI or <host>:<port>", ErrInvalidConfig, raw)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return "", fmt.Errorf("%w: mongodb url %q has an invalid port", ErrInvalidConfig, raw)
	}
	return "mongodb://" + net.JoinHostPort(host, port), nil
}

// RedactURL hides the password of a connection URI for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}

// ParseWriteConcern maps a write-acknowledgement level name (case-insensitive)
// to a driver write concern.
func ParseWriteConcern(name string) (*writeconcern.WriteConcern, error) {
	journal := true
	switch strings.ToLower(strings.TrimSpace(name)) {
	case WriteConcernAcknowledged, WriteConcernSafe:
		return &writeconcern.WriteConcern{W: 1}, nil
	case WriteConcernNormal:
		return &writeconcern.WriteConcern{W: 0}, nil
	case WriteConcernFsyncSafe:
		return &writeconcern.WriteConcern{W: 1, Journal: &journal}, nil
	case WriteConcernReplicasSafe:
		return &writeconcern.WriteConcern{W: 2}, nil
	case WriteConcernMajority:
		return &writeconcern.WriteConcern{W: "majority"}, nil
	default:
		return nil, fmt.Errorf("%w: invalid write concern %q, must be [ %s ]",
			ErrInvalidConfig, name, strings.Join(WriteConcernNames, " | "))
	}
}
