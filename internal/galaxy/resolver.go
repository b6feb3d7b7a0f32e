package galaxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// HostPlaceholder is replaced with the gateway IP in the Galaxy URL template.
const HostPlaceholder = "DOCKER_HOST"

var (
	// ErrUnreachable means neither the configured nor the rebuilt URL answered.
	ErrUnreachable = errors.New("could not connect to a Galaxy instance. Please contact your administrator for help with this error")

	// ErrNoPort means the fallback URL cannot be built without GALAXY_WEB_PORT.
	ErrNoPort = errors.New("no Galaxy web port configured")
)

// GatewayFinder reports the Docker host address.
type GatewayFinder interface {
	Gateway(ctx context.Context) (string, error)
}

// ConnectOptions describes the Galaxy the container was launched from.
type ConnectOptions struct {
	URLTemplate string
	WebPort     string
	APIKey      string
	HistoryID   string
}

// Resolver finds a Galaxy URL that answers API calls from inside the
// container.
type Resolver struct {
	gateway    GatewayFinder
	httpClient *http.Client
	logger     *zap.Logger
}

// NewResolver creates a resolver. httpClient may be nil.
func NewResolver(gateway GatewayFinder, httpClient *http.Client, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		gateway:    gateway,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Connect tries the configured URL with the gateway substituted, then a URL
// rebuilt from the gateway, GALAXY_WEB_PORT and the template's path. Each
// candidate is validated by fetching the history.
func (r *Resolver) Connect(ctx context.Context, opts ConnectOptions) (*Client, error) {
	ip, gwErr := r.gateway.Gateway(ctx)
	if gwErr != nil {
		r.logger.Warn("could not determine host IP", zap.Error(gwErr))
	} else {
		r.logger.Debug("host IP determined", zap.String("ip", ip))
	}

	primary := SubstituteHost(opts.URLTemplate, ip)
	client, err := r.try(ctx, primary, opts)
	if err == nil {
		return client, nil
	}

	if gwErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, gwErr)
	}

	fallback, err := FallbackURL(opts.URLTemplate, ip, opts.WebPort)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	client, err = r.try(ctx, fallback, opts)
	if err == nil {
		return client, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
}

func (r *Resolver) try(ctx context.Context, baseURL string, opts ConnectOptions) (*Client, error) {
	r.logger.Debug("testing url", zap.String("url", baseURL))
	client := NewClient(baseURL, opts.APIKey, r.httpClient)
	if _, err := client.History(ctx, opts.HistoryID); err != nil {
		r.logger.Debug("url test failed", zap.String("url", baseURL), zap.Error(err))
		return nil, err
	}
	r.logger.Info("connected to galaxy", zap.String("url", client.BaseURL()))
	return client, nil
}

// SubstituteHost replaces $DOCKER_HOST and ${DOCKER_HOST} with ip.
func SubstituteHost(template, ip string) string {
	s := strings.ReplaceAll(template, "${"+HostPlaceholder+"}", ip)
	return strings.ReplaceAll(s, "$"+HostPlaceholder, ip)
}

// FallbackURL rebuilds http://<ip>:<port>/<path> from the template. The
// path is what remains after trimming trailing slashes and dropping the
// first three "/"-separated segments (scheme, empty, host:port); the
// remaining segments are concatenated as-is.
func FallbackURL(template, ip, port string) (string, error) {
	if port == "" {
		return "", ErrNoPort
	}

	appPath := ""
	if parts := strings.Split(strings.TrimRight(template, "/"), "/"); len(parts) > 3 {
		appPath = strings.Join(parts[3:], "")
	}

	built := fmt.Sprintf("http://%s:%s/%s", ip, port, strings.TrimSpace(appPath))
	return strings.TrimRight(built, "/"), nil
}
