// Package netroute discovers the container's default gateway, which is the
// Docker host Galaxy runs on.
package netroute

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"hgboot/internal/tactile"

	"go.uber.org/zap"
)

// DefaultRouteFile is the kernel routing table used when netstat is missing.
const DefaultRouteFile = "/proc/net/route"

// ErrNoDefaultRoute is returned when the routing table has no default entry.
var ErrNoDefaultRoute = errors.New("no default route")

// Discoverer reads the routing table.
type Discoverer struct {
	executor  tactile.Executor
	routeFile string
	logger    *zap.Logger
}

// NewDiscoverer creates a Discoverer that runs netstat through executor.
func NewDiscoverer(executor tactile.Executor, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		executor:  executor,
		routeFile: DefaultRouteFile,
		logger:    logger,
	}
}

// WithRouteFile overrides the /proc route table path (tests).
func (d *Discoverer) WithRouteFile(path string) *Discoverer {
	d.routeFile = path
	return d
}

// Gateway returns the IP of the default gateway. `netstat -nr` is consulted
// first; when it cannot run or prints no default route the kernel table is
// parsed directly.
func (d *Discoverer) Gateway(ctx context.Context) (string, error) {
	var netstatErr error
	if d.executor != nil {
		result, err := d.executor.Execute(ctx, tactile.Command{
			Binary:    "netstat",
			Arguments: []string{"-nr"},
		})
		switch {
		case err != nil:
			netstatErr = err
		case result.IsError():
			netstatErr = errors.New(result.Error)
		default:
			ip, err := ParseNetstat(result.Stdout)
			if err == nil {
				d.logger.Debug("host IP determined", zap.String("ip", ip), zap.String("source", "netstat"))
				return ip, nil
			}
			netstatErr = err
		}
		d.logger.Debug("netstat lookup failed, reading route table",
			zap.String("route_file", d.routeFile), zap.Error(netstatErr))
	}

	f, err := os.Open(d.routeFile)
	if err != nil {
		return "", fmt.Errorf("failed to determine gateway (netstat: %v): %w", netstatErr, err)
	}
	defer f.Close()

	ip, err := ParseProcRoute(f)
	if err != nil {
		return "", fmt.Errorf("failed to determine gateway: %w", err)
	}
	d.logger.Debug("host IP determined", zap.String("ip", ip), zap.String("source", d.routeFile))
	return ip, nil
}

// ParseNetstat returns the gateway column of the 0.0.0.0 destination row of
// `netstat -nr` output.
func ParseNetstat(out string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "0.0.0.0" {
			continue
		}
		if net.ParseIP(fields[1]) == nil {
			return "", fmt.Errorf("invalid gateway %q in netstat output", fields[1])
		}
		return fields[1], nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", ErrNoDefaultRoute
}

// ParseProcRoute returns the gateway of the default route from a
// /proc/net/route table. Addresses there are little-endian hex.
func ParseProcRoute(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue // header
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			return "", fmt.Errorf("invalid gateway %q in route table", fields[2])
		}
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, binary.LittleEndian.Uint32(raw))
		return ip.String(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", ErrNoDefaultRoute
}
