package easyfetch

import (
	"github.com/always-cache/easyfetch/pkg/metrics"
	"github.com/always-cache/easyfetch/request"
)

// Target is where a routed request is executed.
type Target int

const (
	TargetNetwork Target = iota
	TargetCacheOnly
)

func (t Target) String() string {
	if t == TargetCacheOnly {
		return "cache-only"
	}
	return "network"
}

// Path is the routing decision for one descriptor.
type Path struct {
	Target Target
	// ShouldCache tells the scheduler whether to store the network result.
	ShouldCache bool
}

var PathCacheOnly = Path{Target: TargetCacheOnly}

// Route decides where d goes. Offline requests never reach the network;
// everything else goes to the scheduler, storing results unless the
// policy is NoCache.
func Route(d *request.Descriptor) Path {
	if d.Policy == request.PolicyOffline {
		return PathCacheOnly
	}
	return Path{
		Target:      TargetNetwork,
		ShouldCache: d.Policy != request.PolicyNoCache,
	}
}

// submit assigns the sequence number and hands d to exactly one path.
// Request interceptors run only on the network path, after routing; the
// routed policy is kept even if an interceptor changes it. The returned
// descriptor is the one that was submitted.
func (c *Client) submit(d *request.Descriptor) *request.Descriptor {
	d.Sequence = c.sequence.Add(1)
	path := Route(d)
	metrics.RecordRequest(path.Target.String(), d.Policy.String())
	c.log.Trace().
		Str("id", d.ID).
		Uint64("seq", d.Sequence).
		Str("method", string(d.Method)).
		Str("url", d.URL).
		Str("path", path.Target.String()).
		Msg("Routing request")

	switch path.Target {
	case TargetCacheOnly:
		c.cacheOnly.Add(d)
	default:
		policy := d.Policy
		d = c.registry.InterceptRequest(d)
		if d.Policy != policy {
			c.log.Warn().Str("id", d.ID).Msg("Request interceptor changed the network policy; ignoring")
			d.Policy = policy
		}
		c.scheduler.Submit(d, path.ShouldCache, c.dispatcher)
	}
	return d
}
