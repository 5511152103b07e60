// Package responsetransformer adjusts origin response headers before they
// are evaluated for caching, e.g. to give an origin that sends no
// Cache-Control a default freshness lifetime.
package responsetransformer

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type Rules []Rule

// Rule matches requests by method, host, path and query. The first
// matching rule in a Rules list is applied.
type Rule struct {
	Host   string `yaml:"host"`
	Prefix string `yaml:"prefix"`
	Path   string `yaml:"path"`
	// Method defaults to GET.
	Method string `yaml:"method"`
	// Default sets Cache-Control if the origin did not.
	Default string `yaml:"default"`
	// Override replaces any Cache-Control from the origin.
	Override string `yaml:"override"`
	// Query values must match; an empty value only requires presence.
	Query   map[string]string `yaml:"query"`
	Headers map[string]string `yaml:"headers"`
}

// Apply modifies res according to the first matching rule. Only successful
// and 304 responses are touched. Its signature fits
// scheduler.Config.ResponseModifier.
func (r Rules) Apply(res *http.Response) error {
	if !(res.StatusCode >= 200 && res.StatusCode < 300) && res.StatusCode != http.StatusNotModified {
		return nil
	}
	if res.Request == nil {
		return nil
	}
	// if rule found, apply to response
	if rule := r.find(res.Request); rule != nil {
		applyRuleToResponse(*rule, res)
	}
	return nil
}

func applyRuleToResponse(rule Rule, res *http.Response) {
	switch {
	case rule.Override != "":
		log.Trace().Str("cacheControl", rule.Override).Msg("Overriding Cache-Control")
		res.Header.Set("Cache-Control", rule.Override)
	case rule.Default != "" && len(res.Header.Values("Cache-Control")) == 0:
		log.Trace().Str("cacheControl", rule.Default).Msg("Defaulting Cache-Control")
		res.Header.Set("Cache-Control", rule.Default)
	}
	for name, value := range rule.Headers {
		res.Header.Set(name, value)
	}
}

func (r Rules) find(req *http.Request) *Rule {
	for i := range r {
		if r[i].matches(req) {
			log.Trace().Str("method", req.Method).Str("path", req.URL.Path).Int("rule", i).Msg("Matched response rule")
			return &r[i]
		}
	}
	return nil
}

func (rule Rule) matches(req *http.Request) bool {
	method := rule.Method
	if method == "" {
		method = http.MethodGet
	}
	switch {
	case !strings.EqualFold(method, req.Method):
		return false
	case rule.Host != "" && !strings.EqualFold(rule.Host, req.URL.Host):
		return false
	case rule.Path != "" && rule.Path != req.URL.Path:
		return false
	case rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix):
		return false
	}
	if len(rule.Query) == 0 {
		return true
	}
	query := req.URL.Query()
	for name, want := range rule.Query {
		if !query.Has(name) || (want != "" && query.Get(name) != want) {
			return false
		}
	}
	return true
}
