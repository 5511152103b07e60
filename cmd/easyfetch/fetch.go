package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/always-cache/easyfetch"
	"github.com/always-cache/easyfetch/cache"
	"github.com/always-cache/easyfetch/envelope"
	"github.com/always-cache/easyfetch/request"
)

// openClient creates a client over the configured store. The returned
// func closes both.
func openClient(config Config) (*easyfetch.Client, cache.Store, func(), error) {
	store, err := config.openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := easyfetch.New(config.clientConfig(store))
	if err != nil {
		if c, ok := store.(closer); ok {
			c.Close()
		}
		return nil, nil, nil, err
	}
	return client, store, func() {
		client.Close()
		if c, ok := store.(closer); ok {
			c.Close()
		}
	}, nil
}

func builderFor(client *easyfetch.Client, method, url string) (*easyfetch.RequestBuilder, error) {
	switch request.Method(strings.ToUpper(method)) {
	case request.MethodGet:
		return client.Get(url), nil
	case request.MethodPost:
		return client.Post(url), nil
	case request.MethodPut:
		return client.Put(url), nil
	case request.MethodDelete:
		return client.Delete(url), nil
	case request.MethodHead:
		return client.Head(url), nil
	case request.MethodOptions:
		return client.Options(url), nil
	case request.MethodTrace:
		return client.Trace(url), nil
	case request.MethodPatch:
		return client.Patch(url), nil
	}
	return nil, fmt.Errorf("unsupported method: %s", method)
}

type fetchOptions struct {
	method  string
	policy  string
	headers []string
	data    string
	timeout time.Duration
	include bool
}

type fetchResult struct {
	body string
	res  *envelope.Response
	err  *envelope.Error
}

// fetch executes one request and waits for its delivery.
func fetch(ctx context.Context, client *easyfetch.Client, url string, opts fetchOptions) (fetchResult, error) {
	b, err := builderFor(client, opts.method, url)
	if err != nil {
		return fetchResult{}, err
	}
	policy, err := request.ParsePolicy(opts.policy)
	if err != nil {
		return fetchResult{}, err
	}
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fetchResult{}, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		b.AddHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if opts.data != "" {
		b.SetRequestBodyString(opts.data)
	}
	if opts.timeout > 0 {
		b.SetSocketTimeout(opts.timeout)
	}

	done := make(chan fetchResult, 1)
	d, err := b.SetNetworkPolicy(policy).
		SetContext(ctx).
		SetCallback(request.NewCallback(
			func(body string, res *envelope.Response) { done <- fetchResult{body: body, res: res} },
			func(e *envelope.Error) { done <- fetchResult{err: e} },
		)).
		Execute()
	if err != nil {
		return fetchResult{}, err
	}
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		d.Cancel()
		return fetchResult{}, ctx.Err()
	}
}

func newFetchCommand() *cobra.Command {
	var opts fetchOptions
	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a URL through the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			client, _, closeAll, err := openClient(config)
			if err != nil {
				return err
			}
			defer closeAll()

			r, err := fetch(cmd.Context(), client, args[0], opts)
			if err != nil {
				return err
			}
			if r.err != nil {
				return r.err
			}
			out := cmd.OutOrStdout()
			if opts.include {
				writeHead(out, r.res)
			}
			_, err = io.WriteString(out, r.body)
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringVarP(&opts.policy, "policy", "p", "default", "Network policy: default, no-cache, ignore-read-but-write-cache, offline")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, "Request header, 'Name: value' (repeatable)")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "Raw request body")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Timeout of the first attempt (overrides config)")
	cmd.Flags().BoolVarP(&opts.include, "include", "i", false, "Print status and response headers")
	return cmd
}

func writeHead(w io.Writer, res *envelope.Response) {
	fmt.Fprintf(w, "%d %s\n", res.StatusCode, http.StatusText(res.StatusCode))
	names := make([]string, 0, len(res.Headers))
	for name := range res.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range res.Headers[name] {
			fmt.Fprintf(w, "%s: %s\n", name, value)
		}
	}
	fmt.Fprintln(w)
}
