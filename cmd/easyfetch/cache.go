package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDropCommand() *cobra.Command {
	var all bool
	var method string
	cmd := &cobra.Command{
		Use:   "drop [URL...]",
		Short: "Drop cached responses for URLs, or everything with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("specify at least one URL, or --all")
			}
			config, err := loadConfig()
			if err != nil {
				return err
			}
			client, _, closeAll, err := openClient(config)
			if err != nil {
				return err
			}
			defer closeAll()

			if all {
				return client.DropAllCache()
			}
			for _, url := range args {
				b, err := builderFor(client, method, url)
				if err != nil {
					return err
				}
				d, err := b.Descriptor()
				if err != nil {
					return fmt.Errorf("%s: %w", url, err)
				}
				if err := client.DropCache(client.CacheKey(d)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Drop all cached responses")
	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method of the cached request")
	return cmd
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys [PREFIX]",
		Short: "List cache keys, optionally only those starting with PREFIX",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			_, store, closeAll, err := openClient(config)
			if err != nil {
				return err
			}
			defer closeAll()

			prefix := config.keyer().NamespacePrefix
			if len(args) == 1 {
				prefix = args[0]
			}
			out := cmd.OutOrStdout()
			// keys may contain newlines, so quote them
			return store.Keys(prefix, func(key string) {
				fmt.Fprintln(out, strconv.Quote(key))
			})
		},
	}
}
