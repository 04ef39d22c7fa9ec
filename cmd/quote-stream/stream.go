package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YaganovValera/quote-stream/internal/app"
	"github.com/YaganovValera/quote-stream/internal/config"
)

// streamFlags maps config keys to the flags that override them.
var streamFlags = map[string]string{
	"stream.base_url": "base-url",
	"stream.token":    "token",
	"stream.api_key":  "api-key",
	"stream.symbols":  "symbols",
}

func newStreamCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Open one feed session and print every event to stdout",
		Example: `  quote-stream stream --base-url https://feed.example.com --token $TOKEN --api-key $KEY
  QUOTESTREAM_STREAM_TOKEN=... quote-stream stream --config config.yaml --symbols 2885_NSE,11536_NSE`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(config.WithFlags(cmd.Flags(), streamFlags))
			if err != nil {
				return err
			}
			defer log.Sync()
			return app.Stream(cmd.Context(), cfg, cmd.OutOrStdout(), log.Named("stream"))
		},
	}
	addStreamFlags(cmd.Flags())
	return cmd
}

func addStreamFlags(f *pflag.FlagSet) {
	f.String("base-url", "", "feed base url (http(s)://, ws(s):// or bare host)")
	f.String("token", "", "access token")
	f.String("api-key", "", "api key")
	f.StringSlice("symbols", nil, "comma separated instrument ids")
}
