package main

import (
	"bufio"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YaganovValera/quote-stream/internal/app"
	"github.com/YaganovValera/quote-stream/internal/packet"
)

type decodeOutput struct {
	Type     string         `json:"type"`
	Dropped  bool           `json:"dropped,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Inflated bool           `json:"inflated,omitempty"`
	Record   *packet.Record `json:"record,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

func newDecodeCmd(opts *rootOptions) *cobra.Command {
	var (
		encoding string
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "decode [frame...]",
		Short: "Decode hex or base64 frames from arguments or stdin, one JSON object per frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cmd.Flags().Changed("timezone") {
				cfg.Decoder.Timezone = timezone
			}
			dec, err := app.NewDecoder(cfg.Decoder)
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			emit := func(in string) error {
				raw, err := parseFrame(in, encoding)
				if err != nil {
					return err
				}
				return out.Encode(toOutput(dec.DecodeFrame(raw)))
			}

			if len(args) > 0 {
				for _, a := range args {
					if err := emit(a); err != nil {
						return err
					}
				}
				return nil
			}
			return eachLine(cmd.InOrStdin(), emit)
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", "auto", "frame encoding: hex, base64 or auto")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone for timestamp fields (overrides decoder.timezone)")
	return cmd
}

func toOutput(res packet.Result) decodeOutput {
	return decodeOutput{
		Type:     res.Type.String(),
		Dropped:  res.Dropped,
		Reason:   string(res.Reason),
		Inflated: res.Inflated,
		Record:   res.Record,
		Warnings: res.Warnings,
	}
}

// parseFrame accepts hex (spaces allowed) or standard base64. In auto mode
// hex wins when the text is valid hex.
func parseFrame(s, encoding string) ([]byte, error) {
	s = strings.TrimSpace(s)
	compact := strings.ReplaceAll(s, " ", "")
	switch encoding {
	case "hex":
		return hex.DecodeString(compact)
	case "base64":
		return base64.StdEncoding.DecodeString(s)
	case "auto", "":
		if b, err := hex.DecodeString(compact); err == nil {
			return b, nil
		}
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b, nil
		}
		return nil, fmt.Errorf("frame is neither hex nor base64: %.32q", s)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

func eachLine(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
