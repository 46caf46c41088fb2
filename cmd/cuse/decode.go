package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edelkas/cuse/pkg/cli"
	"github.com/edelkas/cuse/pkg/wire"
)

var decodeFlags struct {
	mode   string
	format string
}

var decodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "Decode a level query payload",
	Long: `Decode a level query payload saved to FILE, either a raw backend reply
or a full HTTP response as recorded by "cuse captures export".

With --mode the payload is also checked the way the proxy checks backend
replies before serving them.

Examples:
  cuse decode res_12.bin
  cuse decode reply.bin --mode coop --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(decodeFlags.format)
		if err != nil {
			return cli.NewConfigError("format", err.Error())
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return cli.NewCommandError("decode", err)
		}
		raw = payload(raw)

		var collection *wire.LevelCollection
		if decodeFlags.mode != "" {
			mode, err := parseMode(decodeFlags.mode)
			if err != nil {
				return cli.NewConfigError("mode", err.Error())
			}
			collection, err = wire.DecodeCollection(raw, mode)
			if err != nil {
				return cli.NewCommandError("decode", fmt.Errorf("rejected (%s): %w", wire.Reason(err), err))
			}
		} else {
			collection, err = wire.Parse(raw)
			if err != nil {
				return cli.NewCommandError("decode", err)
			}
		}

		out := cmd.OutOrStdout()
		if format == cli.FormatText {
			h := collection.Header
			fmt.Fprintf(out, "Issued: %s  Mode: %s  Page: %d  Category: %d  Levels: %d/%d\n\n",
				h.IssuedAt, h.Mode, h.Page, h.Category, collection.Len(), h.Count)
		}
		var data any = levelTable(collection.Levels)
		if format == cli.FormatJSON {
			data = collection
		}
		return cli.NewFormatter(format).FormatTo(out, data)
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&decodeFlags.mode, "mode", "", "expected mode (solo, coop, race)")
	decodeCmd.Flags().StringVarP(&decodeFlags.format, "format", "f", "text", "output format (text, json, csv)")
}

// payload strips the status line and headers from a recorded HTTP response.
func payload(raw []byte) []byte {
	if !bytes.HasPrefix(raw, []byte("HTTP/")) {
		return raw
	}
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[i+4:]
	}
	return raw
}

func parseMode(s string) (wire.Mode, error) {
	for _, m := range []wire.Mode{wire.ModeSolo, wire.ModeCoop, wire.ModeRace} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return wire.Mode(n), nil
	}
	return 0, fmt.Errorf("unknown mode %q (valid: solo, coop, race)", s)
}

// levelTable renders decoded levels as rows.
type levelTable []wire.LevelRecord

func (t levelTable) Header() []string {
	return []string{"id", "title", "author", "author_id", "++", "date", "objects"}
}

func (t levelTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, l := range t {
		rows = append(rows, []string{
			strconv.Itoa(int(l.ID)),
			l.Title,
			l.Author,
			strconv.Itoa(int(l.AuthorID)),
			strconv.Itoa(int(l.PlusPlusCount)),
			l.Date,
			strconv.Itoa(int(l.ObjectCount)),
		})
	}
	return rows
}
