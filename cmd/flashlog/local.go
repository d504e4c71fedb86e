package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"flashlog/logstore"
	"flashlog/record"
)

// Commands below act on the image directly and must not run against an
// image a server has open.

func newDumpCommand(a *app) *cobra.Command {
	var (
		chunk  int
		decode string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every entry, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if chunk <= 0 {
				return errors.Newf("--chunk must be positive, got %d", chunk)
			}
			img, store, err := a.openStore()
			if img == nil {
				return err
			}
			defer img.Close()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if decode == "" {
				return dumpRaw(store, out, chunk)
			}
			return dumpDecoded(store, out, decode)
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 512, "read buffer size")
	cmd.Flags().StringVar(&decode, "decode", "", "decode entries as text, json or proto and print one JSON record per line")
	return cmd
}

func dumpRaw(store *logstore.Store, out io.Writer, chunk int) error {
	exp := store.NewExport(logstore.Cursor{})
	buf := make([]byte, chunk)
	for {
		n, err := exp.Next(buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := out.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func dumpDecoded(store *logstore.Store, out io.Writer, format string) error {
	f, err := record.ParseFormat(format)
	if err != nil {
		return err
	}
	ser, err := record.For(f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	return store.Walk(func(entry []byte) error {
		rec, err := ser.Decode(entry)
		if err != nil {
			_, werr := fmt.Fprintf(out, "# undecodable entry (%d bytes): %q\n", len(entry), entry)
			return werr
		}
		return enc.Encode(rec)
	})
}

func newEraseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "erase",
		Short: "Erase the whole image and start an empty log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, store, err := a.openStore()
			if img == nil {
				return err
			}
			defer img.Close()
			if err := store.EraseAndReinit(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "erased %s (%d bytes)\n", a.cfg.Flash.Path, img.Size())
			return img.Sync()
		},
	}
}

func newWriteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write <payload>...",
		Short: "Store the arguments, joined by spaces, as one raw entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, store, err := a.openStore()
			if img == nil {
				return err
			}
			defer img.Close()
			if err != nil {
				return err
			}
			if _, err := store.Write([]byte(strings.Join(args, " "))); err != nil {
				return errors.Wrapf(err, "write (errno %d)", logstore.Errno(err))
			}
			return img.Sync()
		},
	}
}

func newLogCommand(a *app) *cobra.Command {
	var level, source string
	cmd := &cobra.Command{
		Use:   "log <message>...",
		Short: "Format a log record and store it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := record.ParseLevel(level)
			if err != nil {
				return err
			}
			img, store, err := a.openStore()
			if img == nil {
				return err
			}
			defer img.Close()
			if err != nil {
				return err
			}
			be, err := a.newBackend(store)
			if err != nil {
				return err
			}
			rec := &record.Record{Level: lvl, Source: source, Message: strings.Join(args, " ")}
			if err := be.Process(rec); err != nil {
				return errors.Wrapf(err, "log (errno %d)", logstore.Errno(err))
			}
			return img.Sync()
		},
	}
	cmd.Flags().StringVar(&level, "level", "info", "record level: err, wrn, inf, dbg, none")
	cmd.Flags().StringVar(&source, "source", "cli", "record source")
	return cmd
}

func newStatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Show ring occupancy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, store, err := a.openStore()
			if img == nil {
				return err
			}
			defer img.Close()
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintf(out, "ready: false (%v)\n", err)
				return nil
			}
			st, _ := store.Stats()
			fmt.Fprintf(out, "image:          %s\n", a.cfg.Flash.Path)
			fmt.Fprintf(out, "ready:          %t\n", store.Ready())
			fmt.Fprintf(out, "sectors:        %d (%d used)\n", st.Sectors, st.UsedSectors)
			fmt.Fprintf(out, "oldest id:      %d\n", st.OldestID)
			fmt.Fprintf(out, "active id:      %d\n", st.ActiveID)
			fmt.Fprintf(out, "active free:    %d bytes\n", st.ActiveFree)
			fmt.Fprintf(out, "max entry size: %d bytes\n", store.MaxEntrySize())
			return nil
		},
	}
}
