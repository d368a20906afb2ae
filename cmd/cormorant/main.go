package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cormorantdb/cormorant/src/app"
	"github.com/cormorantdb/cormorant/src/recovery"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cormorant",
		Short:         "Cormorant storage engine utilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newInitCmd(), newWALDumpCmd())
	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or open the database directory and run crash recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := &app.Entrypoint{}
			if err := e.Init(cmd.Context()); err != nil {
				return err
			}
			defer e.Close()

			if err := e.Recover(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(
				cmd.OutOrStdout(),
				"database ready at %s (new: %t)\n",
				e.Env.DataDir,
				e.FileManager().IsNew(),
			)
			return nil
		},
	}
}

func newWALDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "waldump",
		Short: "Print write-ahead log records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := &app.Entrypoint{}
			if err := e.Init(cmd.Context()); err != nil {
				return err
			}
			defer e.Close()

			iter, err := e.LogManager().Iterator()
			if err != nil {
				return err
			}

			for iter.HasNext() {
				raw, err := iter.Next()
				if err != nil {
					return err
				}

				record, err := recovery.ParseLogRecord(raw)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), record)
			}

			return nil
		},
	}
}
