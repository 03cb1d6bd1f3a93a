/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/masteryctx/internal/usecase/backup"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records and snapshots as an NDJSON backup",
	Long:  "Write every application table to an NDJSON archive, one row per line after a meta line. A .gz suffix implies --gzip.",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		opts := readArchiveOptions("export", "output")
		compress := viper.GetBool("backup.export.gzip")
		switch {
		case opts.path == "":
			opts.path = defaultExportFilename(compress)
		case opts.path != stdioPath && strings.HasSuffix(strings.ToLower(opts.path), ".gz"):
			compress = true
		}

		svc, cleanup, err := newBackupService(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer cleanup()

		out, closeOut, err := createArchive(cmd, opts.path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeOut(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		meta, err := svc.Export(cmd.Context(), out,
			backup.WithTables(opts.tables),
			backup.WithGzip(compress),
			backup.WithProgressReporter(newCLIProgress(cmd.ErrOrStderr(), "export")),
		)
		if err != nil {
			return fmt.Errorf("export backup: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "export finished: %d tables to %s (schema %s)\n",
			len(meta.Tables), describeTarget(opts.path, "stdout"), meta.SchemaHash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "backup file path, - for stdout")
	exportCmd.Flags().Bool("gzip", false, "gzip the output")
	addArchiveFlags(exportCmd, "export", "output")
	bindFlagToViper("backup.export.gzip", exportCmd.Flags().Lookup("gzip"))
}

func defaultExportFilename(compress bool) string {
	name := "masteryctx-backup-" + time.Now().UTC().Format("20060102-150405") + ".jsonl"
	if compress {
		return name + ".gz"
	}
	return name
}
