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

	"github.com/spf13/cobra"

	"github.com/eslsoft/masteryctx/internal/usecase/backup"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore records and snapshots from an NDJSON backup",
	Long:  "Restore a backup written by export. Gzip input is detected automatically; rows are upserted by primary key.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := readArchiveOptions("import", "input")
		if opts.path == "" {
			return fmt.Errorf("--input is required, use - for stdin")
		}

		svc, cleanup, err := newBackupService(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer cleanup()

		in, closeIn, err := openArchive(cmd, opts.path)
		if err != nil {
			return err
		}
		defer closeIn()

		meta, err := svc.Import(cmd.Context(), in, backup.WithImportTables(opts.tables))
		if err != nil {
			return fmt.Errorf("import backup: %w", err)
		}
		stderr := cmd.ErrOrStderr()
		for _, table := range meta.Tables {
			fmt.Fprintf(stderr, "import %s: %d rows\n", table, meta.RowCounts[table])
		}
		fmt.Fprintf(stderr, "import finished: backup from %s read from %s\n",
			meta.ExportedAt.Format("2006-01-02 15:04:05"), describeTarget(opts.path, "stdin"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("input", "i", "", "backup file path, - for stdin")
	addArchiveFlags(importCmd, "import", "input")
}
