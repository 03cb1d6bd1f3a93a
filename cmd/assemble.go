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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/eslsoft/masteryctx/internal/adapter/mapping"
	"github.com/eslsoft/masteryctx/internal/app"
	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
	"github.com/eslsoft/masteryctx/internal/usecase"
)

// assembleCmd prints one student's learning context as JSON.
var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble and print a student's learning context",
	Long: `Assemble a learning context from the configured record source and print it
as JSON. --fixture reads records from a file or directory instead and --demo
uses the built-in demo records; neither persists a snapshot unless --save is
given.

With --focus the flattened topic list is printed instead, narrowed by
--filter (e.g. 'urgency in ["critical","high"] && mastery < 0.5') and
sorted by --order-by (e.g. 'days_until asc').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		studentID, _ := cmd.Flags().GetInt64("student")
		rawAsOf, _ := cmd.Flags().GetString("as-of")
		fixturePath, _ := cmd.Flags().GetString("fixture")
		demo, _ := cmd.Flags().GetBool("demo")
		save, _ := cmd.Flags().GetBool("save")
		focus, _ := cmd.Flags().GetBool("focus")
		filter, _ := cmd.Flags().GetString("filter")
		orderBy, _ := cmd.Flags().GetString("order-by")
		pageSize, _ := cmd.Flags().GetInt32("page-size")

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		if fixturePath != "" || demo {
			cfg.Records.Source = config.RecordSourceFixture
			cfg.Records.Fixture = fixturePath
			cfg.Snapshot.Persist = save
		}

		stores, cleanup, err := app.ProvideStores(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		uc := app.ProvideLearningContextUsecase(cfg, stores.Records, stores.Snapshots, logger)

		if focus {
			query, err := mapping.ToFocusQuery(&mapping.ListFocusTopicsRequest{
				Pagination: &mapping.PaginationRequest{PageSize: pageSize},
				StudentID:  studentID,
				AsOf:       rawAsOf,
				Filter:     filter,
				OrderBy:    orderBy,
			})
			if err != nil {
				return err
			}
			topics, total, err := uc.FocusTopics(cmd.Context(), query)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), topics); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d topics\n", len(topics), total)
			return nil
		}

		asOf, err := mapping.ParseAsOf(rawAsOf)
		if err != nil {
			return err
		}
		snapshot, err := uc.Assemble(cmd.Context(), usecase.AssembleRequest{StudentID: studentID, AsOf: asOf})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), mapping.ToSnapshot(snapshot))
	},
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().Int64("student", 0, "student id")
	assembleCmd.Flags().String("as-of", "", "assembly date YYYY-MM-DD (default: today)")
	assembleCmd.Flags().String("fixture", "", "read records from this fixture file or directory")
	assembleCmd.Flags().Bool("demo", false, "use the built-in demo records")
	assembleCmd.Flags().Bool("save", false, "persist a snapshot when reading fixtures")
	assembleCmd.Flags().Bool("focus", false, "print the flattened focus topic list")
	assembleCmd.Flags().String("filter", "", "focus filter expression")
	assembleCmd.Flags().String("order-by", "", "focus ordering, e.g. 'mastery asc'")
	assembleCmd.Flags().Int32("page-size", 0, "maximum focus topics to print")
	cobra.CheckErr(assembleCmd.MarkFlagRequired("student"))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
