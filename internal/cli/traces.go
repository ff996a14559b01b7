package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/model"
)

var (
	traceUsername  string
	traceStartDate string
	traceEndDate   string
	traceLengthMin int
	traceLengthMax int
	tracePage      int
	traceLimit     int
	traceSort      []string
	traceOutFile   string
)

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List, inspect, export and delete traces",
}

var tracesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List traces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := action.ParseSortFlag(traceSort)
		if err != nil {
			return err
		}
		c, err := openCommandSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		page, err := c.svc.ListTraces(cmd.Context(), c.sess, action.TraceQuery{
			Page:      action.Page{Page: tracePage, Limit: traceLimit, Sort: sort},
			Username:  traceUsername,
			StartDate: traceStartDate,
			EndDate:   traceEndDate,
			LengthMin: traceLengthMin,
			LengthMax: traceLengthMax,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := render(out, page, traceHeaders, traceRows(page.Results)); err != nil {
			return err
		}
		renderMeta(out, page.Meta)
		return nil
	},
}

var tracesShowCmd = &cobra.Command{
	Use:   "show <trace-id>",
	Short: "Show one trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCommandSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		trace, err := c.svc.GetTrace(cmd.Context(), c.sess, args[0])
		if err != nil {
			return err
		}
		if err := render(cmd.OutOrStdout(), trace, traceHeaders, traceRows([]model.Trace{*trace})); err != nil {
			return err
		}
		if outputFormat == "table" {
			fmt.Fprintln(cmd.OutOrStdout(), metaStyle.Render("JOSM: "+c.svc.JOSMLink(c.sess, args[0])))
		}
		return nil
	},
}

var tracesExportCmd = &cobra.Command{
	Use:   "export <trace-id>",
	Short: "Download a trace as GPX",
	Long:  `Download a trace as GPX to --file, or to stdout when no file is given.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCommandSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if traceOutFile == "" {
			return c.svc.ExportTraceGPX(cmd.Context(), c.sess, args[0], cmd.OutOrStdout())
		}
		f, err := os.Create(traceOutFile)
		if err != nil {
			return fmt.Errorf("create %s: %w", traceOutFile, err)
		}
		if err := c.svc.ExportTraceGPX(cmd.Context(), c.sess, args[0], f); err != nil {
			f.Close()
			_ = os.Remove(traceOutFile)
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		done(cmd.OutOrStdout(), fmt.Sprintf("Trace %s saved to %s", args[0], traceOutFile))
		return nil
	},
}

var tracesDeleteCmd = &cobra.Command{
	Use:   "delete <trace-id>",
	Short: "Delete a trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newCommandApp()
		if err != nil {
			return err
		}
		ok, err := a.confirmDelete(cmd.InOrStdin(), cmd.OutOrStdout(), "trace", args[0])
		if err != nil || !ok {
			a.Close()
			return err
		}
		c, err := a.login(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.svc.DeleteTrace(cmd.Context(), c.sess, args[0]); err != nil {
			return err
		}
		done(cmd.OutOrStdout(), "Trace "+args[0]+" deleted")
		return nil
	},
}

func init() {
	f := tracesListCmd.Flags()
	f.StringVar(&traceUsername, "username", "", "Filter by OSM display name")
	f.StringVar(&traceStartDate, "start-date", "", "Recorded on or after (YYYY-MM-DD)")
	f.StringVar(&traceEndDate, "end-date", "", "Recorded on or before (YYYY-MM-DD)")
	f.IntVar(&traceLengthMin, "length-min", 0, "Minimum length in meters")
	f.IntVar(&traceLengthMax, "length-max", 0, "Maximum length in meters")
	f.IntVar(&tracePage, "page", 0, "Page number")
	f.IntVar(&traceLimit, "limit", 0, "Results per page")
	f.StringSliceVar(&traceSort, "sort", nil, "Sort as field:asc|desc, repeatable")

	tracesExportCmd.Flags().StringVarP(&traceOutFile, "file", "f", "", "Write the GPX to this file")

	tracesCmd.AddCommand(tracesListCmd, tracesShowCmd, tracesExportCmd, tracesDeleteCmd)
	rootCmd.AddCommand(tracesCmd)
}
