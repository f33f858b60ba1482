package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/summary"
)

var summaryMonth string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show expected, collected and pending rent for a month",
	Long: `Show the rent collection status of one month, read from the local
cache.

Example:
  rentas summary
  rentas summary --month 2025-03`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		month := core.CurrentMonthKey(time.Now())
		if summaryMonth != "" {
			m, err := core.ParseMonthKey(summaryMonth)
			if err != nil {
				return err
			}
			month = m
		}
		l, err := readLedger(cmd.Context())
		if err != nil {
			return err
		}
		printMonthSummary(cmd.OutOrStdout(), summary.CurrentMonth(l, month))
		return nil
	},
}

var revenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "List rent collection for every month with payments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := readLedger(cmd.Context())
		if err != nil {
			return err
		}
		printRevenue(cmd.OutOrStdout(), summary.RevenueHistory(l))
		return nil
	},
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List utility expenses by month with totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := readLedger(cmd.Context())
		if err != nil {
			return err
		}
		printServices(cmd.OutOrStdout(), summary.GroupServices(l), summary.Totals(l))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <cuartos|departamentos> <id>",
	Short: "Show the payment history of one unit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := core.ParseUnitCategory(args[0])
		if err != nil {
			return err
		}
		id, err := strconv.Atoi(args[1])
		if err != nil || id < 1 {
			return fmt.Errorf("%w: %q", core.ErrInvalidUnitID, args[1])
		}
		l, err := readLedger(cmd.Context())
		if err != nil {
			return err
		}
		u, err := l.Unit(cat, id)
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), summary.History(u))
		return nil
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryMonth, "month", "", "month as YYYY-MM (default: current month)")
}

func printMonthSummary(w io.Writer, s summary.MonthSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Mes:\t%s\n", s.DisplayName)
	fmt.Fprintf(tw, "Esperado:\t%s\n", s.Expected.Format())
	fmt.Fprintf(tw, "Cobrado:\t%s\n", s.Collected.Format())
	fmt.Fprintf(tw, "Pendiente:\t%s\n", s.Pending.Format())
	fmt.Fprintf(tw, "Avance:\t%d%%\n", s.Percentage)
	_ = tw.Flush()
}

func printRevenue(w io.Writer, months []summary.MonthSummary) {
	if len(months) == 0 {
		fmt.Fprintln(w, "Sin pagos registrados")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MES\tESPERADO\tCOBRADO\tPENDIENTE\t%\t")
	for _, m := range months {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t\n",
			m.DisplayName, m.Expected.Format(), m.Collected.Format(), m.Pending.Format(), m.Percentage)
	}
	_ = tw.Flush()
}

func printServices(w io.Writer, months []summary.ServiceMonth, totals summary.ServiceTotals) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, m := range months {
		fmt.Fprintf(tw, "%s\t\t%s\n", m.DisplayName, m.Total.Format())
		for _, cat := range core.ServiceCategories() {
			for _, e := range m.ByCategory[cat] {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", cat.Label(), e.Date, e.Cost.Format(), e.Notes)
			}
		}
	}
	fmt.Fprintf(tw, "Agua:\t\t%s\n", totals.Water.Format())
	fmt.Fprintf(tw, "Otros servicios:\t\t%s\n", totals.OtherServices.Format())
	fmt.Fprintf(tw, "Total:\t\t%s\n", totals.Grand.Format())
	_ = tw.Flush()
}

func printHistory(w io.Writer, h summary.UnitHistory) {
	fmt.Fprintf(w, "%s #%d %s: %d pagados, %d pendientes\n",
		h.Category.Label(), h.UnitID, h.OccupantName, h.PaidCount, h.PendingCount)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range h.Entries {
		status := "pendiente"
		amount := ""
		if e.Paid {
			status = "pagado"
		}
		if e.Amount != nil {
			amount = e.Amount.Format()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.DisplayName, status, e.PaidDate, amount, e.Notes)
	}
	_ = tw.Flush()
}
