package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/intake/internal/engine"
)

func newAppointmentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "appointments",
		Short: "List booked appointments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printAppointments(cmd.OutOrStdout(), snap.Appointments)
			return nil
		},
	}
}

func printAppointments(out io.Writer, appts []engine.Appointment) {
	st := newStyles(out)
	if len(appts) == 0 {
		fmt.Fprintln(out, st.header.Render("No appointments"))
		return
	}
	fmt.Fprintln(out, st.header.Render(fmt.Sprintf("%d appointment(s)", len(appts))))

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Date\tTime\tDepartment\tDoctor\tStatus\tID")
	for _, a := range appts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			st.date.Render(a.Date),
			a.Time,
			st.title.Render(a.Department),
			a.Doctor,
			st.active.Render(string(a.Status)),
			st.id.Render(a.ID),
		)
	}
	w.Flush()
}
