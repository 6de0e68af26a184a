package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/phone-assistant/internal/booking"
	"github.com/wolfman30/phone-assistant/internal/voiceai"
)

func newAvailabilityCmd(rt *runtime) *cobra.Command {
	var (
		date     string
		duration int
	)
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "List open slots for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := rt.cfgLocation()
			day, err := time.ParseInLocation("2006-01-02", date, loc)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			if duration <= 0 {
				duration = rt.cfg.DefaultAppointmentDuration
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			scheduler, err := rt.scheduler(ctx)
			if err != nil {
				return err
			}
			slots, err := scheduler.CheckAvailability(ctx, day, duration)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"backend":         scheduler.Name(),
				"date":            date,
				"duration":        duration,
				"available_slots": voiceai.FormatSlots(slots, loc),
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "day to check (YYYY-MM-DD)")
	cmd.Flags().IntVar(&duration, "duration", 0, "appointment length in minutes")
	return cmd
}

func newServicesCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List bookable services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			services, err := rt.services().Services(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), services)
		},
	}
}

func newBookCmd(rt *runtime) *cobra.Command {
	var (
		customer   booking.Customer
		service    string
		start, end string
		notes      string
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(customer.Name) == "" {
				return errors.New("--name is required")
			}
			startTime, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("--start must be RFC3339: %w", err)
			}
			endTime, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("--end must be RFC3339: %w", err)
			}
			appt := booking.Appointment{
				ServiceType: service,
				StartTime:   startTime,
				EndTime:     endTime,
				Notes:       notes,
			}
			if err := appt.Validate(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			scheduler, err := rt.scheduler(ctx)
			if err != nil {
				return err
			}
			id, err := scheduler.BookAppointment(ctx, appt, customer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "booked %s on %s: %s\n", service, scheduler.Name(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&customer.Name, "name", "", "customer name")
	cmd.Flags().StringVar(&customer.Phone, "phone", "", "customer phone number")
	cmd.Flags().StringVar(&customer.Email, "email", "", "customer email address")
	cmd.Flags().StringVar(&service, "service", "Consultation", "service type")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "end time (RFC3339)")
	cmd.Flags().StringVar(&notes, "notes", "", "appointment notes")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newCancelCmd(rt *runtime) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			scheduler, err := rt.scheduler(ctx)
			if err != nil {
				return err
			}
			if err := scheduler.CancelAppointment(ctx, args[0], reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func (r *runtime) cfgLocation() *time.Location {
	r.load()
	return r.cfg.Location()
}
