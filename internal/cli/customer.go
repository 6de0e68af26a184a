package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wolfman30/phone-assistant/internal/crm"
)

func newCustomerCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Look up CRM customers",
	}
	cmd.AddCommand(newCustomerFindCmd(rt))
	cmd.AddCommand(newCustomerGetCmd(rt))
	return cmd
}

func newCustomerFindCmd(rt *runtime) *cobra.Command {
	var phone, email string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find a customer by phone or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if phone == "" && email == "" {
				return errors.New("one of --phone or --email is required")
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			client := rt.crmClient()
			var (
				customer *crm.Customer
				err      error
			)
			if phone != "" {
				customer, err = client.FindCustomerByPhone(ctx, phone)
			} else {
				customer, err = client.FindCustomerByEmail(ctx, email)
			}
			if crm.IsNotFound(err) {
				return errors.New("customer not found")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), customer)
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "customer phone number")
	cmd.Flags().StringVar(&email, "email", "", "customer email address")
	return cmd
}

func newCustomerGetCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a customer and their appointments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			client := rt.crmClient()
			customer, err := client.GetCustomer(ctx, args[0])
			if crm.IsNotFound(err) {
				return fmt.Errorf("customer %s not found", args[0])
			}
			if err != nil {
				return err
			}
			appts, err := client.GetCustomerAppointments(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"customer":     customer,
				"appointments": appts,
			})
		},
	}
}
