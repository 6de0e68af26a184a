// Package cli implements crmctl, the operator command line for the CRM and
// the configured scheduling backend.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/phone-assistant/internal/app/bootstrap"
	"github.com/wolfman30/phone-assistant/internal/booking"
	appconfig "github.com/wolfman30/phone-assistant/internal/config"
	"github.com/wolfman30/phone-assistant/internal/crm"
	"github.com/wolfman30/phone-assistant/internal/voiceai"
	"github.com/wolfman30/phone-assistant/pkg/logging"
)

// Version is printed by "crmctl version".
var Version = "1.0.0"

const commandTimeout = 30 * time.Second

// runtime holds the clients a command needs, built lazily from config.
type runtime struct {
	cfg    *appconfig.Config
	logger *logging.Logger
	crm    *crm.Client
}

func (r *runtime) load() {
	if r.cfg != nil {
		return
	}
	r.cfg = appconfig.Load()
	r.logger = logging.New(r.cfg.LogLevel)
}

func (r *runtime) crmClient() *crm.Client {
	r.load()
	if r.crm == nil {
		r.crm = crm.New(crm.Config{
			APIKey:  r.cfg.CRMAPIKey,
			BaseURL: r.cfg.CRMBaseURL,
			Timeout: r.cfg.CRMTimeout,
		}, r.logger)
	}
	return r.crm
}

func (r *runtime) scheduler(ctx context.Context) (booking.Adapter, error) {
	r.load()
	return bootstrap.BuildScheduler(ctx, r.cfg, r.crmClient(), r.logger)
}

func (r *runtime) services() voiceai.ServiceSource {
	r.load()
	return bootstrap.BuildServiceSource(r.cfg, r.crmClient())
}

func (r *runtime) close() {
	if r.crm != nil {
		r.crm.Close()
	}
}

// NewRoot builds the crmctl command tree. A .env file in the working
// directory is loaded before the first command runs.
func NewRoot() *cobra.Command {
	rt := &runtime{}
	cmd := &cobra.Command{
		Use:           "crmctl",
		Short:         "Operate the CRM and scheduling backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return appconfig.LoadDotEnv()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close()
		},
	}
	cmd.AddCommand(newCustomerCmd(rt))
	cmd.AddCommand(newAvailabilityCmd(rt))
	cmd.AddCommand(newServicesCmd(rt))
	cmd.AddCommand(newBookCmd(rt))
	cmd.AddCommand(newCancelCmd(rt))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crmctl %s\n", Version)
		},
	}
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), commandTimeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
