package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go_request_guard/internal/bootstrap"
	model "go_request_guard/internal/domain/model/guard"

	"github.com/spf13/cobra"
)

var (
	checkHyperswitch bool
	checkBody        string
)

var checkCmd = &cobra.Command{
	Use:   "check [descriptor.json]",
	Short: "Evaluate one request descriptor and print both verdicts",
	Long: `Read a request descriptor (method, path, headers, origin, ip, query) as JSON
from the given file or stdin, run it through the CORS evaluator and the header
validator of the configured policy, and print both results. Stored rules are
loaded from the configured rule store first. The command fails when either
engine rejects the request.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkHyperswitch, "hyperswitch", false, "Validate with the payments header rules")
	checkCmd.Flags().StringVar(&checkBody, "body", "", "Request body used by body_json rule conditions")
}

type checkReport struct {
	Cors    *model.ValidationResult `json:"cors"`
	Headers *model.ValidationResult `json:"headers"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening descriptor: %w", err)
		}
		defer f.Close()
		in = f
	}
	desc, err := readDescriptor(in)
	if err != nil {
		return err
	}
	if checkBody != "" {
		desc.Body = []byte(checkBody)
	}

	guard, cleanup, err := bootstrap.NewGuard(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("building guard: %w", err)
	}
	defer cleanup()

	report := checkReport{Cors: guard.Cors.Evaluate(desc)}
	if checkHyperswitch {
		report.Headers = guard.Headers.ValidateHyperswitchHeaders(desc)
	} else {
		report.Headers = guard.Headers.Evaluate(desc)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)

	if !report.Cors.Allowed {
		return fmt.Errorf("request rejected by cors policy: %s", report.Cors.Reason)
	}
	if !report.Headers.Valid {
		return errors.New("request rejected by header validation")
	}
	return nil
}

// readDescriptor decodes the JSON form and re-derives origin, user-agent and referer from the headers.
func readDescriptor(r io.Reader) (*model.RequestDescriptor, error) {
	var raw model.RequestDescriptor
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding descriptor: %w", err)
	}
	if raw.Method == "" || !strings.HasPrefix(raw.Path, "/") {
		return nil, errors.New("descriptor needs a method and an absolute path")
	}

	desc := model.NewRequestDescriptor(raw.Method, raw.Path, raw.Headers)
	if raw.Origin != "" && desc.Origin == "" {
		desc.Origin = raw.Origin
		desc.Headers["origin"] = raw.Origin
	}
	desc.IP = raw.IP
	desc.Query = raw.Query
	return desc, nil
}
