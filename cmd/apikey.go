package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/repository"
	"github.com/vibast-solutions/ms-go-uptask/app/service"

	"github.com/spf13/cobra"
)

var oldKeyTTLMinutes int

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage the API keys other services use to reach the internal endpoints",
}

var apiKeyGenerateCmd = &cobra.Command{
	Use:   "generate <service_name>",
	Short: "Issue the first API key of a service",
	Args:  cobra.ExactArgs(1),
	RunE: withInternalAuth(func(ctx context.Context, svc service.InternalAuthService, args []string) error {
		key, err := svc.GenerateInternalAPIKey(ctx, args[0])
		if err != nil {
			return describeAPIKeyError(args[0], err)
		}
		printKeyValues("service_name", args[0], "api_key", key)
		return nil
	}),
}

var apiKeyAllowCmd = &cobra.Command{
	Use:   "allow <service_name> <access>",
	Short: "Grant a service access, \"uptask\" for the session endpoints",
	Args:  cobra.ExactArgs(2),
	RunE: withInternalAuth(func(ctx context.Context, svc service.InternalAuthService, args []string) error {
		if err := svc.AddInternalAllowedAccess(ctx, args[0], args[1]); err != nil {
			return describeAPIKeyError(args[0], err)
		}
		fmt.Printf("granted %s to %s\n", args[1], args[0])
		return nil
	}),
}

var apiKeyDeactivateCmd = &cobra.Command{
	Use:   "deactivate <service_name>",
	Short: "Revoke every active key of a service",
	Args:  cobra.ExactArgs(1),
	RunE: withInternalAuth(func(ctx context.Context, svc service.InternalAuthService, args []string) error {
		count, err := svc.DeactivateInternalAPIKeys(ctx, args[0])
		if err != nil {
			return describeAPIKeyError(args[0], err)
		}
		fmt.Printf("revoked %d key(s) of %s\n", count, args[0])
		return nil
	}),
}

var apiKeyRegenerateCmd = &cobra.Command{
	Use:   "regenerate <service_name>",
	Short: "Rotate a service key, keeping the old one valid for a grace period",
	Args:  cobra.ExactArgs(1),
	RunE: withInternalAuth(func(ctx context.Context, svc service.InternalAuthService, args []string) error {
		grace, err := oldKeyTTL()
		if err != nil {
			return err
		}

		key, err := svc.RegenerateInternalAPIKey(ctx, args[0], grace)
		if err != nil {
			return describeAPIKeyError(args[0], err)
		}
		printKeyValues(
			"service_name", args[0],
			"old_key_expires_at", time.Now().Add(grace).Format(time.RFC3339),
			"api_key", key,
		)
		return nil
	}),
}

func init() {
	apiKeyRegenerateCmd.Flags().IntVar(&oldKeyTTLMinutes, "old-key-ttl", 0, "minutes the previous key stays valid (prompted when omitted)")

	apiKeyCmd.AddCommand(apiKeyGenerateCmd, apiKeyAllowCmd, apiKeyDeactivateCmd, apiKeyRegenerateCmd)
	rootCmd.AddCommand(apiKeyCmd)
}

type apiKeyAction func(ctx context.Context, svc service.InternalAuthService, args []string) error

func withInternalAuth(action apiKeyAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		db, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		svc := service.NewInternalAuthService(repository.NewInternalAPIKeyRepository(db))
		return action(cmd.Context(), svc, args)
	}
}

func describeAPIKeyError(serviceName string, err error) error {
	switch {
	case errors.Is(err, service.ErrServiceHasActiveAPIKey):
		return fmt.Errorf("%s already has an active key, use regenerate", serviceName)
	case errors.Is(err, service.ErrServiceHasNoActiveAPIKey):
		return fmt.Errorf("%s has no active key", serviceName)
	case errors.Is(err, service.ErrUnknownAccess):
		return fmt.Errorf("%w, the only grant is %q", err, service.SessionAccess)
	case errors.Is(err, service.ErrInvalidRegenerationTTL):
		return fmt.Errorf("old key grace period must be longer than %s", service.MinKeyRotationGrace)
	}
	return err
}

func oldKeyTTL() (time.Duration, error) {
	minutes := oldKeyTTLMinutes
	if minutes == 0 {
		const defaultMinutes = 60
		fmt.Printf("Expire old key in minutes (>%d) [%d]: ", int(service.MinKeyRotationGrace.Minutes()), defaultMinutes)
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			minutes = defaultMinutes
		} else {
			n, err := strconv.Atoi(input)
			if err != nil {
				return 0, errors.New("invalid number of minutes")
			}
			minutes = n
		}
	}

	ttl := time.Duration(minutes) * time.Minute
	if ttl <= service.MinKeyRotationGrace {
		return 0, fmt.Errorf("grace period must be longer than %s", service.MinKeyRotationGrace)
	}
	return ttl, nil
}

func printKeyValues(pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Printf("%s: %s\n", pairs[i], pairs[i+1])
	}
}
