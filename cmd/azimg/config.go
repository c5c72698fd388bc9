package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manash/azimg/internal/configstore"
	"github.com/manash/azimg/internal/security"
	"github.com/manash/azimg/pkg/models"
)

var (
	flagEndpoint   string
	flagAPIKey     string
	flagDeployment string
	flagAPIVersion string
)

var errNothingToSet = errors.New("nothing to set: pass at least one of --endpoint, --api-key, --deployment, --api-version")

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the Azure OpenAI configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigShow(app)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change and save configuration fields",
		Long: `Change and save configuration fields.

Only the saved configuration and the fields passed here are written to
storage.json; values taken from AZURE_OPENAI_* environment variables or a
.env file are never saved.`,
		Example: `  azimg config set --endpoint https://my-resource.openai.azure.com --api-key -
  azimg config set --deployment my-gpt-image --api-version 2025-04-01-preview`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigSet(cmd, app)
		},
	}
	setCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "Azure OpenAI resource URL")
	setCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key; '-' reads it from the terminal")
	setCmd.Flags().StringVar(&flagDeployment, "deployment", "", "deployment name")
	setCmd.Flags().StringVar(&flagAPIVersion, "api-version", "", "API version")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigReset(app)
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the saved configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := json.MarshalIndent(configstore.Schema(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, string(data))
			return nil
		},
	}

	cmd.AddCommand(showCmd, setCmd, resetCmd, schemaCmd)
	return cmd
}

func runConfigShow(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	printConfiguration(app, sess.state().Config())
	fmt.Fprintf(app.Out, "Saved in: %s\n", sess.store.Path())
	return nil
}

func runConfigSet(cmd *cobra.Command, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	var patch models.ConfigPatch
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		endpoint := strings.TrimSpace(flagEndpoint)
		if err := security.ValidateEndpoint(endpoint); err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		if !security.IsAzureHost(endpoint) {
			fmt.Fprintf(app.Err, "Warning: %s does not look like an Azure OpenAI endpoint\n", endpoint)
		}
		patch.Endpoint = &endpoint
	}
	if flags.Changed("api-key") {
		key := flagAPIKey
		if key == "-" {
			fmt.Fprint(app.Err, "API key: ")
			data, err := app.ReadPassword()
			fmt.Fprintln(app.Err)
			if err != nil {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			key = strings.TrimSpace(string(data))
		}
		patch.APIKey = &key
	}
	if flags.Changed("deployment") {
		patch.DeploymentName = &flagDeployment
	}
	if flags.Changed("api-version") {
		patch.APIVersion = &flagAPIVersion
	}
	if patch.IsEmpty() {
		return errNothingToSet
	}

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	sess.state().SetConfig(patch)
	cfg := sess.state().Config()
	if !cfg.IsPersistable() {
		fmt.Fprintln(app.Err, "Warning: configuration not saved until an endpoint or API key is set")
	}

	printConfiguration(app, cfg)
	return nil
}

func runConfigReset(app *App) error {
	store, err := configstore.NewFileStore()
	if err != nil {
		return err
	}
	if err := store.Delete(configstore.ConfigKey); err != nil {
		return fmt.Errorf("failed to reset configuration: %w", err)
	}
	fmt.Fprintln(app.Out, "Saved configuration removed")
	return nil
}

func printConfiguration(app *App, cfg models.Configuration) {
	fmt.Fprintf(app.Out, "Endpoint:    %s\n", valueOrUnset(cfg.Endpoint))
	fmt.Fprintf(app.Out, "API key:     %s\n", valueOrUnset(models.MaskKey(cfg.APIKey)))
	fmt.Fprintf(app.Out, "Deployment:  %s\n", valueOrUnset(cfg.DeploymentName))
	fmt.Fprintf(app.Out, "API version: %s\n", valueOrUnset(cfg.APIVersion))
	if cfg.IsComplete() {
		fmt.Fprintln(app.Out, "Status:      ready")
	} else {
		fmt.Fprintf(app.Out, "Status:      %v\n", models.ErrConfigIncomplete)
	}
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
