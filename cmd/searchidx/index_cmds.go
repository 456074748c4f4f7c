package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	searchidx "github.com/kailas-cloud/searchidx/pkg/sdk"
)

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists",
		Short: "Report whether the index exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ok, err := c.Exists(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
			return err
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the index definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			def, err := c.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), def)
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		file   string
		update bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the index from a JSON or YAML definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := readDefinition(file)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if update {
				err = c.CreateOrUpdate(cmd.Context(), def)
			} else {
				err = c.Create(cmd.Context(), def)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "index %s ready\n", c.Index())
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "definition file (.json, .yaml or .yml)")
	cmd.Flags().BoolVar(&update, "update", false, "create or replace the definition")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			deleted, err := c.Delete(cmd.Context())
			if err != nil {
				return err
			}
			if !deleted {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "index %s did not exist\n", c.Index())
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "index %s deleted\n", c.Index())
			return err
		},
	}
}

// readDefinition loads a definition file. YAML is converted to the JSON wire form.
func readDefinition(path string) (searchidx.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return searchidx.Definition{}, fmt.Errorf("read definition: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return searchidx.Definition{}, fmt.Errorf("parse definition yaml: %w", err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return searchidx.Definition{}, fmt.Errorf("convert definition yaml: %w", err)
		}
	}
	var def searchidx.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return searchidx.Definition{}, fmt.Errorf("parse definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return searchidx.Definition{}, err
	}
	return def, nil
}
