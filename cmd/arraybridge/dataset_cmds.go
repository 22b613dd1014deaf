package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/VanDung-dev/arraybridge/dataset"
	"github.com/VanDung-dev/arraybridge/resolve"
	"github.com/VanDung-dev/arraybridge/schema"
)

func treepathArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func (a *app) open(pattern, treepath string) (*dataset.Dataset, error) {
	return dataset.Open(pattern, treepath, a.cfg.DatasetOptions(a.logger, a.metrics)...)
}

func newSchemaCmd(a *app) *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "schema <pattern> [treepath]",
		Short: "Print the inferred schema of a dataset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.open(args[0], treepathArg(args, 1))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if compact {
				fmt.Fprintln(out, schema.Format(ds.Schema))
				return nil
			}
			data, err := json.MarshalIndent(struct {
				Name   string       `json:"name"`
				Doc    string       `json:"doc,omitempty"`
				Schema *schema.List `json:"schema"`
				Arrow  string       `json:"arrow"`
			}{ds.Name, ds.Doc, ds.Schema, schema.ToArrow(ds.Schema).String()}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode schema: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print a one-line summary instead of JSON")
	return cmd
}

func newEntriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <pattern> [treepath]",
		Short: "Print per-partition entry offsets",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.open(args[0], treepathArg(args, 1))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			paths := ds.Backend().Paths()
			for i, path := range paths {
				fmt.Fprintf(out, "%d\t%d\t%d\t%s\n", i, ds.Offsets[i], ds.Offsets[i+1], path)
			}
			fmt.Fprintf(out, "total\t%d\n", ds.NumEntries())
			return nil
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <pattern> <treepath> <partition> [locator...]",
		Short: "Resolve the schema roles for locators in one partition",
		Long: "Resolve every role whose locator is listed, or every role of the schema " +
			"when no locator is given, and print the resulting arrays.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("bad partition %q: %w", args[2], err)
			}
			ds, err := a.open(args[0], args[1])
			if err != nil {
				return err
			}

			roles, err := selectRoles(ds.Roles(), args[3:])
			if err != nil {
				return err
			}

			h, err := ds.Partition(partition)
			if err != nil {
				return err
			}
			defer h.Close()

			arrays, err := h.GetAll(roles)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, role := range roles {
				fmt.Fprintf(out, "%s\t%v\n", role, arrays[role])
			}
			return nil
		},
	}
}

// selectRoles keeps the roles whose locator is in locators, sorted by
// their string form. Every locator must match at least one role.
func selectRoles(all []resolve.Role, locators []string) ([]resolve.Role, error) {
	if len(locators) == 0 {
		return sortRoles(all), nil
	}
	want := make(map[string]bool, len(locators))
	for _, l := range locators {
		want[l] = false
	}
	var roles []resolve.Role
	seen := make(map[resolve.Role]bool)
	for _, r := range all {
		if _, ok := want[r.Locator.String()]; ok && !seen[r] {
			want[r.Locator.String()] = true
			seen[r] = true
			roles = append(roles, r)
		}
	}
	for _, l := range locators {
		if !want[l] {
			return nil, fmt.Errorf("no schema node uses locator %q", l)
		}
	}
	return sortRoles(roles), nil
}

func sortRoles(roles []resolve.Role) []resolve.Role {
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].String() < roles[j].String() })
	return roles
}
