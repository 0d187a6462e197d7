package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Renzios/sharerapy-harness/internal/app"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
)

// entity adapts one façade to the generic list/get/create/update/delete
// commands.
type entity struct {
	name   string
	list   func(ctx context.Context, a *app.App, params query.Params) (interface{}, error)
	get    func(ctx context.Context, a *app.App, id string) (interface{}, error)
	create func(ctx context.Context, a *app.App, data []byte) (interface{}, error)
	update func(ctx context.Context, a *app.App, id string, patch model.JSONMap) (interface{}, error)
	delete func(ctx context.Context, a *app.App, id string) (bool, error)
}

var patients = entity{
	name: "patients",
	list: func(ctx context.Context, a *app.App, params query.Params) (interface{}, error) {
		return a.Patients.ListPatients(ctx, params)
	},
	get: func(ctx context.Context, a *app.App, id string) (interface{}, error) {
		return a.Patients.GetPatient(ctx, id)
	},
	create: func(ctx context.Context, a *app.App, data []byte) (interface{}, error) {
		var p model.Patient
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("invalid patient data: %w", err)
		}
		return a.Patients.CreatePatient(ctx, &p)
	},
	update: func(ctx context.Context, a *app.App, id string, patch model.JSONMap) (interface{}, error) {
		return a.Patients.UpdatePatient(ctx, id, patch)
	},
	delete: func(ctx context.Context, a *app.App, id string) (bool, error) {
		return a.Patients.DeletePatient(ctx, id)
	},
}

var therapists = entity{
	name: "therapists",
	list: func(ctx context.Context, a *app.App, params query.Params) (interface{}, error) {
		return a.Therapists.ListTherapists(ctx, params)
	},
	get: func(ctx context.Context, a *app.App, id string) (interface{}, error) {
		return a.Therapists.GetTherapist(ctx, id)
	},
	create: func(ctx context.Context, a *app.App, data []byte) (interface{}, error) {
		var t model.Therapist
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("invalid therapist data: %w", err)
		}
		return a.Therapists.CreateTherapist(ctx, &t)
	},
	update: func(ctx context.Context, a *app.App, id string, patch model.JSONMap) (interface{}, error) {
		return a.Therapists.UpdateTherapist(ctx, id, patch)
	},
	delete: func(ctx context.Context, a *app.App, id string) (bool, error) {
		return a.Therapists.DeleteTherapist(ctx, id)
	},
}

var reports = entity{
	name: "reports",
	list: func(ctx context.Context, a *app.App, params query.Params) (interface{}, error) {
		return a.Reports.ListReports(ctx, params)
	},
	get: func(ctx context.Context, a *app.App, id string) (interface{}, error) {
		return a.Reports.GetReport(ctx, id)
	},
	create: func(ctx context.Context, a *app.App, data []byte) (interface{}, error) {
		var r model.Report
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("invalid report data: %w", err)
		}
		return a.Reports.CreateReport(ctx, &r)
	},
	update: func(ctx context.Context, a *app.App, id string, patch model.JSONMap) (interface{}, error) {
		return a.Reports.UpdateReport(ctx, id, patch)
	},
	delete: func(ctx context.Context, a *app.App, id string) (bool, error) {
		return a.Reports.DeleteReport(ctx, id)
	},
}

func newEntityCommand(e entity) *cobra.Command {
	cmd := &cobra.Command{
		Use:   e.name,
		Short: fmt.Sprintf("Operations on %s", e.name),
	}
	cmd.AddCommand(
		newListCommand(e),
		newGetCommand(e),
		newCreateCommand(e),
		newUpdateCommand(e),
		newDeleteCommand(e),
	)
	return cmd
}

func newListCommand(e entity) *cobra.Command {
	var (
		search    string
		page      int
		pageSize  int
		ascending bool
		column    string
		filters   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", e.name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := query.Params{
				query.ParamPage:      page,
				query.ParamPageSize:  pageSize,
				query.ParamAscending: ascending,
			}
			if search != "" {
				params[query.ParamSearch] = search
			}
			if column != "" {
				params[query.ParamColumn] = column
			}
			for k, v := range filters {
				params[k] = v
			}
			return run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return e.list(ctx, a, params)
			})
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "case-insensitive text search")
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&pageSize, "page-size", query.DefaultPageSize, "rows per page")
	cmd.Flags().BoolVar(&ascending, "ascending", true, "sort ascending")
	cmd.Flags().StringVar(&column, "column", "", "sort column when the entity allows a choice")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "categorical filters, e.g. --filter country_id=1")
	return cmd
}

func newGetCommand(e entity) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch one record; prints null when it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return e.get(ctx, a, args[0])
			})
		},
	}
}

func newCreateCommand(e entity) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record from a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readData(cmd, data)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return e.create(ctx, a, raw)
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", `JSON record, or "-" to read stdin`)
	return cmd
}

func newUpdateCommand(e entity) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Apply a JSON patch; prints null when the record does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readData(cmd, data)
			if err != nil {
				return err
			}
			var patch model.JSONMap
			if err := json.Unmarshal(raw, &patch); err != nil {
				return fmt.Errorf("invalid patch: %w", err)
			}
			return run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return e.update(ctx, a, args[0], patch)
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", `JSON patch, or "-" to read stdin`)
	return cmd
}

func newDeleteCommand(e entity) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record and print whether it existed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return e.delete(ctx, a, args[0])
			})
		},
	}
}
