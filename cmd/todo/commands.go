package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/app"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"github.com/hiroki-koketsu/go-todo/internal/render"
	"github.com/hiroki-koketsu/go-todo/internal/storage"
	"github.com/spf13/cobra"
)

// todo add
var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

// todo list
var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List todos",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

// todo edit
var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the title, description or completion of a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

// todo toggle
var toggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a todo between active and completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggle,
}

// todo rm
var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Short:   "Delete a todo",
	Aliases: []string{"delete"},
	Args:    cobra.ExactArgs(1),
	RunE:    runRm,
}

// todo clear-completed
var clearCompletedCmd = &cobra.Command{
	Use:   "clear-completed",
	Short: "Delete every completed todo",
	Args:  cobra.NoArgs,
	RunE:  runClearCompleted,
}

// todo mark-all
var markAllCmd = &cobra.Command{
	Use:   "mark-all",
	Short: "Mark every todo completed (or active with --incomplete)",
	Args:  cobra.NoArgs,
	RunE:  runMarkAll,
}

// todo stats
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show total, active and completed counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

// todo export
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole collection as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

// todo import
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the collection with todos from a JSON or YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var (
	addDescription string

	listSearch string
	listSort   string
	listDesc   bool
	listAsc    bool
	listJSON   bool

	editTitle       string
	editDescription string
	editCompleted   bool

	markAllIncomplete bool

	exportFormat string
)

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "optional description")

	listCmd.Flags().StringVarP(&listSearch, "query", "q", "", "case-insensitive search in title and description")
	listCmd.Flags().StringVar(&listSort, "sort", "createdAt", "sort by createdAt, title or completed")
	listCmd.Flags().BoolVar(&listDesc, "desc", false, "sort descending")
	listCmd.Flags().BoolVar(&listAsc, "asc", false, "sort ascending")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
	listCmd.MarkFlagsMutuallyExclusive("asc", "desc")

	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVar(&editDescription, "description", "", "new description")
	editCmd.Flags().BoolVar(&editCompleted, "completed", false, "set completion")

	markAllCmd.Flags().BoolVar(&markAllIncomplete, "incomplete", false, "mark every todo active instead")

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json or yaml)")

	rootCmd.AddCommand(addCmd, listCmd, editCmd, toggleCmd, rmCmd, clearCompletedCmd,
		markAllCmd, statsCmd, exportCmd, importCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		todo, err := a.Store.Add(ctx, model.CreateTodoRequest{Title: args[0], Description: addDescription})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s\n", todo.ID, todo.Title)
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	option, err := model.ParseSortOption(listSort)
	if err != nil {
		return err
	}
	// Without a direction flag, the default sort keeps its own direction
	// (newest first) and any other column sorts ascending.
	direction := model.SortAsc
	if option == model.SortByCreatedAt {
		direction = model.DefaultSortConfig().Direction
	}
	switch {
	case listDesc:
		direction = model.SortDesc
	case listAsc:
		direction = model.SortAsc
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		todos := query.Collect(a.Store.List(ctx), query.Query{
			Search: listSearch,
			Sort:   model.SortConfig{Option: option, Direction: direction},
		})
		out := cmd.OutOrStdout()
		if listJSON {
			return render.Encode(out, render.FormatJSON, todos)
		}
		return render.Table(out, todos, render.ColorEnabled(out))
	})
}

func runEdit(cmd *cobra.Command, args []string) error {
	req := model.UpdateTodoRequest{ID: args[0]}
	flags := cmd.Flags()
	if flags.Changed("title") {
		req.Title = model.StringPtr(editTitle)
	}
	if flags.Changed("description") {
		req.Description = model.StringPtr(editDescription)
	}
	if flags.Changed("completed") {
		req.Completed = model.BoolPtr(editCompleted)
	}
	if req.Title == nil && req.Description == nil && req.Completed == nil {
		return fmt.Errorf("nothing to change: pass --title, --description or --completed")
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		todo, ok, err := a.Store.Update(ctx, req)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrTodoNotFound, req.ID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", todo.ID, todo.Title)
		return nil
	})
}

func runToggle(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		todo, ok := a.Store.ToggleComplete(ctx, args[0])
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrTodoNotFound, args[0])
		}
		state := "active"
		if todo.Completed {
			state = "completed"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", todo.Title, state)
		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if a.Store.Delete(ctx, args[0]) {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "No todo %s\n", args[0])
		}
		return nil
	})
}

func runClearCompleted(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		n := a.Store.DeleteCompleted(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d completed\n", n)
		return nil
	})
}

func runMarkAll(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		n := a.Store.MarkAll(ctx, !markAllIncomplete)
		state := "completed"
		if markAllIncomplete {
			state = "active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d %s\n", n, state)
		return nil
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		return render.Stats(cmd.OutOrStdout(), a.Store.Stats())
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	if format == render.FormatTable {
		return fmt.Errorf("export supports json or yaml")
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		return render.Encode(cmd.OutOrStdout(), format, a.Store.List(ctx))
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	todos, err := render.DecodeTodos(data)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		todos = storage.Normalize(todos, time.Now())
		a.Store.Restore(ctx, todos)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d todos\n", len(todos))
		return nil
	})
}
