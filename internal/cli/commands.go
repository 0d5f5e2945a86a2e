package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todolist"
	"github.com/Makepad-fr/tada/internal/ui"
)

func (a *app) lsCmd() *cobra.Command {
	var group, asJSON bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List items",
		Long: `List every item with its 1-based index, as used by done, rm and edit.

With --group, pending items are listed before done ones. With --json the
list is printed as stored.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withController(cmd.Context(), func(c *todolist.Controller) error {
				todos := c.Todos()
				if asJSON {
					b, err := json.MarshalIndent(todos, "", "  ")
					if err != nil {
						return fmt.Errorf("json marshal: %w", err)
					}
					fmt.Fprintln(a.streams.Out, string(b))
					return nil
				}
				fmt.Fprintln(a.streams.Out, ui.RenderList(a.theme, todos, group, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "group output by pending/done")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add <text...>",
		Short:   "Add a new item (text can be multiple words)",
		Example: `  tada add "Buy milk"
  tada add call the plumber`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return usagef("add: empty text")
			}
			return a.withController(cmd.Context(), func(c *todolist.Controller) error {
				it, _ := c.Add(text)
				a.logger.Debug("added", "id", it.ID)
				a.ok("added " + strconv.Quote(it.Text))
				return nil
			})
		},
	}
}

func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <index>",
		Short: "Toggle done for the item at a 1-based index",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.Context(), func(c *todolist.Controller) error {
				it, err := a.itemAt(c.Todos(), args[0])
				if err != nil {
					return err
				}
				c.Toggle(it.ID)
				if it.Done {
					a.ok("marked pending")
				} else {
					a.ok("marked done")
				}
				return nil
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the item at a 1-based index",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.Context(), func(c *todolist.Controller) error {
				it, err := a.itemAt(c.Todos(), args[0])
				if err != nil {
					return err
				}
				c.Remove(it.ID)
				a.ok("removed")
				return nil
			})
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <index> <text...>",
		Short: "Replace the text of the item at a 1-based index",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				return usagef("edit: empty text")
			}
			return a.withController(cmd.Context(), func(c *todolist.Controller) error {
				it, err := a.itemAt(c.Todos(), args[0])
				if err != nil {
					return err
				}
				it.Text = text
				c.Update(it)
				a.ok("updated")
				return nil
			})
		},
	}
}

// itemAt resolves a 1-based index argument against todos.
func (a *app) itemAt(todos model.List, arg string) (model.Item, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return model.Item{}, usagef("not a number: %s", arg)
	}
	if n < 1 || n > len(todos) {
		return model.Item{}, usagef("index out of range: have %d, got %d (run \"tada ls\" to see valid indexes)", len(todos), n)
	}
	return todos[n-1], nil
}
