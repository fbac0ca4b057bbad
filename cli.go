package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"imagegen-studio/common"
	"imagegen-studio/internal/history"
	"imagegen-studio/internal/studio"
	"imagegen-studio/internal/style"

	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	var styleID, format string

	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate an image and save it to the history",
		Long:  "Generate an image from a description. Without a description a random scene is invented first.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			req := studio.Request{Style: styleID, Format: format}
			if len(args) == 1 {
				req.Description = args[0]
			}

			task, err := a.runner.Start(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for ev := range task.Events() {
				switch ev.Kind {
				case studio.EventDescription:
					fmt.Fprintf(out, "Description: %s\n", ev.Description)
				case studio.EventImage:
					fmt.Fprintf(out, "Generated: %s\n", ev.ImageURL)
				case studio.EventSaved:
					fmt.Fprintf(out, "Saved: %s\n", ev.Path)
				case studio.EventFailed:
					return fmt.Errorf("generation failed: %w", ev.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&styleID, "style", "s", style.DefaultID, "style id")
	cmd.Flags().StringVarP(&format, "format", "f", "png", "output format: png or jpeg")
	return cmd
}

func enhanceCmd() *cobra.Command {
	var styleID string

	cmd := &cobra.Command{
		Use:   "enhance [text]",
		Short: "Enrich a description with visual details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			out, err := a.runner.Enhance(cmd.Context(), text, styleID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&styleID, "style", "s", style.DefaultID, "style id")
	return cmd
}

func translateCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate text to another language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.client.TranslateText(cmd.Context(), args[0], language))
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "to", "t", "en", "target language code")
	return cmd
}

func historyCmd() *cobra.Command {
	var show int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past generations, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			entries := a.store.History()
			if len(entries) == 0 {
				fmt.Fprintln(out, "History is empty")
				return nil
			}

			if cmd.Flags().Changed("show") {
				cursor := history.NewCursor(len(entries))
				entry := entries[cursor.Seek(show)]
				img, err := a.store.LoadImage(entry.ImagePath)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", entry.ImagePath, err)
				}
				b := img.Bounds()
				fmt.Fprintf(out, "#%d %s %dx%d %s\n%s\n", cursor.Index(), entry.Timestamp, b.Dx(), b.Dy(),
					a.store.Dir()+string(os.PathSeparator)+entry.ImagePath, entry.Description)
				return nil
			}

			for i, entry := range entries {
				fmt.Fprintf(out, "%3d  %s  %-5s  %s  %s\n", i, entry.Timestamp, entry.Format, entry.ImagePath, oneLine(entry.Description))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&show, "show", -1, "show a single entry by index (clamped to the history range)")
	return cmd
}

func styleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "style",
		Short: "List styles or set the custom style",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available styles",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := style.NewCatalog(common.FromEnv().CustomStyleFile)
			for _, id := range catalog.IDs() {
				def := catalog.Resolve(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%-15s %s\n", id, oneLine(def.Suffix))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <instructions>",
		Short: "Save the custom style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := style.NewCatalog(common.FromEnv().CustomStyleFile)
			if err := catalog.SaveCustom(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Custom style saved")
			return nil
		},
	})

	return cmd
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) > 80 {
		return string([]rune(s)[:77]) + "..."
	}
	return s
}
