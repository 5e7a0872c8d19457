package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/mhpenta/storygen/story"
)

func (a *app) providerCommand() *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Print the provider the configuration resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !details {
				fmt.Fprintln(cmd.OutOrStdout(), a.service.Provider())
				return nil
			}

			info := a.service.Info()
			table := uitable.New()
			table.RightAlign(0)
			table.MaxColWidth = 80
			table.Separator = " "
			table.AddRow("provider:", info.Provider)
			table.AddRow("configured:", a.cfg.Provider)
			table.AddRow("namespace:", info.Namespace)
			if info.TextModel != "" {
				table.AddRow("textModel:", info.TextModel)
			}
			if info.ImageModel != "" {
				table.AddRow("imageModel:", info.ImageModel)
			}
			table.AddRow("nativeChat:", info.Capabilities.NativeChat)
			table.AddRow("timeout:", a.cfg.Timeout)
			table.AddRow("maxRetries:", a.cfg.MaxRetries)
			table.AddRow("replayChars:", a.cfg.ChatReplayChars)
			table.AddRow("progressPath:", a.cfg.ProgressPath)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "print models, limits and paths")
	return cmd
}

func (a *app) textCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "text <prompt>",
		Short: "Generate free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.service.GenerateText(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}

func (a *app) imageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate an image and print its URL or data URI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, ok := a.service.GenerateImage(cmd.Context(), strings.Join(args, " "))
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no image")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}

func (a *app) quizCommand() *cobra.Command {
	var (
		level    string
		module   string
		age      int
		industry string
		answer   int
	)

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate a decision for a module, optionally answering it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openProgress(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.Load(ctx)
			if err != nil {
				return err
			}

			profile, created := snap.EnsureProfile(story.Profile{Age: age, Industry: industry})
			if created {
				if err := st.Save(ctx, snap); err != nil {
					return err
				}
			}

			n := a.narrator()
			quiz := n.ModuleQuiz(ctx, story.QuizRequest{
				LevelName:        level,
				ModuleName:       module,
				Profile:          profile,
				NarrativeContext: snap.NarrativeContext,
			})
			if err := writeJSON(cmd.OutOrStdout(), quiz); err != nil {
				return err
			}

			if answer < 0 {
				return nil
			}
			if answer >= len(quiz.Options) {
				return fmt.Errorf("answer %d out of range [0,%d)", answer, len(quiz.Options))
			}

			rec := story.Record{
				ModuleID:      module,
				Quiz:          quiz,
				SelectedIndex: answer,
				Timestamp:     time.Now().UnixMilli(),
				Optimal:       answer == quiz.CorrectIndex,
			}
			snap.Record(rec)
			snap.NarrativeContext = n.UpdateNarrative(ctx, story.NarrativeUpdate{
				Context:  snap.NarrativeContext,
				Scenario: quiz.Setup,
				Choice:   rec.Choice(),
				Outcome:  quiz.Outcomes[answer],
				Optimal:  rec.Optimal,
			})
			if err := st.Save(ctx, snap); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), quiz.Outcomes[answer])
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "Level 1", "level name")
	cmd.Flags().StringVar(&module, "module", "", "module name")
	cmd.Flags().IntVar(&age, "age", 30, "player age, used when no profile is saved")
	cmd.Flags().StringVar(&industry, "industry", "", "player occupation, used when no profile is saved")
	cmd.Flags().IntVar(&answer, "answer", -1, "record this option index and update the story")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}

func (a *app) chatCommand() *cobra.Command {
	var (
		nickname string
		age      int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the in-game advisor, one message per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := a.narrator().Assistant(story.Profile{Nickname: nickname, Age: age})
			a.logger.Debug("chat started", "session_id", session.ID())

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				reply := session.SendMessage(cmd.Context(), line)
				if reply == "" {
					reply = "(no reply)"
				}
				fmt.Fprintln(out, reply)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&nickname, "nickname", "player", "player nickname")
	cmd.Flags().IntVar(&age, "age", 30, "player age")
	return cmd
}

func (a *app) reportCommand() *cobra.Command {
	var age int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Assess the recorded decisions and save the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openProgress(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.Load(ctx)
			if err != nil {
				return err
			}
			if snap.Profile != nil && !cmd.Flags().Changed("age") {
				age = snap.Profile.Age
			}

			report := a.narrator().Report(ctx, snap.History, age)
			snap.Report = &report
			if err := st.Save(ctx, snap); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().IntVar(&age, "age", 30, "player age")
	return cmd
}

func (a *app) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete saved progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openProgress(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Reset(ctx)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
