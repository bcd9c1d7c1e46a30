package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"

	"litcode/internal/channel"
	"litcode/internal/llm"
	"litcode/internal/problem"
	"litcode/internal/security"
)

// problemFlags select where the problem snapshot comes from.
func problemFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "read the code from `FILE` (- for stdin)",
		},
		&cli.StringFlag{
			Name:    "title",
			Aliases: []string{"t"},
			Usage:   "problem title",
		},
		&cli.BoolFlag{
			Name:  "scrape",
			Usage: "read the problem from the open page in Chrome",
		},
	}
}

func openApp(cmd *cli.Command) (*App, llm.Backend, error) {
	app, err := NewApp(cmd.String("config"))
	if err != nil {
		return nil, "", err
	}
	b, err := app.Backend(cmd.String("backend"))
	if err != nil {
		app.Close()
		return nil, "", err
	}
	return app, b, nil
}

// supplierFor builds the snapshot source described by the problem flags.
// It returns nil when no flag was given.
func supplierFor(app *App, cmd *cli.Command) (problem.Supplier, error) {
	if cmd.Bool("scrape") {
		return app.Scraper(), nil
	}
	path := cmd.String("file")
	if path == "" && cmd.String("title") == "" {
		return nil, nil
	}

	var code []byte
	var err error
	switch path {
	case "":
	case "-":
		code, err = io.ReadAll(os.Stdin)
	default:
		code, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read code: %w", err)
	}
	return problem.Static{Title: cmd.String("title"), Code: string(code)}, nil
}

// readSnapshot resolves the problem for the one-shot commands, falling back
// to stdin when nothing was specified.
func readSnapshot(ctx context.Context, app *App, cmd *cli.Command) (problem.Snapshot, error) {
	sup, err := supplierFor(app, cmd)
	if err != nil {
		return problem.Snapshot{}, err
	}
	if sup == nil {
		code, err := io.ReadAll(os.Stdin)
		if err != nil {
			return problem.Snapshot{}, fmt.Errorf("read stdin: %w", err)
		}
		sup = problem.Static{Code: string(code)}
	}
	return sup.Snapshot(ctx)
}

// present prints a tutor result and turns a failure into the exit status.
func present(b llm.Backend, res llm.Result, spinner *pterm.SpinnerPrinter) error {
	if !res.OK() {
		if spinner != nil {
			spinner.Fail(b.DisplayName() + " failed")
		}
		if res.Err.Kind == llm.KindMissingCredentials {
			pterm.Info.Printfln("Add a key with: litcode keys set %s", b)
		}
		return cli.Exit(res.Display(), 1)
	}
	if spinner != nil {
		spinner.Success(b.DisplayName())
	}
	fmt.Println(res.Text)
	return nil
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "analyze the time and space complexity of your code",
		Flags: problemFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, b, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			snap, err := readSnapshot(ctx, app, cmd)
			if err != nil {
				return err
			}

			spinner, _ := pterm.DefaultSpinner.Start("Analyzing complexity with " + b.DisplayName() + "...")
			res := app.tutor.AnalyzeComplexity(ctx, app.Target(b), snap.Code)
			return present(b, res, spinner)
		},
	}
}

func followUpCommand() *cli.Command {
	return &cli.Command{
		Name:  "followup",
		Usage: "get a follow-up challenge for your solution",
		Flags: problemFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, b, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			snap, err := readSnapshot(ctx, app, cmd)
			if err != nil {
				return err
			}

			spinner, _ := pterm.DefaultSpinner.Start("Asking " + b.DisplayName() + " for a follow-up...")
			res := app.tutor.GetFollowUpChallenge(ctx, app.Target(b), snap)
			return present(b, res, spinner)
		},
	}
}

func chatCommand() *cli.Command {
	flags := append(problemFlags(), &cli.StringFlag{
		Name:  "session",
		Usage: "resume the transcript of session `ID`",
	})
	return &cli.Command{
		Name:  "chat",
		Usage: "talk to the Socratic mentor in the terminal",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, b, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			sup, err := supplierFor(app, cmd)
			if err != nil {
				return err
			}

			session := cmd.String("session")
			if session == "" {
				session = uuid.NewString()
			}

			console := channel.NewConsoleChannel(os.Stdin, os.Stdout, session)
			mgr := channel.NewManager()
			mgr.Register(console)

			desk, err := app.NewDesk(mgr, b, sup)
			if err != nil {
				return err
			}
			desk.Start(ctx)
			if err := mgr.StartAll(ctx); err != nil {
				return err
			}
			defer mgr.StopAll(context.Background())

			pterm.Info.Printfln("Session %s with %s. Type /help for commands, Ctrl-D to quit.", session, b.DisplayName())

			select {
			case <-ctx.Done():
			case <-console.Done():
			}
			pterm.Info.Printfln("Resume with: litcode chat --session %s", session)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the mentor over Telegram",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "scrape",
				Usage: "use the open page in Chrome for chats without a /problem",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, b, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			tg := app.Config().Channels.Telegram
			if tg == nil || tg.Token == "" {
				return cli.Exit("no Telegram token configured; run: litcode keys set telegram", 1)
			}

			var sup problem.Supplier
			if cmd.Bool("scrape") {
				sup = app.Scraper()
			}

			mgr := channel.NewManager()
			mgr.Register(channel.NewTelegramChannel(*tg))

			desk, err := app.NewDesk(mgr, b, sup)
			if err != nil {
				return err
			}
			desk.Start(ctx)
			if err := mgr.StartAll(ctx); err != nil {
				return err
			}
			defer mgr.StopAll(context.Background())

			pterm.Success.Printfln("Serving on Telegram with %s. Press Ctrl-C to stop.", b.DisplayName())
			<-ctx.Done()
			return nil
		},
	}
}

// telegramTarget is the keys target name for the bot token.
const telegramTarget = "telegram"

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "manage API keys",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "store the API key of a backend (or the Telegram bot token)",
				ArgsUsage: "<backend|telegram> [key]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return cli.Exit("usage: litcode keys set <backend|telegram> [key]", 2)
					}
					app, err := NewApp(cmd.String("config"))
					if err != nil {
						return err
					}
					defer app.Close()

					key := strings.TrimSpace(cmd.Args().Get(1))
					if key == "" {
						key, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Key for " + name)
						if err != nil {
							return err
						}
						key = strings.TrimSpace(key)
					}
					if key == "" {
						return cli.Exit("empty key", 2)
					}

					if name == telegramTarget {
						if err := app.SetTelegramToken(key); err != nil {
							return err
						}
						pterm.Success.Println("Stored Telegram token")
						return nil
					}

					b, err := llm.ParseBackend(name)
					if err != nil {
						return err
					}
					if err := app.SetKey(b, key); err != nil {
						return err
					}
					pterm.Success.Printfln("Stored %s key %s", b.DisplayName(), security.MaskKey(key))
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "forget the API key of a backend",
				ArgsUsage: "<backend>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					b, err := llm.ParseBackend(cmd.Args().First())
					if err != nil {
						return err
					}
					app, err := NewApp(cmd.String("config"))
					if err != nil {
						return err
					}
					defer app.Close()

					if err := app.DeleteKey(b); err != nil {
						return err
					}
					pterm.Success.Printfln("Deleted %s key", b.DisplayName())
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "list configured keys, masked",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := NewApp(cmd.String("config"))
					if err != nil {
						return err
					}
					defer app.Close()
					return renderBackends(app, "")
				},
			},
		},
	}
}

func useCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "select the default backend",
		ArgsUsage: "<backend>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			b, err := llm.ParseBackend(cmd.Args().First())
			if err != nil {
				return err
			}
			app, err := NewApp(cmd.String("config"))
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.UseBackend(b); err != nil {
				return err
			}
			pterm.Success.Printfln("Using %s", b.DisplayName())
			return nil
		},
	}
}

func backendsCommand() *cli.Command {
	return &cli.Command{
		Name:  "backends",
		Usage: "list backends, their models and key status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, b, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return renderBackends(app, b)
		},
	}
}

func renderBackends(app *App, selected llm.Backend) error {
	data := pterm.TableData{{"", "Backend", "Name", "Model", "Key"}}
	for _, b := range llm.Backends {
		mark := ""
		if b == selected {
			mark = "*"
		}
		key := security.MaskKey(app.Credentials(b))
		if key == "" {
			key = "not set"
		}
		data = append(data, []string{mark, string(b), b.DisplayName(), app.Model(b), key})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
