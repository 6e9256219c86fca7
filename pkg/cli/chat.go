package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hiroq/engram/pkg/adapter"
	"github.com/hiroq/engram/pkg/model"
	"github.com/hiroq/engram/pkg/usecase/chat"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with the remembering agent",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			profile, err := cfg.loadProfile()
			if err != nil {
				return err
			}

			mem, ledger, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = ledger.Close()
			}()

			gemini, err := cfg.newGemini(ctx,
				adapter.WithGenerativeModel(profile.Model),
				adapter.WithTemperature(float32(profile.Temperature)),
			)
			if err != nil {
				return err
			}

			session, err := chat.New(chat.NewInput{
				Memory:  mem,
				LLM:     gemini,
				Profile: profile,
				Budget:  int(cfg.budget),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create chat session")
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize input")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Chat session started. Type 'exit' to quit.\n")

			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt || err == io.EOF {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				if line == "exit" {
					break
				}
				if line == "" {
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " thinking..."
				sp.Start()
				reply, err := session.Send(ctx, line)
				sp.Stop()

				if err != nil {
					if errors.Is(err, chat.ErrProfileTooLarge) {
						return goerr.Wrap(err, "raise the token budget or trim the profile objectives")
					}
					if errors.Is(err, model.ErrBudgetExceeded) {
						fmt.Fprintf(c.Root().Writer, "Message exceeds the token budget. Please try a shorter message.\n")
						continue
					}
					return goerr.Wrap(err, "failed to send message")
				}

				fmt.Fprintf(c.Root().Writer, "%s\n\n", reply)
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		},
	}
}
